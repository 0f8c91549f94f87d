package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type collector struct {
	mu   sync.Mutex
	wg   sync.WaitGroup
	sigs []string
}

func (c *collector) handle(_ context.Context, tx gjson.Result) {
	defer c.wg.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sigs = append(c.sigs, tx.Get("signature").String())
}

func newReceiver(t *testing.T, secret string, c *collector) *Receiver {
	t.Helper()
	d, err := NewDispatcher(context.Background(), 4, c.handle)
	require.NoError(t, err)
	t.Cleanup(d.Release)
	return NewReceiver(secret, d)
}

func post(r http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers did not run")
	}
}

func TestArrayPayloadDispatchesEachEvent(t *testing.T) {
	c := &collector{}
	c.wg.Add(3)
	r := newReceiver(t, "", c)

	rec := post(r, `[{"signature":"a"},{"signature":"b"},{"signature":"c"}]`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), gjson.Get(rec.Body.String(), "received").Int())

	waitTimeout(t, &c.wg)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, c.sigs)
}

func TestSingleObjectPayload(t *testing.T) {
	c := &collector{}
	c.wg.Add(1)
	r := newReceiver(t, "", c)

	rec := post(r, `{"signature":"solo"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	waitTimeout(t, &c.wg)
	assert.Equal(t, []string{"solo"}, c.sigs)
}

func TestSignatureVerification(t *testing.T) {
	c := &collector{}
	r := newReceiver(t, "s3cret", c)
	body := `{"signature":"x"}`

	rec := post(r, body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(r, body, map[string]string{SignatureHeader: Sign([]byte("wrong"), []byte(body))})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(r, body, map[string]string{SignatureHeader: "zz-not-hex"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c.wg.Add(1)
	rec = post(r, body, map[string]string{SignatureHeader: Sign([]byte("s3cret"), []byte(body))})
	assert.Equal(t, http.StatusOK, rec.Code)
	waitTimeout(t, &c.wg)
}

func TestBadJSONAndMethod(t *testing.T) {
	r := newReceiver(t, "", &collector{})

	rec := post(r, `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", gjson.Get(rec.Body.String(), "detail").String())

	req := httptest.NewRequest(http.MethodGet, Path, nil)
	out := httptest.NewRecorder()
	r.ServeHTTP(out, req)
	assert.Equal(t, http.StatusMethodNotAllowed, out.Code)
}

func TestNonObjectEntriesSkipped(t *testing.T) {
	c := &collector{}
	c.wg.Add(1)
	r := newReceiver(t, "", c)

	rec := post(r, `[1, "x", {"signature":"ok"}]`, nil)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "received").Int())
	waitTimeout(t, &c.wg)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	d, err := NewDispatcher(context.Background(), 1, func(_ context.Context, tx gjson.Result) {
		defer wg.Done()
		if tx.Get("boom").Bool() {
			panic("bad event")
		}
	})
	require.NoError(t, err)
	defer d.Release()

	require.NoError(t, d.Dispatch(gjson.Parse(`{"boom":true}`)))
	require.NoError(t, d.Dispatch(gjson.Parse(`{"boom":false}`)))
	waitTimeout(t, &wg)
}

func TestDispatchAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d, err := NewDispatcher(ctx, 1, func(context.Context, gjson.Result) {})
	require.NoError(t, err)
	defer d.Release()

	cancel()
	assert.ErrorIs(t, d.Dispatch(gjson.Parse(`{}`)), context.Canceled)
}

func TestClosedDispatcherAsksForRedelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d, err := NewDispatcher(ctx, 1, func(context.Context, gjson.Result) {})
	require.NoError(t, err)
	defer d.Release()
	cancel()

	rec := post(NewReceiver("", d), `[{"signature":"a"},{"signature":"b"}]`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, int64(0), gjson.Get(rec.Body.String(), "received").Int())
}
