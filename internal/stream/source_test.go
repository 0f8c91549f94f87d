package stream

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func randomSig() string {
	b := make([]byte, 64)
	rand.Read(b)
	return base58.Encode(b)
}

// rpcServer is a minimal logsSubscribe endpoint.
type rpcServer struct {
	*httptest.Server
	mu       sync.Mutex
	conns    []*websocket.Conn
	requests []gjson.Result
}

func newRPCServer(t *testing.T) *rpcServer {
	s := &rpcServer{}
	upgrader := websocket.Upgrader{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			req := gjson.ParseBytes(raw)
			s.mu.Lock()
			s.requests = append(s.requests, req)
			s.mu.Unlock()

			id := req.Get("id").Int()
			var resp string
			switch req.Get("method").String() {
			case "logsSubscribe":
				resp = fmt.Sprintf(`{"jsonrpc":"2.0","result":%d,"id":%d}`, 1000+id, id)
			case "logsUnsubscribe":
				resp = fmt.Sprintf(`{"jsonrpc":"2.0","result":true,"id":%d}`, id)
			}
			s.write(conn, resp)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *rpcServer) write(conn *websocket.Conn, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (s *rpcServer) last() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[len(s.conns)-1]
}

func (s *rpcServer) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.requests {
		out = append(out, r.Get("method").String())
	}
	return out
}

func (s *rpcServer) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *rpcServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func notification(sub int64, sig string, failed bool) string {
	errField := "null"
	if failed {
		errField = `{"InstructionError":[0,"Custom"]}`
	}
	return fmt.Sprintf(`{"jsonrpc":"2.0","method":"logsNotification","params":{"result":{"context":{"slot":5},"value":{"signature":%q,"err":%s,"logs":[]}},"subscription":%d}}`, sig, errField, sub)
}

type fakeResolver struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *fakeResolver) GetTransactions(_ context.Context, sigs []string) ([]gjson.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string(nil), sigs...))
	var out []gjson.Result
	for _, s := range sigs {
		out = append(out, gjson.Parse(fmt.Sprintf(`{"signature":%q}`, s)))
	}
	return out, nil
}

type fakeSink struct {
	mu   sync.Mutex
	sigs []string
}

func (k *fakeSink) Dispatch(tx gjson.Result) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.sigs = append(k.sigs, tx.Get("signature").String())
	return nil
}

func (k *fakeSink) got() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.sigs...)
}

func startSource(t *testing.T, srv *rpcServer) (*Source, *fakeResolver, *fakeSink) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	res, sink := &fakeResolver{}, &fakeSink{}
	src := NewSource(Options{URL: srv.wsURL(), APIKey: "k", FlushInterval: 50 * time.Millisecond}, res, sink)
	require.NoError(t, src.SubscribeAddress("WalletA"))
	require.NoError(t, src.Start(ctx))
	t.Cleanup(func() { src.Close() })
	return src, res, sink
}

func TestSourceResolvesMentionedSignatures(t *testing.T) {
	srv := newRPCServer(t)
	src, res, sink := startSource(t, srv)

	require.Eventually(t, func() bool { return src.Subscribed() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, src.IsConnected())

	good := randomSig()
	conn := srv.last()
	srv.write(conn, notification(1001, good, false))
	srv.write(conn, notification(1001, good, false))
	srv.write(conn, notification(1001, randomSig(), true))
	srv.write(conn, notification(1001, "not-a-signature", false))

	require.Eventually(t, func() bool { return len(sink.got()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{good}, sink.got())

	res.mu.Lock()
	defer res.mu.Unlock()
	require.Len(t, res.calls, 1)
	assert.Equal(t, []string{good}, res.calls[0])
}

func TestSourceSubscribeRequestShape(t *testing.T) {
	srv := newRPCServer(t)
	src, _, _ := startSource(t, srv)
	require.Eventually(t, func() bool { return src.Subscribed() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.mu.Lock()
	req := srv.requests[0]
	srv.mu.Unlock()
	assert.Equal(t, "logsSubscribe", req.Get("method").String())
	assert.Equal(t, "WalletA", req.Get("params.0.mentions.0").String())
	assert.Equal(t, "confirmed", req.Get("params.1.commitment").String())

	// idempotent
	require.NoError(t, src.SubscribeAddress("WalletA"))
	assert.Equal(t, []string{"logsSubscribe"}, srv.methods())
}

func TestSourceUnsubscribe(t *testing.T) {
	srv := newRPCServer(t)
	src, _, _ := startSource(t, srv)
	require.Eventually(t, func() bool { return src.Subscribed() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, src.UnsubscribeAddress("WalletA"))
	assert.Equal(t, 0, src.Subscribed())
	require.Eventually(t, func() bool { return len(srv.methods()) == 2 }, 2*time.Second, 10*time.Millisecond)

	srv.mu.Lock()
	req := srv.requests[1]
	srv.mu.Unlock()
	assert.Equal(t, "logsUnsubscribe", req.Get("method").String())
	assert.Equal(t, int64(1001), req.Get("params.0").Int())

	// unknown address is a no-op
	require.NoError(t, src.UnsubscribeAddress("nobody"))
}

func TestSourceResubscribesAfterReconnect(t *testing.T) {
	srv := newRPCServer(t)
	src, _, _ := startSource(t, srv)
	require.Eventually(t, func() bool { return src.Subscribed() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.last().Close()

	require.Eventually(t, func() bool { return srv.connCount() == 2 }, 5*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(srv.methods()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"logsSubscribe", "logsSubscribe"}, srv.methods())
	require.Eventually(t, func() bool { return src.Subscribed() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, src.IsConnected())
}

func TestClientCloseIsIdempotent(t *testing.T) {
	c := NewClient("wss://example.com")
	for i := 0; i < 3; i++ {
		assert.NoError(t, c.Close())
	}
	assert.False(t, c.IsConnected())
	assert.Error(t, c.Send(map[string]string{}))
}

func TestNewClientEmptyURL(t *testing.T) {
	assert.Panics(t, func() { NewClient("") })
}
