package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{MaxAttempts: 4, MinBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}

func get(url string) func() (*http.Request, error) {
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := Do(context.Background(), srv.Client(), fast, get(srv.URL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), fast, get(srv.URL))
	require.Error(t, err)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusInternalServerError, serr.Code)
	assert.Equal(t, int32(4), calls.Load())
}

func TestClientErrorsArePermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Do(context.Background(), srv.Client(), fast, get(srv.URL))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestRateLimitHonoursServerWait(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	start := time.Now()
	resp, err := Do(context.Background(), srv.Client(), fast, get(srv.URL))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(2), calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond, "waited the server's second, not the 1ms schedule")
}

func TestRateLimitExhaustedWrapsSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := fast
	p.MaxAttempts = 2
	_, err := Do(context.Background(), srv.Client(), p, get(srv.URL))
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestCancelledContextStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, srv.Client(), Policy{MaxAttempts: 4, MinBackoff: time.Second, MaxBackoff: time.Second}, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeaderRetryAfter(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	assert.Zero(t, HeaderRetryAfter(resp, nil))
	resp.Header.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, HeaderRetryAfter(resp, nil))
	resp.Header.Set("Retry-After", "soon")
	assert.Zero(t, HeaderRetryAfter(resp, nil))
}

func TestNewClientWithProxy(t *testing.T) {
	c, err := NewClient(time.Second, "127.0.0.1:1080")
	require.NoError(t, err)
	assert.Equal(t, time.Second, c.Timeout)

	c, err = NewClient(0, "")
	require.NoError(t, err)
	assert.NotNil(t, c.Transport)
}

func TestRetryRunsUntilSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, "rpc", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, "rpc", func() error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc after 4 attempts")
	assert.Equal(t, 4, calls)
}

func TestRetryPermanentStops(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, "rpc", func() error {
		calls++
		return backoff.Permanent(errors.New("bad key"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
