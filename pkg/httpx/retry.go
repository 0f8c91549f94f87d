package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

var ErrRateLimited = errors.New("rate limited")

// StatusError is a non-2xx response that was not retried or ran out of attempts.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	return nil
}

// Policy bounds one call: attempts and the exponential schedule between them.
type Policy struct {
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	// RetryAfter extracts the server-specified wait from a 429; defaults to the
	// Retry-After header.
	RetryAfter func(resp *http.Response, body []byte) time.Duration
}

var DefaultPolicy = Policy{MaxAttempts: 4, MinBackoff: time.Second, MaxBackoff: 10 * time.Second}

// serverWait overrides the next step of the schedule once.
type serverWait struct {
	backoff.BackOff
	next time.Duration
}

func (b *serverWait) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop || b.next <= 0 {
		return d
	}
	d, b.next = b.next, 0
	return d
}

func (p Policy) schedule() *serverWait {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.MinBackoff
	exp.MaxInterval = p.MaxBackoff
	exp.MaxElapsedTime = 0
	return &serverWait{BackOff: exp}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.MinBackoff <= 0 {
		p.MinBackoff = DefaultPolicy.MinBackoff
	}
	if p.MaxBackoff < p.MinBackoff {
		p.MaxBackoff = p.MinBackoff
	}
	return p
}

// Retry runs op under the same bounded schedule as Do, for calls that do not
// go through an http.Client directly, such as JSON-RPC. Wrap an error with
// backoff.Permanent to stop early.
func Retry(ctx context.Context, p Policy, name string, op func() error) error {
	p = p.withDefaults()
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).
			Str("call", name).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("wait", wait).
			Msg("call failed, retrying")
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.schedule(), uint64(p.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(wrapped, b, notify); err != nil {
		return fmt.Errorf("%s after %d attempts: %w", name, attempt, err)
	}
	return nil
}

// Do sends the request built by buildReq, retrying transport errors, 5xx and
// 429. Other 4xx responses fail at once. buildReq runs per attempt so bodies
// are fresh. The caller closes the returned body.
func Do(ctx context.Context, client *http.Client, p Policy, buildReq func() (*http.Request, error)) (*http.Response, error) {
	p = p.withDefaults()
	retryAfter := p.RetryAfter
	if retryAfter == nil {
		retryAfter = HeaderRetryAfter
	}

	sched := p.schedule()
	var (
		resp    *http.Response
		attempt int
	)
	op := func() error {
		attempt++
		req, err := buildReq()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		r, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if r.StatusCode < 300 {
			resp = r
			return nil
		}

		body, _ := io.ReadAll(io.LimitReader(r.Body, 512))
		r.Body.Close()
		serr := &StatusError{Code: r.StatusCode, Body: string(body)}

		switch {
		case r.StatusCode == http.StatusTooManyRequests:
			sched.next = retryAfter(r, body)
			return serr
		case r.StatusCode >= 500:
			return serr
		default:
			return backoff.Permanent(serr)
		}
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", p.MaxAttempts).
			Dur("wait", wait).
			Msg("http request failed, retrying")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(sched, uint64(p.MaxAttempts-1)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
	}
	return resp, nil
}

// HeaderRetryAfter reads Retry-After as seconds or an HTTP date.
func HeaderRetryAfter(resp *http.Response, _ []byte) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}
