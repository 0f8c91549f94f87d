// Package stream follows tier1 wallets over the RPC websocket as a fallback
// to pushed webhooks. Each mention notification carries only a signature; the
// source resolves signatures in batches and hands the enhanced transactions to
// the same sink the webhook receiver uses.
package stream

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

var ErrNotStarted = errors.New("stream: source not started")

type Resolver interface {
	GetTransactions(ctx context.Context, signatures []string) ([]gjson.Result, error)
}

type Sink interface {
	Dispatch(tx gjson.Result) error
}

type Options struct {
	URL           string
	APIKey        string
	BatchSize     int
	FlushInterval time.Duration
	Commitment    string
}

func (o *Options) defaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = 500 * time.Millisecond
	}
	if o.Commitment == "" {
		o.Commitment = "confirmed"
	}
}

// Source keeps one logsSubscribe per wanted address and survives reconnects.
type Source struct {
	opts     Options
	url      string
	resolver Resolver
	sink     Sink

	ctx    context.Context
	client *Client
	nextID atomic.Int64

	mu      sync.Mutex
	wanted  map[string]bool
	subs    map[string]int64 // address -> server subscription id
	bySub   map[int64]string
	pending map[int64]string // request id -> address

	sigs chan string

	reconnectMu      sync.Mutex
	reconnectBackoff time.Duration
}

func NewSource(opts Options, resolver Resolver, sink Sink) *Source {
	opts.defaults()
	target := opts.URL
	if opts.APIKey != "" {
		if u, err := url.Parse(target); err == nil {
			q := u.Query()
			q.Set("api-key", opts.APIKey)
			u.RawQuery = q.Encode()
			target = u.String()
		}
	}
	return &Source{
		opts:     opts,
		url:      target,
		resolver: resolver,
		sink:     sink,
		wanted:   make(map[string]bool),
		subs:     make(map[string]int64),
		bySub:    make(map[int64]string),
		pending:  make(map[int64]string),
		sigs:     make(chan string, 4096),
	}
}

// Start dials the endpoint and starts the signature flusher.
func (s *Source) Start(ctx context.Context) error {
	s.ctx = ctx
	if err := s.connect(); err != nil {
		return err
	}
	goplus.GoNamed("stream-flusher", s.flushLoop)
	logger.Info().Msg("stream source started")
	return nil
}

func (s *Source) connect() error {
	c := NewClient(s.url)
	c.SetMessageHandler(s.onMessage)
	c.SetDisconnectCallback(func() {
		monitor.SetStreamConnected(false)
		logger.Warn().Msg("stream disconnected, reconnecting")
		goplus.GoNamed("stream-reconnect", s.handleDisconnect)
	})
	if err := c.Connect(s.ctx); err != nil {
		return err
	}

	s.mu.Lock()
	old := s.client
	s.client = c
	s.subs = make(map[string]int64)
	s.bySub = make(map[int64]string)
	s.pending = make(map[int64]string)
	wanted := make([]string, 0, len(s.wanted))
	for a := range s.wanted {
		wanted = append(wanted, a)
	}
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	monitor.SetStreamConnected(true)
	for _, a := range address.Sorted(wanted) {
		if err := s.sendSubscribe(a); err != nil {
			logger.Error().Err(err).Str("wallet", address.Short(a)).Msg("resubscribe failed")
		}
	}
	return nil
}

func (s *Source) handleDisconnect() {
	if !s.reconnectMu.TryLock() {
		return
	}
	defer s.reconnectMu.Unlock()

	const (
		initialBackoff = time.Second
		maxBackoff     = 5 * time.Minute
	)
	if s.reconnectBackoff == 0 {
		s.reconnectBackoff = initialBackoff
	}

	for {
		// 抖动范围 [0.5, 1.5) * backoff
		jitter := time.Duration(float64(s.reconnectBackoff) * (0.5 + rand.Float64()))
		if err := goplus.Sleep(s.ctx, jitter); err != nil {
			return
		}
		err := s.connect()
		if err == nil {
			break
		}
		logger.Warn().Err(err).Dur("backoff", jitter).Msg("stream reconnect failed")
		s.reconnectBackoff *= 2
		if s.reconnectBackoff > maxBackoff {
			s.reconnectBackoff = maxBackoff
		}
	}
	s.reconnectBackoff = initialBackoff
	logger.Info().Msg("stream reconnected")
}

func (s *Source) currentClient() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Source) sendSubscribe(addr string) error {
	c := s.currentClient()
	if c == nil {
		return ErrNotStarted
	}
	id := s.nextID.Add(1)
	s.mu.Lock()
	s.pending[id] = addr
	s.mu.Unlock()

	err := c.Send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "logsSubscribe",
		"params": []any{
			map[string]any{"mentions": []string{addr}},
			map[string]any{"commitment": s.opts.Commitment},
		},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
	return err
}

// SubscribeAddress adds addr to the followed set. While disconnected the
// address is remembered and subscribed on reconnect.
func (s *Source) SubscribeAddress(addr string) error {
	s.mu.Lock()
	if s.wanted[addr] {
		s.mu.Unlock()
		return nil
	}
	s.wanted[addr] = true
	connected := s.client != nil && s.client.IsConnected()
	s.mu.Unlock()

	if !connected {
		return nil
	}
	return s.sendSubscribe(addr)
}

func (s *Source) UnsubscribeAddress(addr string) error {
	s.mu.Lock()
	delete(s.wanted, addr)
	subID, ok := s.subs[addr]
	if ok {
		delete(s.subs, addr)
		delete(s.bySub, subID)
	}
	c := s.client
	s.mu.Unlock()

	if !ok || c == nil || !c.IsConnected() {
		return nil
	}
	return c.Send(map[string]any{
		"jsonrpc": "2.0",
		"id":      s.nextID.Add(1),
		"method":  "logsUnsubscribe",
		"params":  []any{subID},
	})
}

func (s *Source) IsConnected() bool {
	c := s.currentClient()
	return c != nil && c.IsConnected()
}

// Subscribed returns the number of confirmed subscriptions.
func (s *Source) Subscribed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Source) Close() error {
	if c := s.currentClient(); c != nil {
		c.Close()
	}
	monitor.SetStreamConnected(false)
	return nil
}

func (s *Source) onMessage(raw []byte) {
	if !gjson.ValidBytes(raw) {
		return
	}
	msg := gjson.ParseBytes(raw)

	if msg.Get("method").String() == "logsNotification" {
		s.onNotification(msg.Get("params"))
		return
	}

	id := msg.Get("id")
	if !id.Exists() {
		return
	}
	s.mu.Lock()
	addr, ok := s.pending[id.Int()]
	delete(s.pending, id.Int())
	if !ok {
		s.mu.Unlock()
		return
	}
	if e := msg.Get("error"); e.Exists() {
		s.mu.Unlock()
		logger.Error().Str("wallet", address.Short(addr)).Str("error", e.Get("message").String()).Msg("logsSubscribe rejected")
		return
	}
	subID := msg.Get("result").Int()
	if s.wanted[addr] {
		s.subs[addr] = subID
		s.bySub[subID] = addr
	}
	s.mu.Unlock()
}

func (s *Source) onNotification(params gjson.Result) {
	value := params.Get("result.value")
	if e := value.Get("err"); e.Exists() && e.Type != gjson.Null {
		monitor.IncLiveEvent("failed_tx")
		return
	}
	sig := value.Get("signature").String()
	if !address.ValidSignature(sig) {
		monitor.IncLiveEvent("bad_signature")
		return
	}

	select {
	case s.sigs <- sig:
	default:
		monitor.IncLiveEvent("dropped")
		logger.Warn().Str("signature", sig).Msg("signature queue full, dropping")
	}
}

func (s *Source) flushLoop() {
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]string, 0, s.opts.BatchSize)
	seen := make(map[string]bool, s.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		s.resolve(batch)
		batch = batch[:0]
		clear(seen)
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case sig := <-s.sigs:
			// one tx can mention several followed wallets
			if seen[sig] {
				continue
			}
			seen[sig] = true
			batch = append(batch, sig)
			if len(batch) >= s.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (s *Source) resolve(sigs []string) {
	txs, err := s.resolver.GetTransactions(s.ctx, sigs)
	if err != nil {
		monitor.IncError("stream")
		logger.Error().Err(err).Int("signatures", len(sigs)).Msg("resolve signatures failed")
		return
	}
	for _, tx := range txs {
		if err = s.sink.Dispatch(tx); err != nil {
			return
		}
	}
}
