package nats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

var ErrClosed = errors.New("nats: publisher closed")

// Publisher NATS 告警发布器, 实现 alert.Notifier
type Publisher struct {
	*nats.Conn
	prefix string
	mu     sync.RWMutex
	closed bool
	now    func() time.Time
}

// NewPublisher 创建 NATS 发布器
func NewPublisher(url, prefix string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("sol_agent"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			monitor.SetNATSConnected(false)
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			monitor.SetNATSConnected(true)
			logger.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		Conn:   conn,
		prefix: prefix,
		now:    time.Now,
	}

	// 更新指标
	monitor.SetNATSConnected(true)

	return p, nil
}

func (p *Publisher) Name() string { return "nats" }

func (p *Publisher) publish(e *AlertEvent) error {
	if !p.IsConnected() {
		monitor.IncAlert(e.Kind, false)
		return ErrClosed
	}
	data, err := e.Marshal()
	if err != nil {
		logger.Error().Err(err).Str("kind", e.Kind).Msg("marshal alert event failed")
		return err
	}
	if err = p.Publish(Subject(p.prefix, e.Kind), data); err != nil {
		monitor.IncAlert(e.Kind, false)
		return err
	}
	monitor.IncAlert(e.Kind, true)
	return nil
}

func (p *Publisher) NotifyTrade(_ context.Context, a alert.TradeAlert) error {
	return p.publish(TradeEvent(a, p.now()))
}

func (p *Publisher) NotifyTierChange(_ context.Context, c alert.TierChange) error {
	return p.publish(TierEvent(c, p.now()))
}

func (p *Publisher) NotifyExile(_ context.Context, x alert.Exile) error {
	return p.publish(ExileEvent(x, p.now()))
}

func (p *Publisher) NotifyHeartbeat(_ context.Context, h alert.Heartbeat) error {
	return p.publish(HeartbeatEvent(h, p.now()))
}

// IsConnected 检查发布器是否已连接
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.Conn != nil && !p.Conn.IsClosed()
}

// Close 关闭连接
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	// 更新指标
	monitor.SetNATSConnected(false)

	if p.Conn != nil {
		p.Conn.Drain()
	}
	return nil
}
