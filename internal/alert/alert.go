// Package alert delivers trade, tier, exile and heartbeat notices.
package alert

import (
	"context"
	"errors"
	"time"

	"github.com/utrading/utrading-sol-agent/internal/botdetect"
	"github.com/utrading/utrading-sol-agent/internal/models"
)

const (
	KindTrade     = "trade"
	KindTier      = "tier_change"
	KindExile     = "exile"
	KindHeartbeat = "heartbeat"
)

type TradeAlert struct {
	Wallet       *models.Wallet
	Trade        *models.Trade
	PnLUSD       *float64
	CopyEligible bool
}

type TierChange struct {
	Wallet *models.Wallet
	From   models.Tier
	To     models.Tier
}

// Notable reports whether the change is worth a notice: only moves into tier1 or tier2.
func (c TierChange) Notable() bool {
	return c.From != c.To && (c.To == models.TierTier1 || c.To == models.TierTier2)
}

// Promotion is true when the wallet moved up the candidate, tier2, tier1 path.
func (c TierChange) Promotion() bool {
	return c.To.Rank() > c.From.Rank()
}

type Exile struct {
	Wallet    string
	BotScore  float64
	Threshold float64
	Signals   []botdetect.SignalKind
	Reason    string
	ClusterID string
}

type Heartbeat struct {
	Counts         map[models.Tier]int64
	Tier1Max       int
	TradesLastHour int
	AlertsLastHour int
	ErrorsLastHour int
	At             time.Time
}

// Notifier is one alert channel. Implementations return delivery errors; the
// caller logs them and carries on.
type Notifier interface {
	Name() string
	NotifyTrade(ctx context.Context, a TradeAlert) error
	NotifyTierChange(ctx context.Context, c TierChange) error
	NotifyExile(ctx context.Context, e Exile) error
	NotifyHeartbeat(ctx context.Context, h Heartbeat) error
}

// Multi fans every notice out to all notifiers. A failing notifier does not
// stop the others; the joined errors are returned.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyTrade(ctx context.Context, a TradeAlert) error {
	return m.each(func(n Notifier) error { return n.NotifyTrade(ctx, a) })
}

func (m Multi) NotifyTierChange(ctx context.Context, c TierChange) error {
	return m.each(func(n Notifier) error { return n.NotifyTierChange(ctx, c) })
}

func (m Multi) NotifyExile(ctx context.Context, e Exile) error {
	return m.each(func(n Notifier) error { return n.NotifyExile(ctx, e) })
}

func (m Multi) NotifyHeartbeat(ctx context.Context, h Heartbeat) error {
	return m.each(func(n Notifier) error { return n.NotifyHeartbeat(ctx, h) })
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Name() string { return "nop" }
func (Nop) NotifyTrade(context.Context, TradeAlert) error { return nil }
func (Nop) NotifyTierChange(context.Context, TierChange) error { return nil }
func (Nop) NotifyExile(context.Context, Exile) error { return nil }
func (Nop) NotifyHeartbeat(context.Context, Heartbeat) error { return nil }
