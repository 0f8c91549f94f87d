package nats

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/models"
)

// AlertEvent 告警事件, 发布到 <prefix>.<kind>
type AlertEvent struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Wallet    string `json:"wallet,omitempty"`
	Tier      string `json:"tier,omitempty"`
	Timestamp int64  `json:"timestamp"`

	// trade
	Signature    string   `json:"signature,omitempty"`
	Token        string   `json:"token,omitempty"`
	Symbol       string   `json:"symbol,omitempty"`
	Side         string   `json:"side,omitempty"`
	AmountSOL    float64  `json:"amount_sol,omitempty"`
	AmountUSD    float64  `json:"amount_usd,omitempty"`
	PriceUSD     float64  `json:"price_usd,omitempty"`
	PnLUSD       *float64 `json:"pnl_usd,omitempty"`
	CopyEligible bool     `json:"copy_eligible,omitempty"`
	WinRate      float64  `json:"win_rate,omitempty"`

	// tier change
	FromTier string `json:"from_tier,omitempty"`
	ToTier   string `json:"to_tier,omitempty"`

	// exile
	BotScore  float64  `json:"bot_score,omitempty"`
	Signals   []string `json:"signals,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	ClusterID string   `json:"cluster_id,omitempty"`

	// heartbeat
	Counts         map[models.Tier]int64 `json:"counts,omitempty"`
	TradesLastHour int                   `json:"trades_last_hour,omitempty"`
	AlertsLastHour int                   `json:"alerts_last_hour,omitempty"`
	ErrorsLastHour int                   `json:"errors_last_hour,omitempty"`
}

func newEvent(kind string, now time.Time) *AlertEvent {
	return &AlertEvent{ID: uuid.NewString(), Kind: kind, Timestamp: now.UnixMilli()}
}

func TradeEvent(a alert.TradeAlert, now time.Time) *AlertEvent {
	e := newEvent(alert.KindTrade, now)
	if a.Wallet != nil {
		e.Wallet = a.Wallet.Address
		e.Tier = string(a.Wallet.Tier)
		e.WinRate = a.Wallet.WinRate
	}
	if t := a.Trade; t != nil {
		e.Signature = t.Signature
		e.Token = t.TokenAddress
		e.Symbol = t.TokenSymbol
		e.Side = string(t.Side)
		e.AmountSOL = t.AmountSOL
		e.AmountUSD = t.AmountUSD
		e.PriceUSD = t.PriceUSD
	}
	e.PnLUSD = a.PnLUSD
	e.CopyEligible = a.CopyEligible
	return e
}

func TierEvent(c alert.TierChange, now time.Time) *AlertEvent {
	e := newEvent(alert.KindTier, now)
	if c.Wallet != nil {
		e.Wallet = c.Wallet.Address
		e.WinRate = c.Wallet.WinRate
	}
	e.Tier = string(c.To)
	e.FromTier = string(c.From)
	e.ToTier = string(c.To)
	return e
}

func ExileEvent(x alert.Exile, now time.Time) *AlertEvent {
	e := newEvent(alert.KindExile, now)
	e.Wallet = x.Wallet
	e.Tier = string(models.TierExiled)
	e.BotScore = x.BotScore
	e.Reason = x.Reason
	e.ClusterID = x.ClusterID
	for _, s := range x.Signals {
		e.Signals = append(e.Signals, s.String())
	}
	return e
}

func HeartbeatEvent(h alert.Heartbeat, now time.Time) *AlertEvent {
	e := newEvent(alert.KindHeartbeat, now)
	e.Counts = h.Counts
	e.TradesLastHour = h.TradesLastHour
	e.AlertsLastHour = h.AlertsLastHour
	e.ErrorsLastHour = h.ErrorsLastHour
	return e
}

func (e *AlertEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Subject 事件主题
func Subject(prefix, kind string) string {
	if prefix == "" {
		return kind
	}
	return prefix + "." + kind
}
