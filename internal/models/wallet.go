package models

import (
	"time"
)

type Wallet struct {
	ID      uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Address string `gorm:"column:address;type:varchar(64);not null;uniqueIndex:uidx_wallet_address" json:"address"`
	Tier    Tier   `gorm:"column:tier;type:varchar(16);not null;default:candidate;index:idx_wallet_tier_win_rate,priority:1" json:"tier"`

	// scoring
	WinRate         float64 `gorm:"column:win_rate;not null;default:0;index:idx_wallet_tier_win_rate,priority:2" json:"win_rate"`
	TotalTrades     int     `gorm:"column:total_trades;not null;default:0" json:"total_trades"`
	WinningTrades   int     `gorm:"column:winning_trades;not null;default:0" json:"winning_trades"`
	TotalPnLUSD     float64 `gorm:"column:total_pnl_usd;not null;default:0" json:"total_pnl_usd"`
	AvgPnLPerTrade  float64 `gorm:"column:avg_pnl_per_trade;not null;default:0" json:"avg_pnl_per_trade"`
	AvgHoldTimeSecs float64 `gorm:"column:avg_hold_time_secs;not null;default:0" json:"avg_hold_time_secs"`
	TradeSizeCV     float64 `gorm:"column:trade_size_cv;not null;default:0" json:"trade_size_cv"`
	BotScore        float64 `gorm:"column:bot_score;not null;default:0" json:"bot_score"`

	// lifecycle
	FirstSeen  time.Time  `gorm:"column:first_seen;not null" json:"first_seen"`
	LastActive time.Time  `gorm:"column:last_active;not null;index:idx_wallet_last_active" json:"last_active"`
	LastScored *time.Time `gorm:"column:last_scored;index:idx_wallet_last_scored" json:"last_scored,omitempty"`

	DiscoverySource   string `gorm:"column:discovery_source;type:varchar(128);not null;default:''" json:"discovery_source"`
	WebhookRegistered bool   `gorm:"column:webhook_registered;not null;default:false" json:"webhook_registered"`
	Notes             string `gorm:"column:notes;type:text" json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
