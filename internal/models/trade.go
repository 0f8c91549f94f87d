package models

import (
	"sort"
	"time"
)

// Trade is one observed swap. Signature is the idempotency key.
type Trade struct {
	ID            int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Signature     string `gorm:"column:signature;type:varchar(128);not null;uniqueIndex:uidx_trade_signature" json:"signature"`
	WalletAddress string `gorm:"column:wallet_address;type:varchar(64);not null;index:idx_trade_wallet" json:"wallet_address"`
	TokenAddress  string `gorm:"column:token_address;type:varchar(64);not null;default:'';index:idx_trade_token" json:"token_address"`
	TokenSymbol   string `gorm:"column:token_symbol;type:varchar(32);not null;default:''" json:"token_symbol"`
	Side          Side   `gorm:"column:side;type:varchar(8);not null" json:"side"`

	AmountSOL float64 `gorm:"column:amount_sol;not null;default:0" json:"amount_sol"`
	AmountUSD float64 `gorm:"column:amount_usd;not null;default:0" json:"amount_usd"`
	PriceUSD  float64 `gorm:"column:price_usd;not null;default:0" json:"price_usd"`

	// backfilled on sells once matched
	PnLUSD       *float64 `gorm:"column:pnl_usd" json:"pnl_usd,omitempty"`
	IsProfitable *bool    `gorm:"column:is_profitable" json:"is_profitable,omitempty"`
	HoldTimeSecs *float64 `gorm:"column:hold_time_secs" json:"hold_time_secs,omitempty"`

	BlockTime       time.Time `gorm:"column:block_time;not null;index:idx_trade_block_time" json:"block_time"`
	BlocksAfterMint *int      `gorm:"column:blocks_after_mint" json:"blocks_after_mint,omitempty"`
	UsedJito        bool      `gorm:"column:used_jito;not null;default:false" json:"used_jito"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t *Trade) IsBuy() bool  { return t.Side == SideBuy }
func (t *Trade) IsSell() bool { return t.Side == SideSell }

// SortByTime orders trades by block time, then signature, in place.
func SortByTime(trades []*Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].BlockTime.Equal(trades[j].BlockTime) {
			return trades[i].BlockTime.Before(trades[j].BlockTime)
		}
		return trades[i].Signature < trades[j].Signature
	})
}
