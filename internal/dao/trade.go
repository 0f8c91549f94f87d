package dao

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

type TradeDAO struct {
	db *gorm.DB
}

var (
	_trade     *TradeDAO
	_tradeOnce sync.Once
)

func InitTradeDAO(db *gorm.DB) {
	_tradeOnce.Do(func() {
		_trade = NewTradeDAO(db)
	})
}

func Trade() *TradeDAO {
	return _trade
}

func NewTradeDAO(db *gorm.DB) *TradeDAO {
	return &TradeDAO{db: db}
}

const tradeBatchSize = 200

// InsertTrades ignores signatures already stored and returns the rows created.
func (d *TradeDAO) InsertTrades(ctx context.Context, trades []*models.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "signature"}}, DoNothing: true}).
		CreateInBatches(trades, tradeBatchSize)
	return res.RowsAffected, res.Error
}

// UpsertTrades inserts new trades and backfills PnL columns on existing ones.
func (d *TradeDAO) UpsertTrades(ctx context.Context, trades []*models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return upsertTrades(d.db.WithContext(ctx), trades)
}

func upsertTrades(tx *gorm.DB, trades []*models.Trade) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signature"}},
		DoUpdates: clause.AssignmentColumns([]string{"pnl_usd", "is_profitable", "hold_time_secs"}),
	}).CreateInBatches(trades, tradeBatchSize).Error
}

// RecentByWallet groups trades with block_time >= since by wallet.
func (d *TradeDAO) RecentByWallet(ctx context.Context, since time.Time, limit int) (map[string][]*models.Trade, error) {
	var rows []*models.Trade
	err := d.db.WithContext(ctx).
		Where("block_time >= ?", since).
		Order("block_time ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string][]*models.Trade)
	for _, t := range rows {
		out[t.WalletAddress] = append(out[t.WalletAddress], t)
	}
	return out, nil
}

func (d *TradeDAO) ByWallet(ctx context.Context, address string, limit int) ([]*models.Trade, error) {
	var rows []*models.Trade
	err := d.db.WithContext(ctx).
		Where("wallet_address = ?", address).
		Order("block_time DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (d *TradeDAO) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := d.db.WithContext(ctx).Model(&models.Trade{}).Where("created_at >= ?", since).Count(&n).Error
	return n, err
}

// SignaturesSince lists signatures stored since the given time.
func (d *TradeDAO) SignaturesSince(ctx context.Context, since time.Time) ([]string, error) {
	var out []string
	err := d.db.WithContext(ctx).Model(&models.Trade{}).
		Where("created_at >= ?", since).
		Pluck("signature", &out).Error
	return out, err
}
