package dao

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

type WalletDAO struct {
	db *gorm.DB
}

var (
	_wallet     *WalletDAO
	_walletOnce sync.Once
)

func InitWalletDAO(db *gorm.DB) {
	_walletOnce.Do(func() {
		_wallet = NewWalletDAO(db)
	})
}

func Wallet() *WalletDAO {
	return _wallet
}

func NewWalletDAO(db *gorm.DB) *WalletDAO {
	return &WalletDAO{db: db}
}

// ScoreUpdate carries the scorer output onto the wallet row.
type ScoreUpdate struct {
	Address         string
	Tier            models.Tier
	WinRate         float64
	TotalTrades     int
	WinningTrades   int
	TotalPnLUSD     float64
	AvgPnLPerTrade  float64
	AvgHoldTimeSecs float64
	TradeSizeCV     float64
	BotScore        float64
	ScoredAt        time.Time
	// LastActive moves last_active forward only; zero leaves it alone.
	LastActive time.Time
}

var terminalTiers = []models.Tier{models.TierExiled, models.TierArchived}

// EnsureWallet inserts a candidate and ignores an existing address.
// It reports whether a row was created.
func (d *WalletDAO) EnsureWallet(ctx context.Context, address, source string, now time.Time) (bool, error) {
	w := &models.Wallet{
		Address:         address,
		Tier:            models.TierCandidate,
		DiscoverySource: source,
		FirstSeen:       now,
		LastActive:      now,
	}
	res := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "address"}}, DoNothing: true}).
		Create(w)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (d *WalletDAO) Get(ctx context.Context, address string) (*models.Wallet, error) {
	var w models.Wallet
	if err := d.db.WithContext(ctx).Where("address = ?", address).First(&w).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// DueForScoring returns non-terminal wallets never scored or scored before staleBefore,
// never-scored first, then oldest-scored first.
func (d *WalletDAO) DueForScoring(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Wallet, error) {
	var out []*models.Wallet
	err := d.db.WithContext(ctx).
		Where("tier NOT IN ?", terminalTiers).
		Where("last_scored IS NULL OR last_scored < ?", staleBefore).
		Order("CASE WHEN last_scored IS NULL THEN 0 ELSE 1 END").
		Order("last_scored ASC").
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ActiveRoots returns the most recently active tier1/tier2 addresses.
func (d *WalletDAO) ActiveRoots(ctx context.Context, limit int) ([]string, error) {
	var out []string
	err := d.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("tier IN ?", []models.Tier{models.TierTier1, models.TierTier2}).
		Order("last_active DESC").
		Limit(limit).
		Pluck("address", &out).Error
	return out, err
}

// Tier1Addresses returns up to limit tier1 addresses, best PnL first.
func (d *WalletDAO) Tier1Addresses(ctx context.Context, limit int) ([]string, error) {
	var out []string
	err := d.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("tier = ?", models.TierTier1).
		Order("total_pnl_usd DESC").
		Order("address ASC").
		Limit(limit).
		Pluck("address", &out).Error
	return out, err
}

func (d *WalletDAO) scoreAssignments(u ScoreUpdate) map[string]any {
	m := map[string]any{
		// terminal tiers set concurrently by another loop win over a fresh score
		"tier":               gorm.Expr("CASE WHEN tier IN ? THEN tier ELSE ? END", terminalTiers, u.Tier),
		"win_rate":           u.WinRate,
		"total_trades":       u.TotalTrades,
		"winning_trades":     u.WinningTrades,
		"total_pnl_usd":      u.TotalPnLUSD,
		"avg_pnl_per_trade":  u.AvgPnLPerTrade,
		"avg_hold_time_secs": u.AvgHoldTimeSecs,
		"trade_size_cv":      u.TradeSizeCV,
		"bot_score":          u.BotScore,
		"last_scored":        u.ScoredAt,
	}
	if !u.LastActive.IsZero() {
		m["last_active"] = gorm.Expr("CASE WHEN last_active < ? THEN ? ELSE last_active END", u.LastActive, u.LastActive)
	}
	return m
}

func (d *WalletDAO) SaveScore(ctx context.Context, u ScoreUpdate) error {
	return d.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("address = ?", u.Address).
		Updates(d.scoreAssignments(u)).Error
}

// SaveScoreWithTrades stores the history and the score in one transaction.
// Existing trades only get their PnL backfilled. It returns the tier the row
// held before the update, so callers can tell whether this save changed it.
func (d *WalletDAO) SaveScoreWithTrades(ctx context.Context, u ScoreUpdate, trades []*models.Trade) (models.Tier, error) {
	var prev models.Wallet
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("tier").Where("address = ?", u.Address).Take(&prev).Error; err != nil {
			return notFound(err)
		}
		if len(trades) > 0 {
			if err := upsertTrades(tx, trades); err != nil {
				return err
			}
		}
		return tx.Model(&models.Wallet{}).
			Where("address = ?", u.Address).
			Updates(d.scoreAssignments(u)).Error
	})
	return prev.Tier, err
}

func (d *WalletDAO) TouchScored(ctx context.Context, address string, at time.Time) error {
	return d.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("address = ?", address).
		Update("last_scored", at).Error
}

func (d *WalletDAO) TouchActive(ctx context.Context, address string, at time.Time) error {
	return d.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("address = ?", address).
		Update("last_active", at).Error
}

// Exile moves the non-terminal wallets among addresses to exiled and returns
// the ones that actually changed.
func (d *WalletDAO) Exile(ctx context.Context, addresses []string, notes string) ([]string, error) {
	if len(addresses) == 0 {
		return nil, nil
	}

	var changed []string
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Wallet{}).
			Where("address IN ?", addresses).
			Where("tier NOT IN ?", terminalTiers).
			Pluck("address", &changed).Error; err != nil {
			return err
		}
		if len(changed) == 0 {
			return nil
		}
		return tx.Model(&models.Wallet{}).
			Where("address IN ?", changed).
			Updates(map[string]any{"tier": models.TierExiled, "notes": notes}).Error
	})
	return changed, err
}

// MarkWebhookRegistered flags exactly the given addresses as registered.
func (d *WalletDAO) MarkWebhookRegistered(ctx context.Context, addresses []string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reset := tx.Model(&models.Wallet{}).Where("webhook_registered = ?", true)
		if len(addresses) > 0 {
			reset = reset.Where("address NOT IN ?", addresses)
		}
		if err := reset.Update("webhook_registered", false).Error; err != nil {
			return err
		}
		if len(addresses) == 0 {
			return nil
		}
		return tx.Model(&models.Wallet{}).
			Where("address IN ?", addresses).
			Update("webhook_registered", true).Error
	})
}

func (d *WalletDAO) CountByTier(ctx context.Context) (map[models.Tier]int64, error) {
	var rows []struct {
		Tier  models.Tier
		Count int64
	}
	err := d.db.WithContext(ctx).Model(&models.Wallet{}).
		Select("tier, COUNT(*) AS count").
		Group("tier").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.Tier]int64, len(models.AllTiers))
	for _, t := range models.AllTiers {
		counts[t] = 0
	}
	for _, r := range rows {
		counts[r.Tier] = r.Count
	}
	return counts, nil
}

// ArchiveInactive archives tier2/candidate wallets idle since before.
func (d *WalletDAO) ArchiveInactive(ctx context.Context, before time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("tier IN ?", []models.Tier{models.TierTier2, models.TierCandidate}).
		Where("last_active < ?", before).
		Update("tier", models.TierArchived)
	return res.RowsAffected, res.Error
}

func (d *WalletDAO) ListByTier(ctx context.Context, tier models.Tier, limit int) ([]*models.Wallet, error) {
	var out []*models.Wallet
	err := d.db.WithContext(ctx).
		Where("tier = ?", tier).
		Order("total_pnl_usd DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
