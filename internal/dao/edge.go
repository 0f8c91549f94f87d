package dao

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

type EdgeDAO struct {
	db *gorm.DB
}

var (
	_edge     *EdgeDAO
	_edgeOnce sync.Once
)

func InitEdgeDAO(db *gorm.DB) {
	_edgeOnce.Do(func() {
		_edge = NewEdgeDAO(db)
	})
}

func Edge() *EdgeDAO {
	return _edge
}

func NewEdgeDAO(db *gorm.DB) *EdgeDAO {
	return &EdgeDAO{db: db}
}

// RecordEdge creates the (source, target) edge or bumps its counter in place.
func (d *EdgeDAO) RecordEdge(ctx context.Context, source, target, token string, blockDelta int, now time.Time) error {
	edge := &models.WalletEdge{
		SourceAddress: source,
		TargetAddress: target,
		SharedToken:   token,
		BlockDelta:    blockDelta,
		CoOccurrences: 1,
		FirstSeen:     now,
		LastSeen:      now,
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source_address"}, {Name: "target_address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"co_occurrences": gorm.Expr("wallet_edges.co_occurrences + 1"),
			"last_seen":      now,
		}),
	}).Create(edge).Error
}

func (d *EdgeDAO) Get(ctx context.Context, source, target string) (*models.WalletEdge, error) {
	var e models.WalletEdge
	err := d.db.WithContext(ctx).
		Where("source_address = ? AND target_address = ?", source, target).
		First(&e).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// Neighbors lists edges touching address in either direction with at least minCount co-occurrences.
func (d *EdgeDAO) Neighbors(ctx context.Context, address string, minCount int) ([]*models.WalletEdge, error) {
	var out []*models.WalletEdge
	err := d.db.WithContext(ctx).
		Where("(source_address = ? OR target_address = ?) AND co_occurrences >= ?", address, address, minCount).
		Order("co_occurrences DESC").
		Find(&out).Error
	return out, err
}
