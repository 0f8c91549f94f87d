package dao

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

type HealthDAO struct {
	db *gorm.DB
}

var (
	_health     *HealthDAO
	_healthOnce sync.Once
)

func InitHealthDAO(db *gorm.DB) {
	_healthOnce.Do(func() {
		_health = NewHealthDAO(db)
	})
}

func Health() *HealthDAO {
	return _health
}

func NewHealthDAO(db *gorm.DB) *HealthDAO {
	return &HealthDAO{db: db}
}

func (d *HealthDAO) Insert(ctx context.Context, h *models.AgentHealth) error {
	return d.db.WithContext(ctx).Create(h).Error
}

func (d *HealthDAO) Latest(ctx context.Context) (*models.AgentHealth, error) {
	var h models.AgentHealth
	if err := d.db.WithContext(ctx).Order("timestamp DESC").Order("id DESC").First(&h).Error; err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (d *HealthDAO) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Where("timestamp < ?", before).Delete(&models.AgentHealth{})
	return res.RowsAffected, res.Error
}
