package cleaner

import (
	"context"
	"sync"
	"time"

	"github.com/utrading/utrading-sol-agent/config"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

type HealthStore interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// Cleaner 数据清理器，定时清理过期的健康快照。成交记录永久保留。
type Cleaner struct {
	health HealthStore
	cfg    config.Retention
	now    func() time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewCleaner(health HealthStore, cfg config.Retention) *Cleaner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Cleaner{
		health: health,
		cfg:    cfg,
		now:    time.Now,
		done:   make(chan struct{}),
	}
}

// Start 启动清理任务，启动时立即执行一次
func (c *Cleaner) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		logger.Info().Dur("interval", c.cfg.Interval).Msg("cleaner started")
		c.Clean(context.Background())

		for {
			select {
			case <-ticker.C:
				c.Clean(context.Background())
			case <-c.done:
				logger.Info().Msg("cleaner stopped")
				return
			}
		}
	}()
}

func (c *Cleaner) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()
}

// Clean runs one pass. Failures are logged; the next tick retries.
func (c *Cleaner) Clean(ctx context.Context) {
	logger.Debug().Msg("running cleanup task")

	if err := c.cleanHealth(ctx); err != nil {
		logger.Error().Err(err).Msg("clean health snapshots failed")
	}
}

func (c *Cleaner) cleanHealth(ctx context.Context) error {
	if c.cfg.HealthDays <= 0 {
		return nil
	}
	cutoff := c.now().AddDate(0, 0, -c.cfg.HealthDays)
	deleted, err := c.health.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		logger.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("cleaned old health snapshots")
	}
	return nil
}
