package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const signatureCacheType = "signature"

// DedupCache 交易签名去重缓存，使用 go-cache 实现 TTL 自动过期
type DedupCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewDedupCache 清理间隔自动设为 2×TTL
func NewDedupCache(ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DedupCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// IsSeen 检查签名是否已处理
func (c *DedupCache) IsSeen(signature string) bool {
	_, exists := c.cache.Get(signature)
	return exists
}

// Mark 标记签名为已处理
func (c *DedupCache) Mark(signature string) {
	c.cache.SetDefault(signature, time.Now())
}

// SeenOrMark marks signature and reports whether it was already present.
// The check and the mark happen atomically.
func (c *DedupCache) SeenOrMark(signature string) bool {
	if err := c.cache.Add(signature, time.Now(), cache.DefaultExpiration); err != nil {
		monitor.IncCacheHit(signatureCacheType)
		return true
	}
	monitor.IncCacheMiss(signatureCacheType)
	return false
}

// Forget drops a signature so a later redelivery is processed again.
func (c *DedupCache) Forget(signature string) {
	c.cache.Delete(signature)
}

type RecentSignatureDAO interface {
	SignaturesSince(ctx context.Context, since time.Time) ([]string, error)
}

// LoadFromDB 启动时从数据库恢复去重状态
func (c *DedupCache) LoadFromDB(ctx context.Context, dao RecentSignatureDAO) error {
	if dao == nil {
		return fmt.Errorf("dao is nil")
	}

	sigs, err := dao.SignaturesSince(ctx, time.Now().Add(-c.ttl))
	if err != nil {
		return fmt.Errorf("get recent signatures failed: %w", err)
	}
	for _, sig := range sigs {
		c.Mark(sig)
	}

	logger.Info().
		Int("count", len(sigs)).
		Dur("window", c.ttl).
		Msg("loaded recent trade signatures from database")

	return nil
}

// Stats 获取统计信息
func (c *DedupCache) Stats() map[string]any {
	return map[string]any{
		"item_count":  c.cache.ItemCount(),
		"ttl_minutes": c.ttl.Minutes(),
	}
}
