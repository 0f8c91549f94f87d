package cache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
)

const walletCacheType = "wallet"

// WalletLoader reads the authoritative wallet row.
type WalletLoader interface {
	Get(ctx context.Context, address string) (*models.Wallet, error)
}

// WalletCache 钱包快照缓存
// 实时事件只读 tier 和评分字段，短 TTL 避免每个事件都查库
type WalletCache struct {
	cache  *cache.Cache
	loader WalletLoader
}

func NewWalletCache(loader WalletLoader, ttl time.Duration) *WalletCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &WalletCache{
		cache:  cache.New(ttl, ttl*2),
		loader: loader,
	}
}

// Get returns a copy of the cached wallet, loading it on a miss.
// Loader errors, including not found, are returned unchanged and never cached.
func (c *WalletCache) Get(ctx context.Context, address string) (*models.Wallet, error) {
	if v, ok := c.cache.Get(address); ok {
		monitor.IncCacheHit(walletCacheType)
		w := *v.(*models.Wallet)
		return &w, nil
	}
	monitor.IncCacheMiss(walletCacheType)

	w, err := c.loader.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	c.Set(w)
	cp := *w
	return &cp, nil
}

// Set 更新快照（评分写库之后调用）
func (c *WalletCache) Set(w *models.Wallet) {
	if w == nil {
		return
	}
	cp := *w
	c.cache.SetDefault(w.Address, &cp)
}

// Invalidate 删除缓存（tier 变化时使用）
func (c *WalletCache) Invalidate(addresses ...string) {
	for _, a := range addresses {
		c.cache.Delete(a)
	}
}

func (c *WalletCache) Len() int {
	return c.cache.ItemCount()
}
