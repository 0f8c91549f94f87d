package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-sol-agent/internal/dal/daltest"
	"github.com/utrading/utrading-sol-agent/internal/dao"
	"github.com/utrading/utrading-sol-agent/internal/models"
)

type countingLoader struct {
	inner *dao.WalletDAO
	calls int
}

func (l *countingLoader) Get(ctx context.Context, address string) (*models.Wallet, error) {
	l.calls++
	return l.inner.Get(ctx, address)
}

func TestWalletCache_LoadsOnceUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	wallets := dao.NewWalletDAO(daltest.New(t))
	_, err := wallets.EnsureWallet(ctx, "W", "test", time.Now())
	require.NoError(t, err)

	loader := &countingLoader{inner: wallets}
	c := NewWalletCache(loader, time.Minute)

	w, err := c.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, models.TierCandidate, w.Tier)

	// callers get copies
	w.Tier = models.TierExiled
	w, err = c.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, models.TierCandidate, w.Tier)
	assert.Equal(t, 1, loader.calls)

	c.Invalidate("W")
	_, err = c.Get(ctx, "W")
	require.NoError(t, err)
	assert.Equal(t, 2, loader.calls)
}

func TestWalletCache_MissingIsNotCached(t *testing.T) {
	ctx := context.Background()
	loader := &countingLoader{inner: dao.NewWalletDAO(daltest.New(t))}
	c := NewWalletCache(loader, time.Minute)

	_, err := c.Get(ctx, "ghost")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	_, err = c.Get(ctx, "ghost")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	assert.Equal(t, 2, loader.calls)
	assert.Equal(t, 0, c.Len())
}

func TestWalletCache_Set(t *testing.T) {
	c := NewWalletCache(&countingLoader{}, time.Minute)
	c.Set(&models.Wallet{Address: "W", Tier: models.TierTier1})
	c.Set(nil)

	w, err := c.Get(context.Background(), "W")
	require.NoError(t, err)
	assert.Equal(t, models.TierTier1, w.Tier)
}
