package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-sol-agent/internal/dal/daltest"
	"github.com/utrading/utrading-sol-agent/internal/dao"
	"github.com/utrading/utrading-sol-agent/internal/models"
)

func TestDedupCache_IsSeen(t *testing.T) {
	c := NewDedupCache(30 * time.Second)

	assert.False(t, c.IsSeen("sig1"))
	c.Mark("sig1")
	assert.True(t, c.IsSeen("sig1"))
	assert.False(t, c.IsSeen("sig2"))

	c.Forget("sig1")
	assert.False(t, c.IsSeen("sig1"))
}

func TestDedupCache_TTL(t *testing.T) {
	c := NewDedupCache(100 * time.Millisecond)

	c.Mark("sig1")
	assert.True(t, c.IsSeen("sig1"))

	time.Sleep(150 * time.Millisecond)
	assert.False(t, c.IsSeen("sig1"))
}

func TestDedupCache_SeenOrMarkConcurrent(t *testing.T) {
	c := NewDedupCache(30 * time.Second)

	var first atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.SeenOrMark("dup") {
				first.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), first.Load(), "exactly one caller wins")
	assert.True(t, c.SeenOrMark("dup"))
}

func TestDedupCache_LoadFromDB(t *testing.T) {
	trades := dao.NewTradeDAO(daltest.New(t))
	_, err := trades.InsertTrades(context.Background(), []*models.Trade{
		{Signature: "stored", WalletAddress: "W", Side: models.SideBuy, BlockTime: time.Now()},
	})
	require.NoError(t, err)

	c := NewDedupCache(time.Hour)
	require.NoError(t, c.LoadFromDB(context.Background(), trades))
	assert.True(t, c.IsSeen("stored"))

	assert.Error(t, c.LoadFromDB(context.Background(), nil))
}

func TestDedupCache_Stats(t *testing.T) {
	c := NewDedupCache(5 * time.Minute)

	c.Mark("a")
	c.Mark("b")
	c.Mark("c")

	stats := c.Stats()
	assert.Equal(t, 3, stats["item_count"])
	assert.Equal(t, 5.0, stats["ttl_minutes"])
}

func BenchmarkDedupCache_SeenOrMark(b *testing.B) {
	c := NewDedupCache(30 * time.Minute)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			c.SeenOrMark(string(rune(i % 5000)))
			i++
		}
	})
}
