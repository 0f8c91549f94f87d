package orchestrator

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCountersSlideOverTheHour(t *testing.T) {
	c := NewCounters()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.RecordTrade()
	c.RecordAlert()
	c.RecordError()

	now = now.Add(30 * time.Minute)
	c.RecordTrade()

	s := c.Snapshot()
	assert.Equal(t, 2, s.TradesLastHour)
	assert.Equal(t, 1, s.AlertsLastHour)
	assert.Equal(t, 1, s.ErrorsLastHour)

	now = now.Add(45 * time.Minute)
	s = c.Snapshot()
	assert.Equal(t, 1, s.TradesLastHour)
	assert.Equal(t, 0, s.AlertsLastHour)
	assert.Equal(t, 0, s.ErrorsLastHour)
	assert.Equal(t, int64(2), s.TotalTrades)
	assert.Equal(t, int64(1), s.TotalAlerts)
	assert.Equal(t, int64(1), s.TotalErrors)
}

func TestCountersConcurrentWriters(t *testing.T) {
	c := NewCounters()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.RecordTrade()
				c.RecordError()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, 800, s.TradesLastHour)
	assert.Equal(t, int64(800), s.TotalErrors)
}
