package orchestrator

import (
	"sync"
	"time"
)

// Counters tracks trades, alerts and errors over the trailing hour plus
// lifetime totals. Safe for concurrent use.
type Counters struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time

	trades []time.Time
	alerts []time.Time
	errors []time.Time

	totalTrades int64
	totalAlerts int64
	totalErrs   int64
}

func NewCounters() *Counters {
	return &Counters{window: time.Hour, now: time.Now}
}

// CounterSnapshot is a consistent read of all counters.
type CounterSnapshot struct {
	TradesLastHour int   `json:"trades_last_hour"`
	AlertsLastHour int   `json:"alerts_last_hour"`
	ErrorsLastHour int   `json:"errors_last_hour"`
	TotalTrades    int64 `json:"total_trades"`
	TotalAlerts    int64 `json:"total_alerts"`
	TotalErrors    int64 `json:"total_errors"`
}

func (c *Counters) RecordTrade() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trades = c.push(c.trades)
	c.totalTrades++
}

func (c *Counters) RecordAlert() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = c.push(c.alerts)
	c.totalAlerts++
}

func (c *Counters) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = c.push(c.errors)
	c.totalErrs++
}

func (c *Counters) Snapshot() CounterSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.trades = c.trim(c.trades, now)
	c.alerts = c.trim(c.alerts, now)
	c.errors = c.trim(c.errors, now)
	return CounterSnapshot{
		TradesLastHour: len(c.trades),
		AlertsLastHour: len(c.alerts),
		ErrorsLastHour: len(c.errors),
		TotalTrades:    c.totalTrades,
		TotalAlerts:    c.totalAlerts,
		TotalErrors:    c.totalErrs,
	}
}

func (c *Counters) push(q []time.Time) []time.Time {
	now := c.now()
	return append(c.trim(q, now), now)
}

// trim drops stamps older than the window. Stamps are appended in order.
func (c *Counters) trim(q []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-c.window)
	i := 0
	for i < len(q) && q[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return q
	}
	return append(q[:0], q[i:]...)
}
