package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// CheckHealth archives idle wallets, records a snapshot and sends the
// heartbeat.
func (a *Agent) CheckHealth(ctx context.Context) (*models.AgentHealth, error) {
	now := a.now()

	var pruned int64
	if a.cfg.PruneInactiveDays > 0 {
		cutoff := now.Add(-time.Duration(a.cfg.PruneInactiveDays) * 24 * time.Hour)
		n, err := a.wallets.ArchiveInactive(ctx, cutoff)
		if err != nil {
			return nil, fmt.Errorf("archive inactive: %w", err)
		}
		pruned = n
		if n > 0 {
			logger.Info().Int64("archived", n).Time("cutoff", cutoff).Msg("inactive wallets archived")
		}
	}

	counts, err := a.wallets.CountByTier(ctx)
	if err != nil {
		return nil, fmt.Errorf("count tiers: %w", err)
	}
	monitor.SetTierCounts(counts)

	var total int64
	for _, n := range counts {
		total += n
	}
	snap := a.counters.Snapshot()

	h := &models.AgentHealth{
		Timestamp:       now,
		WalletsTracked:  total,
		Tier1Count:      counts[models.TierTier1],
		Tier2Count:      counts[models.TierTier2],
		CandidatesCount: counts[models.TierCandidate],
		ExiledCount:     counts[models.TierExiled],
		ArchivedCount:   counts[models.TierArchived],
		PrunedCount:     pruned,
		TradesLastHour:  snap.TradesLastHour,
		AlertsLastHour:  snap.AlertsLastHour,
		ErrorsLastHour:  snap.ErrorsLastHour,
	}
	if err = a.health.Insert(ctx, h); err != nil {
		return nil, fmt.Errorf("insert health: %w", err)
	}

	logger.Info().
		Int64("tier1", h.Tier1Count).
		Int64("tier2", h.Tier2Count).
		Int64("candidates", h.CandidatesCount).
		Int64("exiled", h.ExiledCount).
		Int64("archived", h.ArchivedCount).
		Int("trades_1h", snap.TradesLastHour).
		Int("alerts_1h", snap.AlertsLastHour).
		Int("errors_1h", snap.ErrorsLastHour).
		Msg("agent health")

	a.notify(alert.KindHeartbeat, a.notifier.NotifyHeartbeat(ctx, alert.Heartbeat{
		Counts:         counts,
		Tier1Max:       a.cfg.Tier1MaxWallets,
		TradesLastHour: snap.TradesLastHour,
		AlertsLastHour: snap.AlertsLastHour,
		ErrorsLastHour: snap.ErrorsLastHour,
		At:             now,
	}))
	return h, nil
}
