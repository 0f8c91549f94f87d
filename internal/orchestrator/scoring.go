package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/botdetect"
	"github.com/utrading/utrading-sol-agent/internal/cluster"
	"github.com/utrading/utrading-sol-agent/internal/dao"
	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/internal/normalizer"
	"github.com/utrading/utrading-sol-agent/internal/scorer"
	"github.com/utrading/utrading-sol-agent/pkg/goplus"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

const (
	ClusterNotes = "bot cluster detected"
	botNotes     = "bot signals"
	exileSignals = 5
)

// ScoreDue scores one batch of due wallets, then runs cluster detection.
// A failing wallet is logged and counted; the batch carries on.
func (a *Agent) ScoreDue(ctx context.Context) error {
	staleBefore := a.now().Add(-a.cfg.RescoreInterval)
	wallets, err := a.wallets.DueForScoring(ctx, staleBefore, a.cfg.ScoreBatchSize)
	if err != nil {
		return fmt.Errorf("load due wallets: %w", err)
	}
	if len(wallets) > 0 {
		logger.Info().Int("count", len(wallets)).Msg("scoring wallets")
	}

	var g errgroup.Group
	g.SetLimit(max(a.cfg.ScoreConcurrency, 1))
	for _, w := range wallets {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := goplus.Safe(func() error { return a.ScoreWallet(ctx, w) })
			if err != nil && ctx.Err() == nil {
				a.recordError(LoopScoring)
				logger.Error().Err(err).Str("wallet", address.Short(w.Address)).Msg("score wallet failed")
			}
			_ = goplus.Sleep(ctx, a.cfg.ScorePause)
			return nil
		})
	}
	_ = g.Wait()

	if err = ctx.Err(); err != nil {
		return err
	}
	if _, err = a.DetectClusters(ctx); err != nil {
		a.recordError("cluster")
		logger.Error().Err(err).Msg("cluster detection failed")
	}
	return nil
}

// ScoreWallet rescores w from its full history. The new score is committed
// before any tier notice goes out.
func (a *Agent) ScoreWallet(ctx context.Context, w *models.Wallet) error {
	txs, err := a.history.GetAllTransactions(ctx, w.Address, a.cfg.MaxHistoryTxns)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	trades := normalizer.NormalizeBatch(txs, w.Address)
	now := a.now()
	if len(trades) == 0 {
		return a.wallets.TouchScored(ctx, w.Address, now)
	}
	monitor.IncTradeProcessed("scoring")

	funder := normalizer.Funder(txs, w.Address)
	analysis := a.detector.Analyze(w.Address, trades, funder)
	score := scorer.Score(w.Address, trades, analysis, scorer.Thresholds{
		MinTrades:  a.cfg.MinTrades,
		MinWinRate: a.cfg.MinWinRate,
	})
	scorer.Backfill(score.Matches)

	prev, err := a.wallets.SaveScoreWithTrades(ctx, dao.ScoreUpdate{
		Address:         w.Address,
		Tier:            score.Tier,
		WinRate:         score.WinRate,
		TotalTrades:     score.TotalTrades,
		WinningTrades:   score.WinningTrades,
		TotalPnLUSD:     score.TotalPnLUSD,
		AvgPnLPerTrade:  score.AvgPnLPerTrade,
		AvgHoldTimeSecs: score.AvgHoldTimeSecs,
		TradeSizeCV:     score.TradeSizeCV,
		BotScore:        score.BotScore,
		ScoredAt:        now,
		LastActive:      latestBlockTime(trades),
	}, trades)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	a.walletCache.Invalidate(w.Address)

	// terminal tiers written concurrently win, so notify from the stored row
	saved, err := a.wallets.Get(ctx, w.Address)
	if err != nil {
		return fmt.Errorf("reload wallet: %w", err)
	}

	logger.Debug().
		Str("wallet", address.Short(w.Address)).
		Int("trades", len(trades)).
		Int("matched", score.TotalTrades).
		Float64("win_rate", score.WinRate).
		Float64("pnl_usd", score.TotalPnLUSD).
		Float64("bot_score", score.BotScore).
		Str("tier", string(saved.Tier)).
		Msg("wallet scored")

	// prev is read inside the save, so a wallet another path already exiled
	// reports no change here and gets no second notice
	if saved.Tier != prev {
		a.onTierChange(ctx, prev, saved, analysis, funder)
	}
	return nil
}

func (a *Agent) onTierChange(ctx context.Context, from models.Tier, w *models.Wallet, analysis botdetect.Analysis, funder string) {
	logger.Info().
		Str("wallet", address.Short(w.Address)).
		Str("from", string(from)).
		Str("to", string(w.Tier)).
		Float64("win_rate", w.WinRate).
		Float64("bot_score", w.BotScore).
		Msg("tier change")

	change := alert.TierChange{Wallet: w, From: from, To: w.Tier}
	if change.Notable() {
		a.notify(alert.KindTier, a.notifier.NotifyTierChange(ctx, change))
	}

	if w.Tier == models.TierExiled {
		monitor.IncExiled("bot_score", 1)
		// the wallet that funded a confirmed bot is blocked for later scoring
		a.detector.Funders.Add(funder)
		a.notify(alert.KindExile, a.notifier.NotifyExile(ctx, alert.Exile{
			Wallet:    w.Address,
			BotScore:  analysis.Score,
			Threshold: a.detector.Threshold,
			Signals:   analysis.Top(exileSignals),
			Reason:    botNotes,
		}))
	}
}

func latestBlockTime(trades []*models.Trade) time.Time {
	var latest time.Time
	for _, t := range trades {
		if t.BlockTime.After(latest) {
			latest = t.BlockTime
		}
	}
	return latest
}

// DetectClusters exiles every member of a coordinated buying ring found in
// recent trades and returns the number of wallets exiled.
func (a *Agent) DetectClusters(ctx context.Context) (int, error) {
	lookback := a.clusterCfg.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	byWallet, err := a.trades.RecentByWallet(ctx, a.now().Add(-lookback), a.clusterCfg.TradeLimit)
	if err != nil {
		return 0, fmt.Errorf("load recent trades: %w", err)
	}

	opts := cluster.DefaultOptions()
	if a.clusterCfg.BlockDelta > 0 {
		opts.BlockDelta = a.clusterCfg.BlockDelta
	}
	if a.clusterCfg.BlockTime > 0 {
		opts.BlockTime = a.clusterCfg.BlockTime
	}
	if a.clusterCfg.MinCoOccurrences > 0 {
		opts.MinCoOccurrences = a.clusterCfg.MinCoOccurrences
	}

	members := cluster.Members(cluster.Detect(byWallet, opts))
	if len(members) == 0 {
		return 0, nil
	}
	monitor.IncClusters(len(members))

	exiled := 0
	for _, id := range sortedKeys(members) {
		changed, err := a.wallets.Exile(ctx, members[id], ClusterNotes)
		if err != nil {
			return exiled, fmt.Errorf("exile %s: %w", id, err)
		}
		if len(changed) == 0 {
			continue
		}
		exiled += len(changed)
		monitor.IncExiled("cluster", len(changed))
		a.walletCache.Invalidate(changed...)

		for _, addr := range changed {
			a.notify(alert.KindExile, a.notifier.NotifyExile(ctx, alert.Exile{
				Wallet:    addr,
				Threshold: a.detector.Threshold,
				Reason:    ClusterNotes,
				ClusterID: id,
			}))
		}
	}

	logger.Info().Int("clusters", len(members)).Int("exiled", exiled).Msg("bot clusters detected")
	return exiled, nil
}

// notify logs a failed delivery. Lost notices are not retried.
func (a *Agent) notify(kind string, err error) {
	if err != nil {
		logger.Warn().Err(err).Str("kind", kind).Msg("notification failed")
	}
}
