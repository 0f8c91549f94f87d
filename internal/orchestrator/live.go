package orchestrator

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/utrading/utrading-sol-agent/internal/address"
	"github.com/utrading/utrading-sol-agent/internal/alert"
	"github.com/utrading/utrading-sol-agent/internal/models"
	"github.com/utrading/utrading-sol-agent/internal/monitor"
	"github.com/utrading/utrading-sol-agent/internal/normalizer"
	"github.com/utrading/utrading-sol-agent/internal/processor"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// Live event outcomes, also the live-event metric labels.
const (
	LiveNoSignature = "no_signature"
	LiveDuplicate   = "duplicate"
	LiveNoWallet    = "no_wallet"
	LiveUnknown     = "unknown_wallet"
	LiveExiled      = "exiled"
	LiveNoMatch     = "no_match"
	LiveError       = "error"
	LiveAlerted     = "alerted"
)

// CopyEligible is true only for buys by tier1 wallets whose win rate clears
// the minimum and whose bot score stays under the threshold.
func (a *Agent) CopyEligible(w *models.Wallet, t *models.Trade) bool {
	return w.Tier == models.TierTier1 &&
		t.IsBuy() &&
		w.WinRate >= a.cfg.MinWinRate &&
		w.BotScore < a.detector.Threshold
}

// HandleEvent processes one pushed transaction. It never touches the batch
// loops and returns the outcome label.
func (a *Agent) HandleEvent(ctx context.Context, tx gjson.Result) string {
	outcome := a.handleEvent(ctx, tx)
	monitor.IncLiveEvent(outcome)
	return outcome
}

func (a *Agent) handleEvent(ctx context.Context, tx gjson.Result) string {
	sig := normalizer.Signature(tx)
	if sig == "" {
		return LiveNoSignature
	}
	if a.dedup.SeenOrMark(sig) {
		return LiveDuplicate
	}

	addr := normalizer.WalletFromEvent(tx)
	if addr == "" {
		return LiveNoWallet
	}

	w, err := a.walletCache.Get(ctx, addr)
	switch {
	case isNotFound(err):
		return LiveUnknown
	case err != nil:
		// let a redelivery try again
		a.dedup.Forget(sig)
		a.recordError("live")
		logger.Error().Err(err).Str("wallet", address.Short(addr)).Msg("load wallet failed")
		return LiveError
	case w.Tier == models.TierExiled:
		return LiveExiled
	}

	trade, ok := normalizer.Normalize(tx, addr)
	if !ok {
		return LiveNoMatch
	}
	a.counters.RecordTrade()
	monitor.IncTradeProcessed("live")

	if a.writer != nil {
		if err = a.writer.Add(processor.TradeItem{Trade: trade}); err != nil {
			logger.Warn().Err(err).Str("signature", sig).Msg("queue live trade failed")
		}
	}
	if err = a.wallets.TouchActive(ctx, addr, a.now()); err != nil {
		a.recordError("live")
		logger.Warn().Err(err).Str("wallet", address.Short(addr)).Msg("touch last active failed")
	}

	eligible := a.CopyEligible(w, trade)
	a.notify(alert.KindTrade, a.notifier.NotifyTrade(ctx, alert.TradeAlert{
		Wallet:       w,
		Trade:        trade,
		CopyEligible: eligible,
	}))
	a.counters.RecordAlert()

	logger.Info().
		Str("wallet", address.Short(addr)).
		Str("side", string(trade.Side)).
		Str("token", trade.TokenSymbol).
		Float64("amount_usd", trade.AmountUSD).
		Float64("win_rate", w.WinRate).
		Bool("copy_eligible", eligible).
		Msg("live trade")
	return LiveAlerted
}
