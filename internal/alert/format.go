package alert

import (
	"fmt"
	"html"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

const rule = "━━━━━━━━━━━━━━━━━━━━\n"

var printer = message.NewPrinter(language.English)

func short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

func usd(v float64) string {
	return printer.Sprintf("$%.0f", v)
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func pnlEmoji(pnl float64) string {
	switch {
	case pnl > 500:
		return "💰💰💰"
	case pnl > 100:
		return "💰💰"
	case pnl > 0:
		return "💰"
	case pnl > -100:
		return "🩸"
	default:
		return "🩸🩸"
	}
}

func walletLink(addr string) string {
	return fmt.Sprintf("<a href='https://solscan.io/account/%s'>%s</a>", addr, short(addr))
}

func FormatTrade(a TradeAlert, now time.Time) string {
	if a.Trade.IsBuy() {
		return formatBuy(a, now)
	}
	return formatSell(a, now)
}

func formatBuy(a TradeAlert, now time.Time) string {
	w, t := a.Wallet, a.Trade
	var b strings.Builder
	b.WriteString("🟢 <b>BUY DETECTED</b>\n")
	if a.CopyEligible {
		b.WriteString("\n⚡ <b>COPY ELIGIBLE — ACT FAST</b> ⚡\n")
	}
	b.WriteString("\n" + rule)
	fmt.Fprintf(&b, "👛 %s  %s\n", walletLink(w.Address), w.Tier.Badge())
	fmt.Fprintf(&b, "📊 WR: <b>%s</b>  |  PnL: <b>%s</b>  |  Trades: %d\n", pct(w.WinRate), usd(w.TotalPnLUSD), w.TotalTrades)
	b.WriteString(rule)

	symbol := t.TokenSymbol
	if symbol == "" {
		symbol = short(t.TokenAddress)
	}
	fmt.Fprintf(&b, "🪙 Token: <code>%s</code>\n", html.EscapeString(symbol))
	fmt.Fprintf(&b, "   <code>%s</code>\n", t.TokenAddress)
	fmt.Fprintf(&b, "💵 Amount: <b>%.3f SOL</b>  (~%s)\n", t.AmountSOL, usd(t.AmountUSD))
	fmt.Fprintf(&b, "💲 Price:  <code>$%.10f</code>\n", t.PriceUSD)
	b.WriteString(rule)
	fmt.Fprintf(&b, "🔗 <a href='https://solscan.io/tx/%s'>View Tx</a>  |  ", t.Signature)
	fmt.Fprintf(&b, "<a href='https://dexscreener.com/solana/%s'>Chart</a>  |  ", t.TokenAddress)
	fmt.Fprintf(&b, "<a href='https://birdeye.so/token/%s?chain=solana'>Birdeye</a>\n", t.TokenAddress)
	fmt.Fprintf(&b, "⏰ %s", now.UTC().Format("15:04:05 UTC"))
	return b.String()
}

func formatSell(a TradeAlert, now time.Time) string {
	w, t := a.Wallet, a.Trade
	var b strings.Builder
	b.WriteString("🔴 <b>SELL DETECTED</b>\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "👛 %s  %s\n", walletLink(w.Address), w.Tier.Badge())
	fmt.Fprintf(&b, "📊 WR: <b>%s</b>  |  PnL: <b>%s</b>\n", pct(w.WinRate), usd(w.TotalPnLUSD))
	b.WriteString(rule)

	symbol := t.TokenSymbol
	if symbol == "" && len(t.TokenAddress) > 16 {
		symbol = t.TokenAddress[:16] + "…"
	}
	fmt.Fprintf(&b, "🪙 Token: <code>%s</code>\n", html.EscapeString(symbol))
	fmt.Fprintf(&b, "💵 Sold:  <b>%.3f SOL</b>  (~%s)\n", t.AmountSOL, usd(t.AmountUSD))
	if a.PnLUSD != nil {
		fmt.Fprintf(&b, "💰 PnL:    <b>%s</b>  %s\n", printer.Sprintf("$%+.2f", *a.PnLUSD), pnlEmoji(*a.PnLUSD))
	}
	b.WriteString(rule)
	fmt.Fprintf(&b, "🔗 <a href='https://solscan.io/tx/%s'>View Tx</a>  |  ", t.Signature)
	fmt.Fprintf(&b, "<a href='https://dexscreener.com/solana/%s'>Chart</a>\n", t.TokenAddress)
	fmt.Fprintf(&b, "⏰ %s", now.UTC().Format("15:04:05 UTC"))
	return b.String()
}

func FormatTierChange(c TierChange) string {
	w := c.Wallet
	direction := "📉 DEMOTED"
	if c.Promotion() {
		direction = "📈 PROMOTED"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔔 <b>TIER CHANGE — %s</b>\n", direction)
	b.WriteString(rule)
	fmt.Fprintf(&b, "👛 %s\n", walletLink(w.Address))
	fmt.Fprintf(&b, "📊 WR: <b>%s</b>  |  PnL: <b>%s</b>  |  Trades: %d\n", pct(w.WinRate), usd(w.TotalPnLUSD), w.TotalTrades)
	fmt.Fprintf(&b, "🏷️ %s  →  %s\n", c.From.Badge(), c.To.Badge())
	b.WriteString(rule)
	switch c.To {
	case models.TierTier1:
		b.WriteString("✅ Now receiving REAL-TIME alerts")
	case models.TierTier2:
		b.WriteString("⏬ Moved to periodic scoring")
	}
	return b.String()
}

func FormatExile(e Exile) string {
	var b strings.Builder
	b.WriteString("🤖 <b>BOT EXILED</b>\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "👛 <code>%s</code>\n", e.Wallet)
	if e.ClusterID != "" {
		fmt.Fprintf(&b, "🕸️ Cluster: <b>%s</b>\n", e.ClusterID)
	} else {
		fmt.Fprintf(&b, "☠️ Bot Score: <b>%.2f</b>  (threshold: %.2f)\n", e.BotScore, e.Threshold)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, "📝 %s\n", html.EscapeString(e.Reason))
	}
	if len(e.Signals) > 0 {
		b.WriteString("📡 Signals fired:\n")
		for i, s := range e.Signals {
			if i == 5 {
				break
			}
			fmt.Fprintf(&b, "  • %s: <b>%.2f</b>\n", s, s.Weight())
		}
	}
	b.WriteString(rule)
	b.WriteString("🔕 Wallet permanently exiled from tracking.")
	return b.String()
}

func FormatHeartbeat(h Heartbeat) string {
	tier1 := h.Counts[models.TierTier1]
	tier2 := h.Counts[models.TierTier2]
	cand := h.Counts[models.TierCandidate]
	exiled := h.Counts[models.TierExiled]

	max := h.Tier1Max
	if max < 1 {
		max = 1
	}
	filled := int(float64(tier1) / float64(max) * 10)
	if filled > 10 {
		filled = 10
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)

	var b strings.Builder
	b.WriteString("🤖 <b>AGENT HEARTBEAT</b>\n")
	b.WriteString(rule)
	fmt.Fprintf(&b, "🥇 Tier 1 (live):   <b>%d</b>  [%s] %d/%d\n", tier1, bar, tier1, h.Tier1Max)
	fmt.Fprintf(&b, "🥈 Tier 2 (daily):  <b>%d</b>\n", tier2)
	fmt.Fprintf(&b, "🔍 Candidates:      <b>%d</b>\n", cand)
	fmt.Fprintf(&b, "💀 Exiled (bots):   <b>%d</b>\n", exiled)
	fmt.Fprintf(&b, "📦 Total DB:        <b>%d</b>\n", tier1+tier2+cand)
	b.WriteString(rule)
	fmt.Fprintf(&b, "📈 Trades/hr:  <b>%d</b>\n", h.TradesLastHour)
	fmt.Fprintf(&b, "🔔 Alerts/hr:  <b>%d</b>\n", h.AlertsLastHour)
	fmt.Fprintf(&b, "⚠️ Errors/hr:  <b>%d</b>\n", h.ErrorsLastHour)
	b.WriteString(rule)
	fmt.Fprintf(&b, "⏰ %s", h.At.UTC().Format("2006-01-02 15:04 UTC"))
	return b.String()
}
