package scorer

import (
	"sort"

	"github.com/utrading/utrading-sol-agent/internal/botdetect"
	"github.com/utrading/utrading-sol-agent/internal/models"
)

const (
	Tier1MinWinRate = 0.45
	Tier1MinPnLUSD  = 500.0
	Tier1MinTrades  = 80
)

type Thresholds struct {
	MinTrades  int
	MinWinRate float64
}

// Match pairs one sell with the buy it consumed.
type Match struct {
	Buy      *models.Trade
	Sell     *models.Trade
	PnLUSD   float64
	HoldSecs float64
}

// WalletScore merges PnL metrics with the recommended tier.
type WalletScore struct {
	Wallet          string
	WinRate         float64
	TotalTrades     int // matched sells
	WinningTrades   int
	TotalPnLUSD     float64
	AvgPnLPerTrade  float64
	AvgHoldTimeSecs float64
	TradeSizeCV     float64
	BotScore        float64
	Tier            models.Tier
	Matches         []Match
}

// MatchFIFO matches, per token, each sell with the earliest unconsumed buy at
// or before it. A buy is consumed by at most one sell; sells with no eligible
// buy are left out. Output is ordered by token, then sell time.
func MatchFIFO(trades []*models.Trade) []Match {
	buys := make(map[string][]*models.Trade)
	sells := make(map[string][]*models.Trade)
	for _, t := range trades {
		switch t.Side {
		case models.SideBuy:
			buys[t.TokenAddress] = append(buys[t.TokenAddress], t)
		case models.SideSell:
			sells[t.TokenAddress] = append(sells[t.TokenAddress], t)
		}
	}

	tokens := make([]string, 0, len(sells))
	for token := range sells {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var out []Match
	for _, token := range tokens {
		queue := append([]*models.Trade(nil), buys[token]...)
		models.SortByTime(queue)
		tokenSells := append([]*models.Trade(nil), sells[token]...)
		models.SortByTime(tokenSells)

		// consumed buys always form a prefix of queue
		head := 0
		for _, s := range tokenSells {
			if head >= len(queue) || queue[head].BlockTime.After(s.BlockTime) {
				continue
			}
			b := queue[head]
			head++
			out = append(out, Match{
				Buy:      b,
				Sell:     s,
				PnLUSD:   s.AmountUSD - b.AmountUSD,
				HoldSecs: s.BlockTime.Sub(b.BlockTime).Seconds(),
			})
		}
	}
	return out
}

// Score is pure: identical histories give identical scores.
func Score(wallet string, trades []*models.Trade, analysis botdetect.Analysis, th Thresholds) WalletScore {
	matches := MatchFIFO(trades)

	var total, holds float64
	wins := 0
	for _, m := range matches {
		total += m.PnLUSD
		holds += m.HoldSecs
		if m.PnLUSD > 0 {
			wins++
		}
	}

	n := len(matches)
	var winRate, avgPnL, avgHold float64
	if n > 0 {
		winRate = float64(wins) / float64(n)
		avgPnL = total / float64(n)
		avgHold = holds / float64(n)
	}

	cv := 0.0
	if amounts := botdetect.PositiveAmounts(trades); len(amounts) >= 3 {
		cv = botdetect.CV(amounts)
	}

	return WalletScore{
		Wallet:          wallet,
		WinRate:         botdetect.Round(winRate, 4),
		TotalTrades:     n,
		WinningTrades:   wins,
		TotalPnLUSD:     botdetect.Round(total, 2),
		AvgPnLPerTrade:  botdetect.Round(avgPnL, 2),
		AvgHoldTimeSecs: botdetect.Round(avgHold, 1),
		TradeSizeCV:     botdetect.Round(cv, 4),
		BotScore:        analysis.Score,
		Tier:            RecommendTier(analysis.IsBot, n, winRate, total, th),
		Matches:         matches,
	}
}

// RecommendTier applies the tier rules in order; the first hit wins.
func RecommendTier(isBot bool, matched int, winRate, totalPnL float64, th Thresholds) models.Tier {
	switch {
	case isBot:
		return models.TierExiled
	case matched < th.MinTrades || winRate < th.MinWinRate:
		return models.TierCandidate
	case winRate >= Tier1MinWinRate && totalPnL > Tier1MinPnLUSD && matched >= Tier1MinTrades:
		return models.TierTier1
	default:
		return models.TierTier2
	}
}

// Backfill copies realized PnL and hold time onto the matched sells.
func Backfill(matches []Match) {
	for _, m := range matches {
		pnl := botdetect.Round(m.PnLUSD, 2)
		hold := m.HoldSecs
		win := m.PnLUSD > 0
		m.Sell.PnLUSD = &pnl
		m.Sell.HoldTimeSecs = &hold
		m.Sell.IsProfitable = &win
	}
}
