package scorer

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-sol-agent/internal/botdetect"
	"github.com/utrading/utrading-sol-agent/internal/models"
)

var (
	t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	th = Thresholds{MinTrades: 50, MinWinRate: 0.30}
)

func tr(sig string, side models.Side, token string, usd float64, at time.Duration) *models.Trade {
	return &models.Trade{
		Signature:    sig,
		TokenAddress: token,
		Side:         side,
		AmountUSD:    usd,
		AmountSOL:    usd / 150,
		BlockTime:    t0.Add(at),
	}
}

func TestSingleRoundTrip(t *testing.T) {
	trades := []*models.Trade{
		tr("b", models.SideBuy, "T", 100, 0),
		tr("s", models.SideSell, "T", 150, 60*time.Second),
	}
	s := Score("W", trades, botdetect.Analysis{}, th)

	require.Len(t, s.Matches, 1)
	assert.Equal(t, 50.0, s.TotalPnLUSD)
	assert.Equal(t, 60.0, s.AvgHoldTimeSecs)
	assert.Equal(t, 1.0, s.WinRate)
	assert.Equal(t, 1, s.TotalTrades)
	assert.Equal(t, 1, s.WinningTrades)
	assert.Equal(t, models.TierCandidate, s.Tier)

	Backfill(s.Matches)
	require.NotNil(t, trades[1].PnLUSD)
	assert.Equal(t, 50.0, *trades[1].PnLUSD)
	assert.Equal(t, 60.0, *trades[1].HoldTimeSecs)
	assert.True(t, *trades[1].IsProfitable)
	assert.Nil(t, trades[0].PnLUSD)
}

func TestStrictFIFOConsumesEachBuyOnce(t *testing.T) {
	trades := []*models.Trade{
		tr("s1", models.SideSell, "T", 30, 15*time.Second),
		tr("b2", models.SideBuy, "T", 20, 10*time.Second),
		tr("b1", models.SideBuy, "T", 10, 0),
		tr("s2", models.SideSell, "T", 40, 20*time.Second),
		tr("s3", models.SideSell, "T", 99, 30*time.Second),
	}
	m := MatchFIFO(trades)
	require.Len(t, m, 2, "third sell has no buy left")
	assert.Equal(t, "b1", m[0].Buy.Signature)
	assert.Equal(t, "s1", m[0].Sell.Signature)
	assert.Equal(t, 20.0, m[0].PnLUSD)
	assert.Equal(t, "b2", m[1].Buy.Signature)
	assert.Equal(t, "s2", m[1].Sell.Signature)
	assert.Equal(t, 20.0, m[1].PnLUSD)
}

func TestSellBeforeAnyBuyIsUnmatched(t *testing.T) {
	trades := []*models.Trade{
		tr("s", models.SideSell, "T", 10, 0),
		tr("b", models.SideBuy, "T", 5, time.Second),
		tr("x", models.SideSell, "U", 10, 0),
	}
	assert.Empty(t, MatchFIFO(trades))

	s := Score("W", trades, botdetect.Analysis{}, th)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Greater(t, s.TradeSizeCV, 0.0, "cv covers unmatched trades too")
}

func TestTokensMatchIndependently(t *testing.T) {
	trades := []*models.Trade{
		tr("bA", models.SideBuy, "A", 10, 0),
		tr("sB", models.SideSell, "B", 10, time.Second),
		tr("sA", models.SideSell, "A", 5, 2*time.Second),
	}
	m := MatchFIFO(trades)
	require.Len(t, m, 1)
	assert.Equal(t, "A", m[0].Sell.TokenAddress)
	assert.Equal(t, -5.0, m[0].PnLUSD)
}

func TestRecommendTierOrder(t *testing.T) {
	cases := []struct {
		name    string
		isBot   bool
		matched int
		winRate float64
		pnl     float64
		want    models.Tier
	}{
		{"bot beats everything", true, 500, 0.9, 1e6, models.TierExiled},
		{"too few trades", false, 49, 0.9, 1e6, models.TierCandidate},
		{"low win rate", false, 200, 0.29, 1e6, models.TierCandidate},
		{"tier1", false, 80, 0.45, 500.01, models.TierTier1},
		{"pnl at bound", false, 80, 0.45, 500, models.TierTier2},
		{"under tier1 count", false, 79, 0.9, 1e6, models.TierTier2},
		{"tier2", false, 60, 0.35, 10, models.TierTier2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RecommendTier(tc.isBot, tc.matched, tc.winRate, tc.pnl, th))
		})
	}
}

func randomHistory(r *rand.Rand, n int) []*models.Trade {
	out := make([]*models.Trade, 0, n)
	for i := 0; i < n; i++ {
		side := models.SideBuy
		if r.Intn(2) == 0 {
			side = models.SideSell
		}
		out = append(out, tr(fmt.Sprintf("sig-%d", i), side, fmt.Sprintf("T%d", r.Intn(4)),
			float64(r.Intn(500)+1), time.Duration(r.Intn(3600))*time.Second))
	}
	return out
}

func TestMatchingProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		trades := randomHistory(r, 1+r.Intn(60))
		matches := MatchFIFO(trades)

		usedBuys := map[string]bool{}
		usedSells := map[string]bool{}
		lastSell := map[string]time.Time{}
		sum := 0.0
		for _, m := range matches {
			require.False(t, usedBuys[m.Buy.Signature], "buy consumed twice")
			require.False(t, usedSells[m.Sell.Signature], "sell matched twice")
			usedBuys[m.Buy.Signature] = true
			usedSells[m.Sell.Signature] = true

			require.Equal(t, m.Buy.TokenAddress, m.Sell.TokenAddress)
			require.False(t, m.Buy.BlockTime.After(m.Sell.BlockTime))
			require.False(t, m.Sell.BlockTime.Before(lastSell[m.Sell.TokenAddress]), "sells out of order")
			lastSell[m.Sell.TokenAddress] = m.Sell.BlockTime
			sum += m.PnLUSD
		}

		s := Score("W", trades, botdetect.Analysis{}, th)
		assert.InDelta(t, botdetect.Round(sum, 2), s.TotalPnLUSD, 1e-9)
		assert.Equal(t, len(matches), s.TotalTrades)
		if s.TotalTrades < th.MinTrades {
			assert.NotEqual(t, models.TierTier1, s.Tier)
		}

		bot := Score("W", trades, botdetect.Analysis{IsBot: true, Score: 0.9}, th)
		assert.Equal(t, models.TierExiled, bot.Tier)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	trades := randomHistory(r, 80)
	shuffled := append([]*models.Trade(nil), trades...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a := Score("W", trades, botdetect.Analysis{}, th)
	b := Score("W", shuffled, botdetect.Analysis{}, th)
	a.Matches, b.Matches = nil, nil
	assert.Equal(t, a, b)
}
