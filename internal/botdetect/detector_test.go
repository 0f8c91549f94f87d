package botdetect

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func trade(i int, side models.Side, token string, sol float64, at time.Time) *models.Trade {
	return &models.Trade{
		Signature:     fmt.Sprintf("sig-%03d", i),
		WalletAddress: "W",
		TokenAddress:  token,
		Side:          side,
		AmountSOL:     sol,
		AmountUSD:     sol * 150,
		BlockTime:     at,
	}
}

func intPtr(v int) *int { return &v }

func TestEverySignalHasAName(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range AllSignals() {
		require.NotEmpty(t, k.String(), "kind %d", int(k))
		assert.Greater(t, k.Weight(), 0.0, k.String())
		assert.False(t, seen[k.String()], "duplicate name %s", k)
		seen[k.String()] = true
	}
	assert.Len(t, AllSignals(), 17)
	assert.Equal(t, "signal(99)", SignalKind(99).String())
	assert.Zero(t, SignalKind(0).Weight())
}

func TestEmptyHistoryIsNeutral(t *testing.T) {
	a := NewDetector(0.55, nil).Analyze("W", nil, "")
	assert.Equal(t, 0.5, a.Score)
	assert.False(t, a.IsBot)
	assert.True(t, a.Has(NoData))
	assert.Len(t, a.Signals, 1)
}

func TestSniperWithIdenticalSizesIsBot(t *testing.T) {
	var trades []*models.Trade
	for i := 0; i < 10; i++ {
		tr := trade(i, models.SideBuy, "T", 10, t0.Add(time.Duration(i)*time.Hour))
		tr.BlocksAfterMint = intPtr(2)
		trades = append(trades, tr)
	}

	a := NewDetector(0.55, nil).Analyze("W", trades, "")
	assert.True(t, a.Has(UltraSniper))
	assert.True(t, a.Has(IdenticalSizes))
	assert.False(t, a.Has(FastSniper))
	assert.GreaterOrEqual(t, a.Score, 0.55)
	assert.True(t, a.IsBot)
}

func TestHoldTimeThresholds(t *testing.T) {
	cases := []struct {
		hold time.Duration
		want SignalKind
	}{
		{10 * time.Second, Sub30sHolds},
		{90 * time.Second, Sub2MinHolds},
		{4 * time.Minute, Sub5MinHolds},
		{10 * time.Minute, 0},
	}
	for _, tc := range cases {
		t.Run(tc.hold.String(), func(t *testing.T) {
			trades := []*models.Trade{
				trade(1, models.SideBuy, "T", 1, t0),
				trade(2, models.SideSell, "T", 2, t0.Add(tc.hold)),
			}
			a := NewDetector(0.55, nil).Analyze("W", trades, "")
			for _, k := range []SignalKind{Sub30sHolds, Sub2MinHolds, Sub5MinHolds} {
				assert.Equal(t, k == tc.want, a.Has(k), k.String())
			}
		})
	}
}

func TestHoldIgnoresBuysAfterSell(t *testing.T) {
	trades := []*models.Trade{
		trade(1, models.SideSell, "T", 1, t0),
		trade(2, models.SideBuy, "T", 1, t0.Add(time.Second)),
	}
	assert.Empty(t, holdTimes(trades))
}

func TestFrequencyUsesWholeDays(t *testing.T) {
	// 100 trades over 36h floors to one day
	var trades []*models.Trade
	for i := 0; i < 100; i++ {
		trades = append(trades, trade(i, models.SideBuy, fmt.Sprintf("T%d", i), float64(i+1), t0.Add(time.Duration(i)*21*time.Minute)))
	}
	a := NewDetector(0.55, nil).Analyze("W", trades, "")
	assert.True(t, a.Has(HighFrequency))
	assert.False(t, a.Has(ExtremeFrequency))
}

func TestFunderBlocklist(t *testing.T) {
	funders := NewFunderBlocklist("F1", "")
	assert.Equal(t, 1, funders.Len())
	assert.True(t, funders.Add("F2"))
	assert.False(t, funders.Add("F2"))
	assert.False(t, funders.Add(""))

	trades := []*models.Trade{trade(1, models.SideBuy, "T", 1, t0), trade(2, models.SideBuy, "U", 3, t0.Add(5*time.Hour))}
	d := NewDetector(0.4, funders)

	a := d.Analyze("W", trades, "F2")
	assert.True(t, a.Has(KnownBotFunder))
	assert.True(t, a.IsBot)

	a = d.Analyze("W", trades, "")
	assert.False(t, a.Has(KnownBotFunder))

	var nilList *FunderBlocklist
	assert.False(t, nilList.Contains("F1"))
}

func TestJitoAndNoSleep(t *testing.T) {
	var trades []*models.Trade
	for i := 0; i < 30; i++ {
		side := models.SideBuy
		if i%2 == 1 {
			side = models.SideSell
		}
		tr := trade(i, side, "T", float64(1+i%7), t0.Add(time.Duration(i)*3*time.Hour))
		tr.UsedJito = true
		trades = append(trades, tr)
	}
	a := NewDetector(0.55, nil).Analyze("W", trades, "")
	assert.True(t, a.Has(AlwaysJito))
	assert.False(t, a.Has(NoSleepPattern), "three hour gaps")

	for i, tr := range trades {
		tr.BlockTime = t0.Add(time.Duration(i) * 30 * time.Minute)
	}
	a = NewDetector(0.55, nil).Analyze("W", trades, "")
	assert.True(t, a.Has(NoSleepPattern))
}

func TestPerfectWinRateProxy(t *testing.T) {
	var trades []*models.Trade
	for i := 0; i < 100; i++ {
		side := models.SideSell
		if i < 10 {
			side = models.SideBuy
		}
		trades = append(trades, trade(i, side, fmt.Sprintf("T%d", i%20), 1, t0.Add(time.Duration(i)*24*time.Hour)))
	}
	a := NewDetector(0.55, nil).Analyze("W", trades, "")
	assert.True(t, a.Has(PerfectWinRate))
}

func TestScoreIsCappedAndRounded(t *testing.T) {
	funders := NewFunderBlocklist("F")
	var trades []*models.Trade
	for i := 0; i < 40; i++ {
		side := models.SideBuy
		if i%2 == 1 {
			side = models.SideSell
		}
		tr := trade(i, side, fmt.Sprintf("T%d", i/2), 5, t0.Add(time.Duration(i)*time.Second))
		tr.BlocksAfterMint = intPtr(1)
		tr.UsedJito = true
		trades = append(trades, tr)
	}
	a := NewDetector(0.55, funders).Analyze("W", trades, "F")
	assert.Equal(t, 1.0, a.Score)
	assert.True(t, a.IsBot)

	top := a.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, KnownBotFunder, top[0])
	assert.Equal(t, UltraSniper, top[1])
	assert.Len(t, a.Top(-1), len(a.Signals))
}

func TestStats(t *testing.T) {
	assert.Zero(t, CV(nil))
	assert.InDelta(t, 0, CV([]float64{2, 2, 2}), 1e-9)
	assert.InDelta(t, 0.5, CV([]float64{1, 3}), 1e-6)
	assert.Equal(t, 0.123, Round(0.12345, 3))
	assert.Equal(t, 2.5, Mean([]float64{2, 3}))
}
