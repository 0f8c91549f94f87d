package botdetect

import (
	"math"
	"sort"
	"time"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

const DefaultThreshold = 0.55

// Analysis is the per-pass bot verdict for one wallet. It is never persisted.
type Analysis struct {
	Wallet  string
	Score   float64
	IsBot   bool
	Signals map[SignalKind]float64
}

// Top returns up to n fired signals, heaviest first.
func (a Analysis) Top(n int) []SignalKind {
	kinds := make([]SignalKind, 0, len(a.Signals))
	for k := range a.Signals {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		wi, wj := a.Signals[kinds[i]], a.Signals[kinds[j]]
		if wi != wj {
			return wi > wj
		}
		return kinds[i] < kinds[j]
	})
	if n >= 0 && len(kinds) > n {
		kinds = kinds[:n]
	}
	return kinds
}

func (a Analysis) Has(k SignalKind) bool {
	_, ok := a.Signals[k]
	return ok
}

type Detector struct {
	Threshold float64
	Funders   *FunderBlocklist
}

func NewDetector(threshold float64, funders *FunderBlocklist) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if funders == nil {
		funders = NewFunderBlocklist()
	}
	return &Detector{Threshold: threshold, Funders: funders}
}

// Analyze scores a wallet's history. funder may be empty.
func (d *Detector) Analyze(wallet string, trades []*models.Trade, funder string) Analysis {
	if len(trades) == 0 {
		return Analysis{
			Wallet:  wallet,
			Score:   NoData.Weight(),
			Signals: map[SignalKind]float64{NoData: NoData.Weight()},
		}
	}

	signals := make(map[SignalKind]float64)
	fire := func(k SignalKind) { signals[k] = k.Weight() }

	if avg, ok := meanBlocksAfterMint(trades); ok {
		switch {
		case avg < 3:
			fire(UltraSniper)
		case avg < 15:
			fire(FastSniper)
		case avg < 50:
			fire(ModerateSniper)
		}
	}

	if holds := holdTimes(trades); len(holds) > 0 {
		switch avg := Mean(holds); {
		case avg < 30:
			fire(Sub30sHolds)
		case avg < 120:
			fire(Sub2MinHolds)
		case avg < 300:
			fire(Sub5MinHolds)
		}
	}

	if amounts := PositiveAmounts(trades); len(amounts) >= 5 {
		switch cv := CV(amounts); {
		case cv < 0.03:
			fire(IdenticalSizes)
		case cv < 0.10:
			fire(VeryUniformSizes)
		}
	}

	n := len(trades)
	first, last := timeSpan(trades)

	if n >= 10 {
		days := int(last.Sub(first).Hours() / 24)
		if days < 1 {
			days = 1
		}
		switch rate := float64(n) / float64(days); {
		case rate > 200:
			fire(ExtremeFrequency)
		case rate > 80:
			fire(HighFrequency)
		case rate > 40:
			fire(ElevatedFrequency)
		}
	}

	// sell share stands in for win rate here; tiering uses matched PnL instead
	if n >= 100 && float64(countSide(trades, models.SideSell))/float64(n) > 0.88 {
		fire(PerfectWinRate)
	}

	if n >= 10 && float64(countJito(trades))/float64(n) > 0.90 {
		fire(AlwaysJito)
	}

	unique, bought := tokenDiversity(trades)
	if bought > 0 && float64(unique)/float64(bought) < 1.05 {
		fire(ZeroDiversity)
	}

	if d.Funders.Contains(funder) {
		fire(KnownBotFunder)
	}

	if n >= 30 && maxGap(trades) < 2*time.Hour {
		fire(NoSleepPattern)
	}

	total := 0.0
	for _, w := range signals {
		total += w
	}
	total = math.Min(total, 1.0)

	return Analysis{
		Wallet:  wallet,
		Score:   Round(total, 3),
		IsBot:   total >= d.Threshold,
		Signals: signals,
	}
}

func meanBlocksAfterMint(trades []*models.Trade) (float64, bool) {
	var sum, n int
	for _, t := range trades {
		if t.BlocksAfterMint != nil {
			sum += *t.BlocksAfterMint
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

// holdTimes pairs every sell with the earliest buy of the same token at or
// before it. Buys are not consumed here, unlike the PnL matcher.
func holdTimes(trades []*models.Trade) []float64 {
	earliest := make(map[string][]time.Time)
	for _, t := range trades {
		if t.IsBuy() {
			earliest[t.TokenAddress] = append(earliest[t.TokenAddress], t.BlockTime)
		}
	}

	var holds []float64
	for _, s := range trades {
		if !s.IsSell() {
			continue
		}
		var best time.Time
		found := false
		for _, bt := range earliest[s.TokenAddress] {
			if bt.After(s.BlockTime) {
				continue
			}
			if !found || bt.Before(best) {
				best, found = bt, true
			}
		}
		if found {
			holds = append(holds, s.BlockTime.Sub(best).Seconds())
		}
	}
	return holds
}

func timeSpan(trades []*models.Trade) (first, last time.Time) {
	first, last = trades[0].BlockTime, trades[0].BlockTime
	for _, t := range trades[1:] {
		if t.BlockTime.Before(first) {
			first = t.BlockTime
		}
		if t.BlockTime.After(last) {
			last = t.BlockTime
		}
	}
	return first, last
}

func countSide(trades []*models.Trade, side models.Side) int {
	n := 0
	for _, t := range trades {
		if t.Side == side {
			n++
		}
	}
	return n
}

func countJito(trades []*models.Trade) int {
	n := 0
	for _, t := range trades {
		if t.UsedJito {
			n++
		}
	}
	return n
}

func tokenDiversity(trades []*models.Trade) (unique, bought int) {
	all := make(map[string]struct{})
	buys := make(map[string]struct{})
	for _, t := range trades {
		all[t.TokenAddress] = struct{}{}
		if t.IsBuy() {
			buys[t.TokenAddress] = struct{}{}
		}
	}
	return len(all), len(buys)
}

func maxGap(trades []*models.Trade) time.Duration {
	times := make([]time.Time, len(trades))
	for i, t := range trades {
		times[i] = t.BlockTime
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var gap time.Duration
	for i := 1; i < len(times); i++ {
		if g := times[i].Sub(times[i-1]); g > gap {
			gap = g
		}
	}
	return gap
}
