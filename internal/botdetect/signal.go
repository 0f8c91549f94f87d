package botdetect

import "fmt"

// SignalKind names one behavioural heuristic. Every kind must have a row in
// signalTable; the test suite checks this.
type SignalKind int

const (
	UltraSniper SignalKind = iota + 1
	FastSniper
	ModerateSniper
	Sub30sHolds
	Sub2MinHolds
	Sub5MinHolds
	IdenticalSizes
	VeryUniformSizes
	ExtremeFrequency
	HighFrequency
	ElevatedFrequency
	PerfectWinRate
	AlwaysJito
	ZeroDiversity
	KnownBotFunder
	NoSleepPattern
	NoData

	signalCount = iota
)

var signalTable = [signalCount + 1]struct {
	name   string
	weight float64
}{
	UltraSniper:       {"ultra_sniper", 0.35},
	FastSniper:        {"fast_sniper", 0.20},
	ModerateSniper:    {"moderate_sniper", 0.08},
	Sub30sHolds:       {"sub_30s_holds", 0.30},
	Sub2MinHolds:      {"sub_2min_holds", 0.18},
	Sub5MinHolds:      {"sub_5min_holds", 0.08},
	IdenticalSizes:    {"identical_sizes", 0.25},
	VeryUniformSizes:  {"very_uniform_sizes", 0.12},
	ExtremeFrequency:  {"extreme_frequency", 0.20},
	HighFrequency:     {"high_frequency", 0.12},
	ElevatedFrequency: {"elevated_frequency", 0.05},
	PerfectWinRate:    {"perfect_win_rate", 0.12},
	AlwaysJito:        {"always_jito", 0.10},
	ZeroDiversity:     {"zero_diversity", 0.08},
	KnownBotFunder:    {"known_bot_funder", 0.45},
	NoSleepPattern:    {"no_sleep_pattern", 0.10},
	NoData:            {"no_data", 0.5},
}

func (k SignalKind) valid() bool {
	return k > 0 && int(k) < len(signalTable)
}

func (k SignalKind) Weight() float64 {
	if !k.valid() {
		return 0
	}
	return signalTable[k].weight
}

func (k SignalKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("signal(%d)", int(k))
	}
	return signalTable[k].name
}

func (k SignalKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AllSignals lists every kind in declaration order.
func AllSignals() []SignalKind {
	out := make([]SignalKind, 0, signalCount)
	for k := SignalKind(1); k.valid(); k++ {
		out = append(out, k)
	}
	return out
}
