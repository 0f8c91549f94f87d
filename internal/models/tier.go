package models

// Tier controls how closely a wallet is watched.
type Tier string

const (
	TierCandidate Tier = "candidate" // discovered, not yet vetted
	TierTier2     Tier = "tier2"     // periodic scoring
	TierTier1     Tier = "tier1"     // live alerts
	TierExiled    Tier = "exiled"    // bot or bot ring
	TierArchived  Tier = "archived"  // inactive
)

var AllTiers = []Tier{TierCandidate, TierTier2, TierTier1, TierExiled, TierArchived}

// Terminal tiers are never left automatically.
func (t Tier) Terminal() bool {
	return t == TierExiled || t == TierArchived
}

// Rank orders the promotion path; terminal tiers rank -1.
func (t Tier) Rank() int {
	switch t {
	case TierCandidate:
		return 0
	case TierTier2:
		return 1
	case TierTier1:
		return 2
	default:
		return -1
	}
}

func (t Tier) Badge() string {
	switch t {
	case TierTier1:
		return "🥇 T1"
	case TierTier2:
		return "🥈 T2"
	case TierCandidate:
		return "🔍 CAND"
	case TierExiled:
		return "💀 EXILED"
	case TierArchived:
		return "📦 ARCH"
	default:
		return string(t)
	}
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)
