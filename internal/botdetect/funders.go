package botdetect

import (
	"github.com/utrading/utrading-sol-agent/pkg/concurrent"
	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// FunderBlocklist holds funding wallets confirmed to seed bot farms. It is
// owned by the agent and shared by reference; safe for concurrent use.
type FunderBlocklist struct {
	set concurrent.Set[string]
}

func NewFunderBlocklist(seed ...string) *FunderBlocklist {
	b := &FunderBlocklist{}
	for _, addr := range seed {
		if addr != "" {
			b.set.Add(addr)
		}
	}
	return b
}

// Add reports whether address was new.
func (b *FunderBlocklist) Add(address string) bool {
	if address == "" {
		return false
	}
	added := b.set.Add(address)
	if added {
		logger.Info().Str("funder", address).Msg("bot funder added to blocklist")
	}
	return added
}

func (b *FunderBlocklist) Contains(address string) bool {
	if b == nil || address == "" {
		return false
	}
	return b.set.Contains(address)
}

func (b *FunderBlocklist) Len() int {
	if b == nil {
		return 0
	}
	return int(b.set.Len())
}
