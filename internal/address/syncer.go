package address

import (
	"sync"

	"github.com/utrading/utrading-sol-agent/pkg/logger"
)

// Subscriber follows a live address set, e.g. the websocket stream.
type Subscriber interface {
	SubscribeAddress(addr string) error
	UnsubscribeAddress(addr string) error
}

// Syncer pushes set changes to subscribers, remembering what it last pushed.
type Syncer struct {
	subscribers []Subscriber
	mu          sync.Mutex
	last        map[string]bool
}

func NewSyncer(subscribers ...Subscriber) *Syncer {
	return &Syncer{subscribers: subscribers, last: make(map[string]bool)}
}

// Sync subscribes new addresses and unsubscribes dropped ones. A failed
// subscribe is retried on the next call.
func (s *Syncer) Sync(addrs []string) (added, removed int) {
	s.mu.Lock()
	prev := make([]string, 0, len(s.last))
	for a := range s.last {
		prev = append(prev, a)
	}
	toAdd, toRemove := Diff(prev, addrs)
	s.mu.Unlock()

	for _, addr := range toAdd {
		ok := true
		for _, sub := range s.subscribers {
			if err := sub.SubscribeAddress(addr); err != nil {
				ok = false
				logger.Error().Err(err).Str("address", Short(addr)).Msg("subscribe address failed")
			}
		}
		if ok {
			s.mu.Lock()
			s.last[addr] = true
			s.mu.Unlock()
			added++
		}
	}

	for _, addr := range toRemove {
		for _, sub := range s.subscribers {
			if err := sub.UnsubscribeAddress(addr); err != nil {
				logger.Error().Err(err).Str("address", Short(addr)).Msg("unsubscribe address failed")
			}
		}
		s.mu.Lock()
		delete(s.last, addr)
		s.mu.Unlock()
		removed++
	}

	if added > 0 || removed > 0 {
		logger.Info().Int("added", added).Int("removed", removed).Msg("live address set synced")
	}
	return added, removed
}

func (s *Syncer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
