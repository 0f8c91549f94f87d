package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/utrading/utrading-sol-agent/internal/models"
)

type Options struct {
	BlockDelta       int
	BlockTime        time.Duration
	MinCoOccurrences int
}

func DefaultOptions() Options {
	return Options{BlockDelta: 5, BlockTime: 400 * time.Millisecond, MinCoOccurrences: 3}
}

// Window is the largest buy-time gap still counted as coordinated.
func (o Options) Window() time.Duration {
	return time.Duration(o.BlockDelta) * o.BlockTime
}

type pair struct{ a, b string }

func newPair(x, y string) pair {
	if x > y {
		x, y = y, x
	}
	return pair{x, y}
}

type buy struct {
	wallet string
	at     time.Time
}

// CoOccurrences counts, per unordered wallet pair, buys of the same token
// within the window.
func CoOccurrences(byWallet map[string][]*models.Trade, opts Options) map[pair]int {
	window := opts.Window()

	byToken := make(map[string][]buy)
	for wallet, trades := range byWallet {
		for _, t := range trades {
			if t.IsBuy() {
				byToken[t.TokenAddress] = append(byToken[t.TokenAddress], buy{wallet, t.BlockTime})
			}
		}
	}

	counts := make(map[pair]int)
	for _, buys := range byToken {
		sort.Slice(buys, func(i, j int) bool {
			if !buys[i].at.Equal(buys[j].at) {
				return buys[i].at.Before(buys[j].at)
			}
			return buys[i].wallet < buys[j].wallet
		})
		for i := range buys {
			for j := i + 1; j < len(buys); j++ {
				if buys[j].at.Sub(buys[i].at) > window {
					break
				}
				if buys[i].wallet != buys[j].wallet {
					counts[newPair(buys[i].wallet, buys[j].wallet)]++
				}
			}
		}
	}
	return counts
}

// Detect maps every wallet in a coordinated component of two or more to a
// cluster id. Unclustered wallets are absent. Ids are assigned in sorted
// wallet order so they do not depend on input order.
func Detect(byWallet map[string][]*models.Trade, opts Options) map[string]string {
	adjacency := make(map[string][]string)
	for p, n := range CoOccurrences(byWallet, opts) {
		if n >= opts.MinCoOccurrences {
			adjacency[p.a] = append(adjacency[p.a], p.b)
			adjacency[p.b] = append(adjacency[p.b], p.a)
		}
	}

	nodes := make([]string, 0, len(adjacency))
	for w, peers := range adjacency {
		sort.Strings(peers)
		nodes = append(nodes, w)
	}
	sort.Strings(nodes)

	visited := make(map[string]bool, len(nodes))
	out := make(map[string]string)
	next := 0
	for _, start := range nodes {
		if visited[start] {
			continue
		}
		visited[start] = true
		component := []string{start}
		for queue := []string{start}; len(queue) > 0; {
			node := queue[0]
			queue = queue[1:]
			for _, peer := range adjacency[node] {
				if !visited[peer] {
					visited[peer] = true
					component = append(component, peer)
					queue = append(queue, peer)
				}
			}
		}
		if len(component) < 2 {
			continue
		}
		next++
		id := fmt.Sprintf("cluster_%04d", next)
		for _, w := range component {
			out[w] = id
		}
	}
	return out
}

// Members inverts a Detect result into sorted member lists per cluster.
func Members(clusters map[string]string) map[string][]string {
	out := make(map[string][]string)
	for w, id := range clusters {
		out[id] = append(out[id], w)
	}
	for _, ws := range out {
		sort.Strings(ws)
	}
	return out
}
