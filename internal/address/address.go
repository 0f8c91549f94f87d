package address

import (
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Valid reports whether s is a base58 ed25519 public key.
func Valid(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// ValidSignature reports whether s decodes to a 64-byte transaction signature.
func ValidSignature(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 64
}

// Short abbreviates an address for logs and messages: abcd…wxyz.
func Short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + "…" + addr[len(addr)-4:]
}

// Filter drops invalid and duplicate addresses, keeping first occurrences.
func Filter(addrs []string) (valid, rejected []string) {
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		if seen[a] {
			continue
		}
		seen[a] = true
		if Valid(a) {
			valid = append(valid, a)
		} else {
			rejected = append(rejected, a)
		}
	}
	return valid, rejected
}

// Sorted returns a sorted, de-duplicated copy.
func Sorted(addrs []string) []string {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Diff returns what next adds to and removes from prev, each sorted.
func Diff(prev, next []string) (added, removed []string) {
	p := make(map[string]bool, len(prev))
	for _, a := range prev {
		p[a] = true
	}
	n := make(map[string]bool, len(next))
	for _, a := range next {
		n[a] = true
		if !p[a] {
			added = append(added, a)
		}
	}
	for a := range p {
		if !n[a] {
			removed = append(removed, a)
		}
	}
	added = Sorted(added)
	removed = Sorted(removed)
	return added, removed
}

// SameSet compares as sets, ignoring order and duplicates.
func SameSet(a, b []string) bool {
	added, removed := Diff(a, b)
	return len(added) == 0 && len(removed) == 0
}
