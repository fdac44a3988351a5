// Package nht implements the per-address-family nexthop cache (BNCT):
// a double-buffered pair of longest-prefix-match tries holding
// resolution results, swapped once per scan so the previous
// generation remains available for comparison and desync-verification
// while the new one is being populated.
package nht

import (
	"net/netip"

	"github.com/bgpscand/bgpscand/internal/lpm"
	"github.com/bgpscand/bgpscand/internal/nexthop"
)

// Entry is one cached resolution result. A Valid=false entry always
// has zero Nexthops (enforced by the constructors below, never by the
// caller zeroing fields itself).
type Entry struct {
	Valid         bool
	Metric        uint32
	Nexthops      []nexthop.NextHop
	Changed       bool
	MetricChanged bool
}

// Invalid returns the sentinel entry installed when resolution misses
// entirely (the daemon reported zero nexthops, or the socket was
// down).
func Invalid() Entry {
	return Entry{Valid: false}
}

// BNCT holds two tries for one address family — the active generation
// being populated by the current scan, and the previous generation
// retained read-only for comparison and rgate-verify batch building.
type BNCT struct {
	a, b   *lpm.Trie[Entry]
	active *lpm.Trie[Entry] // points at a or b
	prev   *lpm.Trie[Entry]
}

func New() *BNCT {
	c := &BNCT{a: lpm.New[Entry](), b: lpm.New[Entry]()}
	c.active = c.a
	c.prev = c.b
	return c
}

// Swap flips active and previous in O(1). The newly-active table is
// whatever was the previous generation two scans ago, which
// ResetPrevious left empty at the end of the last scan.
func (c *BNCT) Swap() {
	c.active, c.prev = c.prev, c.active
}

// GetOrInsert returns the entry for key in the active table, creating
// an Invalid() placeholder if absent. wasPresent reports whether it
// already existed (a genuine cache hit from earlier in this same
// scan, not from the previous generation).
func (c *BNCT) GetOrInsert(key netip.Prefix) (entry *Entry, wasPresent bool) {
	return c.active.Insert(key, Invalid())
}

// LookupPrevious performs an exact-key lookup in the previous
// (read-only) generation.
func (c *BNCT) LookupPrevious(key netip.Prefix) (*Entry, bool) {
	return c.prev.Get(key)
}

// ResetPrevious clears every entry from the previous table, leaving
// it ready to become the next active table on the following swap.
func (c *BNCT) ResetPrevious() {
	c.prev.Reset()
}

// Finish releases both tables. After Finish the BNCT must not be used.
func (c *BNCT) Finish() {
	c.a.Reset()
	c.b.Reset()
}

// WalkPreviousValid visits every valid entry in the previous
// generation, keyed by its prefix. It satisfies rgateverify.Walker.
func (c *BNCT) WalkPreviousValid(fn func(prefix netip.Prefix, entry Entry)) {
	c.prev.Walk(func(p netip.Prefix, e *Entry) {
		if e.Valid {
			fn(p, *e)
		}
	})
}

// Different reports whether fresh and previous differ per the
// positional comparison rule: different lengths, or any differing
// (kind, gate, ifindex) at the same position, count as changed.
// Metric is compared independently.
func Different(fresh, previous Entry) (changed, metricChanged bool) {
	changed = !nexthop.ListsEqual(fresh.Nexthops, previous.Nexthops)
	metricChanged = fresh.Metric != previous.Metric
	return changed, metricChanged
}

// KeyFor builds the /32 or /128 host prefix used as a BNCT key for a
// resolved nexthop address.
func KeyFor(addr netip.Addr) netip.Prefix {
	return netip.PrefixFrom(addr, addr.BitLen())
}
