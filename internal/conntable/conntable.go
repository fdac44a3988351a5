// Package conntable tracks locally connected prefixes, per address
// family, for two purposes: the EBGP single-hop on-link shortcut and
// multi-access adjacency checks between a candidate nexthop and a
// peer address.
package conntable

import (
	"net/netip"

	"github.com/bgpscand/bgpscand/internal/lpm"
)

// ConnTable is a refcounted, per-AFI trie of connected prefixes. The
// zero value is not usable; use New.
type ConnTable struct {
	trie *lpm.Trie[int]
}

func New() *ConnTable {
	return &ConnTable{trie: lpm.New[int]()}
}

// Add records one reference to prefix p, creating the entry on first
// reference. It silently ignores loopback, link-local, unspecified,
// and default prefixes: these never represent a meaningful connected
// network for on-link/multi-access purposes.
func (t *ConnTable) Add(p netip.Prefix) {
	if !eligible(p) {
		return
	}
	p = p.Masked()
	refs, existed := t.trie.Insert(p, 0)
	if !existed {
		*refs = 0
	}
	*refs++
}

// Remove drops one reference to prefix p, deleting the entry once its
// refcount reaches zero. Removing a prefix with no outstanding
// references, or one that was never eligible, is a no-op.
func (t *ConnTable) Remove(p netip.Prefix) {
	if !eligible(p) {
		return
	}
	p = p.Masked()
	refs, ok := t.trie.Get(p)
	if !ok {
		return
	}
	*refs--
	if *refs <= 0 {
		t.trie.Delete(p)
	}
}

// OnLink reports whether addr is covered by any connected prefix.
func (t *ConnTable) OnLink(addr netip.Addr) bool {
	_, _, ok := t.trie.LookupLPM(addr)
	return ok
}

// SameNetwork reports whether a and b longest-prefix-match the same
// connected prefix.
func (t *ConnTable) SameNetwork(a, b netip.Addr) bool {
	return t.trie.SamePrefixNode(a, b)
}

// MultiaccessCheckV4 reports whether nexthop and peer are on the same
// connected IPv4 network — used to validate that a peer's advertised
// nexthop is reachable without a recursive IGP lookup on a multi-access
// segment.
func (t *ConnTable) MultiaccessCheckV4(nexthop, peer netip.Addr) bool {
	if !nexthop.Is4() || !peer.Is4() {
		return false
	}
	return t.SameNetwork(nexthop, peer)
}

func eligible(p netip.Prefix) bool {
	a := p.Addr()
	if a.IsLoopback() || a.IsLinkLocalUnicast() || a.IsUnspecified() {
		return false
	}
	if p.Bits() == 0 {
		return false
	}
	return true
}
