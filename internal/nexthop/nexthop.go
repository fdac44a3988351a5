// Package nexthop defines the polymorphic nexthop value shared by the
// zserv wire codec and the nexthop cache: the wire decoder produces
// these directly off the tag byte, and the cache compares them
// positionally across scan generations.
package nexthop

import "net/netip"

// Kind is the wire tag byte identifying which fields of a NextHop are
// meaningful. The eight kinds below are the ones zebra's zserv
// protocol emits; any other tag byte is decoded as KindUnknown with an
// empty payload rather than rejected, so a single unrecognized nexthop
// in a response never desynchronizes the framing.
type Kind uint8

const (
	KindIPv4Gate Kind = iota
	KindIPv6Gate
	KindIPv4IfName
	KindIPv4IfIndex
	KindIPv6GateIfIndex
	KindIPv6GateIfName
	KindIPv6IfIndex
	KindIPv6IfName
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindIPv4Gate:
		return "ipv4-gate"
	case KindIPv6Gate:
		return "ipv6-gate"
	case KindIPv4IfName:
		return "ipv4-ifname"
	case KindIPv4IfIndex:
		return "ipv4-ifindex"
	case KindIPv6GateIfIndex:
		return "ipv6-gate-ifindex"
	case KindIPv6GateIfName:
		return "ipv6-gate-ifname"
	case KindIPv6IfIndex:
		return "ipv6-ifindex"
	case KindIPv6IfName:
		return "ipv6-ifname"
	default:
		return "unknown"
	}
}

// NextHop is a single resolved hop as reported by zebra. Gate holds the
// gateway address for the gate-bearing kinds (and, for
// KindIPv4Gate entries cached in a NexthopCacheEntry, doubles as the
// recursive gateway address used by the rgate-verify protocol — see
// internal/rgateverify). IfIndex holds the outgoing interface index
// for the ifindex/ifname kinds and the two dual gate+interface kinds.
type NextHop struct {
	Kind    Kind
	Gate    netip.Addr
	IfIndex uint32
}

// Equal reports whether two nexthops are identical in (kind, gate,
// ifindex) — the exact comparison the cache uses to detect a changed
// nexthop list. It is positional: callers compare ordered lists
// element by element, never as sets.
func (n NextHop) Equal(o NextHop) bool {
	return n.Kind == o.Kind && n.Gate == o.Gate && n.IfIndex == o.IfIndex
}

// ListsEqual compares two ordered nexthop lists for exact positional
// equality: different lengths, or any differing (kind, gate, ifindex)
// pair at the same position, make the lists unequal.
func ListsEqual(a, b []NextHop) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
