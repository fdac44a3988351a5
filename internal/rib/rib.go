// Package rib defines the surface the Scanner and Importer need from
// the surrounding BGP speaker: route information storage, aggregate
// bookkeeping, damping, decision-process reprocessing, and static
// route import/withdraw. These are out-of-scope collaborators per the
// oracle's design — only their interfaces matter here — so this
// package also ships a small in-memory reference implementation used
// by tests and the demo binary.
package rib

import "net/netip"

// AFI mirrors the address families the oracle resolves over.
type AFI int

const (
	AFIv4 AFI = iota
	AFIv6
)

func (a AFI) String() string {
	if a == AFIv6 {
		return "ipv6"
	}
	return "ipv4"
}

// SAFI distinguishes unicast from the other subsequent address
// families the Importer must skip (MPLS-VPN).
type SAFI int

const (
	SAFIUnicast SAFI = iota
	SAFIMulticast
	SAFIMplsVPN
)

// RouteFlags tracks the two flags the oracle itself owns on a route
// info entry; every other BGP attribute belongs to the enclosing
// speaker and is opaque here.
type RouteFlags struct {
	Valid      bool
	IGPChanged bool
}

// RouteInfo is one BGP-typed, "normal" route info entry in a RIB walk:
// the oracle reads its nexthop and peer, and toggles Flags.
type RouteInfo struct {
	Prefix  netip.Prefix
	Nexthop netip.Addr
	Peer    Peer
	Flags   RouteFlags

	// NexthopLinkLocal is set only for an IPv6 route whose MP_REACH_NLRI
	// nexthop attribute carried the global+link-local pair (RFC 2545);
	// it is the zero Addr otherwise. The pair as a whole is trivially
	// on-link without a zebra lookup.
	NexthopLinkLocal netip.Addr

	// Damping is nil when damping is not configured for this route.
	Damping DampingState
}

// DampingState is consulted, never owned, by the Scanner; a nil
// DampingState means damping isn't configured for this route.
type DampingState interface {
	// Scan re-evaluates the damping figure of merit for this route,
	// returning true if the route reactivated as a result.
	Scan() (reactivated bool)
}

// Peer is the subset of peer state the Scanner needs to decide
// between the on-link shortcut and a full cached resolution.
type Peer struct {
	Address     netip.Addr
	TTL         int // 1 for a directly configured single-hop EBGP session
	IsEBGP      bool
	MaxPrefixes map[SAFIKey]int // configured max-prefix per (afi, safi), 0 = unset
}

// SAFIKey combines an AFI and SAFI for map keys like Peer.MaxPrefixes.
type SAFIKey struct {
	AFI  AFI
	SAFI SAFI
}

// SingleHop reports whether a peer's session can use the EBGP
// on-link shortcut: single-hop EBGP, TTL exactly 1.
func (p Peer) SingleHop() bool {
	return p.IsEBGP && p.TTL == 1
}

// RIB is one address family's BGP route table, as the Scanner walks it.
type RIB interface {
	// Walk calls fn for every BGP-typed, normal route info entry, in
	// prefix order, stopping early if fn returns false.
	Walk(fn func(*RouteInfo) bool)

	// AggregateIncrement/AggregateDecrement notify the enclosing
	// aggregation logic that a contributing route became valid/invalid.
	AggregateIncrement(prefix netip.Prefix)
	AggregateDecrement(prefix netip.Prefix)

	// Process invokes the BGP decision/update routine for a prefix,
	// e.g. because its flags changed or DesyncSet forced a refresh.
	Process(prefix netip.Prefix)

	// Peers returns every established peer configured for this RIB's
	// address family, for per-scan max-prefix housekeeping.
	Peers() []Peer

	// CheckMaxPrefix runs the overflow check for one peer/safi; pure
	// notification to the speaker, no return value needed here.
	CheckMaxPrefix(peer Peer, safi SAFI)
}

// StaticRoute is one statically configured BGP route the Importer
// reconciles against IGP presence.
type StaticRoute struct {
	Prefix      netip.Prefix
	AFI         AFI
	SAFI        SAFI
	Backdoor    bool
	ImportCheck bool
	HasRouteMap bool

	Valid   bool
	Metric  uint32
	Nexthop netip.Addr
}

// StaticRoutes is the collaborator surface Importer needs for the set
// of configured static routes and the update/withdraw calls it drives.
type StaticRoutes interface {
	// Walk calls fn for every configured static route, across every
	// BGP instance, in any order.
	Walk(fn func(*StaticRoute))

	// StaticUpdate installs/refreshes the route now that it is valid
	// (or its metric/nexthop/route-map presence changed).
	StaticUpdate(route *StaticRoute)

	// StaticWithdraw removes the route now that it is invalid.
	StaticWithdraw(route *StaticRoute)
}
