package rib

import (
	"net/netip"
	"sort"
)

// MemRIB is a simple in-memory RIB used by tests and the demo binary.
// Route insertion order is not preserved; Walk always visits entries
// in prefix-string order so scans are deterministic.
type MemRIB struct {
	routes map[netip.Prefix]*RouteInfo
	peers  []Peer

	Incremented    []netip.Prefix
	Decremented    []netip.Prefix
	Processed      []netip.Prefix
	MaxPrefixCalls []SAFI
}

func NewMemRIB() *MemRIB {
	return &MemRIB{routes: make(map[netip.Prefix]*RouteInfo)}
}

// AddRoute inserts or replaces a route info entry.
func (m *MemRIB) AddRoute(ri *RouteInfo) {
	m.routes[ri.Prefix] = ri
}

// AddPeer registers an established peer.
func (m *MemRIB) AddPeer(p Peer) {
	m.peers = append(m.peers, p)
}

// Routes returns every route info entry in prefix-string order, for
// test assertions.
func (m *MemRIB) Routes() []*RouteInfo {
	var out []*RouteInfo
	m.Walk(func(ri *RouteInfo) bool {
		out = append(out, ri)
		return true
	})
	return out
}

func (m *MemRIB) Walk(fn func(*RouteInfo) bool) {
	prefixes := make([]netip.Prefix, 0, len(m.routes))
	for p := range m.routes {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool { return prefixes[i].String() < prefixes[j].String() })
	for _, p := range prefixes {
		if !fn(m.routes[p]) {
			return
		}
	}
}

func (m *MemRIB) AggregateIncrement(prefix netip.Prefix) {
	m.Incremented = append(m.Incremented, prefix)
}

func (m *MemRIB) AggregateDecrement(prefix netip.Prefix) {
	m.Decremented = append(m.Decremented, prefix)
}

func (m *MemRIB) Process(prefix netip.Prefix) {
	m.Processed = append(m.Processed, prefix)
}

func (m *MemRIB) Peers() []Peer { return m.peers }

func (m *MemRIB) CheckMaxPrefix(peer Peer, safi SAFI) {
	m.MaxPrefixCalls = append(m.MaxPrefixCalls, safi)
}

// MemStaticRoutes is an in-memory StaticRoutes collaborator.
type MemStaticRoutes struct {
	Routes   []*StaticRoute
	Updated  []*StaticRoute
	Withdraw []*StaticRoute
}

func NewMemStaticRoutes() *MemStaticRoutes {
	return &MemStaticRoutes{}
}

func (m *MemStaticRoutes) Walk(fn func(*StaticRoute)) {
	for _, r := range m.Routes {
		fn(r)
	}
}

func (m *MemStaticRoutes) StaticUpdate(route *StaticRoute) {
	m.Updated = append(m.Updated, route)
}

func (m *MemStaticRoutes) StaticWithdraw(route *StaticRoute) {
	m.Withdraw = append(m.Withdraw, route)
}
