package rib_test

import (
	"net/netip"
	"testing"

	"github.com/bgpscand/bgpscand/internal/rib"
)

func TestMemRIBWalkIsPrefixOrdered(t *testing.T) {
	m := rib.NewMemRIB()
	m.AddRoute(&rib.RouteInfo{Prefix: netip.MustParsePrefix("10.2.0.0/16")})
	m.AddRoute(&rib.RouteInfo{Prefix: netip.MustParsePrefix("10.1.0.0/16")})

	var seen []netip.Prefix
	m.Walk(func(ri *rib.RouteInfo) bool {
		seen = append(seen, ri.Prefix)
		return true
	})
	if len(seen) != 2 || seen[0].String() != "10.1.0.0/16" {
		t.Fatalf("expected prefix-sorted walk, got %v", seen)
	}
}

func TestMemRIBAggregateCalls(t *testing.T) {
	m := rib.NewMemRIB()
	p := netip.MustParsePrefix("10.0.0.0/8")
	m.AggregateIncrement(p)
	m.AggregateDecrement(p)
	if len(m.Incremented) != 1 || len(m.Decremented) != 1 {
		t.Errorf("expected one increment and one decrement recorded")
	}
}

func TestPeerSingleHop(t *testing.T) {
	p := rib.Peer{IsEBGP: true, TTL: 1}
	if !p.SingleHop() {
		t.Errorf("expected single-hop EBGP peer to report SingleHop() true")
	}
	p.TTL = 2
	if p.SingleHop() {
		t.Errorf("expected multi-hop peer to report SingleHop() false")
	}
}
