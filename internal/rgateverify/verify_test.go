package rgateverify_test

import (
	"errors"
	"io"
	"net/netip"
	"testing"

	"github.com/bgpscand/bgpscand/internal/nexthop"
	"github.com/bgpscand/bgpscand/internal/nht"
	"github.com/bgpscand/bgpscand/internal/rgateverify"
	"github.com/bgpscand/bgpscand/internal/zserv"

	"log/slog"
)

type fakeClient struct {
	gotPairs []zserv.RGatePair
	desynced []netip.Prefix
	err      error
}

func (f *fakeClient) VerifyRGatesV4(pairs []zserv.RGatePair) ([]netip.Prefix, error) {
	f.gotPairs = pairs
	return f.desynced, f.err
}

func populatedBNCT() *nht.BNCT {
	c := nht.New()
	key := nht.KeyFor(netip.MustParseAddr("10.3.0.0"))
	e, _ := c.GetOrInsert(key)
	*e = nht.Entry{Valid: true, Metric: 5, Nexthops: []nexthop.NextHop{
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("198.51.100.1")},
	}}
	c.Swap()
	return c
}

func TestRunBuildsPairsFromValidPreviousEntries(t *testing.T) {
	c := populatedBNCT()
	fc := &fakeClient{desynced: []netip.Prefix{netip.MustParsePrefix("10.3.0.0/32")}}
	v := rgateverify.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ds := v.Run(fc, c)

	if len(fc.gotPairs) != 1 {
		t.Fatalf("expected 1 pair built from the valid previous entry, got %d", len(fc.gotPairs))
	}
	if fc.gotPairs[0].RGate != netip.MustParseAddr("198.51.100.1") {
		t.Errorf("rgate = %v, want 198.51.100.1", fc.gotPairs[0].RGate)
	}
	if !ds.Contains(netip.MustParsePrefix("10.3.0.0/32")) {
		t.Errorf("expected desynced prefix present in DesyncSet")
	}
}

func TestRunDegradesToEmptyOnClientError(t *testing.T) {
	c := populatedBNCT()
	fc := &fakeClient{err: errors.New("socket closed")}
	v := rgateverify.New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ds := v.Run(fc, c)
	if ds.Contains(netip.MustParsePrefix("10.3.0.0/32")) {
		t.Errorf("expected no prefixes treated as desynced on client error")
	}
}

func TestDesyncSetDuplicateInsertIsIdempotent(t *testing.T) {
	ds := rgateverify.NewDesyncSet()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := netip.MustParsePrefix("10.0.0.0/32")
	ds.Insert(log, p)
	ds.Insert(log, p)
	if !ds.Contains(p) {
		t.Fatalf("expected prefix present after duplicate insert")
	}
}
