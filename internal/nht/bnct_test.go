package nht_test

import (
	"net/netip"
	"testing"

	"github.com/bgpscand/bgpscand/internal/nexthop"
	"github.com/bgpscand/bgpscand/internal/nht"
)

func TestGetOrInsertThenLookupAfterSwap(t *testing.T) {
	c := nht.New()
	key := nht.KeyFor(netip.MustParseAddr("192.0.2.1"))

	entry, existed := c.GetOrInsert(key)
	if existed {
		t.Fatalf("expected fresh insert")
	}
	*entry = nht.Entry{Valid: true, Metric: 20, Nexthops: []nexthop.NextHop{
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.254")},
	}}

	c.Swap()

	got, ok := c.LookupPrevious(key)
	if !ok {
		t.Fatalf("expected entry to appear as previous generation after swap")
	}
	if got.Metric != 20 || !got.Valid {
		t.Errorf("got %+v, want metric 20 valid", got)
	}
}

func TestResetPreviousClearsGeneration(t *testing.T) {
	c := nht.New()
	key := nht.KeyFor(netip.MustParseAddr("192.0.2.1"))
	entry, _ := c.GetOrInsert(key)
	*entry = nht.Entry{Valid: true, Metric: 5}
	c.Swap()

	c.ResetPrevious()

	if _, ok := c.LookupPrevious(key); ok {
		t.Errorf("expected previous generation cleared")
	}
}

func TestDifferentDetectsPositionalChange(t *testing.T) {
	a := nht.Entry{Metric: 10, Nexthops: []nexthop.NextHop{
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.1")},
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.2")},
	}}
	b := nht.Entry{Metric: 10, Nexthops: []nexthop.NextHop{
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.2")},
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.1")},
	}}

	changed, metricChanged := nht.Different(a, b)
	if !changed {
		t.Errorf("expected positional reordering to count as changed")
	}
	if metricChanged {
		t.Errorf("expected metric_changed false when metrics are equal")
	}
}

func TestDifferentMetricIndependentOfNexthops(t *testing.T) {
	nhs := []nexthop.NextHop{{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.1")}}
	a := nht.Entry{Metric: 10, Nexthops: nhs}
	b := nht.Entry{Metric: 20, Nexthops: nhs}

	changed, metricChanged := nht.Different(a, b)
	if changed {
		t.Errorf("expected changed=false when nexthop lists are identical")
	}
	if !metricChanged {
		t.Errorf("expected metric_changed=true when metrics differ")
	}
}

func TestIdempotentAcrossIdenticalScans(t *testing.T) {
	c := nht.New()
	key := nht.KeyFor(netip.MustParseAddr("192.0.2.1"))
	fresh := nht.Entry{Valid: true, Metric: 20, Nexthops: []nexthop.NextHop{
		{Kind: nexthop.KindIPv4Gate, Gate: netip.MustParseAddr("192.0.2.254")},
	}}

	entry, _ := c.GetOrInsert(key)
	*entry = fresh
	c.Swap()

	entry2, _ := c.GetOrInsert(key)
	prev, ok := c.LookupPrevious(key)
	changed, metricChanged := false, false
	if ok {
		changed, metricChanged = nht.Different(fresh, *prev)
	}
	*entry2 = nht.Entry{Valid: fresh.Valid, Metric: fresh.Metric, Nexthops: fresh.Nexthops, Changed: changed, MetricChanged: metricChanged}

	if entry2.Changed || entry2.MetricChanged {
		t.Errorf("expected no change detected on an idempotent second scan, got %+v", entry2)
	}
}
