package ifwatch_test

import (
	"context"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/bgpscand/bgpscand/internal/conntable"
	"github.com/bgpscand/bgpscand/internal/ifwatch"
)

type fakeNetlinker struct {
	initial   []ifwatch.AddrUpdate
	updates   chan ifwatch.AddrUpdate
	loopbacks map[int]bool
}

func (f *fakeNetlinker) AddrList() ([]ifwatch.AddrUpdate, error) {
	return f.initial, nil
}

func (f *fakeNetlinker) AddrSubscribe(ctx context.Context) (<-chan ifwatch.AddrUpdate, error) {
	return f.updates, nil
}

func (f *fakeNetlinker) IsLoopback(linkIndex int) bool {
	return f.loopbacks[linkIndex]
}

func newLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitialDumpAddsEligiblePrefixes(t *testing.T) {
	nl := &fakeNetlinker{
		initial: []ifwatch.AddrUpdate{
			{LinkIndex: 2, NewAddr: true, Prefix: netip.MustParsePrefix("192.0.2.5/24")},
		},
		updates: make(chan ifwatch.AddrUpdate),
	}
	ct := conntable.New()
	w := ifwatch.New(newLog(), nl, ct)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitUntilOnLink(t, ct, netip.MustParseAddr("192.0.2.1"))
	cancel()
	<-done
}

func waitUntilOnLink(t *testing.T, ct *conntable.ConnTable, addr netip.Addr) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if ct.OnLink(addr) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s to become on-link", addr)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestLoopbackLinkIsSkipped(t *testing.T) {
	nl := &fakeNetlinker{
		initial: []ifwatch.AddrUpdate{
			{LinkIndex: 1, NewAddr: true, Prefix: netip.MustParsePrefix("127.0.0.0/8")},
		},
		updates:   make(chan ifwatch.AddrUpdate),
		loopbacks: map[int]bool{1: true},
	}
	ct := conntable.New()
	w := ifwatch.New(newLog(), nl, ct)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if ct.OnLink(netip.MustParseAddr("127.0.0.1")) {
		t.Errorf("expected loopback link's address to be rejected")
	}
	cancel()
	<-done
}

func TestSubscribedRemovalClearsConnTable(t *testing.T) {
	prefix := netip.MustParsePrefix("192.0.2.0/24")
	nl := &fakeNetlinker{
		initial: []ifwatch.AddrUpdate{{LinkIndex: 2, NewAddr: true, Prefix: prefix}},
		updates: make(chan ifwatch.AddrUpdate, 1),
	}
	ct := conntable.New()
	w := ifwatch.New(newLog(), nl, ct)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	nl.updates <- ifwatch.AddrUpdate{LinkIndex: 2, NewAddr: false, Prefix: prefix}
	waitUntilOffLink(t, ct, netip.MustParseAddr("192.0.2.1"))

	cancel()
	<-done
}

func waitUntilOffLink(t *testing.T, ct *conntable.ConnTable, addr netip.Addr) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if !ct.OnLink(addr) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s to leave the conn table", addr)
		case <-time.After(time.Millisecond):
		}
	}
}
