// Package ifwatch drives internal/conntable from kernel interface and
// address events, mirroring bgp_connected_add/bgp_connected_delete:
// loopback interfaces and the unspecified address are never added, and
// every other connected prefix feeds the on-link shortcut.
package ifwatch

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/bgpscand/bgpscand/internal/conntable"
)

// AddrUpdate is the subset of netlink.AddrUpdate fields this package
// consumes, so tests can drive Watcher without a real netlink socket.
type AddrUpdate struct {
	LinkIndex int
	NewAddr   bool // false means the address was removed
	Prefix    netip.Prefix
}

// Netlinker is the production/mock seam for the kernel calls a Watcher
// needs: an initial address dump and a subscription to subsequent
// changes, plus a loopback test for a given link index.
type Netlinker interface {
	AddrList() ([]AddrUpdate, error)
	AddrSubscribe(ctx context.Context) (<-chan AddrUpdate, error)
	IsLoopback(linkIndex int) bool
}

// Watcher keeps a ConnTable in sync with the kernel's connected
// interface addresses.
type Watcher struct {
	log *slog.Logger
	nl  Netlinker
	ct  *conntable.ConnTable
}

func New(log *slog.Logger, nl Netlinker, ct *conntable.ConnTable) *Watcher {
	return &Watcher{log: log.With("component", "ifwatch"), nl: nl, ct: ct}
}

// Run performs the initial dump into ct, then applies every subsequent
// address event until ctx is done or the subscription fails.
func (w *Watcher) Run(ctx context.Context) error {
	initial, err := w.nl.AddrList()
	if err != nil {
		return err
	}
	for _, u := range initial {
		w.apply(AddrUpdate{LinkIndex: u.LinkIndex, NewAddr: true, Prefix: u.Prefix})
	}

	updates, err := w.nl.AddrSubscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			w.apply(u)
		}
	}
}

func (w *Watcher) apply(u AddrUpdate) {
	if w.nl.IsLoopback(u.LinkIndex) {
		return
	}
	if !eligible(u.Prefix) {
		return
	}

	masked := u.Prefix.Masked()
	if u.NewAddr {
		w.ct.Add(masked)
		w.log.Debug("connected address added", "prefix", masked, "link_index", u.LinkIndex)
	} else {
		w.ct.Remove(masked)
		w.log.Debug("connected address removed", "prefix", masked, "link_index", u.LinkIndex)
	}
}

// eligible rejects the unspecified address, matching
// prefix_ipv4_any/IN6_IS_ADDR_UNSPECIFIED in bgp_connected_add; the
// loopback/link-local/zero-length rejections conntable.Add already
// applies on every insert.
func eligible(p netip.Prefix) bool {
	return p.IsValid() && !p.Addr().IsUnspecified()
}
