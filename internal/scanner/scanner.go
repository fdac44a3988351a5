// Package scanner implements the periodic reachability engine: per
// scan interval and per address family, it rotates the nexthop cache
// generation, verifies IPv4 recursive gateways, walks the BGP RIB,
// resolves each route's nexthop (via cache, on-link shortcut, or a
// fresh zebra lookup), and folds the result back into route flags and
// aggregate bookkeeping.
package scanner

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/google/uuid"

	"github.com/bgpscand/bgpscand/internal/conntable"
	"github.com/bgpscand/bgpscand/internal/metrics"
	"github.com/bgpscand/bgpscand/internal/nht"
	"github.com/bgpscand/bgpscand/internal/rgateverify"
	"github.com/bgpscand/bgpscand/internal/rib"
	"github.com/bgpscand/bgpscand/internal/zserv"
)

// ResolveClient is the subset of zclient.Client a Scanner needs.
type ResolveClient interface {
	ResolveV4(addr netip.Addr) (*zserv.LookupResponse, error)
	ResolveV6(addr netip.Addr) (*zserv.LookupResponse, error)
	rgateverify.VerifyClient
}

// Clock abstracts time.Now for duration metrics, matching how the
// rest of the oracle takes an injected clockwork.Clock; only Now is
// needed here.
type Clock interface {
	Now() time.Time
}

// Scanner runs one address family's scan pass.
type Scanner struct {
	log    *slog.Logger
	afi    rib.AFI
	clock  Clock
	bnct   *nht.BNCT
	conn   *conntable.ConnTable
	client ResolveClient
	verify *rgateverify.Verifier // nil for IPv6: desync verification is IPv4-only
	damp   bool
}

type Option func(*Scanner)

func WithDamping(enabled bool) Option {
	return func(s *Scanner) { s.damp = enabled }
}

func New(log *slog.Logger, clock Clock, afi rib.AFI, bnct *nht.BNCT, conn *conntable.ConnTable, client ResolveClient, opts ...Option) *Scanner {
	s := &Scanner{
		log:    log.With("component", "scanner", "afi", afi.String()),
		afi:    afi,
		clock:  clock,
		bnct:   bnct,
		conn:   conn,
		client: client,
	}
	if afi == rib.AFIv4 {
		s.verify = rgateverify.New(s.log)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one full pass over rb: rotate generations, verify IPv4
// rgates, walk the RIB, fold results, and reclaim the previous
// generation.
func (s *Scanner) Scan(rb rib.RIB) {
	start := s.clock.Now()
	scanID := uuid.New()
	log := s.log.With("scan_id", scanID.String())

	// 1. Rotate generations.
	s.bnct.Swap()

	// 2. Peer housekeeping: the maximum-prefix overflow check runs for
	// every (afi, safi) the peer has negotiated, not just unicast.
	for _, peer := range rb.Peers() {
		for _, safi := range []rib.SAFI{rib.SAFIUnicast, rib.SAFIMulticast, rib.SAFIMplsVPN} {
			if _, configured := peer.MaxPrefixes[rib.SAFIKey{AFI: s.afi, SAFI: safi}]; configured {
				rb.CheckMaxPrefix(peer, safi)
			}
		}
	}

	// 3. Desync verification (IPv4 only).
	var desync *rgateverify.DesyncSet
	if s.verify != nil {
		desync = s.verify.Run(s.client, s.bnct)
		metrics.DesyncPrefixes.WithLabelValues(s.afi.String()).Set(float64(desync.Len()))
	}

	// 4 & 5. RIB walk + fold + process.
	var entries int
	rb.Walk(func(bi *rib.RouteInfo) bool {
		entries++
		s.processRoute(log, rb, bi, desync)
		rb.Process(bi.Prefix)
		return true
	})
	metrics.CacheEntries.WithLabelValues(s.afi.String()).Set(float64(entries))

	// 6. Reclaim.
	s.bnct.ResetPrevious()

	metrics.ScanDuration.WithLabelValues(s.afi.String()).Observe(s.clock.Now().Sub(start).Seconds())
}

func (s *Scanner) processRoute(log *slog.Logger, rb rib.RIB, bi *rib.RouteInfo, desync *rgateverify.DesyncSet) {
	if desync != nil && desync.Contains(bi.Prefix) {
		bi.Flags.IGPChanged = true
		return
	}

	var valid, changed, metricChanged bool

	switch {
	case bi.Peer.SingleHop():
		valid = s.conn.OnLink(bi.Nexthop)
	case s.afi == rib.AFIv6 && trivialOnLinkV6(bi.Nexthop, bi.NexthopLinkLocal):
		valid = true
	default:
		valid, changed, metricChanged = s.resolve(bi.Nexthop)
	}

	if changed {
		bi.Flags.IGPChanged = true
	} else {
		bi.Flags.IGPChanged = false
	}
	_ = metricChanged // exposed for callers/metrics that want it; no flag of its own

	if valid != bi.Flags.Valid {
		bi.Flags.Valid = valid
		if valid {
			rb.AggregateIncrement(bi.Prefix)
			metrics.AggregateIncrements.WithLabelValues(s.afi.String()).Inc()
		} else {
			rb.AggregateDecrement(bi.Prefix)
			metrics.AggregateDecrements.WithLabelValues(s.afi.String()).Inc()
		}
	}

	if s.damp && bi.Damping != nil {
		if bi.Damping.Scan() {
			rb.AggregateIncrement(bi.Prefix)
			metrics.AggregateIncrements.WithLabelValues(s.afi.String()).Inc()
		}
	}

	log.Debug("route scanned", "prefix", bi.Prefix, "valid", valid, "igp_changed", bi.Flags.IGPChanged)
}

// resolve performs the cached-resolution branch of the scan: a BNCT
// hit is reused as-is; a miss drives a fresh zebra lookup, compares it
// against the previous generation, and installs the result (fresh or
// an invalid sentinel) into the active BNCT.
func (s *Scanner) resolve(addr netip.Addr) (valid, changed, metricChanged bool) {
	key := nht.KeyFor(addr)

	entry, wasPresent := s.bnct.GetOrInsert(key)
	if wasPresent {
		return entry.Valid, entry.Changed, entry.MetricChanged
	}

	var resp *zserv.LookupResponse
	var err error
	if s.afi == rib.AFIv6 {
		resp, err = s.client.ResolveV6(addr)
	} else {
		resp, err = s.client.ResolveV4(addr)
	}
	if err != nil {
		s.log.Warn("resolve failed, installing invalid sentinel", "addr", addr, "error", err)
	}

	if resp == nil {
		*entry = nht.Entry{Valid: false}
		return false, false, false
	}

	fresh := nht.Entry{Valid: true, Metric: resp.Metric, Nexthops: resp.Nexthops}
	if prev, ok := s.bnct.LookupPrevious(key); ok {
		fresh.Changed, fresh.MetricChanged = nht.Different(fresh, *prev)
	}
	*entry = fresh
	return fresh.Valid, fresh.Changed, fresh.MetricChanged
}

// trivialOnLinkV6 implements the two IPv6 on-link shortcuts that let
// the Scanner skip a zebra lookup entirely: a link-local nexthop is
// always on-link, and so is the RFC 2545 global+link-local pair a
// multihop IPv6 route's MP_REACH_NLRI attribute can carry (mirrors the
// 32-byte-payload case in the wire source's nexthop-length check).
func trivialOnLinkV6(addr, linkLocal netip.Addr) bool {
	if addr.Is6() && addr.IsLinkLocalUnicast() {
		return true
	}
	return linkLocal.IsValid() && linkLocal.Is6() && linkLocal.IsLinkLocalUnicast()
}
