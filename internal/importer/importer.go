// Package importer implements the periodic static-route reconciliation
// loop: for every configured static BGP route it asks zebra whether
// the route's prefix is present in the IGP RIB (when import-check is
// enabled for IPv4 unicast) and drives static_update/static_withdraw
// through the surrounding BGP layer when the outcome changed.
package importer

import (
	"log/slog"
	"net/netip"
	"time"

	"github.com/bgpscand/bgpscand/internal/metrics"
	"github.com/bgpscand/bgpscand/internal/rib"
	"github.com/bgpscand/bgpscand/internal/zclient"
)

// ImportClient is the subset of zclient.Client an Importer needs.
type ImportClient interface {
	ImportCheckV4(prefixLen uint8, addr netip.Addr) (zclient.ImportResult, error)
}

type Clock interface {
	Now() time.Time
}

type Importer struct {
	log    *slog.Logger
	clock  Clock
	client ImportClient
}

func New(log *slog.Logger, clock Clock, client ImportClient) *Importer {
	return &Importer{log: log.With("component", "importer"), clock: clock, client: client}
}

// Import runs one pass over every route in routes.
func (imp *Importer) Import(routes rib.StaticRoutes) {
	start := imp.clock.Now()
	var afi rib.AFI

	routes.Walk(func(route *rib.StaticRoute) {
		afi = route.AFI
		if route.SAFI == rib.SAFIMplsVPN {
			return
		}
		if route.Backdoor {
			return
		}

		prevValid, prevMetric, prevNexthop := route.Valid, route.Metric, route.Nexthop

		if route.ImportCheck && route.AFI == rib.AFIv4 && route.SAFI == rib.SAFIUnicast {
			res, err := imp.client.ImportCheckV4(prefixLen(route.Prefix), route.Prefix.Addr())
			if err != nil {
				imp.log.Warn("import check failed, leaving route unchanged this cycle", "prefix", route.Prefix, "error", err)
				return
			}
			route.Valid, route.Metric, route.Nexthop = res.Active, res.Metric, res.Nexthop
		} else {
			route.Valid, route.Metric, route.Nexthop = true, 0, netip.IPv4Unspecified()
		}

		switch {
		case route.Valid && !prevValid:
			routes.StaticUpdate(route)
			metrics.StaticRouteUpdates.WithLabelValues("update").Inc()
		case !route.Valid && prevValid:
			routes.StaticWithdraw(route)
			metrics.StaticRouteUpdates.WithLabelValues("withdraw").Inc()
		case route.Valid && (route.Metric != prevMetric || route.Nexthop != prevNexthop || route.HasRouteMap):
			routes.StaticUpdate(route)
			metrics.StaticRouteUpdates.WithLabelValues("update").Inc()
		}
	})

	metrics.ImportDuration.WithLabelValues(afi.String()).Observe(imp.clock.Now().Sub(start).Seconds())
}

func prefixLen(p netip.Prefix) uint8 {
	return uint8(p.Bits())
}
