// Package metrics holds the Prometheus instrumentation for the scan
// and import engines: cycle durations, cache sizes, desync counts, and
// lookup-socket state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bgpscand_scan_duration_seconds",
			Help:    "Duration of one Scanner pass over a RIB",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~65s
		},
		[]string{"afi"},
	)

	ImportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bgpscand_import_duration_seconds",
			Help:    "Duration of one Importer pass over static routes",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"afi"},
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgpscand_nht_cache_entries",
			Help: "Active-generation BNCT entry count",
		},
		[]string{"afi"},
	)

	DesyncPrefixes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bgpscand_desync_prefixes",
			Help: "Number of prefixes reported desynchronized by the last rgate-verify pass",
		},
		[]string{"afi"},
	)

	AggregateIncrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpscand_aggregate_increments_total",
			Help: "Total aggregate_increment calls issued by the scanner",
		},
		[]string{"afi"},
	)

	AggregateDecrements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpscand_aggregate_decrements_total",
			Help: "Total aggregate_decrement calls issued by the scanner",
		},
		[]string{"afi"},
	)

	ZebraConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bgpscand_zebra_connected",
			Help: "1 if the zserv lookup socket is connected, 0 otherwise",
		},
	)

	StaticRouteUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bgpscand_static_route_updates_total",
			Help: "Total static_update/static_withdraw calls issued by the importer",
		},
		[]string{"action"},
	)
)
