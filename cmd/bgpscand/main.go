// Command bgpscand runs the nexthop reachability and IGP-import oracle
// as a standalone daemon: it dials a zserv-speaking IGP daemon (zebra
// or a compatible stub), scans a demo in-memory RIB on a timer, and
// exposes scan state and scan-time controls over a unix-socket admin API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bgpscand/bgpscand/internal/adminapi"
	"github.com/bgpscand/bgpscand/internal/conntable"
	"github.com/bgpscand/bgpscand/internal/config"
	"github.com/bgpscand/bgpscand/internal/ifwatch"
	"github.com/bgpscand/bgpscand/internal/importer"
	"github.com/bgpscand/bgpscand/internal/nht"
	"github.com/bgpscand/bgpscand/internal/rib"
	"github.com/bgpscand/bgpscand/internal/scanner"
	"github.com/bgpscand/bgpscand/internal/sched"
	"github.com/bgpscand/bgpscand/internal/zclient"
)

var (
	zservAddr    = flag.String("zserv-addr", "/var/run/quagga/zserv.api", "unix socket address of the zserv peer")
	adminSock    = flag.String("admin-sock", "/var/run/bgpscand/bgpscand.sock", "path to the admin API's unix socket")
	metricsAddr  = flag.String("metrics-addr", ":9090", "listen address for the Prometheus /metrics endpoint")
	dampingFlag  = flag.Bool("damping", false, "enable route flap damping reactivation checks")
	verboseFlag  = flag.Bool("verbose", false, "enable debug logging")
	watchLinksIn = flag.Bool("watch-interfaces", true, "watch kernel interface/address changes via netlink")
)

func main() {
	flag.Parse()

	log := newLogger(*verboseFlag)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("bgpscand exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	clock := clockwork.NewRealClock()
	cfg := config.New()

	client := zclient.New(log, func(ctx context.Context) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, "unix", *zservAddr)
	})

	conn := conntable.New()
	bnctV4 := nht.New()
	bnctV6 := nht.New()

	var scanOpts []scanner.Option
	if *dampingFlag {
		scanOpts = append(scanOpts, scanner.WithDamping(true))
	}
	scanV4 := scanner.New(log, clock, rib.AFIv4, bnctV4, conn, client, scanOpts...)
	scanV6 := scanner.New(log, clock, rib.AFIv6, bnctV6, conn, client, scanOpts...)

	imp := importer.New(log, clock, client)
	timers := sched.New(clock, log, cfg.ScanInterval(), cfg.ImportInterval())

	ribV4 := rib.NewMemRIB()
	ribV6 := rib.NewMemRIB()
	staticRoutes := rib.NewMemStaticRoutes()

	snapshot := func(detail bool) []adminapi.ScanSnapshot {
		return []adminapi.ScanSnapshot{
			snapshotFor("ipv4", ribV4, detail),
			snapshotFor("ipv6", ribV6, detail),
		}
	}

	admin := adminapi.New(cfg, snapshot, adminapi.WithBaseContext(ctx), adminapi.WithSockFile(*adminSock), adminapi.WithTimers(timers))

	errCh := make(chan error, 8)

	go func() { errCh <- client.Run(ctx) }()

	go timers.RunScan(ctx, func(ctx context.Context) {
		scanV4.Scan(ribV4)
		scanV6.Scan(ribV6)
	})
	go timers.RunImport(ctx, func(ctx context.Context) { imp.Import(staticRoutes) })

	if *watchLinksIn {
		watcher := ifwatch.New(log, ifwatch.NewLinuxNetlinker(), conn)
		go func() { errCh <- watcher.Run(ctx) }()
	}

	go func() {
		log.Info("admin api: listening", "sock", *adminSock)
		errCh <- admin.ListenAndServeUnix()
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		log.Info("metrics: listening", "addr", *metricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		_ = admin.Close()
		client.Close()
		return nil
	case err := <-errCh:
		return fmt.Errorf("subsystem error: %w", err)
	}
}

func snapshotFor(afi string, m *rib.MemRIB, detail bool) adminapi.ScanSnapshot {
	s := adminapi.ScanSnapshot{AFI: afi}
	for _, ri := range m.Routes() {
		s.Entries++
		if !ri.Flags.Valid {
			continue
		}
		if detail {
			s.DetailTables = append(s.DetailTables, adminapi.ScanEntryView{
				Prefix: ri.Prefix.String(),
				Valid:  ri.Flags.Valid,
			})
		}
	}
	return s
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}))
}
