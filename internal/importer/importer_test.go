package importer_test

import (
	"errors"
	"io"
	"log/slog"
	"net/netip"
	"testing"
	"time"

	"github.com/bgpscand/bgpscand/internal/importer"
	"github.com/bgpscand/bgpscand/internal/rib"
	"github.com/bgpscand/bgpscand/internal/zclient"
)

type fakeClock struct{ t time.Time }

func (f fakeClock) Now() time.Time { return f.t }

type fakeImportClient struct {
	result zclient.ImportResult
	err    error
}

func (f *fakeImportClient) ImportCheckV4(prefixLen uint8, addr netip.Addr) (zclient.ImportResult, error) {
	return f.result, f.err
}

func newLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestImportCheckDisabledForcesValidZeroMetric(t *testing.T) {
	client := &fakeImportClient{}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if !route.Valid || route.Metric != 0 || route.Nexthop != netip.IPv4Unspecified() {
		t.Errorf("expected forced valid/zero-metric/unspecified-nexthop, got %+v", route)
	}
	if len(routes.Updated) != 1 {
		t.Errorf("expected one static_update call, got %d", len(routes.Updated))
	}
}

func TestImportCheckEnabledUsesClientResult(t *testing.T) {
	client := &fakeImportClient{result: zclient.ImportResult{
		Active: true, Metric: 5, Nexthop: netip.MustParseAddr("192.0.2.1"),
	}}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast, ImportCheck: true}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if !route.Valid || route.Metric != 5 || route.Nexthop != netip.MustParseAddr("192.0.2.1") {
		t.Errorf("expected route fields taken from import check result, got %+v", route)
	}
	if len(routes.Updated) != 1 {
		t.Errorf("expected one static_update call, got %d", len(routes.Updated))
	}
}

func TestImportCheckErrorLeavesRouteUnchanged(t *testing.T) {
	client := &fakeImportClient{err: errors.New("socket down")}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{
		Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast,
		ImportCheck: true, Valid: true, Metric: 7, Nexthop: netip.MustParseAddr("192.0.2.9"),
	}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if !route.Valid || route.Metric != 7 || route.Nexthop != netip.MustParseAddr("192.0.2.9") {
		t.Errorf("expected route untouched on client error, got %+v", route)
	}
	if len(routes.Updated) != 0 || len(routes.Withdraw) != 0 {
		t.Errorf("expected no static_update/static_withdraw calls on client error")
	}
}

func TestBackdoorRouteSkipped(t *testing.T) {
	client := &fakeImportClient{}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast, Backdoor: true}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if route.Valid {
		t.Errorf("expected backdoor route left untouched")
	}
	if len(routes.Updated) != 0 || len(routes.Withdraw) != 0 {
		t.Errorf("expected no update/withdraw calls for a backdoor route")
	}
}

func TestMplsVPNRouteSkipped(t *testing.T) {
	client := &fakeImportClient{}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIMplsVPN}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if route.Valid {
		t.Errorf("expected MPLS-VPN route left untouched")
	}
	if len(routes.Updated) != 0 {
		t.Errorf("expected no static_update call for an MPLS-VPN route")
	}
}

func TestValidToInvalidTriggersWithdraw(t *testing.T) {
	client := &fakeImportClient{result: zclient.ImportResult{Active: false}}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{
		Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast,
		ImportCheck: true, Valid: true, Metric: 3, Nexthop: netip.MustParseAddr("192.0.2.5"),
	}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if route.Valid {
		t.Errorf("expected route to become invalid")
	}
	if len(routes.Withdraw) != 1 {
		t.Errorf("expected one static_withdraw call, got %d", len(routes.Withdraw))
	}
	if len(routes.Updated) != 0 {
		t.Errorf("expected no static_update call on a valid-to-invalid transition")
	}
}

func TestStillValidWithMetricChangeRefreshes(t *testing.T) {
	client := &fakeImportClient{result: zclient.ImportResult{Active: true, Metric: 99, Nexthop: netip.MustParseAddr("192.0.2.5")}}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{
		Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast,
		ImportCheck: true, Valid: true, Metric: 3, Nexthop: netip.MustParseAddr("192.0.2.5"),
	}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if len(routes.Updated) != 1 {
		t.Errorf("expected one static_update call on metric change, got %d", len(routes.Updated))
	}
}

func TestStillValidUnchangedWithoutRouteMapIsNoOp(t *testing.T) {
	client := &fakeImportClient{result: zclient.ImportResult{Active: true, Metric: 3, Nexthop: netip.MustParseAddr("192.0.2.5")}}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{
		Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast,
		ImportCheck: true, Valid: true, Metric: 3, Nexthop: netip.MustParseAddr("192.0.2.5"),
	}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if len(routes.Updated) != 0 || len(routes.Withdraw) != 0 {
		t.Errorf("expected no update/withdraw when nothing changed and no route-map is configured")
	}
}

func TestStillValidWithRouteMapAlwaysRefreshes(t *testing.T) {
	client := &fakeImportClient{result: zclient.ImportResult{Active: true, Metric: 3, Nexthop: netip.MustParseAddr("192.0.2.5")}}
	imp := importer.New(newLog(), fakeClock{}, client)

	routes := rib.NewMemStaticRoutes()
	route := &rib.StaticRoute{
		Prefix: netip.MustParsePrefix("10.0.0.0/24"), AFI: rib.AFIv4, SAFI: rib.SAFIUnicast,
		ImportCheck: true, HasRouteMap: true, Valid: true, Metric: 3, Nexthop: netip.MustParseAddr("192.0.2.5"),
	}
	routes.Routes = append(routes.Routes, route)

	imp.Import(routes)

	if len(routes.Updated) != 1 {
		t.Errorf("expected one static_update call every cycle when a route-map is configured, got %d", len(routes.Updated))
	}
}
