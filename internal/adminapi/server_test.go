package adminapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/bgpscand/bgpscand/internal/config"
	"github.com/bgpscand/bgpscand/internal/sched"
)

func noopLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestServeShowScan(t *testing.T) {
	t.Parallel()

	snapshot := func(detail bool) []ScanSnapshot {
		return []ScanSnapshot{{AFI: "ipv4", Entries: 3, Desynced: 1}}
	}
	s := New(config.New(), snapshot)

	req := httptest.NewRequest(http.MethodGet, "/scan", nil)
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got []ScanSnapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Equal(t, []ScanSnapshot{{AFI: "ipv4", Entries: 3, Desynced: 1}}, got)
}

func TestGetScanTime(t *testing.T) {
	t.Parallel()

	s := New(config.New(), func(bool) []ScanSnapshot { return nil })

	req := httptest.NewRequest(http.MethodGet, "/scan-time", nil)
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got map[string]int
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	require.Equal(t, int(config.DefaultScanInterval.Seconds()), got["scan_interval_seconds"])
}

func TestPutScanTimeRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	s := New(config.New(), func(bool) []ScanSnapshot { return nil })

	body, _ := json.Marshal(setScanTimeRequest{Seconds: 4})
	req := httptest.NewRequest(http.MethodPut, "/scan-time", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPutScanTimeRearmsTimers(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	clock := clockwork.NewFakeClock()
	timers := sched.New(clock, noopLog(), cfg.ScanInterval(), cfg.ImportInterval())
	s := New(cfg, func(bool) []ScanSnapshot { return nil }, WithTimers(timers))

	body, _ := json.Marshal(setScanTimeRequest{Seconds: 10})
	req := httptest.NewRequest(http.MethodPut, "/scan-time", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 10*time.Second, cfg.ScanInterval())
}

func TestDeleteScanTimeResetsDefault(t *testing.T) {
	t.Parallel()

	cfg := config.New()
	_, err := cfg.SetScanInterval(30)
	require.NoError(t, err)

	s := New(cfg, func(bool) []ScanSnapshot { return nil })

	req := httptest.NewRequest(http.MethodDelete, "/scan-time", nil)
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, config.DefaultScanInterval, cfg.ScanInterval())
}
