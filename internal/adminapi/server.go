// Package adminapi exposes the oracle's vty-equivalent surface as a
// JSON-over-unix-socket HTTP API: scan-time get/set and a show-scan
// snapshot, served the way doublezerod exposes /status and /config.
package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/bgpscand/bgpscand/internal/config"
	"github.com/bgpscand/bgpscand/internal/sched"
)

// ScanSnapshot is what `show ip bgp scan [detail]` reports: aggregate
// counters plus, when Detail is requested, one entry per cached prefix.
type ScanSnapshot struct {
	AFI          string          `json:"afi"`
	Entries      int             `json:"entries"`
	Desynced     int             `json:"desynced"`
	LastScan     string          `json:"last_scan,omitempty"`
	DetailTables []ScanEntryView `json:"detail,omitempty"`
}

type ScanEntryView struct {
	Prefix        string `json:"prefix"`
	Valid         bool   `json:"valid"`
	Metric        uint32 `json:"metric"`
	Changed       bool   `json:"changed"`
	MetricChanged bool   `json:"metric_changed"`
}

// SnapshotProvider supplies the current scan state; the daemon wires
// this to its scanner/BNCT instances, tests wire in a canned value.
type SnapshotProvider func(detail bool) []ScanSnapshot

// Server is a functional-options HTTP server over a unix socket,
// mirroring doublezerod's internal/api.ApiServer.
type Server struct {
	*http.Server
	sockFile string
	cfg      *config.ScanConfig
	timers   *sched.Timers
	snapshot SnapshotProvider
}

type Option func(*Server)

func WithSockFile(path string) Option {
	return func(s *Server) { s.sockFile = path }
}

func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.BaseContext = func(net.Listener) context.Context { return ctx } }
}

// WithTimers wires the scan-time endpoints to re-arm the scheduler's
// scan ticker on change, matching the vty command's "cancels and
// re-arms" semantics; omit it to validate and store only.
func WithTimers(t *sched.Timers) Option {
	return func(s *Server) { s.timers = t }
}

func New(cfg *config.ScanConfig, snapshot SnapshotProvider, opts ...Option) *Server {
	s := &Server{Server: &http.Server{}, cfg: cfg, snapshot: snapshot}
	for _, o := range opts {
		o(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /scan", s.serveShowScan)
	mux.HandleFunc("GET /scan-time", s.serveGetScanTime)
	mux.HandleFunc("PUT /scan-time", s.servePutScanTime)
	mux.HandleFunc("DELETE /scan-time", s.serveResetScanTime)
	s.Handler = mux

	return s
}

// ListenAndServeUnix binds the configured socket path and serves until
// the server is closed; the socket is created world-writable like
// doublezerod's, then unlinked on return.
func (s *Server) ListenAndServeUnix() error {
	lis, err := net.Listen("unix", s.sockFile)
	if err != nil {
		return fmt.Errorf("adminapi: listen: %w", err)
	}
	defer lis.Close()

	return s.Serve(lis)
}

func (s *Server) serveShowScan(w http.ResponseWriter, r *http.Request) {
	detail := r.URL.Query().Get("detail") != ""
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot(detail)); err != nil {
		http.Error(w, fmt.Sprintf(`{"status":"error","description":"%v"}`, err), http.StatusInternalServerError)
	}
}

func (s *Server) serveGetScanTime(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int{
		"scan_interval_seconds":   int(s.cfg.ScanInterval().Seconds()),
		"import_interval_seconds": int(s.cfg.ImportInterval().Seconds()),
	})
}

type setScanTimeRequest struct {
	Seconds int `json:"seconds"`
}

func (s *Server) servePutScanTime(w http.ResponseWriter, r *http.Request) {
	var req setScanTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"error","description":"malformed request: %v"}`, err)))
		return
	}

	changed, err := s.cfg.SetScanInterval(req.Seconds)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"error","description":"%v"}`, err)))
		return
	}
	if changed && s.timers != nil {
		s.timers.SetScanInterval(s.cfg.ScanInterval())
	}

	_ = json.NewEncoder(w).Encode(map[string]bool{"changed": changed})
}

func (s *Server) serveResetScanTime(w http.ResponseWriter, r *http.Request) {
	changed, err := s.cfg.ResetScanInterval()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"error","description":"%v"}`, err)))
		return
	}
	if changed && s.timers != nil {
		s.timers.SetScanInterval(s.cfg.ScanInterval())
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"changed": changed})
}
