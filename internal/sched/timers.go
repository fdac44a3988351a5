// Package sched owns the two timer handles the oracle runs on: the
// scan ticker and the import ticker. Both are driven off a single
// injected clockwork.Clock so tests can advance time deterministically
// instead of sleeping. (The reconnect event is owned by
// internal/zclient itself, which already encapsulates its own backoff
// loop — see that package's Run.)
package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timers runs two independently-configurable periodic callbacks (scan
// and import) on one clock. Interval changes cancel and re-arm the
// affected ticker without restarting the other.
type Timers struct {
	clock clockwork.Clock
	log   *slog.Logger

	scan *timer
	imp  *timer
}

type timer struct {
	mu       sync.Mutex
	interval time.Duration
	rearm    chan struct{} // closed and replaced whenever interval changes
}

func newTimer(d time.Duration) *timer {
	return &timer{interval: d, rearm: make(chan struct{})}
}

func (t *timer) set(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interval = d
	close(t.rearm)
	t.rearm = make(chan struct{})
}

func (t *timer) get() (time.Duration, chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval, t.rearm
}

func New(clock clockwork.Clock, log *slog.Logger, scanInterval, importInterval time.Duration) *Timers {
	return &Timers{
		clock: clock,
		log:   log.With("component", "sched"),
		scan:  newTimer(scanInterval),
		imp:   newTimer(importInterval),
	}
}

// SetScanInterval updates the scan interval, re-arming the scan timer
// immediately: the change takes effect on the very next wait, matching
// "cancels and re-arms" from the BGP scan-time CLI command semantics.
func (t *Timers) SetScanInterval(d time.Duration) { t.scan.set(d) }

// SetImportInterval is the import-ticker counterpart of SetScanInterval.
func (t *Timers) SetImportInterval(d time.Duration) { t.imp.set(d) }

// RunScan invokes fn once immediately and then on every scan tick
// until ctx is cancelled, re-arming its ticker whenever
// SetScanInterval changes the interval.
func (t *Timers) RunScan(ctx context.Context, fn func(context.Context)) {
	t.run(ctx, fn, t.scan)
}

// RunImport is the import-ticker counterpart of RunScan.
func (t *Timers) RunImport(ctx context.Context, fn func(context.Context)) {
	t.run(ctx, fn, t.imp)
}

func (t *Timers) run(ctx context.Context, fn func(context.Context), tm *timer) {
	fn(ctx)
	for {
		interval, rearm := tm.get()
		ticker := t.clock.NewTicker(interval)
		stop := waitOneTick(ctx, ticker, rearm)
		ticker.Stop()
		if stop {
			return
		}
		fn(ctx)
	}
}

// waitOneTick blocks until the ticker fires, its timer is re-armed
// with a new interval, or ctx is cancelled. It returns true if the
// caller should stop.
func waitOneTick(ctx context.Context, ticker clockwork.Ticker, rearm chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-ticker.Chan():
		return false
	case <-rearm:
		return false
	}
}
