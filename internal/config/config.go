// Package config holds the mutable scan-time/import-time knobs of the
// oracle: a validated interval pair that internal/sched re-arms on
// change, and a config-writer that reproduces the vty's non-default-only
// emission rule.
package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	DefaultScanInterval   = 60 * time.Second
	DefaultImportInterval = 15 * time.Second

	MinScanInterval = 5 * time.Second
	MaxScanInterval = 60 * time.Second
)

// ScanConfig is the mutex-guarded interval pair; safe for concurrent
// use by the admin API and the scheduler.
type ScanConfig struct {
	mu             sync.RWMutex
	scanInterval   time.Duration
	importInterval time.Duration
}

func New() *ScanConfig {
	return &ScanConfig{
		scanInterval:   DefaultScanInterval,
		importInterval: DefaultImportInterval,
	}
}

func (c *ScanConfig) ScanInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scanInterval
}

func (c *ScanConfig) ImportInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.importInterval
}

// SetScanInterval validates seconds against the 5-60s vty range and
// installs it, returning whether the value actually changed so callers
// (the admin API, the scheduler) only re-arm on a real change.
func (c *ScanConfig) SetScanInterval(seconds int) (bool, error) {
	d := time.Duration(seconds) * time.Second
	if d < MinScanInterval || d > MaxScanInterval {
		return false, fmt.Errorf("scan-time %ds out of range [%d-%d]", seconds, int(MinScanInterval.Seconds()), int(MaxScanInterval.Seconds()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scanInterval == d {
		return false, nil
	}
	c.scanInterval = d
	return true, nil
}

// ResetScanInterval restores the default, matching `no bgp scan-time`.
func (c *ScanConfig) ResetScanInterval() (bool, error) {
	return c.SetScanInterval(int(DefaultScanInterval.Seconds()))
}

// WriteConfig appends a `bgp scan-time <n>` line only when the current
// value differs from the default, mirroring bgp_config_write_scan_time.
func (c *ScanConfig) WriteConfig() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.scanInterval == DefaultScanInterval {
		return nil
	}
	return []string{fmt.Sprintf("bgp scan-time %d", int(c.scanInterval.Seconds()))}
}
