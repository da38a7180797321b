package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks configuration correctness.
// It performs declarative validation only and does not mutate cfg.
// Zero values are allowed; Normalize replaces them with defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- scan ----

	if cfg.Scan.Interval < 0 {
		return fmt.Errorf("scan.interval must not be negative, got %s", cfg.Scan.Interval)
	}
	if cfg.Scan.Interval != 0 && cfg.Scan.Interval < time.Second {
		return fmt.Errorf("scan.interval must be at least 1s, got %s", cfg.Scan.Interval)
	}
	if cfg.Scan.RescanDelay < 0 {
		return fmt.Errorf("scan.rescan_delay must not be negative, got %s", cfg.Scan.RescanDelay)
	}
	if strings.ContainsAny(cfg.Scan.Lister, " \t") {
		return fmt.Errorf("scan.lister must be a program name or path, got %q", cfg.Scan.Lister)
	}

	// ---- terminate ----

	if cfg.Terminate.GracePeriod < 0 {
		return fmt.Errorf("terminate.grace_period must not be negative, got %s", cfg.Terminate.GracePeriod)
	}
	if strings.ContainsAny(cfg.Terminate.ElevationHelper, " \t") {
		return fmt.Errorf("terminate.elevation_helper must be a program name or path, got %q", cfg.Terminate.ElevationHelper)
	}

	// ---- menu ----

	if n := cfg.Menu.PageSize; n != 0 && n != 5 && n != 10 {
		return fmt.Errorf("menu.page_size must be 5 or 10, got %d", n)
	}
	switch strings.ToLower(cfg.Menu.Filter) {
	case "", "all", "tcp", "udp":
	default:
		return fmt.Errorf("menu.filter must be all, tcp or udp, got %q", cfg.Menu.Filter)
	}

	return nil
}
