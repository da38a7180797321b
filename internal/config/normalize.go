package config

import "strings"

// Normalize fills defaults for zero values.
// It is allowed to mutate configuration and must run after Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Scan.Interval == 0 {
		cfg.Scan.Interval = DefaultInterval
	}
	if cfg.Scan.RescanDelay == 0 {
		cfg.Scan.RescanDelay = DefaultRescanDelay
	}
	if cfg.Scan.Lister == "" {
		cfg.Scan.Lister = DefaultLister
	}

	if cfg.Terminate.GracePeriod == 0 {
		cfg.Terminate.GracePeriod = DefaultGracePeriod
	}
	if cfg.Terminate.ElevationHelper == "" {
		cfg.Terminate.ElevationHelper = DefaultHelper
	}

	if cfg.Menu.PageSize == 0 {
		cfg.Menu.PageSize = DefaultPageSize
	}
	cfg.Menu.Filter = strings.ToLower(cfg.Menu.Filter)
	if cfg.Menu.Filter == "" {
		cfg.Menu.Filter = DefaultFilter
	}
}
