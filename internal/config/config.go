// Package config reads the optional YAML settings file.
//
// Load parses, Validate checks without mutating, Normalize fills defaults
// and must only run after Validate.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Scan      ScanConfig      `yaml:"scan"`
	Terminate TerminateConfig `yaml:"terminate"`
	Menu      MenuConfig      `yaml:"menu"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// ---- SCAN ----

type ScanConfig struct {
	Interval    time.Duration `yaml:"interval"`
	RescanDelay time.Duration `yaml:"rescan_delay"`
	Lister      string        `yaml:"lister"`
	Sudo        bool          `yaml:"sudo"`
	// ProcNet is a pointer so an absent key keeps the default (on).
	ProcNet *bool `yaml:"proc_net"`
}

// ---- TERMINATE ----

type TerminateConfig struct {
	GracePeriod     time.Duration `yaml:"grace_period"`
	ElevationHelper string        `yaml:"elevation_helper"`
}

// ---- MENU ----

type MenuConfig struct {
	PageSize int    `yaml:"page_size"`
	Filter   string `yaml:"filter"`
}

// ---- NOTIFY ----

type NotifyConfig struct {
	Enabled bool         `yaml:"enabled"`
	Events  NotifyEvents `yaml:"events"`
}

type NotifyEvents struct {
	PortOpened *bool `yaml:"port_opened"`
	PortClosed *bool `yaml:"port_closed"`
	KillFailed *bool `yaml:"kill_failed"`
}

const (
	DefaultInterval    = 10 * time.Second
	DefaultRescanDelay = 500 * time.Millisecond
	DefaultGracePeriod = 2 * time.Second
	DefaultLister      = "ss"
	DefaultHelper      = "pkexec"
	DefaultPageSize    = 10
	DefaultFilter      = "all"
)

// Default returns a fully normalized configuration.
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Path returns the default location, $XDG_CONFIG_HOME/portslayer/config.yaml.
func Path() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "portslayer", "config.yaml")
}

// Load reads path and returns a validated, normalized configuration.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, validates and normalizes it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	Normalize(&cfg)
	return &cfg, nil
}

// ProcNetEnabled reports the effective proc_net setting.
func (c *Config) ProcNetEnabled() bool {
	return c.Scan.ProcNet == nil || *c.Scan.ProcNet
}

// Wants reports whether notifications are on for an event.
func (e NotifyEvents) Wants(event string) bool {
	var v *bool
	switch event {
	case "port_opened":
		v = e.PortOpened
	case "port_closed":
		v = e.PortClosed
	case "kill_failed":
		v = e.KillFailed
	default:
		return false
	}
	return v == nil || *v
}
