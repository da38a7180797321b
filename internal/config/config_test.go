package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Scan.Interval != 10*time.Second || cfg.Scan.RescanDelay != 500*time.Millisecond {
		t.Fatalf("unexpected scan defaults %+v", cfg.Scan)
	}
	if cfg.Scan.Lister != "ss" || cfg.Terminate.ElevationHelper != "pkexec" {
		t.Fatalf("unexpected program defaults %+v %+v", cfg.Scan, cfg.Terminate)
	}
	if cfg.Menu.PageSize != 10 || cfg.Menu.Filter != "all" {
		t.Fatalf("unexpected menu defaults %+v", cfg.Menu)
	}
	if !cfg.ProcNetEnabled() || cfg.Notify.Enabled {
		t.Fatalf("proc_net should default on and notify off")
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Interval != DefaultInterval {
		t.Fatalf("missing file should give defaults, got %+v", cfg.Scan)
	}
}

func TestParseFull(t *testing.T) {
	data := `
scan:
  interval: 3s
  rescan_delay: 1s
  lister: /usr/sbin/ss
  sudo: true
  proc_net: false
terminate:
  grace_period: 250ms
  elevation_helper: sudo
menu:
  page_size: 5
  filter: UDP
notify:
  enabled: true
  events:
    port_closed: false
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Scan.Interval != 3*time.Second || cfg.Scan.RescanDelay != time.Second || !cfg.Scan.Sudo {
		t.Fatalf("scan = %+v", cfg.Scan)
	}
	if cfg.ProcNetEnabled() {
		t.Fatalf("proc_net: false ignored")
	}
	if cfg.Terminate.GracePeriod != 250*time.Millisecond || cfg.Terminate.ElevationHelper != "sudo" {
		t.Fatalf("terminate = %+v", cfg.Terminate)
	}
	if cfg.Menu.PageSize != 5 || cfg.Menu.Filter != "udp" {
		t.Fatalf("menu = %+v", cfg.Menu)
	}
	ev := cfg.Notify.Events
	if !cfg.Notify.Enabled || !ev.Wants("port_opened") || ev.Wants("port_closed") || !ev.Wants("kill_failed") {
		t.Fatalf("notify = %+v", cfg.Notify)
	}
	if ev.Wants("bogus") {
		t.Fatalf("unknown events are never wanted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"short interval", "scan: {interval: 100ms}", "scan.interval must be at least 1s"},
		{"negative delay", "scan: {rescan_delay: -1s}", "scan.rescan_delay"},
		{"lister with args", "scan: {lister: 'ss -a'}", "scan.lister"},
		{"negative grace", "terminate: {grace_period: -2s}", "terminate.grace_period"},
		{"helper with args", "terminate: {elevation_helper: 'sudo -A'}", "terminate.elevation_helper"},
		{"page size", "menu: {page_size: 7}", "menu.page_size must be 5 or 10"},
		{"filter", "menu: {filter: sctp}", "menu.filter"},
		{"bad yaml", "scan: [", "parse config"},
		{"bad duration", "scan: {interval: soon}", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := &Config{Menu: MenuConfig{Filter: "TCP"}}
	if err := Validate(cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Menu.Filter != "TCP" || cfg.Scan.Interval != 0 {
		t.Fatalf("Validate mutated config: %+v", cfg)
	}
	if Validate(nil) == nil {
		t.Fatalf("nil config should fail")
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("menu: {page_size: 5}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Menu.PageSize != 5 || cfg.Scan.Interval != DefaultInterval {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("menu: {page_size: 3}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("error should name the file, got %v", err)
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("scan: {interval: 10s}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Watch(ctx, path, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	// an invalid write is skipped, the next valid one arrives
	if err := os.WriteFile(path, []byte("menu: {page_size: 3}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("scan: {interval: 30s}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-ch:
			if cfg.Scan.Interval == 30*time.Second {
				cancel()
				for range ch {
				}
				return
			}
		case <-deadline:
			t.Fatalf("no reload seen")
		}
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portslayer", "config.yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := Watch(ctx, path, nil)
	if err != nil {
		t.Fatalf("Watch with no config directory: %v", err)
	}

	if err := os.WriteFile(path, []byte("menu: {page_size: 5}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// the create event may load the still empty file first
	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-ch:
			if cfg.Menu.PageSize == 5 {
				cancel()
				for range ch {
				}
				return
			}
		case <-deadline:
			t.Fatalf("config created after startup was not seen")
		}
	}
}
