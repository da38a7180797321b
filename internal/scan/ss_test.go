package scan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/artur282/PortSlayer/internal/logging"
	"github.com/artur282/PortSlayer/pkg/model"
)

func TestParseSSLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want model.PortRecord
		ok   bool
	}{
		{
			name: "owner present",
			line: `LISTEN 0 128 0.0.0.0:8080 0.0.0.0:* users:(("node",pid=12345,fd=19))`,
			want: model.PortRecord{Protocol: model.TCP, Port: 8080, Address: "0.0.0.0", PID: 12345, ProcessName: "node"},
			ok:   true,
		},
		{
			name: "owner hidden",
			line: "LISTEN 0 4096       *:8069        *:*",
			want: model.PortRecord{Protocol: model.TCP, Port: 8069, Address: "0.0.0.0", ProcessName: model.UnknownProcess},
			ok:   true,
		},
		{
			name: "netid column udp",
			line: `udp   UNCONN 0      0      127.0.0.53%lo:53      0.0.0.0:*    users:(("systemd-resolve",pid=611,fd=13))`,
			want: model.PortRecord{Protocol: model.UDP, Port: 53, Address: "127.0.0.53", PID: 611, ProcessName: "systemd-resolve"},
			ok:   true,
		},
		{
			name: "netid column tcp ipv6",
			line: `tcp   LISTEN 0      511    [::1]:5173   [::]:*    users:(("node",pid=88,fd=24),("node",pid=89,fd=24))`,
			want: model.PortRecord{Protocol: model.TCP, Port: 5173, Address: "::1", PID: 88, ProcessName: "node"},
			ok:   true,
		},
		{
			name: "unconn without netid",
			line: "UNCONN 0 0 [fe80::1]%eth0:546 [::]:*",
			want: model.PortRecord{Protocol: model.UDP, Port: 546, Address: "fe80::1", ProcessName: model.UnknownProcess},
			ok:   true,
		},
		{
			name: "link local zone after bracket",
			line: `udp UNCONN 0 0 [fe80::a00:27ff:fe4e:66a1]%enp0s3:546 [::]:* users:(("dhclient",pid=900,fd=6))`,
			want: model.PortRecord{Protocol: model.UDP, Port: 546, Address: "fe80::a00:27ff:fe4e:66a1", PID: 900, ProcessName: "dhclient"},
			ok:   true,
		},
		{
			name: "name with space",
			line: `LISTEN 0 5 127.0.0.1:9000 0.0.0.0:* users:(("Web Content",pid=7,fd=3))`,
			want: model.PortRecord{Protocol: model.TCP, Port: 9000, Address: "127.0.0.1", PID: 7, ProcessName: "Web Content"},
			ok:   true,
		},
		{name: "non numeric port", line: "LISTEN 0 5 *:abc *:*"},
		{name: "port zero", line: "LISTEN 0 5 0.0.0.0:0 *:*"},
		{name: "port too large", line: "LISTEN 0 5 0.0.0.0:70000 *:*"},
		{name: "empty", line: "   "},
		{name: "header", line: "State Recv-Q Send-Q Local Address:Port Peer Address:Port Process"},
		{name: "unix socket", line: "u_str LISTEN 0 4096 /run/systemd/private 14 * 0"},
		{name: "truncated", line: "LISTEN 0 5"},
		{name: "no colon", line: "LISTEN 0 5 localhost *:*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseSSLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseSSLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("parseSSLine(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestParseSSSkipsBadLineKeepsLater(t *testing.T) {
	out := "LISTEN 0 5 *:abc *:*\n" +
		`LISTEN 0 5 *:3000 *:* users:(("node",pid=12345,fd=20))` + "\n"

	var buf bytes.Buffer
	recs := parseSS(out, logging.New(logging.Debug, &buf))
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %v", recs)
	}
	if recs[0].Port != 3000 || recs[0].PID != 12345 {
		t.Fatalf("unexpected record %+v", recs[0])
	}
	if logged := buf.String(); strings.Count(logged, "skipping unparsable ss line") != 1 || !strings.Contains(logged, "*:abc") {
		t.Fatalf("skipped line not logged once:\n%s", logged)
	}
}

func TestCleanHost(t *testing.T) {
	tests := map[string]string{
		"[::1]":          "::1",
		"127.0.0.53%lo":  "127.0.0.53",
		"*":              "0.0.0.0",
		"0.0.0.0":        "0.0.0.0",
		"[::]":           "::",
		"[fe80::1]%eth0": "fe80::1",
	}
	for in, want := range tests {
		if got := cleanHost(in); got != want {
			t.Errorf("cleanHost(%q) = %q, want %q", in, got, want)
		}
	}
}

func FuzzParseSSLine(f *testing.F) {
	f.Add(`LISTEN 0 5 *:3000 *:* users:(("node",pid=12345,fd=20))`)
	f.Add("udp UNCONN 0 0 [::]:5353 [::]:*")
	f.Add("LISTEN 0 5 *:abc *:*")

	f.Fuzz(func(t *testing.T, line string) {
		r, ok := parseSSLine(line)
		if !ok {
			return
		}
		if r.Port < 1 || r.Port > 65535 {
			t.Fatalf("parseSSLine(%q) accepted port %d", line, r.Port)
		}
		if r.PID < 0 {
			t.Fatalf("parseSSLine(%q) produced negative pid", line)
		}
		if r.ProcessName == "" {
			t.Fatalf("parseSSLine(%q) produced empty name", line)
		}
	})
}
