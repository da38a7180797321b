package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/artur282/PortSlayer/pkg/model"
)

const tcpTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 00000000:0BB8 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 22881 1 0000000000000000 100 0 0 10 0
   1: 0100007F:1538 00000000:0000 0A 00000000:00000000 00:00000000 00000000   124        0 31337 1 0000000000000000 100 0 0 10 0
   2: 0100007F:A2C4 0100007F:1538 01 00000000:00000000 00:00000000 00000000  1000        0 44444 1 0000000000000000 20 4 30 10 -1
   3: garbage
`

const udp6Table = `  sl  local_address                         remote_address                        st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode ref pointer drops
  100: 00000000000000000000000000000000:14E9 00000000000000000000000000000000:0000 07 00000000:00000000 00:00000000 00000000   107        0 5555 2 0000000000000000 0
  101: 00000000000000000000000001000000:0277 00000000000000000000000000000000:0000 07 00000000:00000000 00:00000000 00000000     0        0 0 2 0000000000000000 0
`

func TestParseProcNetTCP(t *testing.T) {
	owners := map[string]int{"22881": 4242}
	recs := parseProcNet(strings.NewReader(tcpTable), model.TCP, false, owners)

	if len(recs) != 2 {
		t.Fatalf("expected 2 listening sockets, got %v", recs)
	}
	want0 := model.PortRecord{Protocol: model.TCP, Port: 3000, Address: "0.0.0.0", PID: 4242, ProcessName: model.UnknownProcess}
	want1 := model.PortRecord{Protocol: model.TCP, Port: 5432, Address: "127.0.0.1", ProcessName: model.UnknownProcess}
	if recs[0] != want0 || recs[1] != want1 {
		t.Fatalf("got %+v, want %+v and %+v", recs, want0, want1)
	}
}

func TestParseProcNetUDP6(t *testing.T) {
	recs := parseProcNet(strings.NewReader(udp6Table), model.UDP, true, nil)
	if len(recs) != 2 {
		t.Fatalf("expected 2 sockets, got %v", recs)
	}
	if recs[0].Port != 5353 || recs[0].Address != "::" {
		t.Fatalf("unexpected first record %+v", recs[0])
	}
	if recs[1].Port != 631 || recs[1].Address != "::1" {
		t.Fatalf("unexpected second record %+v", recs[1])
	}
}

func TestDecodeAddr(t *testing.T) {
	tests := []struct {
		raw  string
		ipv6 bool
		addr string
		port int
		ok   bool
	}{
		{"00000000:0BB8", false, "0.0.0.0", 3000, true},
		{"0100007F:1538", false, "127.0.0.1", 5432, true},
		{"0100007F", false, "", 0, false},
		{"ZZ00007F:1538", false, "", 0, false},
		{"0100007F:1538", true, "", 0, false},
	}
	for _, tt := range tests {
		addr, port, ok := decodeAddr(tt.raw, tt.ipv6)
		if ok != tt.ok || addr != tt.addr || port != tt.port {
			t.Errorf("decodeAddr(%q, %v) = %q, %d, %v", tt.raw, tt.ipv6, addr, port, ok)
		}
	}
}

func TestSocketInode(t *testing.T) {
	if got, ok := socketInode("socket:[22881]"); !ok || got != "22881" {
		t.Fatalf("socketInode = %q, %v", got, ok)
	}
	for _, link := range []string{"pipe:[123]", "anon_inode:[eventfd]", "socket:[]", "/dev/null"} {
		if _, ok := socketInode(link); ok {
			t.Errorf("socketInode(%q) should fail", link)
		}
	}
}

func TestReadProcNetFromTree(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "net", "tcp"), tcpTable)
	mustWrite(t, filepath.Join(root, "net", "udp6"), udp6Table)

	// two processes share the socket; the lower PID is the listener
	for _, pid := range []string{"900", "1200"} {
		fd := filepath.Join(root, pid, "fd")
		if err := os.MkdirAll(fd, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.Symlink("socket:[22881]", filepath.Join(fd, "3")); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink("pipe:[1]", filepath.Join(root, "900", "fd", "4")); err != nil {
		t.Fatal(err)
	}

	recs, err := readProcNet(root)
	if err != nil {
		t.Fatalf("readProcNet: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("expected 4 records, got %v", recs)
	}
	if recs[0].Port != 3000 || recs[0].PID != 900 {
		t.Fatalf("expected port 3000 owned by 900, got %+v", recs[0])
	}
}

func TestReadProcNetMissingTree(t *testing.T) {
	if _, err := readProcNet(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing tables")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
