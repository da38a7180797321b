package scan

import (
	"bufio"
	"encoding/hex"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/artur282/PortSlayer/pkg/model"
)

const (
	stateListen = "0A" // TCP_LISTEN
	stateClose  = "07" // TCP_CLOSE, what an unconnected UDP socket reports
)

type procNetTable struct {
	file  string
	proto model.Protocol
	ipv6  bool
}

var procNetTables = []procNetTable{
	{"tcp", model.TCP, false},
	{"tcp6", model.TCP, true},
	{"udp", model.UDP, false},
	{"udp6", model.UDP, true},
}

// readProcNet lists listening sockets straight from the kernel tables under
// root (normally /proc). It sees sockets ss hides from unprivileged users,
// such as ports published by container runtimes. Owners are resolved
// through /proc/<pid>/fd where readable and left at PID 0 otherwise.
func readProcNet(root string) ([]model.PortRecord, error) {
	owners := socketOwners(root)

	var recs []model.PortRecord
	var firstErr error
	for _, t := range procNetTables {
		f, err := os.Open(filepath.Join(root, "net", t.file))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		recs = append(recs, parseProcNet(f, t.proto, t.ipv6, owners)...)
		f.Close()
	}
	if len(recs) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return recs, nil
}

func parseProcNet(r io.Reader, proto model.Protocol, ipv6 bool, owners map[string]int) []model.PortRecord {
	var recs []model.PortRecord

	scanner := bufio.NewScanner(r)
	scanner.Scan() // header

	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}

		state := fields[3]
		if proto == model.TCP && state != stateListen {
			continue
		}
		if proto == model.UDP && state != stateClose {
			continue
		}

		addr, port, ok := decodeAddr(fields[1], ipv6)
		if !ok || port == 0 {
			continue
		}

		rec := model.PortRecord{
			Protocol:    proto,
			Port:        port,
			Address:     addr,
			ProcessName: model.UnknownProcess,
		}
		if inode := fields[9]; inode != "0" {
			rec.PID = owners[inode]
		}
		recs = append(recs, rec)
	}
	return recs
}

// decodeAddr turns "0100007F:1538" into ("127.0.0.1", 5432). The kernel
// prints addresses as host-order 32-bit words.
func decodeAddr(raw string, ipv6 bool) (string, int, bool) {
	ipHex, portHex, ok := strings.Cut(raw, ":")
	if !ok {
		return "", 0, false
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", 0, false
	}
	b, err := hex.DecodeString(ipHex)
	if err != nil {
		return "", 0, false
	}

	switch {
	case !ipv6 && len(b) == 4:
		return net.IPv4(b[3], b[2], b[1], b[0]).String(), int(port), true
	case ipv6 && len(b) == 16:
		ip := make(net.IP, 16)
		for i := 0; i < 4; i++ {
			ip[i*4+0] = b[i*4+3]
			ip[i*4+1] = b[i*4+2]
			ip[i*4+2] = b[i*4+1]
			ip[i*4+3] = b[i*4+0]
		}
		return ip.String(), int(port), true
	}
	return "", 0, false
}

// socketOwners maps socket inodes to the PID holding them. A socket shared
// with forked children is attributed to the lowest PID. Processes whose fd
// directory cannot be read are skipped.
func socketOwners(root string) map[string]int {
	owners := make(map[string]int)

	entries, err := os.ReadDir(root)
	if err != nil {
		return owners
	}
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}

		fdDir := filepath.Join(root, e.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if inode, ok := socketInode(link); ok {
				if prev, taken := owners[inode]; !taken || pid < prev {
					owners[inode] = pid
				}
			}
		}
	}
	return owners
}

func socketInode(link string) (string, bool) {
	if !strings.HasPrefix(link, "socket:[") || !strings.HasSuffix(link, "]") {
		return "", false
	}
	inode := link[len("socket:[") : len(link)-1]
	if inode == "" {
		return "", false
	}
	return inode, true
}
