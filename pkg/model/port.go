package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Protocol is the transport of a listening socket. TCP sorts before UDP.
type Protocol int

const (
	TCP Protocol = iota
	UDP
)

// UnknownProcess is the name given to sockets whose owner could not be resolved.
const UnknownProcess = "unknown"

func (p Protocol) String() string {
	switch p {
	case TCP:
		return "tcp"
	case UDP:
		return "udp"
	}
	return fmt.Sprintf("proto(%d)", int(p))
}

func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(b []byte) error {
	v, err := ParseProtocol(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProtocol accepts "tcp"/"udp" in any case, including the
// tcp6/udp6 spellings used by /proc/net.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp", "tcp6":
		return TCP, nil
	case "udp", "udp6":
		return UDP, nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

// PortRecord is one observed listening socket and its owner.
type PortRecord struct {
	Protocol    Protocol `json:"protocol"`
	Port        int      `json:"port"`
	Address     string   `json:"address,omitempty"`
	PID         int      `json:"pid,omitempty"`
	ProcessName string   `json:"process"`
}

// Known reports whether the owning process was resolved.
func (r PortRecord) Known() bool {
	return r.PID > 0
}

func (r PortRecord) String() string {
	addr := r.Address
	if addr == "" {
		addr = "*"
	}
	proto := strings.ToUpper(r.Protocol.String())
	if r.Known() {
		return fmt.Sprintf("%s %d (%s) → %s [PID %d]", proto, r.Port, addr, r.ProcessName, r.PID)
	}
	return fmt.Sprintf("%s %d (%s) → %s", proto, r.Port, addr, r.ProcessName)
}

// Snapshot is the deduplicated, sorted result of one scan cycle.
// It is never modified after it is produced; a newer scan replaces it.
type Snapshot struct {
	Records    []PortRecord `json:"ports"`
	CapturedAt time.Time    `json:"captured_at"`
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// PIDs returns the distinct known owner PIDs in ascending order.
func (s *Snapshot) PIDs() []int {
	if s == nil {
		return nil
	}
	return UniquePIDs(s.Records)
}

// UniquePIDs collects the distinct positive PIDs of records, ascending.
func UniquePIDs(records []PortRecord) []int {
	seen := make(map[int]bool)
	var pids []int
	for _, r := range records {
		if r.PID <= 0 || seen[r.PID] {
			continue
		}
		seen[r.PID] = true
		pids = append(pids, r.PID)
	}
	sort.Ints(pids)
	return pids
}
