package scan

import (
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// NameResolver looks up a short process name for a PID.
type NameResolver interface {
	Name(pid int) (string, error)
}

// ProcessNames resolves names through gopsutil, which reads
// /proc/<pid>/status on Linux.
type ProcessNames struct{}

func (ProcessNames) Name(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	name, err := p.Name()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(name), nil
}
