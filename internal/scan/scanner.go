// Package scan lists the host's listening sockets and their owners by
// running ss, optionally topped up from the /proc/net tables.
package scan

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/artur282/PortSlayer/internal/command"
	"github.com/artur282/PortSlayer/internal/logging"
	"github.com/artur282/PortSlayer/internal/reconcile"
	"github.com/artur282/PortSlayer/pkg/model"
)

var (
	// ErrToolUnavailable means the socket lister could not be started.
	ErrToolUnavailable = errors.New("socket lister unavailable")
	// ErrToolError means the lister exited non-zero without usable output.
	ErrToolError = errors.New("socket lister failed")
)

// Options configures a Scanner. Zero values pick the defaults.
type Options struct {
	// Lister is the ss binary, "ss" by default.
	Lister string
	// Sudo tries "sudo -n <lister>" before the unprivileged call so that
	// other users' sockets come with owners.
	Sudo bool
	// ProcNet adds sockets found in <ProcRoot>/net/{tcp,tcp6,udp,udp6}.
	ProcNet  bool
	ProcRoot string

	Runner command.Runner
	Names  NameResolver
	Logger *log.Logger
	Now    func() time.Time
}

// Scanner produces one Snapshot per call. It holds no state between calls.
type Scanner struct {
	lister   string
	sudo     bool
	procNet  bool
	procRoot string
	runner   command.Runner
	names    NameResolver
	log      *log.Logger
	now      func() time.Time
}

func New(opts Options) *Scanner {
	s := &Scanner{
		lister:   opts.Lister,
		sudo:     opts.Sudo,
		procNet:  opts.ProcNet,
		procRoot: opts.ProcRoot,
		runner:   opts.Runner,
		names:    opts.Names,
		log:      logging.OrDiscard(opts.Logger),
		now:      opts.Now,
	}
	if s.lister == "" {
		s.lister = "ss"
	}
	if s.procRoot == "" {
		s.procRoot = "/proc"
	}
	if s.runner == nil {
		s.runner = command.Exec{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Scan lists sockets, resolves missing names and reconciles the result.
func (s *Scanner) Scan() (model.Snapshot, error) {
	raw, err := s.Raw()
	if err != nil {
		return model.Snapshot{}, err
	}
	snap := reconcile.Reconcile(raw)
	snap.CapturedAt = s.now()
	s.log.Debug("scan complete", "raw", len(raw), "ports", snap.Len())
	return snap, nil
}

// Raw returns the unreconciled records in discovery order: ss first, then
// the /proc/net supplement.
func (s *Scanner) Raw() ([]model.PortRecord, error) {
	recs, err := s.list()
	if err != nil {
		return nil, err
	}

	if s.procNet {
		extra, err := readProcNet(s.procRoot)
		if err != nil {
			s.log.Debug("proc net tables unreadable", "root", s.procRoot, "err", err)
		}
		recs = append(recs, extra...)
	}

	s.resolveNames(recs)
	return recs, nil
}

func (s *Scanner) list() ([]model.PortRecord, error) {
	if s.sudo {
		res, err := s.runner.Run("sudo", append([]string{"-n", s.lister}, listerArgs...)...)
		if err == nil && res.Success() {
			return parseSS(string(res.Stdout), s.log), nil
		}
		s.log.Warn("sudo -n ss failed, listing without privileges; some owners will be hidden")
	}

	res, err := s.runner.Run(s.lister, listerArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, s.lister, err)
	}

	recs := parseSS(string(res.Stdout), s.log)
	if !res.Success() {
		if len(recs) == 0 {
			return nil, fmt.Errorf("%w: %s exited with status %d: %s",
				ErrToolError, s.lister, res.ExitCode, res.StderrText())
		}
		s.log.Warn("socket lister exited non-zero, using partial output",
			"status", res.ExitCode, "records", len(recs))
	}
	return recs, nil
}

// resolveNames fills in names for records that have an owner PID but no
// name, as /proc/net records always do.
func (s *Scanner) resolveNames(recs []model.PortRecord) {
	if s.names == nil {
		return
	}
	cache := make(map[int]string)
	for i := range recs {
		r := &recs[i]
		if !r.Known() || (r.ProcessName != "" && r.ProcessName != model.UnknownProcess) {
			continue
		}
		name, ok := cache[r.PID]
		if !ok {
			n, err := s.names.Name(r.PID)
			if err != nil || n == "" {
				s.log.Debug("process name unresolved", "pid", r.PID, "err", err)
				n = model.UnknownProcess
			}
			cache[r.PID] = n
			name = n
		}
		r.ProcessName = name
	}
}
