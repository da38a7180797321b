// Package terminate stops the processes that own listening ports.
//
// A target first gets SIGTERM from the invoking user, then SIGKILL once
// the grace period runs out. If the kernel refuses with EPERM the request
// is repeated exactly once through an elevation helper (pkexec), which may
// show a password prompt and blocks until the user answers.
package terminate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/artur282/PortSlayer/internal/command"
	"github.com/artur282/PortSlayer/internal/logging"
	"github.com/artur282/PortSlayer/pkg/model"
)

// pkexec exit statuses for a dismissed dialog and a refused authorization.
const (
	exitAuthDismissed = 126
	exitAuthRefused   = 127
)

// Signaler delivers a signal to a PID. Signal 0 probes for existence.
type Signaler interface {
	Signal(pid int, sig syscall.Signal) error
}

// Kernel signals through kill(2).
type Kernel struct{}

func (Kernel) Signal(pid int, sig syscall.Signal) error {
	return unix.Kill(pid, sig)
}

type Options struct {
	// Helper is the elevation program, "pkexec" by default.
	Helper string
	// Grace is how long a process gets to exit after SIGTERM.
	Grace time.Duration
	// Poll is the liveness check interval within Grace.
	Poll time.Duration

	Signaler Signaler
	Runner   command.Runner
	Logger   *log.Logger
	Sleep    func(time.Duration)
}

type Terminator struct {
	helper string
	grace  time.Duration
	poll   time.Duration
	sig    Signaler
	runner command.Runner
	log    *log.Logger
	sleep  func(time.Duration)
}

func New(opts Options) *Terminator {
	t := &Terminator{
		helper: opts.Helper,
		grace:  opts.Grace,
		poll:   opts.Poll,
		sig:    opts.Signaler,
		runner: opts.Runner,
		log:    logging.OrDiscard(opts.Logger),
		sleep:  opts.Sleep,
	}
	if t.helper == "" {
		t.helper = "pkexec"
	}
	if t.grace < 0 {
		t.grace = 0
	}
	if t.poll <= 0 {
		t.poll = 100 * time.Millisecond
	}
	if t.sig == nil {
		t.sig = Kernel{}
	}
	if t.runner == nil {
		t.runner = command.Exec{}
	}
	if t.sleep == nil {
		t.sleep = time.Sleep
	}
	return t
}

// Terminate stops pid. A process that is already gone counts as stopped.
func (t *Terminator) Terminate(pid int) error {
	err := t.terminate(pid)
	if errors.Is(err, ErrNoSuchProcess) {
		t.log.Info("process already gone", "pid", pid)
		return nil
	}
	if err != nil {
		t.log.Error("terminate failed", "pid", pid, "err", err)
		return err
	}
	t.log.Info("process terminated", "pid", pid)
	return nil
}

// TerminateAll stops every PID independently, in ascending order, and
// returns one result per distinct PID. A failure never stops the batch.
func (t *Terminator) TerminateAll(pids []int) map[int]error {
	unique := make(map[int]bool, len(pids))
	for _, pid := range pids {
		unique[pid] = true
	}
	order := make([]int, 0, len(unique))
	for pid := range unique {
		order = append(order, pid)
	}
	sort.Ints(order)

	results := make(map[int]error, len(order))
	for _, pid := range order {
		results[pid] = t.Terminate(pid)
	}
	return results
}

func (t *Terminator) terminate(pid int) error {
	if pid <= 0 {
		return killErr(pid, ErrUnknown, fmt.Errorf("invalid PID %d", pid))
	}

	err := t.direct(pid)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return killErr(pid, ErrNoSuchProcess, err)
	case errors.Is(err, unix.EPERM):
		t.log.Warn("signal refused, asking for elevated privileges", "pid", pid, "helper", t.helper)
		return t.elevated(pid)
	default:
		return killErr(pid, ErrUnknown, err)
	}
}

// direct sends SIGTERM, waits up to the grace period and follows up with
// SIGKILL if the process is still there.
func (t *Terminator) direct(pid int) error {
	if err := t.sig.Signal(pid, unix.SIGTERM); err != nil {
		return err
	}
	for waited := time.Duration(0); waited < t.grace; waited += t.poll {
		if !t.alive(pid) {
			return nil
		}
		t.sleep(t.poll)
	}
	if !t.alive(pid) {
		return nil
	}

	t.log.Debug("grace period over, sending SIGKILL", "pid", pid)
	err := t.sig.Signal(pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}

func (t *Terminator) alive(pid int) bool {
	err := t.sig.Signal(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// elevated runs "<helper> kill -s KILL <pid>". The user is prompted once,
// so the graceful step is skipped here.
func (t *Terminator) elevated(pid int) error {
	res, err := t.runner.Run(t.helper, "kill", "-s", "KILL", strconv.Itoa(pid))
	if err != nil {
		return killErr(pid, ErrPermissionDenied,
			fmt.Errorf("elevation helper %s unavailable: %w", t.helper, err))
	}
	if res.Success() {
		t.log.Info("terminated with elevated privileges", "pid", pid)
		return nil
	}
	return killErr(pid, classifyHelperExit(res), helperFailure(t.helper, res))
}

// TerminatePort kills whatever holds port/proto through the elevation
// helper and fuser. It serves sockets whose owner the scan could not see.
func (t *Terminator) TerminatePort(port int, proto model.Protocol) error {
	target := fmt.Sprintf("%d/%s", port, proto)
	if port < 1 || port > 65535 {
		return &KillError{Port: target, Kind: ErrUnknown, Err: fmt.Errorf("invalid port %d", port)}
	}

	t.log.Info("killing port owner through elevation helper", "port", target, "helper", t.helper)
	res, err := t.runner.Run(t.helper, "fuser", "-k", target)
	if err != nil {
		return &KillError{Port: target, Kind: ErrPermissionDenied,
			Err: fmt.Errorf("elevation helper %s unavailable: %w", t.helper, err)}
	}
	if res.Success() {
		return nil
	}

	kind := classifyHelperExit(res)
	// fuser exits 1 with nothing on stderr when no process uses the port
	if res.ExitCode == 1 && res.StderrText() == "" {
		kind = ErrNoSuchProcess
	}
	if kind == ErrNoSuchProcess {
		t.log.Info("port already free", "port", target)
		return nil
	}
	return &KillError{Port: target, Kind: kind, Err: helperFailure(t.helper, res)}
}

func classifyHelperExit(res command.Result) error {
	switch {
	case res.ExitCode == exitAuthDismissed || res.ExitCode == exitAuthRefused:
		return ErrPermissionDenied
	case strings.Contains(strings.ToLower(res.StderrText()), "no such process"):
		return ErrNoSuchProcess
	case strings.Contains(strings.ToLower(res.StderrText()), "operation not permitted"):
		return ErrPermissionDenied
	}
	return ErrUnknown
}

func helperFailure(helper string, res command.Result) error {
	if msg := res.StderrText(); msg != "" {
		return fmt.Errorf("%s exited with status %d: %s", helper, res.ExitCode, msg)
	}
	return fmt.Errorf("%s exited with status %d", helper, res.ExitCode)
}
