package terminate

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied means neither the direct signal nor the elevation
	// helper was allowed to act, including a dismissed password prompt.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoSuchProcess means the target was already gone. Terminate and
	// TerminateAll report it as success.
	ErrNoSuchProcess = errors.New("no such process")
	// ErrUnknown covers any other failure of the signal facility.
	ErrUnknown = errors.New("unexpected termination failure")
)

// KillError describes why one target could not be terminated.
// It matches its Kind and its cause with errors.Is.
type KillError struct {
	PID  int
	Port string // set for kill-by-port requests, e.g. "8080/tcp"
	Kind error
	Err  error
}

func (e *KillError) Error() string {
	target := fmt.Sprintf("pid %d", e.PID)
	if e.Port != "" {
		target = "port " + e.Port
	}
	if e.Err == nil {
		return fmt.Sprintf("terminate %s: %v", target, e.Kind)
	}
	return fmt.Sprintf("terminate %s: %v: %v", target, e.Kind, e.Err)
}

func (e *KillError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func killErr(pid int, kind, err error) *KillError {
	return &KillError{PID: pid, Kind: kind, Err: err}
}

// Reason returns a short label for err suitable for a menu or table cell.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPermissionDenied):
		return "permission denied"
	case errors.Is(err, ErrNoSuchProcess):
		return "already gone"
	default:
		return "failed"
	}
}
