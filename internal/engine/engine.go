// Package engine owns the current port snapshot. It is the single writer:
// scans run one at a time on a fixed interval or on request, each result
// replaces the previous snapshot wholesale, and readers only ever see a
// complete snapshot.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/artur282/PortSlayer/internal/logging"
	"github.com/artur282/PortSlayer/internal/reconcile"
	"github.com/artur282/PortSlayer/internal/scan"
	"github.com/artur282/PortSlayer/pkg/model"
)

// DefaultInterval is the scan period when none is configured.
const DefaultInterval = 10 * time.Second

type Scanner interface {
	Scan() (model.Snapshot, error)
}

type Terminator interface {
	Terminate(pid int) error
	TerminateAll(pids []int) map[int]error
	TerminatePort(port int, proto model.Protocol) error
}

// Update is published after every completed scan.
type Update struct {
	// Snapshot is the last good snapshot, nil until a scan succeeds.
	Snapshot *model.Snapshot
	// Err is the failure of the scan that produced this update. The
	// snapshot above is then the previous good one.
	Err error
	// Change compares Snapshot with the one it replaced.
	Change reconcile.Change
}

// Unavailable reports whether the lister itself is missing, as opposed to
// a transient failure.
func (u Update) Unavailable() bool {
	return errors.Is(u.Err, scan.ErrToolUnavailable)
}

type state struct {
	snap *model.Snapshot
	err  error
}

type Engine struct {
	scanner Scanner
	term    Terminator
	log     *log.Logger

	current  atomic.Pointer[state]
	busy     atomic.Bool
	interval atomic.Int64
	reset    chan struct{}

	mu   sync.Mutex
	subs map[chan Update]struct{}
}

func New(scanner Scanner, term Terminator, interval time.Duration, logger *log.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}
	e := &Engine{
		scanner: scanner,
		term:    term,
		log:     logging.OrDiscard(logger),
		reset:   make(chan struct{}, 1),
		subs:    make(map[chan Update]struct{}),
	}
	e.interval.Store(int64(interval))
	e.current.Store(&state{})
	return e
}

// Snapshot returns the last good snapshot, or nil if there is none yet.
func (e *Engine) Snapshot() *model.Snapshot {
	return e.current.Load().snap
}

// State returns the last good snapshot together with the error of the
// most recent scan.
func (e *Engine) State() Update {
	s := e.current.Load()
	return Update{Snapshot: s.snap, Err: s.err}
}

// Refresh scans now and publishes the result. If a scan is already
// running it returns immediately with ran == false; the request is not
// queued.
func (e *Engine) Refresh() (u Update, ran bool) {
	if !e.busy.CompareAndSwap(false, true) {
		e.log.Debug("scan already in progress, request dropped")
		return e.State(), false
	}
	defer e.busy.Store(false)

	prev := e.current.Load()
	snap, err := e.scanner.Scan()
	if err != nil {
		e.log.Warn("scan failed", "err", err)
		next := &state{snap: prev.snap, err: err}
		e.current.Store(next)
		u = Update{Snapshot: next.snap, Err: err}
	} else {
		next := &state{snap: &snap}
		e.current.Store(next)
		u = Update{Snapshot: next.snap, Change: reconcile.Diff(prev.snap, next.snap)}
	}

	e.publish(u)
	return u, true
}

// Trigger asks for a scan without waiting for it. It returns false when
// a scan is already running, in which case nothing is scheduled.
func (e *Engine) Trigger() bool {
	if e.busy.Load() {
		return false
	}
	go e.Refresh()
	return true
}

// Scanning reports whether a scan is in flight.
func (e *Engine) Scanning() bool {
	return e.busy.Load()
}

// Interval returns the current scan period.
func (e *Engine) Interval() time.Duration {
	return time.Duration(e.interval.Load())
}

// SetInterval changes the scan period of a running loop.
func (e *Engine) SetInterval(d time.Duration) {
	if d <= 0 || d == e.Interval() {
		return
	}
	e.interval.Store(int64(d))
	select {
	case e.reset <- struct{}{}:
	default:
	}
}

// Run scans immediately and then on every tick until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	e.Refresh()

	ticker := time.NewTicker(e.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.reset:
			ticker.Reset(e.Interval())
			e.log.Debug("scan interval changed", "interval", e.Interval())
		case <-ticker.C:
			e.Refresh()
		}
	}
}

// Subscribe returns a channel receiving every update. Slow readers only
// see the latest one. Call the returned func to unsubscribe.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	return ch, func() {
		e.mu.Lock()
		delete(e.subs, ch)
		e.mu.Unlock()
	}
}

func (e *Engine) publish(u Update) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for ch := range e.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// replace the stale pending update
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Terminate stops one process. Verifying that the port is free is left to
// the next scan.
func (e *Engine) Terminate(pid int) error {
	return e.term.Terminate(pid)
}

// TerminateAll stops each PID independently and reports per PID.
func (e *Engine) TerminateAll(pids []int) map[int]error {
	return e.term.TerminateAll(pids)
}

// TerminatePort stops the owner of a port whose PID the scan could not see.
func (e *Engine) TerminatePort(port int, proto model.Protocol) error {
	return e.term.TerminatePort(port, proto)
}
