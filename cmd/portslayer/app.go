//go:build linux

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/artur282/PortSlayer/internal/engine"
	"github.com/artur282/PortSlayer/internal/menu"
	"github.com/artur282/PortSlayer/internal/output"
	"github.com/artur282/PortSlayer/pkg/model"
)

// app runs the one-shot commands against a single engine.
type app struct {
	eng         *engine.Engine
	stdout      io.Writer
	stderr      io.Writer
	color       bool
	json        bool
	filter      menu.ProtocolFilter
	rescanDelay time.Duration
	sleep       func(time.Duration)
}

// scan runs one scan and returns the records visible under the filter.
func (a *app) scan() ([]model.PortRecord, *model.Snapshot, error) {
	u, _ := a.eng.Refresh()
	if u.Err != nil {
		if u.Unavailable() {
			return nil, nil, fmt.Errorf("ports unavailable: %w", u.Err)
		}
		return nil, nil, u.Err
	}
	return menu.Filter(u.Snapshot.Records, a.filter), u.Snapshot, nil
}

func (a *app) list(ports []int) int {
	recs, snap, err := a.scan()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	view := &model.Snapshot{Records: recs, CapturedAt: snap.CapturedAt}
	if len(ports) > 0 {
		view.Records = onPorts(recs, ports)
	}

	if a.json {
		if err := output.RenderJSON(a.stdout, view, a.filter); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return exitFailure
		}
		return exitOK
	}
	output.RenderList(a.stdout, view, a.filter, a.color)
	return exitOK
}

func onPorts(recs []model.PortRecord, ports []int) []model.PortRecord {
	want := make(map[int]bool, len(ports))
	for _, p := range ports {
		want[p] = true
	}
	var out []model.PortRecord
	for _, r := range recs {
		if want[r.Port] {
			out = append(out, r)
		}
	}
	return out
}

func (a *app) killPIDs(pids []int) int {
	results := output.PIDResults(a.eng.TerminateAll(pids))
	code := a.report(results)

	stopped := make(map[int]bool)
	for _, r := range results {
		if !r.Failed() {
			stopped[r.PID] = true
		}
	}
	a.verify(func(r model.PortRecord) bool { return stopped[r.PID] })
	return code
}

func (a *app) killAll() int {
	recs, _, err := a.scan()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}
	pids := model.UniquePIDs(recs)
	if len(pids) == 0 {
		fmt.Fprintln(a.stdout, "No processes with a known owner to terminate")
		return exitOK
	}
	return a.killPIDs(pids)
}

func (a *app) killPort(t portTarget) int {
	recs, _, err := a.scanAll()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return exitFailure
	}

	matches := func(r model.PortRecord) bool {
		return r.Port == t.port && (t.proto == nil || r.Protocol == *t.proto)
	}
	var hits []model.PortRecord
	for _, r := range recs {
		if matches(r) {
			hits = append(hits, r)
		}
	}
	if len(hits) == 0 {
		fmt.Fprintf(a.stdout, "Port %s is already free\n", t)
		return exitOK
	}

	var results []output.KillResult
	if pids := model.UniquePIDs(hits); len(pids) > 0 {
		results = output.PIDResults(a.eng.TerminateAll(pids))
	}
	// Records without an owner need the port-based fallback.
	seen := make(map[model.Protocol]bool)
	for _, r := range hits {
		if r.Known() || seen[r.Protocol] {
			continue
		}
		seen[r.Protocol] = true
		target := fmt.Sprintf("port %d/%s", r.Port, r.Protocol)
		results = append(results, output.Result(target, a.eng.TerminatePort(r.Port, r.Protocol)))
	}

	code := a.report(results)
	a.verify(matches)
	return code
}

// scanAll is scan without the protocol filter; --kill-port names its own.
func (a *app) scanAll() ([]model.PortRecord, *model.Snapshot, error) {
	saved := a.filter
	a.filter = menu.All
	defer func() { a.filter = saved }()
	return a.scan()
}

func (a *app) report(results []output.KillResult) int {
	var failures int
	if a.json {
		if err := output.RenderKillJSON(a.stdout, results); err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return exitFailure
		}
		failures = output.Failures(results)
	} else {
		failures = output.RenderKillReport(a.stdout, results, a.color)
	}
	if failures > 0 {
		return exitPartial
	}
	return exitOK
}

// verify waits for the kernel to release sockets, rescans and warns about
// ports that are still held.
func (a *app) verify(held func(model.PortRecord) bool) {
	sleep := a.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(a.rescanDelay)

	u, _ := a.eng.Refresh()
	if u.Err != nil || u.Snapshot == nil {
		return
	}
	for _, r := range u.Snapshot.Records {
		if held(r) {
			fmt.Fprintf(a.stderr, "Warning: %s is still listening\n", output.Clean(r.String()))
		}
	}
}
