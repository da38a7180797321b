package output

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/artur282/PortSlayer/internal/terminate"
)

// KillResult is the outcome for one target: a PID or a port/proto pair.
type KillResult struct {
	Target string `json:"target"`
	PID    int    `json:"pid,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	err    error
}

func (r KillResult) Failed() bool { return r.err != nil }

// PIDResults orders per-PID results by PID.
func PIDResults(results map[int]error) []KillResult {
	pids := make([]int, 0, len(results))
	for pid := range results {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	out := make([]KillResult, 0, len(pids))
	for _, pid := range pids {
		r := Result("pid "+strconv.Itoa(pid), results[pid])
		r.PID = pid
		out = append(out, r)
	}
	return out
}

// Result builds a KillResult for any target.
func Result(target string, err error) KillResult {
	r := KillResult{Target: target, Status: terminate.Reason(err), err: err}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Failures counts failed results.
func Failures(results []KillResult) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// RenderKillReport prints one line per target and returns the number of
// failures.
func RenderKillReport(w io.Writer, results []KillResult, color bool) int {
	p := newPrinter(w, color)
	for _, r := range results {
		if !r.Failed() {
			p.printf("%s  %s\n", r.Target, p.paint(styleOK, r.Status))
			continue
		}
		p.printf("%s  %s  %s\n", r.Target, p.paint(styleFail, r.Status), r.err)
	}
	return Failures(results)
}

// RenderKillJSON writes the results as a JSON array.
func RenderKillJSON(w io.Writer, results []KillResult) error {
	if results == nil {
		results = []KillResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
