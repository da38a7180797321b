// Package menu turns a snapshot into the flat list of entries a front-end
// shows: refresh, kill all, a count header, one entry per port on the
// current page, page navigation and quit.
package menu

import (
	"fmt"
	"strings"

	"github.com/artur282/PortSlayer/pkg/model"
)

// ProtocolFilter narrows the visible ports.
type ProtocolFilter int

const (
	All ProtocolFilter = iota
	TCP
	UDP
)

var filterNames = []string{"all", "tcp", "udp"}

func (f ProtocolFilter) String() string {
	if f < All || f > UDP {
		return fmt.Sprintf("filter(%d)", int(f))
	}
	return filterNames[f]
}

// Label is the display form: All, TCP or UDP.
func (f ProtocolFilter) Label() string {
	if f == All {
		return "All"
	}
	return strings.ToUpper(f.String())
}

// Next cycles All → TCP → UDP → All.
func (f ProtocolFilter) Next() ProtocolFilter {
	return (f + 1) % (UDP + 1)
}

func (f ProtocolFilter) Match(p model.Protocol) bool {
	switch f {
	case TCP:
		return p == model.TCP
	case UDP:
		return p == model.UDP
	}
	return true
}

func ParseFilter(s string) (ProtocolFilter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return All, nil
	case "tcp":
		return TCP, nil
	case "udp":
		return UDP, nil
	}
	return All, fmt.Errorf("unknown protocol filter %q (want all, tcp or udp)", s)
}

// Filter returns the records matching f, in their original order.
func Filter(records []model.PortRecord, f ProtocolFilter) []model.PortRecord {
	if f == All {
		return records
	}
	out := make([]model.PortRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r.Protocol) {
			out = append(out, r)
		}
	}
	return out
}

// PageSizes are the sizes a user can pick from.
var PageSizes = []int{5, 10}

const DefaultPageSize = 10

// ValidPageSize reports whether n is one of PageSizes.
func ValidPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

// TotalPages is never less than one, even for an empty list.
func TotalPages(total, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Page returns the zero-based page of records, empty past the end.
func Page(records []model.PortRecord, page, pageSize int) []model.PortRecord {
	if pageSize <= 0 || page < 0 {
		return nil
	}
	start := page * pageSize
	if start >= len(records) {
		return nil
	}
	end := min(start+pageSize, len(records))
	return records[start:end]
}

// ClampPage keeps page within [0, pages).
func ClampPage(page, pages int) int {
	if page >= pages {
		page = pages - 1
	}
	return max(page, 0)
}

type Kind int

const (
	Refresh Kind = iota
	Warning
	KillAll
	Header
	Port
	Empty
	Prev
	PageIndicator
	Next
	Quit
)

var kindNames = []string{"refresh", "warning", "kill-all", "header", "port", "empty", "prev", "page", "next", "quit"}

func (k Kind) String() string {
	if k < Refresh || k > Quit {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Markers prefix port labels.
const (
	MarkerKnown   = "●"
	MarkerUnknown = "○"
)

// Entry is one menu line.
type Entry struct {
	Kind    Kind
	Label   string
	Enabled bool

	// Record is set for Port entries.
	Record model.PortRecord
	// PIDs is set for KillAll: the distinct known owners of the filtered view.
	PIDs []int
	// Target is the page Prev and Next move to.
	Target int
}

// View is the display state a front-end keeps between snapshots.
type View struct {
	Filter   ProtocolFilter
	Page     int
	PageSize int
}

// Menu is the result of Build.
type Menu struct {
	Entries []Entry
	// View is the input view with its page clamped to the available pages.
	View  View
	Total int
	Pages int
}

// Ports returns the Port entries in order.
func (m Menu) Ports() []Entry {
	var out []Entry
	for _, e := range m.Entries {
		if e.Kind == Port {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entry of kind k.
func (m Menu) Find(k Kind) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Kind == k {
			return e, true
		}
	}
	return Entry{}, false
}

// Build lays out the menu for snap under v. snap may be nil before the
// first successful scan. scanErr is the error of the most recent scan, if
// any; it is shown as a warning above the ports.
func Build(snap *model.Snapshot, v View, scanErr error) Menu {
	if !ValidPageSize(v.PageSize) {
		v.PageSize = DefaultPageSize
	}

	var records []model.PortRecord
	if snap != nil {
		records = Filter(snap.Records, v.Filter)
	}
	total := len(records)
	pages := TotalPages(total, v.PageSize)
	v.Page = ClampPage(v.Page, pages)

	m := Menu{View: v, Total: total, Pages: pages}
	add := func(e Entry) { m.Entries = append(m.Entries, e) }

	add(Entry{Kind: Refresh, Label: "Refresh", Enabled: true})

	if scanErr != nil {
		label := "Ports unavailable: " + scanErr.Error()
		if snap != nil {
			label = "Showing last good scan: " + scanErr.Error()
		}
		add(Entry{Kind: Warning, Label: label})
	}

	switch {
	case snap == nil && scanErr == nil:
		add(Entry{Kind: Empty, Label: "Scanning…"})
	case snap == nil:
	case total == 0:
		add(Entry{Kind: Empty, Label: "No open ports"})
	default:
		pids := model.UniquePIDs(records)
		add(Entry{
			Kind:    KillAll,
			Label:   fmt.Sprintf("Kill all (%s)", plural(total, "port")),
			Enabled: len(pids) > 0,
			PIDs:    pids,
		})
		add(Entry{Kind: Header, Label: header(total, v.Filter)})
		for _, r := range Page(records, v.Page, v.PageSize) {
			add(Entry{Kind: Port, Label: Label(r), Enabled: true, Record: r})
		}
	}

	if pages > 1 {
		add(Entry{Kind: Prev, Label: "◀ Previous", Enabled: v.Page > 0, Target: v.Page - 1})
		add(Entry{Kind: PageIndicator, Label: fmt.Sprintf("Page %d/%d", v.Page+1, pages)})
		add(Entry{Kind: Next, Label: "Next ▶", Enabled: v.Page+1 < pages, Target: v.Page + 1})
	}

	add(Entry{Kind: Quit, Label: "Quit", Enabled: true})
	return m
}

// Label renders a port entry, e.g. "● TCP 8080 (0.0.0.0) → node [PID 1234]".
func Label(r model.PortRecord) string {
	marker := MarkerUnknown
	if r.Known() {
		marker = MarkerKnown
	}
	return marker + " " + r.String()
}

func header(total int, f ProtocolFilter) string {
	s := plural(total, "port") + " found"
	if f != All {
		s += " (" + f.Label() + ")"
	}
	return s
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}
