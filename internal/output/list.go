package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/artur282/PortSlayer/internal/menu"
	"github.com/artur282/PortSlayer/pkg/model"
)

var listHeaders = []string{"PROTO", "PORT", "ADDRESS", "PID", "PROCESS"}

func row(r model.PortRecord) []string {
	pid := "-"
	if r.Known() {
		pid = strconv.Itoa(r.PID)
	}
	addr := r.Address
	if addr == "" {
		addr = "*"
	}
	return []string{
		strings.ToUpper(r.Protocol.String()),
		strconv.Itoa(r.Port),
		Clean(addr),
		pid,
		Clean(r.ProcessName),
	}
}

// RenderList prints the ports of snap that pass f as an aligned table.
func RenderList(w io.Writer, snap *model.Snapshot, f menu.ProtocolFilter, color bool) {
	p := newPrinter(w, color)

	var recs []model.PortRecord
	if snap != nil {
		recs = menu.Filter(snap.Records, f)
	}
	if len(recs) == 0 {
		p.println(p.paint(styleDim, "No open ports"))
		return
	}

	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = row(r)
	}

	t := table.New().
		Headers(listHeaders...).
		Rows(rows...).
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(r, c int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(2)
			if !color {
				return s
			}
			if r == table.HeaderRow {
				return s.Inherit(styleHeader)
			}
			return s
		})

	fmt.Fprintln(w, t.Render())

	summary := fmt.Sprintf("%d port(s)", len(recs))
	if f != menu.All {
		summary += " (" + f.Label() + ")"
	}
	if unknown := countUnknown(recs); unknown > 0 {
		summary += fmt.Sprintf(", %d with unknown owner", unknown)
	}
	p.println(p.paint(styleDim, summary))
}

func countUnknown(recs []model.PortRecord) int {
	n := 0
	for _, r := range recs {
		if !r.Known() {
			n++
		}
	}
	return n
}

type jsonList struct {
	CapturedAt time.Time          `json:"captured_at"`
	Filter     string             `json:"filter"`
	Ports      []model.PortRecord `json:"ports"`
}

// RenderJSON writes the filtered snapshot as one JSON document.
func RenderJSON(w io.Writer, snap *model.Snapshot, f menu.ProtocolFilter) error {
	doc := jsonList{Filter: f.String(), Ports: []model.PortRecord{}}
	if snap != nil {
		doc.CapturedAt = snap.CapturedAt
		if recs := menu.Filter(snap.Records, f); len(recs) > 0 {
			doc.Ports = recs
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
