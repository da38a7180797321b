// Package output renders snapshots and kill results for the one-shot CLI
// and the interactive export.
package output

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// printer writes to w, cleaning every string-like argument with Clean.
// Values of type styled are trusted and written as-is.
type printer struct {
	w     io.Writer
	color bool
}

type styled string

func newPrinter(w io.Writer, color bool) printer {
	return printer{w: w, color: color}
}

func (p printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, cleanArgs(args)...)
}

func (p printer) println(args ...any) {
	fmt.Fprintln(p.w, cleanArgs(args)...)
}

// paint applies s when colour is on.
func (p printer) paint(s lipgloss.Style, text string) styled {
	if !p.color {
		return styled(Clean(text))
	}
	return styled(s.Render(Clean(text)))
}

func cleanArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case styled:
			out[i] = string(v)
		case string:
			out[i] = Clean(v)
		case []byte:
			out[i] = Clean(string(v))
		case error:
			out[i] = Clean(v.Error())
		case fmt.Stringer:
			out[i] = Clean(v.String())
		default:
			out[i] = a
		}
	}
	return out
}

var (
	styleHeader  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("57"))
	styleKnown   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	styleUnknown = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	styleFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)
