package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artur282/PortSlayer/internal/menu"
	"github.com/artur282/PortSlayer/pkg/model"
)

// Markdown renders the ports of the current view as a Markdown document.
func Markdown(snap *model.Snapshot, f menu.ProtocolFilter, now time.Time) string {
	var b strings.Builder
	b.WriteString("# PortSlayer snapshot - " + now.Format(time.RFC1123) + "\n\n")

	var recs []model.PortRecord
	if snap != nil {
		recs = menu.Filter(snap.Records, f)
		if !snap.CapturedAt.IsZero() {
			b.WriteString("Scanned at " + snap.CapturedAt.Format(time.RFC1123) + "\n\n")
		}
	}
	fmt.Fprintf(&b, "## Listening ports (%s)\n\n", f.Label())

	if len(recs) == 0 {
		b.WriteString("No open ports.\n")
		return b.String()
	}

	b.WriteString("| " + strings.Join(listHeaders, " | ") + " |\n")
	b.WriteString(strings.Repeat("| --- ", len(listHeaders)) + "|\n")
	for _, r := range recs {
		cells := row(r)
		for i, c := range cells {
			cells[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// SaveMarkdown writes content to dir as portslayer_snapshot_<timestamp>.md
// and returns the file path.
func SaveMarkdown(dir, content string, now time.Time) (string, error) {
	name := "portslayer_snapshot_" + now.Format("20060102_150405") + ".md"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return path, nil
}
