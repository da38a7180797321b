// Package reconcile turns raw scanner output into a Snapshot and compares
// successive snapshots. Everything here is pure.
package reconcile

import (
	"sort"

	"github.com/artur282/PortSlayer/pkg/model"
)

type key struct {
	proto model.Protocol
	port  int
}

// Reconcile collapses records sharing (protocol, port) and sorts the rest
// by port, then protocol.
//
// When duplicates exist a record with a known owner replaces one without;
// otherwise the first one seen is kept.
func Reconcile(raw []model.PortRecord) model.Snapshot {
	index := make(map[key]int, len(raw))
	out := make([]model.PortRecord, 0, len(raw))

	for _, r := range raw {
		if r.ProcessName == "" {
			r.ProcessName = model.UnknownProcess
		}
		k := key{r.Protocol, r.Port}
		i, seen := index[k]
		if !seen {
			index[k] = len(out)
			out = append(out, r)
			continue
		}
		if !out[i].Known() && r.Known() {
			out[i] = r
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})

	return model.Snapshot{Records: out}
}

// Less orders records by port, then protocol.
func Less(a, b model.PortRecord) bool {
	if a.Port != b.Port {
		return a.Port < b.Port
	}
	return a.Protocol < b.Protocol
}
