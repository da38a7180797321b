package reconcile

import "github.com/artur282/PortSlayer/pkg/model"

// Change lists what differs between two snapshots.
type Change struct {
	Opened []model.PortRecord
	Closed []model.PortRecord
	// Reowned holds ports that stayed open under a different PID.
	Reowned []model.PortRecord
}

func (c Change) Empty() bool {
	return len(c.Opened) == 0 && len(c.Closed) == 0 && len(c.Reowned) == 0
}

// Diff compares prev with next. A nil prev means everything in next is new.
// Results keep the snapshots' port order.
func Diff(prev, next *model.Snapshot) Change {
	var c Change

	before := make(map[key]model.PortRecord)
	if prev != nil {
		for _, r := range prev.Records {
			before[key{r.Protocol, r.Port}] = r
		}
	}
	after := make(map[key]bool)
	if next != nil {
		for _, r := range next.Records {
			k := key{r.Protocol, r.Port}
			after[k] = true
			old, ok := before[k]
			switch {
			case !ok:
				c.Opened = append(c.Opened, r)
			case old.PID != r.PID:
				c.Reowned = append(c.Reowned, r)
			}
		}
	}
	if prev != nil {
		for _, r := range prev.Records {
			if !after[key{r.Protocol, r.Port}] {
				c.Closed = append(c.Closed, r)
			}
		}
	}
	return c
}
