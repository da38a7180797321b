// Package notify sends desktop notifications when ports open or close
// between scans and when a kill fails.
package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/artur282/PortSlayer/internal/command"
	"github.com/artur282/PortSlayer/internal/config"
	"github.com/artur282/PortSlayer/internal/reconcile"
	"github.com/artur282/PortSlayer/pkg/model"
)

type EventType string

const (
	EventPortOpened EventType = "port_opened"
	EventPortClosed EventType = "port_closed"
	EventKillFailed EventType = "kill_failed"
)

func AllEvents() []EventType {
	return []EventType{EventPortOpened, EventPortClosed, EventKillFailed}
}

type Notification struct {
	Event   EventType
	Title   string
	Message string
}

// Notifier is a desktop notification backend.
type Notifier interface {
	Send(n Notification) error
	IsAvailable() bool
}

// Desktop sends notifications through notify-send.
type Desktop struct {
	Runner command.Runner
}

func (d Desktop) runner() command.Runner {
	if d.Runner == nil {
		return command.Exec{}
	}
	return d.Runner
}

func (d Desktop) Send(n Notification) error {
	res, err := d.runner().Run("notify-send", "--app-name=PortSlayer", n.Title, n.Message)
	if err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("notify-send exited with status %d: %s", res.ExitCode, res.StderrText())
	}
	return nil
}

func (d Desktop) IsAvailable() bool {
	return command.Available("notify-send")
}

// maxListed caps how many ports one notification names.
const maxListed = 3

// Manager filters events by configuration and hands the rest to a Notifier.
// It is safe for concurrent use; SetConfig applies reloaded settings.
type Manager struct {
	notifier Notifier

	mu      sync.Mutex
	enabled bool
	events  config.NotifyEvents
	primed  bool
}

func NewManager(cfg config.NotifyConfig, notifier Notifier) *Manager {
	m := &Manager{notifier: notifier}
	m.SetConfig(cfg)
	return m
}

func (m *Manager) SetConfig(cfg config.NotifyConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = cfg.Enabled
	m.events = cfg.Events
}

// Notify sends n if notifications are enabled and its event is wanted.
func (m *Manager) Notify(n Notification) error {
	m.mu.Lock()
	ok := m.enabled && m.events.Wants(string(n.Event))
	m.mu.Unlock()
	if !ok || m.notifier == nil {
		return nil
	}
	return m.notifier.Send(n)
}

// PortsChanged reports opened and closed ports. The first call only
// records that a baseline exists, so startup does not announce every
// port already listening.
func (m *Manager) PortsChanged(c reconcile.Change) error {
	m.mu.Lock()
	first := !m.primed
	m.primed = true
	m.mu.Unlock()
	if first {
		return nil
	}

	var errs []error
	if len(c.Opened) > 0 {
		if err := m.Notify(Notification{
			Event:   EventPortOpened,
			Title:   title(len(c.Opened), "opened"),
			Message: describe(c.Opened),
		}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.Closed) > 0 {
		if err := m.Notify(Notification{
			Event:   EventPortClosed,
			Title:   title(len(c.Closed), "closed"),
			Message: describe(c.Closed),
		}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// KillFailed reports a termination that did not succeed.
func (m *Manager) KillFailed(target string, err error) error {
	return m.Notify(Notification{
		Event:   EventKillFailed,
		Title:   "Could not stop " + target,
		Message: err.Error(),
	})
}

func title(n int, verb string) string {
	if n == 1 {
		return "Port " + verb
	}
	return fmt.Sprintf("%d ports %s", n, verb)
}

func describe(recs []model.PortRecord) string {
	lines := make([]string, 0, maxListed+1)
	for i, r := range recs {
		if i == maxListed {
			lines = append(lines, fmt.Sprintf("and %d more", len(recs)-maxListed))
			break
		}
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n")
}
