package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/artur282/PortSlayer/internal/command"
	"github.com/artur282/PortSlayer/internal/config"
	"github.com/artur282/PortSlayer/internal/reconcile"
	"github.com/artur282/PortSlayer/pkg/model"
)

// mockNotifier records calls and can be configured to return errors.
type mockNotifier struct {
	sent []Notification
	err  error
}

func (m *mockNotifier) Send(n Notification) error {
	m.sent = append(m.sent, n)
	return m.err
}

func (m *mockNotifier) IsAvailable() bool { return true }

func enabled() config.NotifyConfig {
	return config.NotifyConfig{Enabled: true}
}

func port(n int) model.PortRecord {
	return model.PortRecord{Protocol: model.TCP, Port: n, Address: "0.0.0.0", PID: n, ProcessName: "srv"}
}

func TestManagerDisabled(t *testing.T) {
	mock := &mockNotifier{}
	mgr := NewManager(config.NotifyConfig{}, mock)
	if err := mgr.KillFailed("pid 1", errors.New("boom")); err != nil {
		t.Fatal(err)
	}
	if len(mock.sent) != 0 {
		t.Fatal("should not send when disabled")
	}
}

func TestManagerEventFilter(t *testing.T) {
	off := false
	mock := &mockNotifier{}
	cfg := enabled()
	cfg.Events.KillFailed = &off
	mgr := NewManager(cfg, mock)

	mgr.KillFailed("pid 1", errors.New("boom"))
	if len(mock.sent) != 0 {
		t.Fatal("filtered event was sent")
	}

	mgr.SetConfig(enabled())
	mgr.KillFailed("pid 1", errors.New("boom"))
	if len(mock.sent) != 1 || mock.sent[0].Title != "Could not stop pid 1" || mock.sent[0].Message != "boom" {
		t.Fatalf("unexpected notifications %+v", mock.sent)
	}
}

func TestPortsChangedSkipsBaseline(t *testing.T) {
	mock := &mockNotifier{}
	mgr := NewManager(enabled(), mock)

	mgr.PortsChanged(reconcile.Change{Opened: []model.PortRecord{port(22), port(80)}})
	if len(mock.sent) != 0 {
		t.Fatalf("baseline should not notify, sent %+v", mock.sent)
	}

	mgr.PortsChanged(reconcile.Change{
		Opened: []model.PortRecord{port(3000)},
		Closed: []model.PortRecord{port(1), port(2), port(3), port(4), port(5)},
	})
	if len(mock.sent) != 2 {
		t.Fatalf("expected opened and closed notifications, got %+v", mock.sent)
	}
	if mock.sent[0].Event != EventPortOpened || mock.sent[0].Title != "Port opened" {
		t.Errorf("opened = %+v", mock.sent[0])
	}
	closed := mock.sent[1]
	if closed.Title != "5 ports closed" || !strings.HasSuffix(closed.Message, "and 2 more") {
		t.Errorf("closed = %+v", closed)
	}
	if strings.Count(closed.Message, "\n") != 3 {
		t.Errorf("expected three ports plus a summary line, got %q", closed.Message)
	}
}

func TestPortsChangedReturnsSendError(t *testing.T) {
	mock := &mockNotifier{err: errors.New("no dbus")}
	mgr := NewManager(enabled(), mock)
	mgr.PortsChanged(reconcile.Change{})
	if err := mgr.PortsChanged(reconcile.Change{Opened: []model.PortRecord{port(1)}}); err == nil {
		t.Fatal("expected send error")
	}
}

func TestDesktopSend(t *testing.T) {
	f := &command.Fake{Replies: map[string]command.Reply{
		"notify-send --app-name=PortSlayer Port opened TCP 80 (0.0.0.0) → srv [PID 80]": {},
	}}
	d := Desktop{Runner: f}
	err := d.Send(Notification{Title: "Port opened", Message: port(80).String()})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := (Desktop{Runner: &command.Fake{}}).Send(Notification{Title: "x"}); err == nil {
		t.Fatal("missing notify-send should fail")
	}
}
