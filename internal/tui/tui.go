package tui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/artur282/PortSlayer/internal/config"
	"github.com/artur282/PortSlayer/internal/engine"
	"github.com/artur282/PortSlayer/internal/logging"
	"github.com/artur282/PortSlayer/internal/menu"
	"github.com/artur282/PortSlayer/internal/notify"
	"github.com/artur282/PortSlayer/internal/output"
	"github.com/artur282/PortSlayer/pkg/model"
)

var baseStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("240"))

var (
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("57")).Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleActive  = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true)
	styleTab     = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("240"))
	styleMessage = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1)
	styleDanger  = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("160")).Bold(true).Padding(0, 1)
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")).Padding(0, 1)
)

// Options wires the interactive menu to the engine.
type Options struct {
	Engine   *engine.Engine
	Notifier *notify.Manager
	Config   *config.Config
	// Reloads delivers configuration changes; nil disables hot reload.
	Reloads <-chan *config.Config
	// ExportDir receives Markdown snapshots, the working directory if empty.
	ExportDir string
	Logger    *log.Logger
}

type (
	tickMsg       time.Time
	updateMsg     engine.Update
	reloadMsg     *config.Config
	rescanMsg     struct{}
	rescanDoneMsg struct{}
	killDoneMsg   struct {
		results []output.KillResult
	}
)

// pendingKill is what the confirmation prompt will act on.
type pendingKill struct {
	prompt string
	pids   []int
	port   int
	proto  model.Protocol
	byPort bool
}

type tuiModel struct {
	eng       *engine.Engine
	notifier  *notify.Manager
	log       *log.Logger
	updates   <-chan engine.Update
	reloads   <-chan *config.Config
	exportDir string

	state       engine.Update
	view        menu.View
	menu        menu.Menu
	rescanDelay time.Duration

	table       table.Model
	filterInput textinput.Model
	filtering   bool
	confirm     *pendingKill
	killing     bool
	rescanning  bool
	message     string
	messageTime time.Time
	width       int
	height      int
}

func initialModel(opts Options, updates <-chan engine.Update) tuiModel {
	ti := textinput.New()
	ti.Placeholder = "Filter... (port:, pid:, proc:)"
	ti.CharLimit = 50
	ti.Width = 30

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	filter, _ := menu.ParseFilter(cfg.Menu.Filter)

	m := tuiModel{
		eng:         opts.Engine,
		notifier:    opts.Notifier,
		log:         logging.OrDiscard(opts.Logger),
		updates:     updates,
		reloads:     opts.Reloads,
		exportDir:   opts.ExportDir,
		state:       opts.Engine.State(),
		view:        menu.View{Filter: filter, PageSize: cfg.Menu.PageSize},
		rescanDelay: cfg.Scan.RescanDelay,
		filterInput: ti,
		height:      25,
	}
	m.initTable()
	m.rebuild()
	return m
}

func (m *tuiModel) initTable() {
	columns := []table.Column{
		{Title: " ", Width: 2},
		{Title: "Proto", Width: 6},
		{Title: "Port", Width: 7},
		{Title: "Address", Width: 28},
		{Title: "PID", Width: 8},
		{Title: "Process", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(m.height-15, 5)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(true)
	t.SetStyles(s)

	m.table = t
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tick(), waitUpdate(m.updates), waitReload(m.reloads))
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitUpdate(ch <-chan engine.Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg(u)
	}
}

func waitReload(ch <-chan *config.Config) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return reloadMsg(cfg)
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// results arrive regardless of what the user is doing
	switch msg := msg.(type) {
	case updateMsg:
		return m.applyUpdate(engine.Update(msg))
	case reloadMsg:
		m.applyConfig(msg)
		return m, waitReload(m.reloads)
	case killDoneMsg:
		return m.killDone(msg)
	case rescanMsg:
		return m, m.rescan()
	case rescanDoneMsg:
		m.rescanning = false
		return m, nil
	case tickMsg:
		return m, tick()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(max(m.height-15, 5))
		return m, nil
	}

	if m.confirm != nil {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "y", "Y":
				p := *m.confirm
				m.confirm = nil
				m.killing = true
				return m, m.kill(p)
			case "n", "N", "esc":
				m.confirm = nil
			}
		}
		return m, nil
	}

	if m.filtering {
		if msg, ok := msg.(tea.KeyMsg); ok {
			switch msg.String() {
			case "enter", "esc":
				m.filtering = false
				m.filterInput.Blur()
				m.view.Page = 0
				m.rebuild()
				return m, nil
			}
		}
		m.filterInput, cmd = m.filterInput.Update(msg)
		m.view.Page = 0
		m.rebuild()
		return m, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "1", "2", "3":
			f, _ := strconv.Atoi(msg.String())
			m.setFilter(menu.ProtocolFilter(f - 1))
			return m, nil
		case "t":
			m.setFilter(m.view.Filter.Next())
			return m, nil
		case "left", "h", "[":
			m.movePage(menu.Prev)
			return m, nil
		case "right", "l", "]":
			m.movePage(menu.Next)
			return m, nil
		case "z":
			m.togglePageSize()
			return m, nil
		case "r":
			if !m.eng.Trigger() {
				m.flash("Scan already in progress")
			}
			return m, nil
		case "/":
			m.filtering = true
			m.filterInput.Focus()
			return m, nil
		case "S":
			m.saveSnapshot()
			return m, nil
		case "x", "enter":
			m.confirmSelected()
			return m, nil
		case "X":
			m.confirmAll()
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m tuiModel) applyUpdate(u engine.Update) (tea.Model, tea.Cmd) {
	m.state = u
	m.rebuild()

	cmds := []tea.Cmd{waitUpdate(m.updates)}
	if u.Err == nil && m.notifier != nil {
		n, change := m.notifier, u.Change
		cmds = append(cmds, func() tea.Msg {
			if err := n.PortsChanged(change); err != nil {
				m.log.Warn("notification failed", "err", err)
			}
			return nil
		})
	}
	return m, tea.Batch(cmds...)
}

func (m *tuiModel) applyConfig(cfg *config.Config) {
	m.eng.SetInterval(cfg.Scan.Interval)
	m.rescanDelay = cfg.Scan.RescanDelay
	m.view.PageSize = cfg.Menu.PageSize
	if f, err := menu.ParseFilter(cfg.Menu.Filter); err == nil {
		m.view.Filter = f
	}
	if m.notifier != nil {
		m.notifier.SetConfig(cfg.Notify)
	}
	m.rebuild()
	m.flash("Configuration reloaded")
}

func (m *tuiModel) setFilter(f menu.ProtocolFilter) {
	m.view.Filter = f
	m.view.Page = 0
	m.rebuild()
}

func (m *tuiModel) movePage(k menu.Kind) {
	e, ok := m.menu.Find(k)
	if !ok || !e.Enabled {
		return
	}
	m.view.Page = e.Target
	m.rebuild()
	m.table.GotoTop()
}

func (m *tuiModel) togglePageSize() {
	for i, s := range menu.PageSizes {
		if s == m.menu.View.PageSize {
			m.view.PageSize = menu.PageSizes[(i+1)%len(menu.PageSizes)]
			break
		}
	}
	m.view.Page = 0
	m.rebuild()
}

// rebuild lays the menu out again from the current snapshot and view.
func (m *tuiModel) rebuild() {
	snap := m.state.Snapshot
	if snap != nil && m.filterInput.Value() != "" {
		snap = &model.Snapshot{
			Records:    matchText(snap.Records, m.filterInput.Value()),
			CapturedAt: snap.CapturedAt,
		}
	}
	m.menu = menu.Build(snap, m.view, m.state.Err)
	m.view = m.menu.View

	ports := m.menu.Ports()
	rows := make([]table.Row, 0, len(ports))
	for _, e := range ports {
		rows = append(rows, portRow(e.Record))
	}
	m.table.SetRows(rows)
	if len(rows) > 0 && m.table.Cursor() >= len(rows) {
		m.table.SetCursor(len(rows) - 1)
	}
}

func portRow(r model.PortRecord) table.Row {
	marker, pid := menu.MarkerUnknown, "-"
	if r.Known() {
		marker, pid = menu.MarkerKnown, strconv.Itoa(r.PID)
	}
	return table.Row{
		marker,
		strings.ToUpper(r.Protocol.String()),
		strconv.Itoa(r.Port),
		output.Clean(r.Address),
		pid,
		output.Clean(r.ProcessName),
	}
}

// matchText applies the filter box. A "port:", "pid:" or "proc:" prefix
// narrows the match to one field.
func matchText(recs []model.PortRecord, raw string) []model.PortRecord {
	raw = strings.ToLower(strings.TrimSpace(raw))
	prefix, value, found := strings.Cut(raw, ":")
	if !found {
		prefix, value = "", raw
	}
	if value == "" {
		return recs
	}

	var out []model.PortRecord
	for _, r := range recs {
		port, pid := strconv.Itoa(r.Port), strconv.Itoa(r.PID)
		name := strings.ToLower(r.ProcessName)
		var match bool
		switch prefix {
		case "port":
			match = strings.Contains(port, value)
		case "pid":
			match = r.Known() && strings.Contains(pid, value)
		case "proc", "cmd":
			match = strings.Contains(name, value)
		default:
			match = strings.Contains(port, value) || strings.Contains(name, value) ||
				strings.Contains(r.Address, value) || (r.Known() && strings.Contains(pid, value))
		}
		if match {
			out = append(out, r)
		}
	}
	return out
}

func (m *tuiModel) selected() (model.PortRecord, bool) {
	ports := m.menu.Ports()
	i := m.table.Cursor()
	if i < 0 || i >= len(ports) {
		return model.PortRecord{}, false
	}
	return ports[i].Record, true
}

func (m *tuiModel) confirmSelected() {
	r, ok := m.selected()
	if !ok || m.killing {
		return
	}
	if r.Known() {
		m.confirm = &pendingKill{
			prompt: fmt.Sprintf("Kill %s (PID %d) on %s %d?", output.Clean(r.ProcessName), r.PID, strings.ToUpper(r.Protocol.String()), r.Port),
			pids:   []int{r.PID},
		}
		return
	}
	m.confirm = &pendingKill{
		prompt: fmt.Sprintf("Owner of %s %d is unknown. Kill it with elevated privileges?", strings.ToUpper(r.Protocol.String()), r.Port),
		port:   r.Port,
		proto:  r.Protocol,
		byPort: true,
	}
}

func (m *tuiModel) confirmAll() {
	e, ok := m.menu.Find(menu.KillAll)
	if !ok || !e.Enabled || m.killing {
		return
	}
	m.confirm = &pendingKill{
		prompt: fmt.Sprintf("%s: terminate %d process(es)?", e.Label, len(e.PIDs)),
		pids:   e.PIDs,
	}
}

// kill runs off the UI goroutine; the elevation helper may block on a
// password prompt.
func (m tuiModel) kill(p pendingKill) tea.Cmd {
	eng := m.eng
	return func() tea.Msg {
		if p.byPort {
			target := fmt.Sprintf("port %d/%s", p.port, p.proto)
			return killDoneMsg{results: []output.KillResult{output.Result(target, eng.TerminatePort(p.port, p.proto))}}
		}
		return killDoneMsg{results: output.PIDResults(eng.TerminateAll(p.pids))}
	}
}

func (m tuiModel) killDone(msg killDoneMsg) (tea.Model, tea.Cmd) {
	m.killing = false
	m.rescanning = true

	var failed []string
	for _, r := range msg.results {
		if !r.Failed() {
			continue
		}
		failed = append(failed, r.Target+": "+r.Status)
		m.log.Error("kill failed", "target", r.Target, "err", r.Error)
	}
	switch {
	case len(failed) == 0 && len(msg.results) == 1:
		m.flash("Stopped " + msg.results[0].Target)
	case len(failed) == 0:
		m.flash(fmt.Sprintf("Stopped %d processes", len(msg.results)))
	default:
		m.flash("Failed: " + strings.Join(failed, ", "))
	}

	return m, tea.Batch(m.scheduleRescan(), m.notifyKillFailures(msg.results))
}

// notifyKillFailures sends desktop alerts off the UI goroutine; notify-send
// can take a while to return.
func (m tuiModel) notifyKillFailures(results []output.KillResult) tea.Cmd {
	if m.notifier == nil || output.Failures(results) == 0 {
		return nil
	}
	n, logger := m.notifier, m.log
	return func() tea.Msg {
		for _, r := range results {
			if !r.Failed() {
				continue
			}
			if err := n.KillFailed(r.Target, errors.New(r.Error)); err != nil {
				logger.Warn("notification failed", "target", r.Target, "err", err)
			}
		}
		return nil
	}
}

func (m tuiModel) scheduleRescan() tea.Cmd {
	return tea.Tick(m.rescanDelay, func(time.Time) tea.Msg { return rescanMsg{} })
}

// rescan forces a scan after a kill. A scan that started before the kill
// cannot show its effect, so a dropped request is retried.
func (m *tuiModel) rescan() tea.Cmd {
	eng := m.eng
	delay := m.rescanDelay
	return func() tea.Msg {
		if _, ran := eng.Refresh(); !ran {
			time.Sleep(delay)
			return rescanMsg{}
		}
		return rescanDoneMsg{}
	}
}

func (m *tuiModel) flash(s string) {
	m.message = s
	m.messageTime = time.Now()
}

func (m *tuiModel) saveSnapshot() {
	dir := m.exportDir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	now := time.Now()
	snap := m.state.Snapshot
	if snap != nil && m.filterInput.Value() != "" {
		snap = &model.Snapshot{Records: matchText(snap.Records, m.filterInput.Value()), CapturedAt: snap.CapturedAt}
	}
	path, err := output.SaveMarkdown(dir, output.Markdown(snap, m.view.Filter, now), now)
	if err != nil {
		m.flash("Error saving snapshot: " + err.Error())
		return
	}
	m.flash("Snapshot saved to " + path)
}

func (m tuiModel) View() string {
	var b strings.Builder

	title := "PortSlayer"
	if m.eng.Scanning() {
		title += " (scanning…)"
	}
	if m.killing {
		title += " (terminating…)"
	}
	b.WriteString(styleTitle.Render(title))
	if snap := m.state.Snapshot; snap != nil && !snap.CapturedAt.IsZero() {
		b.WriteString(styleDim.Render("  last scan " + snap.CapturedAt.Format(time.TimeOnly)))
	}
	b.WriteString("\n\n")

	// Tabs
	for i, f := range []menu.ProtocolFilter{menu.All, menu.TCP, menu.UDP} {
		label := fmt.Sprintf("[%d] %s", i+1, f.Label())
		if m.view.Filter == f {
			b.WriteString(styleActive.Render(label))
		} else {
			b.WriteString(styleTab.Render(label))
		}
		b.WriteString(" ")
	}
	b.WriteString(styleDim.Render(fmt.Sprintf("  Per page: [z] %d", m.menu.View.PageSize)))
	if h, ok := m.menu.Find(menu.Header); ok {
		b.WriteString(styleDim.Render("  " + h.Label))
	}
	b.WriteString("\n\n")

	// Filter
	if m.filtering {
		b.WriteString(styleTitle.Render(" / ") + m.filterInput.View() + "\n")
	} else if m.filterInput.Value() != "" {
		b.WriteString(styleDim.Render(" Filter: "+m.filterInput.Value()) + "\n")
	} else {
		b.WriteString("\n")
	}

	if w, ok := m.menu.Find(menu.Warning); ok {
		b.WriteString(styleWarning.Render(" "+output.Clean(w.Label)+" ") + "\n")
	}

	if e, ok := m.menu.Find(menu.Empty); ok {
		b.WriteString(baseStyle.Render(styleDim.Render(" "+e.Label+" ")) + "\n")
	} else {
		b.WriteString(baseStyle.Render(m.table.View()) + "\n")
	}

	// Navigation
	var nav []string
	if ind, ok := m.menu.Find(menu.PageIndicator); ok {
		nav = append(nav, ind.Label)
	}
	if ka, ok := m.menu.Find(menu.KillAll); ok && ka.Enabled {
		nav = append(nav, "[X] "+ka.Label)
	}
	if m.rescanning {
		nav = append(nav, "rescanning after kill…")
	}
	if len(nav) > 0 {
		b.WriteString(styleDim.Render(" "+strings.Join(nav, " • ")) + "\n")
	}

	if m.message != "" && time.Since(m.messageTime) < 3*time.Second {
		b.WriteString("\n" + styleMessage.Render(" "+output.Clean(m.message)+" ") + "\n")
	}

	if m.confirm != nil {
		b.WriteString("\n" + styleDanger.Render(" "+m.confirm.prompt+" [y/n] ") + "\n")
	}

	help := "\n  q: quit • 1-3/t: protocol • ←/→: page • z: page size • /: filter • r: refresh • x/enter: kill • X: kill all • S: snapshot"
	b.WriteString(styleDim.Render(help) + "\n")

	return b.String()
}

// Run starts the interactive menu and blocks until the user quits.
func Run(opts Options) error {
	updates, cancel := opts.Engine.Subscribe()
	defer cancel()

	p := tea.NewProgram(initialModel(opts, updates), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
