// Package ui is the bubbletea dashboard. It owns only presentation state;
// everything it shows arrives as monitor.Update snapshots and everything it
// asks of the poller leaves as fire-and-forget monitor.Commands.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/agent-watch/internal/agentos"
	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/clipboard"
	"github.com/asheshgoplani/agent-watch/internal/config"
	"github.com/asheshgoplani/agent-watch/internal/history"
	"github.com/asheshgoplani/agent-watch/internal/monitor"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
	"github.com/asheshgoplani/agent-watch/internal/sysstats"
)

const (
	flashDuration   = 3 * time.Second
	tickInterval    = time.Second
	historyRefresh  = 10 * time.Second
	historyWindow   = time.Hour
	minSidebarWidth = 15
	maxSidebarWidth = 70
	defSidebarWidth = 35
	sidebarStep     = 5
	previewStep     = 5
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeInput
	modePipeline
	modeFilter
)

// HistoryReader is the slice of the transition log the summary view reads.
type HistoryReader interface {
	CountsSince(ctx context.Context, since time.Time) ([]history.Count, error)
}

// Options wires the dashboard to the rest of the program. Only Updates is
// required; nil collaborators disable the features that need them.
type Options struct {
	Updates  <-chan monitor.Update
	Commands chan<- monitor.Command
	Actions  Actions
	Parsers  *parsers.Registry

	Stats         *sysstats.Sampler
	History       HistoryReader
	ConfigWatcher *config.Watcher
	ThemeWatcher  *ThemeWatcher

	// ConfigPath is reloaded on watcher events; empty means the default file.
	ConfigPath string
	// Theme is the configured theme before resolution ("auto" follows the OS).
	Theme   string
	Version string
	// Notice is shown in the footer until dismissed with Esc.
	Notice string
	// Copy writes text to the system clipboard; nil uses clipboard.Copy.
	Copy func(text string) (*clipboard.Result, error)
	Now  func() time.Time
}

type (
	updateMsg         monitor.Update
	updatesClosedMsg  struct{}
	tickMsg           time.Time
	statsMsg          sysstats.Snapshot
	configChangedMsg  struct{}
	themeChangedMsg   bool
	historyFetchedMsg struct {
		counts []history.Count
		at     time.Time
		err    error
	}
)

// Model is the root tea.Model.
type Model struct {
	opts Options
	now  func() time.Time

	width  int
	height int

	agents    []agents.MonitoredAgent
	visible   []int
	queue     []agentos.QueueTask
	connected bool
	lastPoll  time.Time
	pollCount uint64

	dashboard *agentos.Dashboard
	digest    *agentos.Digest
	alerts    *agentos.Alerts
	pipeline  []agentos.PipelineRequest

	stats sysstats.Snapshot

	historyCounts []history.Count
	historyAt     time.Time
	historyErr    error

	cursor   int
	selected map[string]bool

	flash   string
	flashAt time.Time
	err     string

	mode          inputMode
	input         textarea.Model
	pipelineInput textinput.Model
	filterInput   textinput.Model
	filter        string

	sidebarWidth  int
	previewScroll int

	showQueue     bool
	showDashboard bool
	showSubagents bool
	showSummary   bool
	showHelp      bool
}

// New builds the dashboard model.
func New(opts Options) *Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ta := textarea.New()
	ta.Placeholder = "Type a message for the selected agent..."
	ta.Prompt = ""
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.CharLimit = 0
	// Enter sends; Alt+Enter is the only way to break a line.
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")

	pi := textinput.New()
	pi.Placeholder = "Describe a request for the AgentOS pipeline..."
	pi.CharLimit = 2000

	fi := textinput.New()
	fi.Placeholder = "filter agents"
	fi.Prompt = "/"
	fi.CharLimit = 100

	if opts.Copy == nil {
		opts.Copy = clipboard.Copy
	}

	return &Model{
		opts:          opts,
		now:           now,
		selected:      make(map[string]bool),
		input:         ta,
		pipelineInput: pi,
		filterInput:   fi,
		sidebarWidth:  defSidebarWidth,
		showSummary:   true,
		err:           opts.Notice,
	}
}

// Init starts the update listener, the clock and the optional watchers.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForUpdate(m.opts.Updates), m.tick()}
	if m.opts.Stats != nil {
		cmds = append(cmds, sampleStats(m.opts.Stats))
	}
	if m.opts.ConfigWatcher != nil {
		cmds = append(cmds, listenForConfig(m.opts.ConfigWatcher))
	}
	if m.opts.ThemeWatcher != nil {
		cmds = append(cmds, listenForTheme(m.opts.ThemeWatcher))
	}
	if m.showSummary {
		cmds = append(cmds, m.fetchHistory())
	}
	return tea.Batch(cmds...)
}

// waitForUpdate blocks on the poller channel for one snapshot.
func waitForUpdate(ch <-chan monitor.Update) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return updateMsg(u)
	}
}

func listenForConfig(w *config.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-w.Changes(); !ok {
			return nil
		}
		return configChangedMsg{}
	}
}

func listenForTheme(tw *ThemeWatcher) tea.Cmd {
	if tw == nil {
		return nil
	}
	return func() tea.Msg {
		return themeChangedMsg(<-tw.Changes())
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func sampleStats(s *sysstats.Sampler) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		snap, _ := s.Sample(ctx)
		return statsMsg(snap)
	}
}

func (m *Model) fetchHistory() tea.Cmd {
	h := m.opts.History
	if h == nil {
		return nil
	}
	now := m.now()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		counts, err := h.CountsSince(ctx, now.Add(-historyWindow))
		return historyFetchedMsg{counts: counts, at: now, err: err}
	}
}

// sendCommand hands a command to the poller without ever blocking the UI.
func (m *Model) sendCommand(c monitor.Command) {
	if m.opts.Commands == nil {
		return
	}
	select {
	case m.opts.Commands <- c:
	default:
		uiLog.Warn("command_dropped", slog.String("command", fmt.Sprintf("%T", c)))
	}
}

// Update is the tea.Model message handler.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeInputs()
		return m, nil

	case updateMsg:
		m.apply(monitor.Update(msg))
		return m, waitForUpdate(m.opts.Updates)

	case updatesClosedMsg:
		m.err = "Monitor stopped"
		return m, nil

	case tickMsg:
		now := time.Time(msg)
		if m.flash != "" && now.Sub(m.flashAt) >= flashDuration {
			m.flash = ""
		}
		cmds := []tea.Cmd{m.tick()}
		if m.opts.Stats != nil {
			cmds = append(cmds, sampleStats(m.opts.Stats))
		}
		if m.showSummary && now.Sub(m.historyAt) >= historyRefresh {
			cmds = append(cmds, m.fetchHistory())
		}
		return m, tea.Batch(cmds...)

	case statsMsg:
		m.stats = sysstats.Snapshot(msg)
		return m, nil

	case historyFetchedMsg:
		m.historyAt = msg.at
		m.historyErr = msg.err
		if msg.err == nil {
			m.historyCounts = msg.counts
		}
		return m, nil

	case actionResultMsg:
		m.err = msg.err
		if msg.flash != "" {
			m.setFlash(msg.flash)
		}
		if msg.clearSelection {
			m.selected = make(map[string]bool)
		}
		return m, nil

	case configChangedMsg:
		m.reloadConfig()
		return m, listenForConfig(m.opts.ConfigWatcher)

	case themeChangedMsg:
		if m.opts.Theme == config.ThemeAuto {
			if bool(msg) {
				InitTheme(string(ThemeDark))
			} else {
				InitTheme(string(ThemeLight))
			}
		}
		return m, listenForTheme(m.opts.ThemeWatcher)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, m.updateFocusedInput(msg)
}

// apply replaces the displayed state with a poller snapshot.
func (m *Model) apply(u monitor.Update) {
	m.agents = u.Agents
	m.queue = u.Queue
	m.connected = u.RemoteConnected
	m.lastPoll = u.At
	m.pollCount = u.Poll

	if u.Flash != "" {
		m.setFlash(u.Flash)
	}
	if u.Dashboard != nil {
		m.dashboard = u.Dashboard
	}
	if u.Digest != nil {
		m.digest = u.Digest
	}
	if u.Alerts != nil {
		m.alerts = u.Alerts
	}
	if u.PipelineRequests != nil {
		m.pipeline = u.PipelineRequests
	}

	live := make(map[string]bool, len(m.agents))
	for _, a := range m.agents {
		live[a.ID] = true
	}
	for id := range m.selected {
		if !live[id] {
			delete(m.selected, id)
		}
	}
	m.refilter()
}

// refilter recomputes the visible rows and clamps the cursor into them.
func (m *Model) refilter() {
	m.visible = filterAgents(m.agents, m.filter)
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) setFlash(s string) {
	m.flash = s
	m.flashAt = m.now()
}

// flashText returns the flash message while it is still fresh.
func (m *Model) flashText() string {
	if m.flash == "" || m.now().Sub(m.flashAt) >= flashDuration {
		return ""
	}
	return m.flash
}

// currentAgent returns the agent under the cursor.
func (m *Model) currentAgent() (agents.MonitoredAgent, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return agents.MonitoredAgent{}, false
	}
	return m.agents[m.visible[m.cursor]], true
}

// operationTargets is the multi-selection if any, else the current agent.
func (m *Model) operationTargets() []agents.MonitoredAgent {
	if len(m.selected) > 0 {
		var out []agents.MonitoredAgent
		for _, a := range m.agents {
			if m.selected[a.ID] {
				out = append(out, a)
			}
		}
		return out
	}
	if a, ok := m.currentAgent(); ok {
		return []agents.MonitoredAgent{a}
	}
	return nil
}

// broadcastTargets is the multi-selection if any, else every local agent.
func (m *Model) broadcastTargets() []agents.MonitoredAgent {
	if len(m.selected) > 0 {
		return m.operationTargets()
	}
	var out []agents.MonitoredAgent
	for _, a := range m.agents {
		if a.IsLocal() {
			out = append(out, a)
		}
	}
	return out
}

func (m *Model) attentionAgents() []agents.MonitoredAgent {
	var out []agents.MonitoredAgent
	for _, a := range m.agents {
		if a.NeedsAttention() {
			out = append(out, a)
		}
	}
	return out
}

// reloadConfig re-reads the config file after a watcher event, re-applies
// the theme and forwards the polling parameters to the poller.
func (m *Model) reloadConfig() {
	var (
		cfg *config.Config
		err error
	)
	if m.opts.ConfigPath != "" {
		cfg, err = config.LoadFrom(m.opts.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		m.err = fmt.Sprintf("Failed to reload config: %v", err)
		return
	}

	m.opts.Theme = cfg.Theme
	InitTheme(cfg.ResolveTheme())
	m.sendCommand(monitor.Reconfigure{
		Interval:     cfg.PollInterval(),
		CaptureLines: cfg.CaptureLines,
	})
	uiLog.Info("config_applied", slog.String("theme", cfg.Theme))
}

func (m *Model) resizeInputs() {
	w := m.mainWidth() - 4
	if w < 10 {
		w = 10
	}
	m.input.SetWidth(w)
	m.pipelineInput.Width = w
	m.filterInput.Width = max(10, m.sidebarWidth-4)
}

// updateFocusedInput forwards non-key messages (cursor blink) to the
// focused text component.
func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch m.mode {
	case modeInput:
		m.input, cmd = m.input.Update(msg)
	case modePipeline:
		m.pipelineInput, cmd = m.pipelineInput.Update(msg)
	case modeFilter:
		m.filterInput, cmd = m.filterInput.Update(msg)
	}
	return cmd
}
