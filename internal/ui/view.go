package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/sysstats"
)

const (
	subagentLogWidth = 36
	summaryHeight    = 11
	inputBoxHeight   = 5
	rowsPerAgent     = 3
	maxQueueHeight   = 12
)

// View renders the whole screen.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyH := m.height - lipgloss.Height(header) - lipgloss.Height(footer)

	var queue string
	if m.showQueue {
		qh := min(maxQueueHeight, bodyH/3)
		queue = m.renderQueue(m.width, qh)
		bodyH -= lipgloss.Height(queue)
	}

	parts := []string{header, m.renderBody(m.width, bodyH)}
	if queue != "" {
		parts = append(parts, queue)
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) clampedSidebar() int {
	w := m.sidebarWidth
	if limit := m.width - 20; w > limit {
		w = max(minSidebarWidth, limit)
	}
	return w
}

func (m *Model) mainWidth() int {
	w := m.width - m.clampedSidebar()
	if m.showSubagents {
		w -= subagentLogWidth
	}
	return max(w, 10)
}

func (m *Model) renderBody(width, height int) string {
	if height < 3 {
		return ""
	}
	cols := []string{m.renderAgentList(m.clampedSidebar(), height)}

	mainW := m.mainWidth()
	if m.showDashboard {
		cols = append(cols, m.renderDashboard(mainW, height))
	} else {
		cols = append(cols, m.renderDetail(mainW, height))
	}
	if m.showSubagents {
		cols = append(cols, m.renderSubagentLog(subagentLogWidth, height))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func (m *Model) renderHeader() string {
	var processing, waiting, idle int
	for _, a := range m.agents {
		switch a.Status.Kind {
		case agents.StatusProcessing:
			processing++
		case agents.StatusAwaitingApproval, agents.StatusError:
			waiting++
		case agents.StatusIdle:
			idle++
		}
	}

	title := TitleStyle.Render("agent-watch")
	if m.opts.Version != "" {
		title += DimStyle.Render(" v" + m.opts.Version)
	}

	counts := strings.Join([]string{
		ProcessingStyle.Render(fmt.Sprintf("◐ %d", processing)),
		ApprovalStyle.Render(fmt.Sprintf("⚠ %d", waiting)),
		IdleStyle.Render(fmt.Sprintf("● %d", idle)),
	}, "  ")

	remote := DisconnectedStyle.Render("AgentOS ○")
	if m.connected {
		remote = ConnectedStyle.Render("AgentOS ●")
	}

	left := title + " " + RenderLogoCompact(processing, waiting) + "  " + counts + "  " + remote
	right := m.renderStats()

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return ansi.Truncate(left, m.width, "…")
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderStats draws the host CPU and memory sparklines.
func (m *Model) renderStats() string {
	s := m.stats
	if len(s.CPUHistory) == 0 {
		return ""
	}
	cpu := fmt.Sprintf("CPU %s %3.0f%%", sysstats.Sparkline(s.CPUHistory, 10), s.CPUPercent)
	mem := fmt.Sprintf("MEM %s %3.0f%% %s/%s",
		sysstats.Sparkline(s.MemHistory, 10), s.MemPercent,
		humanize.IBytes(s.MemUsed), humanize.IBytes(s.MemTotal))
	return InfoStyle.Render(cpu) + "  " + InfoStyle.Render(mem) + " "
}

func (m *Model) renderFooter() string {
	var status string
	switch {
	case m.err != "":
		status = ErrorStyle.Render("✗ " + m.err)
	case m.flashText() != "":
		status = FlashStyle.Render("✓ " + m.flashText())
	case !m.lastPoll.IsZero():
		status = DimStyle.Render(fmt.Sprintf("updated %s · poll %d",
			humanize.RelTime(m.lastPoll, m.now(), "ago", "from now"), m.pollCount))
	default:
		status = DimStyle.Render("waiting for first poll...")
	}
	if n := len(m.selected); n > 0 {
		status += SelectedMarkStyle.Render(fmt.Sprintf("  [%d selected]", n))
	}

	var keys []string
	switch m.mode {
	case modeInput:
		keys = []string{MenuKey("Enter", "send"), MenuKey("Ctrl+S", "send all"), MenuKey("Alt+Enter", "newline"), MenuKey("Esc", "back")}
	case modePipeline:
		keys = []string{MenuKey("Enter", "submit"), MenuKey("Esc", "cancel")}
	case modeFilter:
		keys = []string{MenuKey("Enter", "keep"), MenuKey("Esc", "clear"), MenuKey("↑↓", "move")}
	default:
		keys = []string{
			MenuKey("j/k", "move"), MenuKey("Space", "select"),
			MenuKey("y", "approve"), MenuKey("n", "reject"), MenuKey("a", "all"),
			MenuKey("i", "input"), MenuKey("f", "focus"), MenuKey("p", "pipeline"),
			MenuKey("/", "filter"), MenuKey("?", "help"), MenuKey("q", "quit"),
		}
	}
	bar := strings.Join(keys, MenuSeparatorStyle.Render(" │ "))

	return ansi.Truncate(status, m.width, "…") + "\n" + ansi.Truncate(bar, m.width, "…")
}

func (m *Model) renderAgentList(width, height int) string {
	title := fmt.Sprintf("Agents (%d)", len(m.agents))
	if m.filter != "" {
		title = fmt.Sprintf("Agents (%d/%d)", len(m.visible), len(m.agents))
	}

	var lines []string
	innerH := height - 2
	if m.mode == modeFilter || m.filter != "" {
		if m.mode == modeFilter {
			lines = append(lines, m.filterInput.View())
		} else {
			lines = append(lines, DimStyle.Render("/"+m.filter))
		}
		innerH--
	}

	if len(m.visible) == 0 {
		msg := "No agents detected"
		if m.filter != "" {
			msg = "No matches"
		}
		lines = append(lines, DimStyle.Render(msg))
		return renderPanel(title, strings.Join(lines, "\n"), width, height, m.mode == modeNormal || m.mode == modeFilter)
	}

	// Title takes one row inside the panel.
	capacity := max(1, (innerH-1)/rowsPerAgent)
	start := 0
	if m.cursor >= capacity {
		start = m.cursor - capacity + 1
	}
	end := min(len(m.visible), start+capacity)

	nameW := max(4, width-8)
	for row := start; row < end; row++ {
		a := m.agents[m.visible[row]]
		lines = append(lines, m.renderAgentRows(a, row == m.cursor, nameW)...)
	}
	return renderPanel(title, strings.Join(lines, "\n"), width, height, m.mode == modeNormal || m.mode == modeFilter)
}

func (m *Model) renderAgentRows(a agents.MonitoredAgent, current bool, nameW int) []string {
	marker := " "
	if current {
		marker = CursorMarkerStyle.Render("▶")
	}
	mark := " "
	if m.selected[a.ID] {
		mark = SelectedMarkStyle.Render("◆")
	}

	st := StatusStyle(a.Status.Kind)
	name := runewidth.Truncate(a.WindowName, nameW, "…")
	nameStyle := AgentNameStyle
	if current {
		nameStyle = AgentNameSelStyle
	}
	line1 := marker + mark + st.Render(a.Status.Indicator()) + " " + nameStyle.Render(name)
	if !a.IsLocal() {
		line1 += RemoteBadgeStyle.Render(" ⇅")
	}

	line2 := "   " + GetToolStyle(a.Tool).Render(a.Tool.ShortName()) + " " + AgentMetaStyle.Render(a.AbbreviatedPath())
	if a.Branch != "" {
		line2 += AgentMetaStyle.Render(" ⎇ " + a.Branch)
	}

	line3 := "   " + st.Render(a.Status.ShortText()) + AgentMetaStyle.Render(" · "+a.UptimeString(m.now()))
	if a.ContextRemaining != nil {
		pct := *a.ContextRemaining
		ctx := fmt.Sprintf(" · ctx %d%%", pct)
		if pct < 20 {
			line3 += ContextLowStyle.Render(ctx)
		} else {
			line3 += AgentMetaStyle.Render(ctx)
		}
	}
	if n := a.ActiveSubagentCount(); n > 0 {
		line3 += InfoStyle.Render(fmt.Sprintf(" · ▶%d", n))
	}
	return []string{line1, line2, line3}
}

// renderDetail stacks the summary, the pane preview and the input box.
func (m *Model) renderDetail(width, height int) string {
	inputH := inputBoxHeight
	if height < inputH+6 {
		inputH = 0
	}
	sumH := 0
	if m.showSummary && height-inputH >= summaryHeight+6 {
		sumH = summaryHeight
	}
	previewH := height - inputH - sumH

	var parts []string
	if sumH > 0 {
		parts = append(parts, m.renderSummary(width, sumH))
	}
	parts = append(parts, m.renderPreview(width, previewH))
	if inputH > 0 {
		parts = append(parts, m.renderInput(width, inputH))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderSummary(width, height int) string {
	a, ok := m.currentAgent()
	if !ok {
		return renderPanel("Summary", DimStyle.Render("Nothing selected"), width, height, false)
	}
	now := m.now()

	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", DimStyle.Render(fmt.Sprintf("%-9s", label)), value)
	}
	row("Target", a.Target+DimStyle.Render(" ("+a.Source.String()+")"))
	row("Tool", GetToolStyle(a.Tool).Render(a.Tool.DisplayName()))
	row("Status", StatusStyle(a.Status.Kind).Render(a.Status.String()))
	if a.Status.Kind == agents.StatusAwaitingApproval {
		detail := a.Status.Approval.String()
		if a.Status.Detail != "" {
			detail += ": " + a.Status.Detail
		}
		row("Prompt", WarningStyle.Render(detail))
		for i, c := range a.Status.Approval.Choices {
			row("", fmt.Sprintf("%d. %s", i+1, c))
		}
	}
	row("Path", a.Path)
	if a.Branch != "" {
		row("Branch", a.Branch)
	}
	row("Uptime", a.UptimeString(now)+DimStyle.Render(" · updated "+a.LastUpdatedString(now)))
	if a.ContextRemaining != nil {
		row("Context", fmt.Sprintf("%d%% remaining", *a.ContextRemaining))
	}
	row("Last hour", m.historyLine())

	return renderPanel("Summary", strings.TrimRight(b.String(), "\n"), width, height, false)
}

// historyLine condenses the transition log for the summary panel.
func (m *Model) historyLine() string {
	if m.opts.History == nil {
		return DimStyle.Render("history disabled")
	}
	if m.historyErr != nil {
		return ErrorStyle.Render(m.historyErr.Error())
	}
	if len(m.historyCounts) == 0 {
		return DimStyle.Render("no transitions")
	}
	byStatus := map[agents.StatusKind]int{}
	for _, c := range m.historyCounts {
		byStatus[c.Status] += c.N
	}
	var parts []string
	for _, k := range []agents.StatusKind{agents.StatusProcessing, agents.StatusAwaitingApproval, agents.StatusIdle, agents.StatusError} {
		if n := byStatus[k]; n > 0 {
			parts = append(parts, StatusStyle(k).Render(fmt.Sprintf("%s %d", k, n)))
		}
	}
	if len(parts) == 0 {
		return DimStyle.Render("no transitions")
	}
	return strings.Join(parts, DimStyle.Render(" · "))
}

// previewLines splits captured text into display lines without trailing
// blank rows.
func previewLines(content string) []string {
	content = strings.TrimRight(ansi.Strip(content), "\n ")
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func (m *Model) renderPreview(width, height int) string {
	a, ok := m.currentAgent()
	if !ok {
		return renderPanel("Preview", DimStyle.Render("Select an agent to preview its pane"), width, height, false)
	}

	title := "Preview · " + a.Target
	if !a.IsLocal() {
		body := strings.Join([]string{
			PreviewMetaStyle.Render("Remote agent reported by AgentOS"),
			"",
			DimStyle.Render("Task   ") + a.Status.ShortText(),
			DimStyle.Render("Path   ") + a.Path,
			DimStyle.Render("Branch ") + a.Branch,
		}, "\n")
		return renderPanel(title, body, width, height, false)
	}

	lines := previewLines(a.LastContent)
	visibleH := max(1, height-3)
	maxScroll := max(0, len(lines)-visibleH)
	scroll := min(m.previewScroll, maxScroll)
	if scroll > 0 {
		title += fmt.Sprintf(" (↑%d)", scroll)
	}
	end := len(lines) - scroll
	start := max(0, end-visibleH)

	body := strings.Join(lines[start:end], "\n")
	if len(lines) == 0 {
		body = DimStyle.Render("(empty pane)")
	}
	return renderPanel(title, body, width, height, false)
}

func (m *Model) renderInput(width, height int) string {
	switch m.mode {
	case modeInput:
		title := "Input"
		if a, ok := m.currentAgent(); ok {
			title = "Input → " + a.Target
		}
		if n := len(m.selected); n > 0 {
			title += fmt.Sprintf(" (Ctrl+S → %d selected)", n)
		}
		return renderPanel(title, m.input.View(), width, height, true)
	case modePipeline:
		return renderPanel("Pipeline request", m.pipelineInput.View(), width, height, true)
	}
	hint := DimStyle.Render("i: type to agent · p: pipeline request · Enter sends, Alt+Enter newline")
	return renderPanel("Input", hint, width, height, false)
}

func (m *Model) renderSubagentLog(width, height int) string {
	a, ok := m.currentAgent()
	if !ok || len(a.Subagents) == 0 {
		return renderPanel("Subagents", DimStyle.Render("none"), width, height, false)
	}
	now := m.now()
	var lines []string
	for _, s := range a.Subagents {
		icon := s.Status.Icon()
		switch s.Status {
		case agents.SubagentRunning:
			icon = ProcessingStyle.Render(icon)
		case agents.SubagentCompleted:
			icon = SuccessStyle.Render(icon)
		case agents.SubagentFailed:
			icon = ErrorStyle.Render(icon)
		}
		lines = append(lines, icon+" "+InfoStyle.Render(s.Type.String())+DimStyle.Render(" "+formatElapsed(s.Elapsed(now))))
		if s.Description != "" {
			lines = append(lines, "  "+runewidth.Truncate(s.Description, width-5, "…"))
		}
	}
	title := fmt.Sprintf("Subagents (%d active)", a.ActiveSubagentCount())
	return renderPanel(title, strings.Join(lines, "\n"), width, height, false)
}

func (m *Model) renderHelp() string {
	sections := []struct {
		title string
		keys  [][2]string
	}{
		{"Navigation", [][2]string{
			{"j/k ↑/↓ Tab", "move selection"},
			{"Space", "toggle multi-select"},
			{"Ctrl+A", "select all"},
			{"Esc", "clear selection / filter / error"},
			{"/", "fuzzy filter agents"},
			{"< >", "narrow / widen sidebar"},
		}},
		{"Actions", [][2]string{
			{"y / n", "approve / reject selected"},
			{"a", "approve every waiting agent"},
			{"1-9", "answer a numbered question"},
			{"f", "focus the pane in tmux"},
			{"c", "copy the captured output"},
			{"i Enter", "type into the selected agent"},
			{"Ctrl+S", "send input to selected or all"},
			{"p", "submit a pipeline request"},
			{"r", "refresh AgentOS now"},
		}},
		{"Views", [][2]string{
			{"Ctrl+U/D PgUp/Dn", "scroll preview"},
			{"g", "back to latest output"},
			{"s", "subagent log"},
			{"t", "summary"},
			{"Q", "task queue"},
			{"D", "AgentOS dashboard"},
			{"h ?", "this help"},
			{"q Ctrl+C", "quit"},
		}},
	}

	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(PanelTitle.Render(s.title) + "\n")
		for _, k := range s.keys {
			fmt.Fprintf(&b, "  %s %s\n", MenuKeyStyle.Render(fmt.Sprintf("%-16s", k[0])), MenuDescStyle.Render(k[1]))
		}
	}
	b.WriteString("\n" + DimStyle.Render("press any key to close"))

	w := min(m.width, 60)
	h := min(m.height, lipgloss.Height(b.String())+3)
	box := renderPanel("Help", b.String(), w, h, true)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderPanel draws a bordered box of exactly width x height cells. The
// title occupies the first inner row.
func renderPanel(title, body string, width, height int, focused bool) string {
	if width < 4 || height < 3 {
		return ""
	}
	innerW, innerH := width-2, height-2

	var lines []string
	if title != "" {
		lines = append(lines, PanelTitle.Render(title))
	}
	if body != "" {
		lines = append(lines, strings.Split(body, "\n")...)
	}
	lines = fitLines(lines, innerW, innerH)

	style := PanelStyle
	if focused {
		style = style.BorderForeground(ColorAccent)
	}
	return style.Width(innerW).Height(innerH).Render(strings.Join(lines, "\n"))
}

// fitLines truncates every line to width cells and the slice to height
// rows, padding with blank rows when short.
func fitLines(lines []string, width, height int) []string {
	if len(lines) > height {
		lines = lines[:height]
	}
	out := make([]string, height)
	for i := range out {
		if i < len(lines) {
			out[i] = ansi.Truncate(lines[i], width, "…")
		}
	}
	return out
}

// formatElapsed renders 42s, 5m3s or 1h2m.
func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm%ds", secs/60, secs%60)
	default:
		return fmt.Sprintf("%dh%dm", secs/3600, (secs%3600)/60)
	}
}
