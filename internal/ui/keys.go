package ui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/monitor"
)

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	// Any key closes help.
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch m.mode {
	case modeInput:
		return m.handleInputKey(msg)
	case modePipeline:
		return m.handlePipelineKey(msg)
	case modeFilter:
		return m.handleFilterKey(msg)
	}
	return m.handleMainKey(msg)
}

func (m *Model) handleMainKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "j", "down", "tab":
		m.moveCursor(1)
	case "k", "up", "shift+tab":
		m.moveCursor(-1)

	case " ":
		if a, ok := m.currentAgent(); ok {
			if m.selected[a.ID] {
				delete(m.selected, a.ID)
			} else {
				m.selected[a.ID] = true
			}
		}
	case "ctrl+a":
		for _, i := range m.visible {
			m.selected[m.agents[i].ID] = true
		}
	case "esc":
		switch {
		case len(m.selected) > 0:
			m.selected = make(map[string]bool)
		case m.filter != "":
			m.setFilter("")
		case m.showSubagents:
			m.showSubagents = false
		default:
			m.err = ""
		}

	case "y", "Y":
		return m, m.answer(m.operationTargets(), true)
	case "n", "N":
		return m, m.answer(m.operationTargets(), false)
	case "a", "A":
		return m, m.answer(m.attentionAgents(), true)

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		a, ok := m.currentAgent()
		if !ok || m.opts.Actions == nil {
			return m, nil
		}
		digit := int(msg.Runes[0] - '0')
		act := m.opts.Actions
		return m, runAction(func(ctx context.Context) actionResultMsg {
			return sendChoice(ctx, act, a, digit)
		})

	case "f", "F":
		a, ok := m.currentAgent()
		if !ok || m.opts.Actions == nil {
			return m, nil
		}
		act := m.opts.Actions
		return m, runAction(func(ctx context.Context) actionResultMsg {
			return focusPane(ctx, act, a)
		})

	case "c":
		a, ok := m.currentAgent()
		if !ok {
			return m, nil
		}
		copyFn := m.opts.Copy
		return m, runAction(func(context.Context) actionResultMsg {
			return copyPreview(copyFn, a)
		})

	case "r":
		m.err = ""
		m.sendCommand(monitor.RefreshNow{})
		m.setFlash("Refreshing...")

	case "s", "S":
		m.showSubagents = !m.showSubagents
		m.resizeInputs()
	case "t", "T":
		m.showSummary = !m.showSummary
		if m.showSummary {
			return m, m.fetchHistory()
		}
	case "Q":
		m.showQueue = !m.showQueue
	case "D":
		m.showDashboard = !m.showDashboard
	case "h", "?":
		m.showHelp = true

	case "<":
		m.sidebarWidth = max(minSidebarWidth, m.sidebarWidth-sidebarStep)
		m.resizeInputs()
	case ">":
		m.sidebarWidth = min(maxSidebarWidth, m.sidebarWidth+sidebarStep)
		m.resizeInputs()

	case "ctrl+u", "pgup":
		m.previewScroll = min(m.previewScroll+previewStep, m.previewLineCount())
	case "ctrl+d", "pgdown":
		m.previewScroll = max(0, m.previewScroll-previewStep)
	case "g":
		m.previewScroll = 0

	case "i", "enter", "right":
		if _, ok := m.currentAgent(); ok {
			m.mode = modeInput
			return m, m.input.Focus()
		}
	case "p":
		m.mode = modePipeline
		m.pipelineInput.Reset()
		return m, m.pipelineInput.Focus()
	case "/":
		m.mode = modeFilter
		m.filterInput.SetValue(m.filter)
		m.filterInput.CursorEnd()
		return m, m.filterInput.Focus()
	}
	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		return m, nil

	case "enter":
		text := m.input.Value()
		a, ok := m.currentAgent()
		if strings.TrimSpace(text) == "" || !ok || m.opts.Actions == nil {
			return m, nil
		}
		m.input.Reset()
		act := m.opts.Actions
		// Stay in input mode for consecutive messages.
		return m, runAction(func(ctx context.Context) actionResultMsg {
			return sendInput(ctx, act, a, text)
		})

	case "ctrl+s":
		text := m.input.Value()
		targets := m.broadcastTargets()
		if strings.TrimSpace(text) == "" || len(targets) == 0 || m.opts.Actions == nil {
			return m, nil
		}
		m.input.Reset()
		act := m.opts.Actions
		return m, runAction(func(ctx context.Context) actionResultMsg {
			return broadcastInput(ctx, act, targets, text)
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePipelineKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.pipelineInput.Blur()
		return m, nil

	case "enter":
		text := strings.TrimSpace(m.pipelineInput.Value())
		m.mode = modeNormal
		m.pipelineInput.Blur()
		m.pipelineInput.Reset()
		if text == "" {
			return m, nil
		}
		m.sendCommand(monitor.SubmitRequest{Text: text})
		m.setFlash("Submitting request...")
		return m, nil
	}

	var cmd tea.Cmd
	m.pipelineInput, cmd = m.pipelineInput.Update(msg)
	return m, cmd
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeNormal
		m.filterInput.Blur()
		m.setFilter("")
		return m, nil
	case "enter":
		m.mode = modeNormal
		m.filterInput.Blur()
		return m, nil
	case "down", "ctrl+n":
		m.moveCursor(1)
		return m, nil
	case "up", "ctrl+p":
		m.moveCursor(-1)
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.setFilter(m.filterInput.Value())
	return m, cmd
}

func (m *Model) moveCursor(delta int) {
	if len(m.visible) == 0 {
		return
	}
	next := m.cursor + delta
	if next < 0 || next >= len(m.visible) {
		return
	}
	m.cursor = next
	m.previewScroll = 0
}

func (m *Model) setFilter(q string) {
	if q == m.filter {
		return
	}
	m.filter = q
	m.cursor = 0
	m.previewScroll = 0
	m.refilter()
}

// answer approves or rejects targets in the background.
func (m *Model) answer(targets []agents.MonitoredAgent, approve bool) tea.Cmd {
	if len(targets) == 0 || m.opts.Actions == nil {
		return nil
	}
	act, reg := m.opts.Actions, m.opts.Parsers
	return runAction(func(ctx context.Context) actionResultMsg {
		return answerPrompt(ctx, act, reg, targets, approve)
	})
}

// previewLineCount bounds upward scrolling by the captured text.
func (m *Model) previewLineCount() int {
	a, ok := m.currentAgent()
	if !ok {
		return 0
	}
	return len(previewLines(a.LastContent))
}
