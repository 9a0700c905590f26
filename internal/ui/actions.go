package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/clipboard"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
)

// Actions is the pane interaction surface the dashboard needs.
// *tmux.Client satisfies it.
type Actions interface {
	SendKeys(ctx context.Context, target, key string) error
	SendLiteralAndEnter(ctx context.Context, target, text string) error
	FocusPane(ctx context.Context, target string) error
}

const actionTimeout = 5 * time.Second

var errRemoteAgent = errors.New("agent has no local pane")

// actionResultMsg reports a finished pane action. A non-empty err replaces
// the one-shot error, otherwise the error is cleared and flash is shown.
type actionResultMsg struct {
	flash          string
	err            string
	clearSelection bool
}

// runAction executes fn off the UI goroutine.
func runAction(fn func(ctx context.Context) actionResultMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return fn(ctx)
	}
}

// answerPrompt sends the tool's approval or rejection keys followed by
// Enter to every target that needs attention. It stops at the first
// failure.
func answerPrompt(ctx context.Context, act Actions, reg *parsers.Registry, targets []agents.MonitoredAgent, approve bool) actionResultMsg {
	verb, done := "reject", "Rejected"
	if approve {
		verb, done = "approve", "Approved"
	}

	n := 0
	for _, a := range targets {
		if !a.NeedsAttention() || !a.IsLocal() {
			continue
		}
		keys := promptKeys(reg, a.Tool, approve)
		if err := act.SendKeys(ctx, a.Target, keys); err != nil {
			uiLog.Warn("prompt_answer_failed", slog.String("target", a.Target), slog.String("error", err.Error()))
			return actionResultMsg{err: fmt.Sprintf("Failed to %s: %v", verb, err), clearSelection: true}
		}
		if err := act.SendKeys(ctx, a.Target, "Enter"); err != nil {
			return actionResultMsg{err: fmt.Sprintf("Failed to send Enter: %v", err), clearSelection: true}
		}
		n++
	}

	res := actionResultMsg{clearSelection: true}
	if n > 0 {
		res.flash = fmt.Sprintf("%s %d agent(s)", done, n)
	}
	return res
}

// promptKeys falls back to y/n for tools without a registered parser.
func promptKeys(reg *parsers.Registry, tool agents.Tool, approve bool) string {
	var p parsers.Parser
	if reg != nil {
		p = reg.ForTool(tool)
	}
	switch {
	case p != nil && approve:
		return p.ApprovalKeys()
	case p != nil:
		return p.RejectionKeys()
	case approve:
		return "y"
	default:
		return "n"
	}
}

// sendChoice answers a numbered question with a single digit.
func sendChoice(ctx context.Context, act Actions, a agents.MonitoredAgent, digit int) actionResultMsg {
	if !a.IsLocal() {
		return actionResultMsg{err: fmt.Sprintf("Failed to send choice: %v", errRemoteAgent)}
	}
	if err := act.SendKeys(ctx, a.Target, fmt.Sprint(digit)); err != nil {
		return actionResultMsg{err: fmt.Sprintf("Failed to send choice: %v", err)}
	}
	if err := act.SendKeys(ctx, a.Target, "Enter"); err != nil {
		return actionResultMsg{err: fmt.Sprintf("Failed to send Enter: %v", err)}
	}
	return actionResultMsg{flash: fmt.Sprintf("Sent %d to %s", digit, a.AbbreviatedPath())}
}

func focusPane(ctx context.Context, act Actions, a agents.MonitoredAgent) actionResultMsg {
	if !a.IsLocal() {
		return actionResultMsg{err: fmt.Sprintf("Failed to focus: %v", errRemoteAgent)}
	}
	if err := act.FocusPane(ctx, a.Target); err != nil {
		return actionResultMsg{err: fmt.Sprintf("Failed to focus: %v", err)}
	}
	return actionResultMsg{flash: "Focused " + a.Target}
}

// copyPreview puts the agent's captured pane text on the clipboard.
func copyPreview(copyFn func(string) (*clipboard.Result, error), a agents.MonitoredAgent) actionResultMsg {
	text := strings.Join(previewLines(a.LastContent), "\n")
	if text == "" {
		return actionResultMsg{err: "Failed to copy: no captured output"}
	}
	res, err := copyFn(text)
	if err != nil {
		return actionResultMsg{err: fmt.Sprintf("Failed to copy: %v", err)}
	}
	return actionResultMsg{flash: fmt.Sprintf("Copied %d lines via %s", res.Lines, res.Method)}
}

// sendInput types text into one agent's pane and presses Enter.
func sendInput(ctx context.Context, act Actions, a agents.MonitoredAgent, text string) actionResultMsg {
	if !a.IsLocal() {
		return actionResultMsg{err: fmt.Sprintf("Failed to send input: %v", errRemoteAgent)}
	}
	if err := act.SendLiteralAndEnter(ctx, a.Target, text); err != nil {
		return actionResultMsg{err: fmt.Sprintf("Failed to send input: %v", err)}
	}
	return actionResultMsg{flash: "Sent to " + a.AbbreviatedPath()}
}

// broadcastInput sends text to every local target. Failures are skipped so
// one closed pane does not block the rest.
func broadcastInput(ctx context.Context, act Actions, targets []agents.MonitoredAgent, text string) actionResultMsg {
	sent := 0
	var failed []string
	for _, a := range targets {
		if !a.IsLocal() {
			continue
		}
		if err := act.SendLiteralAndEnter(ctx, a.Target, text); err != nil {
			uiLog.Warn("broadcast_send_failed", slog.String("target", a.Target), slog.String("error", err.Error()))
			failed = append(failed, a.Target)
			continue
		}
		sent++
	}
	res := actionResultMsg{flash: fmt.Sprintf("Sent to %d agent(s)", sent), clearSelection: true}
	if len(failed) > 0 {
		res.err = "Failed to send input to " + strings.Join(failed, ", ")
	}
	return res
}
