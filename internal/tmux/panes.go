package tmux

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// paneFormat puts the title last so tabs inside it survive SplitN.
const paneFormat = "#{session_attached}\t#{session_name}\t#{window_index}\t#{window_name}\t#{pane_index}\t#{pane_current_command}\t#{pane_pid}\t#{pane_current_path}\t#{pane_title}"

const paneFields = 9

// descendantDepth is how many generations below the pane shell are searched
// for the agent's executable (shell -> node -> claude).
const descendantDepth = 2

// Pane is one tmux pane of an attached session.
type Pane struct {
	Session     string
	WindowIndex int
	WindowName  string
	PaneIndex   int
	Command     string
	PID         int
	Title       string
	Path        string

	// CmdLine is the full command line of PID from the process cache.
	CmdLine string
	// ChildCommands are descendant command lines and their basenames.
	ChildCommands []string
}

// Target returns the session:window.pane address tmux accepts with -t.
func (p Pane) Target() string {
	return fmt.Sprintf("%s:%d.%d", p.Session, p.WindowIndex, p.PaneIndex)
}

// DetectionStrings returns the strings parsers match against, in order.
func (p Pane) DetectionStrings() []string {
	out := make([]string, 0, 3+len(p.ChildCommands))
	out = append(out, p.Command, p.Title, p.CmdLine)
	out = append(out, p.ChildCommands...)
	return out
}

// ListPanes returns every pane of every attached session, enriched with
// process information. Targets in the result are unique.
func (c *Client) ListPanes(ctx context.Context) ([]Pane, error) {
	c.procs.Refresh(ctx)

	out, err := c.run(ctx, listTimeout, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to list panes: %w", err)
	}

	panes := parsePaneListing(string(out))
	for i := range panes {
		if cmd, ok := c.procs.CommandLine(panes[i].PID); ok {
			panes[i].CmdLine = cmd
		}
		panes[i].ChildCommands = c.procs.DescendantCommands(panes[i].PID, descendantDepth)
	}
	return panes, nil
}

// parsePaneListing keeps panes of attached sessions. Malformed lines and
// repeated targets are dropped.
func parsePaneListing(out string) []Pane {
	var panes []Pane
	seen := make(map[string]bool)

	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", paneFields)
		if len(parts) != paneFields {
			tmuxLog.Debug("pane_line_malformed", slog.Int("fields", len(parts)))
			continue
		}
		if attached := strings.TrimSpace(parts[0]); attached == "" || attached == "0" {
			continue
		}

		window, err1 := strconv.Atoi(parts[2])
		pane, err2 := strconv.Atoi(parts[4])
		pid, err3 := strconv.Atoi(parts[6])
		if err1 != nil || err2 != nil || err3 != nil {
			tmuxLog.Debug("pane_line_malformed", slog.String("session", parts[1]))
			continue
		}

		p := Pane{
			Session:     parts[1],
			WindowIndex: window,
			WindowName:  parts[3],
			PaneIndex:   pane,
			Command:     parts[5],
			PID:         pid,
			Path:        parts[7],
			Title:       strings.TrimRight(parts[8], "\r"),
		}
		if seen[p.Target()] {
			continue
		}
		seen[p.Target()] = true
		panes = append(panes, p)
	}
	return panes
}
