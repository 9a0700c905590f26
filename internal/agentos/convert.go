package agentos

import (
	"fmt"
	"strings"
	"time"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

// Include reports whether a remote session is worth showing: it has a real
// project or it is doing something.
func Include(p Pane) bool {
	hasProject := p.Project != "" && p.Project != "--"
	return hasProject || p.PTYRunning || p.Status == "active"
}

// ToAgent converts a remote session into a dashboard agent. Remote agents
// have no pane to send keys to.
func ToAgent(p Pane, now time.Time) agents.MonitoredAgent {
	theme := strings.ToLower(p.Theme)

	var status agents.Status
	switch {
	case p.Status == "active" && p.PTYRunning:
		status = agents.Processing(p.Task)
	case p.Status == "active" || p.Status == "idle":
		status = agents.Idle()
	default:
		status = agents.Unknown()
	}

	windowName := p.Project
	if windowName == "--" || windowName == "" {
		windowName = fmt.Sprintf("pane-%d", p.Pane)
	}
	path := p.Workspace
	if path == "" {
		path = p.Project
	}

	return agents.MonitoredAgent{
		ID:          fmt.Sprintf("agentos-%d", p.Pane),
		Target:      fmt.Sprintf("agentos:%d:%s", p.Pane, theme),
		Session:     "agentos-" + theme,
		WindowName:  windowName,
		Pane:        p.Pane,
		Path:        path,
		Branch:      p.Branch,
		Tool:        agents.ToolClaude,
		Source:      agents.SourceRemote,
		Status:      status,
		FirstSeen:   now,
		LastUpdated: now,
	}
}
