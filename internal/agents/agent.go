package agents

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// SubagentType is the delegation type reported by the primary tool.
// Unrecognized names are kept verbatim.
type SubagentType string

const (
	SubagentExplore          SubagentType = "Explore"
	SubagentPlan             SubagentType = "Plan"
	SubagentGeneralPurpose   SubagentType = "general-purpose"
	SubagentStatuslineSetup  SubagentType = "statusline-setup"
	SubagentOutputStyleSetup SubagentType = "output-style-setup"
)

var knownSubagentTypes = []SubagentType{
	SubagentExplore,
	SubagentPlan,
	SubagentGeneralPurpose,
	SubagentStatuslineSetup,
	SubagentOutputStyleSetup,
}

// ParseSubagentType maps a name onto the known set case-insensitively.
func ParseSubagentType(name string) SubagentType {
	for _, t := range knownSubagentTypes {
		if strings.EqualFold(string(t), name) {
			return t
		}
	}
	return SubagentType(name)
}

// Known reports whether the type belongs to the built-in set.
func (t SubagentType) Known() bool {
	for _, k := range knownSubagentTypes {
		if k == t {
			return true
		}
	}
	return false
}

func (t SubagentType) String() string { return string(t) }

// SubagentStatus is the lifecycle state of a subagent.
type SubagentStatus int

const (
	SubagentRunning SubagentStatus = iota
	SubagentCompleted
	SubagentFailed
	SubagentUnknown
)

func (s SubagentStatus) String() string {
	switch s {
	case SubagentRunning:
		return "running"
	case SubagentCompleted:
		return "completed"
	case SubagentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Icon returns the glyph used in the subagent log.
func (s SubagentStatus) Icon() string {
	switch s {
	case SubagentRunning:
		return "▶"
	case SubagentCompleted:
		return "✓"
	case SubagentFailed:
		return "✗"
	default:
		return "?"
	}
}

// Subagent is a sub-task detected in the owning pane's text.
// CreatedAt is zero when produced by a parser; the poller stamps it.
type Subagent struct {
	ID          string
	Type        SubagentType
	Description string
	Status      SubagentStatus
	CreatedAt   time.Time
}

// Elapsed returns how long the subagent has been tracked.
func (s Subagent) Elapsed(now time.Time) time.Duration {
	if s.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.CreatedAt)
}

// Source tells where an agent was discovered.
type Source int

const (
	SourceLocal Source = iota
	SourceRemote
)

func (s Source) String() string {
	if s == SourceRemote {
		return "remote"
	}
	return "local"
}

// MonitoredAgent is the unit the dashboard displays and acts on.
type MonitoredAgent struct {
	ID         string
	Target     string
	Session    string
	Window     int
	WindowName string
	Pane       int
	Path       string
	Branch     string
	Tool       Tool
	Source     Source
	Status     Status
	Subagents  []Subagent

	LastContent string
	PID         int

	FirstSeen   time.Time
	LastUpdated time.Time

	// ContextRemaining is the percentage reported by the tool, nil when unseen.
	ContextRemaining *int
}

// LocalID is the id of an agent discovered in a tmux pane.
func LocalID(target string, pid int) string {
	return fmt.Sprintf("%s-%d", target, pid)
}

// IsLocal reports whether keys can be sent to the agent's pane.
func (a *MonitoredAgent) IsLocal() bool {
	return a.Source == SourceLocal
}

// NeedsAttention mirrors Status.NeedsAttention.
func (a *MonitoredAgent) NeedsAttention() bool {
	return a.Status.NeedsAttention()
}

// UptimeString formats time since first seen as 42s, 5m or 1h3m.
func (a *MonitoredAgent) UptimeString(now time.Time) string {
	secs := int64(now.Sub(a.FirstSeen).Seconds())
	if secs < 0 {
		secs = 0
	}
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%dh%dm", secs/3600, (secs%3600)/60)
	}
}

// LastUpdatedString formats time since the last reclassification.
func (a *MonitoredAgent) LastUpdatedString(now time.Time) string {
	d := now.Sub(a.LastUpdated)
	switch {
	case d < 5*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	default:
		return humanize.RelTime(a.LastUpdated, now, "ago", "from now")
	}
}

// ShortPath returns the last path component, or ~ for an empty path.
func (a *MonitoredAgent) ShortPath() string {
	if a.Path == "" {
		return "~"
	}
	parts := strings.Split(a.Path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return a.Path
}

// AbbreviatedPath shortens every component but the last to its first rune,
// e.g. /Users/tim/Dev/project becomes /U/t/D/project.
func (a *MonitoredAgent) AbbreviatedPath() string {
	if a.Path == "" {
		return "~"
	}
	var parts []string
	for _, p := range strings.Split(a.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return "/"
	case 1:
		return "/" + parts[0]
	}
	short := make([]string, 0, len(parts)-1)
	for _, p := range parts[:len(parts)-1] {
		short = append(short, string([]rune(p)[:1]))
	}
	return "/" + strings.Join(short, "/") + "/" + parts[len(parts)-1]
}

// ActiveSubagentCount counts subagents still running.
func (a *MonitoredAgent) ActiveSubagentCount() int {
	n := 0
	for _, s := range a.Subagents {
		if s.Status == SubagentRunning {
			n++
		}
	}
	return n
}
