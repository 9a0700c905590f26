package monitor

import (
	"time"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

const (
	// DefaultGrace is how long an idle-looking capture is reported as
	// still working after the last active classification.
	DefaultGrace = 2000 * time.Millisecond

	// WorkingLabel is the activity shown for inferred work.
	WorkingLabel = "Working..."
)

// Stabilizer suppresses Idle flicker between active samples of a pane.
// It is not safe for concurrent use; the poller owns it.
type Stabilizer struct {
	grace      time.Duration
	lastActive map[string]time.Time
}

func NewStabilizer(grace time.Duration) *Stabilizer {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Stabilizer{grace: grace, lastActive: make(map[string]time.Time)}
}

// Apply returns the status to report for target. Active statuses refresh
// the target's timestamp; Idle within the grace window becomes Processing.
// Error and Unknown pass through.
func (s *Stabilizer) Apply(target string, status agents.Status, now time.Time) agents.Status {
	if status.IsActive() {
		s.lastActive[target] = now
		return status
	}
	if status.Kind != agents.StatusIdle {
		return status
	}
	if last, ok := s.lastActive[target]; ok && now.Sub(last) < s.grace {
		return agents.Processing(WorkingLabel)
	}
	return status
}

// Retain forgets every target not in live.
func (s *Stabilizer) Retain(live []string) {
	keep := make(map[string]struct{}, len(live))
	for _, t := range live {
		keep[t] = struct{}{}
	}
	for t := range s.lastActive {
		if _, ok := keep[t]; !ok {
			delete(s.lastActive, t)
		}
	}
}

func (s *Stabilizer) Len() int { return len(s.lastActive) }
