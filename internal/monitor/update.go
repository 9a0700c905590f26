package monitor

import (
	"time"

	"github.com/asheshgoplani/agent-watch/internal/agentos"
	"github.com/asheshgoplani/agent-watch/internal/agents"
)

// Update is one poll cycle's snapshot. Receivers must treat it as
// read-only. The slow-cadence fields are nil when they were not refreshed
// this cycle and the receiver should keep what it had.
type Update struct {
	Agents          []agents.MonitoredAgent
	Queue           []agentos.QueueTask
	RemoteConnected bool
	Flash           string

	Dashboard        *agentos.Dashboard
	Digest           *agentos.Digest
	Alerts           *agentos.Alerts
	PipelineRequests []agentos.PipelineRequest

	Poll uint64
	At   time.Time
}

// Command is a request from the UI to the poller. Commands are drained
// at the start of every cycle.
type Command interface {
	isCommand()
}

// SubmitRequest sends free text to the remote pipeline.
type SubmitRequest struct {
	Text string
}

// Reconfigure changes polling parameters. Zero fields are left alone.
type Reconfigure struct {
	Interval     time.Duration
	CaptureLines int
}

// RefreshNow forces the slow-cadence fetch on the next cycle.
type RefreshNow struct{}

func (SubmitRequest) isCommand() {}
func (Reconfigure) isCommand()   {}
func (RefreshNow) isCommand()    {}
