// Package monitor runs the poll loop that turns tmux panes and remote
// AgentOS sessions into dashboard snapshots.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/asheshgoplani/agent-watch/internal/agentos"
	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/history"
	"github.com/asheshgoplani/agent-watch/internal/logging"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
	"github.com/asheshgoplani/agent-watch/internal/tmux"
)

var (
	pollLog = logging.ForComponent(logging.CompPoll)
	perfLog = logging.ForComponent(logging.CompPerf)
)

const (
	DefaultInterval       = 500 * time.Millisecond
	DefaultCaptureLines   = 100
	DefaultSlowEvery      = 10
	DefaultCaptureWorkers = 8
)

// PaneSource lists tmux panes and captures their text.
type PaneSource interface {
	ListPanes(ctx context.Context) ([]tmux.Pane, error)
	CapturePane(ctx context.Context, target string, lines int) (string, error)
}

// RemoteSource is the AgentOS API surface the poller uses.
type RemoteSource interface {
	Panes(ctx context.Context) ([]agentos.Pane, error)
	Queue(ctx context.Context) ([]agentos.QueueTask, error)
	Dashboard(ctx context.Context) (*agentos.Dashboard, error)
	Digest(ctx context.Context) (*agentos.Digest, error)
	Alerts(ctx context.Context) (*agentos.Alerts, error)
	PipelineRequests(ctx context.Context) ([]agentos.PipelineRequest, error)
	SubmitRequest(ctx context.Context, text string) (*agentos.SubmitResult, error)
}

// Recorder receives status-kind transitions.
type Recorder interface {
	RecordTransition(ctx context.Context, t history.Transition) error
}

// BranchLookup resolves the git branch of a working directory.
type BranchLookup interface {
	Branch(ctx context.Context, dir string) string
}

// Deps are the poller's collaborators. Remote, Recorder and Branches are
// optional.
type Deps struct {
	Panes    PaneSource
	Remote   RemoteSource
	Parsers  *parsers.Registry
	Recorder Recorder
	Branches BranchLookup
	Now      func() time.Time
}

// Options tune the loop. Zero values take the defaults.
type Options struct {
	Interval       time.Duration
	CaptureLines   int
	Grace          time.Duration
	SlowEvery      uint64
	CaptureWorkers int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.CaptureLines <= 0 {
		o.CaptureLines = DefaultCaptureLines
	}
	if o.SlowEvery == 0 {
		o.SlowEvery = DefaultSlowEvery
	}
	if o.CaptureWorkers <= 0 {
		o.CaptureWorkers = DefaultCaptureWorkers
	}
	return o
}

// Poller owns all per-cycle state. Run and Poll must not be called
// concurrently.
type Poller struct {
	deps Deps
	opts Options

	stab      *Stabilizer
	backoff   Backoff
	poll      uint64
	connected bool
	forceSlow bool

	prev map[string]agents.MonitoredAgent
}

func New(deps Deps, opts Options) *Poller {
	if deps.Parsers == nil {
		deps.Parsers = parsers.DefaultRegistry(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	opts = opts.withDefaults()
	return &Poller{
		deps: deps,
		opts: opts,
		stab: NewStabilizer(opts.Grace),
		prev: make(map[string]agents.MonitoredAgent),
	}
}

// Options returns the effective options.
func (p *Poller) Options() Options { return p.opts }

// Run polls until ctx is cancelled, sending one Update per cycle. Sends
// block, so updates arrive in cycle order.
func (p *Poller) Run(ctx context.Context, updates chan<- Update, commands <-chan Command) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	pollLog.Info("poller_started",
		slog.Duration("interval", p.opts.Interval),
		slog.Int("capture_lines", p.opts.CaptureLines),
		slog.Bool("remote", p.deps.Remote != nil))

	for {
		interval := p.opts.Interval
		flash := p.drain(ctx, commands)
		if p.opts.Interval != interval {
			ticker.Reset(p.opts.Interval)
		}

		u := p.Poll(ctx)
		if flash != "" {
			u.Flash = flash
		}

		select {
		case updates <- u:
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain handles every queued command without blocking and returns the
// last flash message they produced.
func (p *Poller) drain(ctx context.Context, commands <-chan Command) string {
	var flash string
	for {
		select {
		case cmd, ok := <-commands:
			if !ok {
				return flash
			}
			if msg := p.handle(ctx, cmd); msg != "" {
				flash = msg
			}
		default:
			return flash
		}
	}
}

func (p *Poller) handle(ctx context.Context, cmd Command) string {
	switch c := cmd.(type) {
	case SubmitRequest:
		if p.deps.Remote == nil || !p.connected {
			return "Pipeline: AgentOS not connected"
		}
		res, err := p.deps.Remote.SubmitRequest(ctx, c.Text)
		if err != nil {
			pollLog.Warn("pipeline_submit_failed", slog.String("error", err.Error()))
			return "Pipeline error: " + err.Error()
		}
		p.forceSlow = true
		return fmt.Sprintf("Pipeline: %s (%s)", res.Message, res.ID)

	case Reconfigure:
		if c.Interval > 0 {
			p.opts.Interval = c.Interval
		}
		if c.CaptureLines > 0 {
			p.opts.CaptureLines = c.CaptureLines
		}
		pollLog.Info("poller_reconfigured",
			slog.Duration("interval", p.opts.Interval),
			slog.Int("capture_lines", p.opts.CaptureLines))
		return "Config reloaded"

	case RefreshNow:
		p.forceSlow = true
		return ""

	default:
		pollLog.Warn("unknown_command", slog.String("type", fmt.Sprintf("%T", cmd)))
		return ""
	}
}

// Poll runs one cycle: local panes, remote sessions and queue, ordering,
// connectivity flash, then the slow-cadence fetch.
func (p *Poller) Poll(ctx context.Context) Update {
	start := time.Now()
	n := p.poll
	p.poll++
	now := p.deps.Now()

	list := p.pollLocal(ctx, now)

	var (
		queue     []agentos.QueueTask
		connected bool
	)
	if p.deps.Remote != nil {
		list, queue, connected = p.pollRemote(ctx, n, now, list)
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].Target < list[j].Target })

	u := Update{
		Agents:          list,
		Queue:           queue,
		RemoteConnected: connected,
		Poll:            n,
		At:              now,
	}

	switch {
	case connected && !p.connected:
		u.Flash = "AgentOS connected"
		pollLog.Info("remote_connected")
	case !connected && p.connected:
		u.Flash = "AgentOS disconnected"
		pollLog.Warn("remote_disconnected")
	}
	p.connected = connected

	if connected && (n%p.opts.SlowEvery == 0 || p.forceSlow) {
		p.forceSlow = false
		p.fetchSlow(ctx, &u)
	}

	p.recordTransitions(ctx, list, now)
	p.remember(list)

	if elapsed := time.Since(start); elapsed > p.opts.Interval {
		perfLog.Debug("slow_poll",
			slog.Uint64("poll", n),
			slog.Duration("elapsed", elapsed),
			slog.Int("agents", len(list)))
	}
	return u
}

type paneMatch struct {
	pane    tmux.Pane
	parser  parsers.Parser
	content string
	ok      bool
}

// pollLocal classifies every pane a parser claims. Captures run in
// parallel; classification runs sequentially in pane order afterwards.
func (p *Poller) pollLocal(ctx context.Context, now time.Time) []agents.MonitoredAgent {
	panes, err := p.deps.Panes.ListPanes(ctx)
	if err != nil {
		pollLog.Warn("pane_list_failed", slog.String("error", err.Error()))
		return nil
	}

	live := make([]string, 0, len(panes))
	var matches []*paneMatch
	for _, pane := range panes {
		live = append(live, pane.Target())
		if parser := p.deps.Parsers.Find(pane.DetectionStrings()); parser != nil {
			matches = append(matches, &paneMatch{pane: pane, parser: parser})
		}
	}
	p.stab.Retain(live)

	var g errgroup.Group
	g.SetLimit(p.opts.CaptureWorkers)
	lines := p.opts.CaptureLines
	for _, m := range matches {
		g.Go(func() error {
			content, err := p.deps.Panes.CapturePane(ctx, m.pane.Target(), lines)
			if err != nil {
				logging.Aggregate(logging.CompPoll, "capture_failed",
					slog.String("target", m.pane.Target()),
					slog.String("error", err.Error()))
				return nil
			}
			m.content = content
			m.ok = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]agents.MonitoredAgent, 0, len(matches))
	for _, m := range matches {
		if !m.ok {
			continue
		}
		out = append(out, p.classify(ctx, m, now))
	}
	return out
}

func (p *Poller) classify(ctx context.Context, m *paneMatch, now time.Time) agents.MonitoredAgent {
	pane := m.pane
	target := pane.Target()

	status := m.parser.ParseStatus(m.content)
	if tmux.TitleShowsSpinner(pane.Title) &&
		(status.Kind == agents.StatusIdle || status.Kind == agents.StatusUnknown) {
		status = agents.Processing(WorkingLabel)
	}
	status = p.stab.Apply(target, status, now)

	a := agents.MonitoredAgent{
		ID:          agents.LocalID(target, pane.PID),
		Target:      target,
		Session:     pane.Session,
		Window:      pane.WindowIndex,
		WindowName:  pane.WindowName,
		Pane:        pane.PaneIndex,
		Path:        pane.Path,
		Tool:        m.parser.Tool(),
		Source:      agents.SourceLocal,
		Status:      status,
		Subagents:   m.parser.ParseSubagents(m.content),
		LastContent: m.content,
		PID:         pane.PID,
		FirstSeen:   now,
		LastUpdated: now,
	}
	if pct, ok := m.parser.ParseContextRemaining(m.content); ok {
		a.ContextRemaining = &pct
	}
	if p.deps.Branches != nil {
		a.Branch = p.deps.Branches.Branch(ctx, pane.Path)
	}
	p.carryOver(&a, now)
	return a
}

// pollRemote merges remote sessions into list and fetches the queue,
// subject to backoff. A skipped poll counts as disconnected.
func (p *Poller) pollRemote(ctx context.Context, n uint64, now time.Time, list []agents.MonitoredAgent) ([]agents.MonitoredAgent, []agentos.QueueTask, bool) {
	if !p.backoff.ShouldTry(n) {
		logging.Aggregate(logging.CompRemote, "remote_poll_skipped",
			slog.Int("failures", p.backoff.Failures()))
		return list, nil, false
	}

	connected := false
	panes, err := p.deps.Remote.Panes(ctx)
	if err != nil {
		p.backoff.Failure()
		pollLog.Debug("remote_panes_failed",
			slog.String("error", err.Error()),
			slog.Int("failures", p.backoff.Failures()))
	} else {
		p.backoff.Success()
		connected = true
		list = p.merge(list, panes, now)
	}

	queue, err := p.deps.Remote.Queue(ctx)
	if err != nil {
		pollLog.Debug("remote_queue_failed", slog.String("error", err.Error()))
		queue = nil
	}
	return list, queue, connected
}

type mergeKey struct {
	path string
	tool agents.Tool
}

// merge appends remote sessions not already represented. Agents sharing
// a non-empty working directory and tool are the same agent; the first
// one seen, local panes included, wins.
func (p *Poller) merge(list []agents.MonitoredAgent, panes []agentos.Pane, now time.Time) []agents.MonitoredAgent {
	seen := make(map[mergeKey]struct{}, len(list)+len(panes))
	for _, a := range list {
		if a.Path != "" {
			seen[mergeKey{a.Path, a.Tool}] = struct{}{}
		}
	}
	for _, rp := range panes {
		if !agentos.Include(rp) {
			continue
		}
		a := agentos.ToAgent(rp, now)
		if a.Path != "" {
			key := mergeKey{a.Path, a.Tool}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		p.carryOver(&a, now)
		list = append(list, a)
	}
	return list
}

// fetchSlow refreshes the dashboard, digest, alerts and pipeline requests
// concurrently. Failures leave the field nil.
func (p *Poller) fetchSlow(ctx context.Context, u *Update) {
	var (
		dash   *agentos.Dashboard
		digest *agentos.Digest
		alerts *agentos.Alerts
		reqs   []agentos.PipelineRequest
	)
	remote := p.deps.Remote

	var g errgroup.Group
	g.Go(func() error {
		d, err := remote.Dashboard(ctx)
		if err != nil {
			pollLog.Debug("dashboard_fetch_failed", slog.String("error", err.Error()))
			return nil
		}
		dash = d
		return nil
	})
	g.Go(func() error {
		d, err := remote.Digest(ctx)
		if err != nil {
			pollLog.Debug("digest_fetch_failed", slog.String("error", err.Error()))
			return nil
		}
		digest = d
		return nil
	})
	g.Go(func() error {
		a, err := remote.Alerts(ctx)
		if err != nil {
			pollLog.Debug("alerts_fetch_failed", slog.String("error", err.Error()))
			return nil
		}
		alerts = a
		return nil
	})
	g.Go(func() error {
		r, err := remote.PipelineRequests(ctx)
		if err != nil {
			pollLog.Debug("pipeline_fetch_failed", slog.String("error", err.Error()))
			return nil
		}
		if r == nil {
			r = []agentos.PipelineRequest{}
		}
		reqs = r
		return nil
	})
	_ = g.Wait()

	if dash != nil {
		if dash.Digest != nil {
			digest = dash.Digest
		}
		if dash.Alerts != nil {
			alerts = dash.Alerts
		}
	}
	u.Dashboard = dash
	u.Digest = digest
	u.Alerts = alerts
	u.PipelineRequests = reqs
}

// carryOver keeps FirstSeen and subagent start times stable across polls.
// Subagents are matched on id and type, so two concurrent subagents of
// the same type at shifted positions may swap start times.
func (p *Poller) carryOver(a *agents.MonitoredAgent, now time.Time) {
	prev, ok := p.prev[a.ID]
	if ok {
		a.FirstSeen = prev.FirstSeen
	}
	for i := range a.Subagents {
		sa := &a.Subagents[i]
		sa.CreatedAt = now
		if !ok {
			continue
		}
		for _, old := range prev.Subagents {
			if old.ID == sa.ID && old.Type == sa.Type {
				sa.CreatedAt = old.CreatedAt
				break
			}
		}
	}
}

func (p *Poller) recordTransitions(ctx context.Context, list []agents.MonitoredAgent, now time.Time) {
	if p.deps.Recorder == nil {
		return
	}
	for _, a := range list {
		prev, ok := p.prev[a.ID]
		if !ok || prev.Status.Kind == a.Status.Kind {
			continue
		}
		t := history.Transition{
			At:      now,
			AgentID: a.ID,
			Target:  a.Target,
			Tool:    a.Tool,
			From:    prev.Status.Kind,
			To:      a.Status.Kind,
			Detail:  a.Status.ShortText(),
		}
		if err := p.deps.Recorder.RecordTransition(ctx, t); err != nil {
			pollLog.Warn("record_transition_failed",
				slog.String("agent", a.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (p *Poller) remember(list []agents.MonitoredAgent) {
	next := make(map[string]agents.MonitoredAgent, len(list))
	for _, a := range list {
		next[a.ID] = a
	}
	p.prev = next
}
