package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/agent-watch/internal/agentos"
	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/history"
	"github.com/asheshgoplani/agent-watch/internal/tmux"
)

type fakePanes struct {
	mu         sync.Mutex
	panes      []tmux.Pane
	listErr    error
	content    map[string]string
	captureErr map[string]error
	captures   int
}

func (f *fakePanes) ListPanes(context.Context) ([]tmux.Pane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.panes, f.listErr
}

func (f *fakePanes) CapturePane(_ context.Context, target string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures++
	if err := f.captureErr[target]; err != nil {
		return "", err
	}
	return f.content[target], nil
}

func (f *fakePanes) set(target, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content[target] = content
}

type fakeRemote struct {
	mu        sync.Mutex
	panes     []agentos.Pane
	panesErr  error
	queue     []agentos.QueueTask
	dashboard *agentos.Dashboard
	digest    *agentos.Digest
	submitErr error

	panesCalls     int
	queueCalls     int
	dashboardCalls int
	submitted      []string
}

func (f *fakeRemote) Panes(context.Context) ([]agentos.Pane, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panesCalls++
	return f.panes, f.panesErr
}

func (f *fakeRemote) Queue(context.Context) ([]agentos.QueueTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queueCalls++
	return f.queue, nil
}

func (f *fakeRemote) Dashboard(context.Context) (*agentos.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dashboardCalls++
	if f.dashboard == nil {
		return nil, errors.New("no dashboard")
	}
	return f.dashboard, nil
}

func (f *fakeRemote) Digest(context.Context) (*agentos.Digest, error) {
	return f.digest, nil
}

func (f *fakeRemote) Alerts(context.Context) (*agentos.Alerts, error) {
	return &agentos.Alerts{Count: 1}, nil
}

func (f *fakeRemote) PipelineRequests(context.Context) ([]agentos.PipelineRequest, error) {
	return nil, nil
}

func (f *fakeRemote) SubmitRequest(_ context.Context, text string) (*agentos.SubmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, text)
	return &agentos.SubmitResult{ID: "req-1", Message: "queued"}, nil
}

func (f *fakeRemote) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panesErr = err
}

type fakeRecorder struct {
	got []history.Transition
}

func (r *fakeRecorder) RecordTransition(_ context.Context, t history.Transition) error {
	r.got = append(r.got, t)
	return nil
}

type fakeBranches map[string]string

func (b fakeBranches) Branch(_ context.Context, dir string) string { return b[dir] }

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time            { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func samplePanes() *fakePanes {
	return &fakePanes{
		panes: []tmux.Pane{
			{Session: "work", WindowIndex: 1, WindowName: "web", PaneIndex: 0, Command: "codex", PID: 200, Path: "/src/web"},
			{Session: "work", WindowIndex: 0, WindowName: "api", PaneIndex: 0, Command: "claude", PID: 100, Path: "/src/api"},
			{Session: "work", WindowIndex: 0, WindowName: "api", PaneIndex: 1, Command: "zsh", PID: 150, Path: "/src/api"},
			{Session: "work", WindowIndex: 2, WindowName: "docs", PaneIndex: 0, Command: "node", PID: 300, Path: "/src/docs", Title: "⠋ Claude Code"},
		},
		content: map[string]string{
			"work:0.0": "Do you want to edit foo.rs? [y/n]",
			"work:1.0": "Thinking about the change",
			"work:0.1": "$ ",
			"work:2.0": "> ",
		},
		captureErr: map[string]error{},
	}
}

func newTestPoller(panes PaneSource, remote RemoteSource, clock *testClock) *Poller {
	deps := Deps{Panes: panes, Now: clock.now}
	if remote != nil {
		deps.Remote = remote
	}
	return New(deps, Options{CaptureWorkers: 2})
}

func findAgent(t *testing.T, list []agents.MonitoredAgent, target string) agents.MonitoredAgent {
	t.Helper()
	for _, a := range list {
		if a.Target == target {
			return a
		}
	}
	require.Failf(t, "agent not found", "target %s", target)
	return agents.MonitoredAgent{}
}

func targets(list []agents.MonitoredAgent) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Target
	}
	return out
}

func TestPollClassifiesLocalPanes(t *testing.T) {
	clock := newClock()
	panes := samplePanes()
	p := newTestPoller(panes, nil, clock)

	u := p.Poll(context.Background())

	assert.Equal(t, []string{"work:0.0", "work:1.0", "work:2.0"}, targets(u.Agents))
	assert.Equal(t, 3, panes.captures, "unmatched panes are not captured")
	assert.False(t, u.RemoteConnected)
	assert.Empty(t, u.Flash)
	assert.Equal(t, clock.t, u.At)

	claude := findAgent(t, u.Agents, "work:0.0")
	assert.Equal(t, "work:0.0-100", claude.ID)
	assert.Equal(t, agents.ToolClaude, claude.Tool)
	assert.Equal(t, agents.StatusAwaitingApproval, claude.Status.Kind)
	assert.Equal(t, agents.ApprovalFileEdit, claude.Status.Approval.Type)
	assert.Equal(t, "api", claude.WindowName)
	assert.Equal(t, "/src/api", claude.Path)
	assert.Equal(t, agents.SourceLocal, claude.Source)
	assert.Equal(t, "Do you want to edit foo.rs? [y/n]", claude.LastContent)

	codex := findAgent(t, u.Agents, "work:1.0")
	assert.Equal(t, agents.ToolCodex, codex.Tool)
	assert.Equal(t, agents.Processing("Processing..."), codex.Status)

	// idle text under a spinner title
	spinner := findAgent(t, u.Agents, "work:2.0")
	assert.Equal(t, agents.Processing(WorkingLabel), spinner.Status)
}

func TestPollSkipsFailedCapture(t *testing.T) {
	panes := samplePanes()
	panes.captureErr["work:1.0"] = tmux.ErrCaptureTimeout
	p := newTestPoller(panes, nil, newClock())

	u := p.Poll(context.Background())
	assert.Equal(t, []string{"work:0.0", "work:2.0"}, targets(u.Agents))
}

func TestPollPaneListFailure(t *testing.T) {
	panes := samplePanes()
	remote := &fakeRemote{
		panes: []agentos.Pane{{Pane: 3, Theme: "Ocean", Status: "active", Project: "web"}},
		queue: []agentos.QueueTask{{ID: "t1"}},
	}
	p := newTestPoller(panes, remote, newClock())

	first := p.Poll(context.Background())
	require.Len(t, first.Agents, 4)
	tracked := p.stab.Len()
	require.Positive(t, tracked)

	panes.mu.Lock()
	panes.listErr = errors.New("tmux: no server running")
	panes.mu.Unlock()

	// Local agents drop out for the cycle; remote sessions still merge in.
	u := p.Poll(context.Background())
	require.Len(t, u.Agents, 1)
	assert.Equal(t, "agentos-3", u.Agents[0].ID)
	assert.Equal(t, agents.SourceRemote, u.Agents[0].Source)
	assert.Len(t, u.Queue, 1)
	assert.True(t, u.RemoteConnected)
	assert.Equal(t, tracked, p.stab.Len(), "a failed listing must not evict hysteresis state")
}

func TestPollMergesRemoteWithoutDuplicates(t *testing.T) {
	panes := samplePanes()
	remote := &fakeRemote{panes: []agentos.Pane{
		{Pane: 1, Theme: "Ocean", Status: "active", PTYRunning: true, Project: "api", Workspace: "/src/api", Task: "dup"},
		{Pane: 2, Theme: "Forest", Status: "active", PTYRunning: true, Project: "billing", Workspace: "/src/billing", Task: "invoices"},
		{Pane: 4, Theme: "Sand", Status: "idle", Project: "--"},
		{Pane: 5, Theme: "Moss", Status: "idle", Project: "billing", Workspace: "/src/billing"},
	}}
	p := newTestPoller(panes, remote, newClock())

	u := p.Poll(context.Background())

	assert.Equal(t, []string{"agentos:2:forest", "work:0.0", "work:1.0", "work:2.0"}, targets(u.Agents))
	billing := findAgent(t, u.Agents, "agentos:2:forest")
	assert.Equal(t, agents.Processing("invoices"), billing.Status)
	assert.Equal(t, agents.SourceRemote, billing.Source)
}

func TestPollRemoteBackoff(t *testing.T) {
	remote := &fakeRemote{panesErr: errors.New("connection refused")}
	p := newTestPoller(&fakePanes{}, remote, newClock())
	ctx := context.Background()

	for i := 0; i <= 32; i++ {
		u := p.Poll(ctx)
		assert.False(t, u.RemoteConnected)
		assert.Nil(t, u.Dashboard)
	}
	// polls 0, 2, 4, 8, 16 and 32
	assert.Equal(t, 6, remote.panesCalls)
	assert.Equal(t, 6, remote.queueCalls)
	assert.Equal(t, 0, remote.dashboardCalls)
	assert.Equal(t, 6, p.backoff.Failures())
}

func TestPollConnectivityFlashes(t *testing.T) {
	remote := &fakeRemote{}
	p := newTestPoller(&fakePanes{}, remote, newClock())
	ctx := context.Background()

	u := p.Poll(ctx)
	assert.True(t, u.RemoteConnected)
	assert.Equal(t, "AgentOS connected", u.Flash)

	assert.Empty(t, p.Poll(ctx).Flash)

	remote.fail(errors.New("down"))
	u = p.Poll(ctx)
	assert.False(t, u.RemoteConnected)
	assert.Equal(t, "AgentOS disconnected", u.Flash)

	// poll 3 is skipped by backoff, poll 4 retries and succeeds
	remote.fail(nil)
	assert.Empty(t, p.Poll(ctx).Flash)
	u = p.Poll(ctx)
	assert.Equal(t, uint64(4), u.Poll)
	assert.Equal(t, "AgentOS connected", u.Flash)
}

func TestPollSlowCadence(t *testing.T) {
	remote := &fakeRemote{
		dashboard: &agentos.Dashboard{
			Capacity: agentos.Capacity{ACUTotal: 10},
			Digest:   &agentos.Digest{ToolCalls: 99},
		},
		digest: &agentos.Digest{ToolCalls: 1},
	}
	p := newTestPoller(&fakePanes{}, remote, newClock())
	ctx := context.Background()

	u := p.Poll(ctx)
	require.NotNil(t, u.Dashboard)
	require.NotNil(t, u.Digest)
	assert.EqualValues(t, 99, u.Digest.ToolCalls, "embedded digest wins")
	require.NotNil(t, u.Alerts)
	assert.NotNil(t, u.PipelineRequests)
	assert.Empty(t, u.PipelineRequests)

	for i := 1; i < 10; i++ {
		u = p.Poll(ctx)
		assert.Nil(t, u.Dashboard, "poll %d", i)
		assert.Nil(t, u.PipelineRequests, "poll %d", i)
	}
	assert.NotNil(t, p.Poll(ctx).Dashboard, "poll 10")
	assert.Equal(t, 2, remote.dashboardCalls)

	p.handle(ctx, RefreshNow{})
	assert.NotNil(t, p.Poll(ctx).Dashboard, "forced refresh")
}

func TestSlowFetchFallsBackToStandaloneDigest(t *testing.T) {
	remote := &fakeRemote{digest: &agentos.Digest{ToolCalls: 1}}
	p := newTestPoller(&fakePanes{}, remote, newClock())

	u := p.Poll(context.Background())
	assert.Nil(t, u.Dashboard)
	require.NotNil(t, u.Digest)
	assert.EqualValues(t, 1, u.Digest.ToolCalls)
}

func TestHandleSubmitRequest(t *testing.T) {
	ctx := context.Background()

	p := newTestPoller(&fakePanes{}, nil, newClock())
	assert.Equal(t, "Pipeline: AgentOS not connected", p.handle(ctx, SubmitRequest{Text: "x"}))

	remote := &fakeRemote{}
	p = newTestPoller(&fakePanes{}, remote, newClock())
	assert.Equal(t, "Pipeline: AgentOS not connected", p.handle(ctx, SubmitRequest{Text: "x"}))

	p.Poll(ctx)
	assert.Equal(t, "Pipeline: queued (req-1)", p.handle(ctx, SubmitRequest{Text: "add search"}))
	assert.Equal(t, []string{"add search"}, remote.submitted)
	assert.True(t, p.forceSlow)

	remote.submitErr = errors.New("boom")
	assert.Equal(t, "Pipeline error: boom", p.handle(ctx, SubmitRequest{Text: "again"}))
}

func TestHandleReconfigure(t *testing.T) {
	p := newTestPoller(&fakePanes{}, nil, newClock())
	ctx := context.Background()

	assert.Equal(t, "Config reloaded", p.handle(ctx, Reconfigure{Interval: time.Second, CaptureLines: 200}))
	assert.Equal(t, time.Second, p.Options().Interval)
	assert.Equal(t, 200, p.Options().CaptureLines)

	p.handle(ctx, Reconfigure{})
	assert.Equal(t, time.Second, p.Options().Interval)
	assert.Equal(t, 200, p.Options().CaptureLines)
}

func TestPollRecordsTransitions(t *testing.T) {
	clock := newClock()
	panes := &fakePanes{
		panes:      []tmux.Pane{{Session: "s", Command: "codex", PID: 1}},
		content:    map[string]string{"s:0.0": "ready"},
		captureErr: map[string]error{},
	}
	rec := &fakeRecorder{}
	p := New(Deps{Panes: panes, Recorder: rec, Now: clock.now}, Options{})
	ctx := context.Background()

	p.Poll(ctx)
	assert.Empty(t, rec.got, "first sighting is not a transition")

	clock.advance(time.Second)
	p.Poll(ctx)
	assert.Empty(t, rec.got)

	panes.set("s:0.0", "Do you approve? [y/n]")
	clock.advance(time.Second)
	p.Poll(ctx)
	require.Len(t, rec.got, 1)
	tr := rec.got[0]
	assert.Equal(t, "s:0.0-1", tr.AgentID)
	assert.Equal(t, agents.ToolCodex, tr.Tool)
	assert.Equal(t, agents.StatusIdle, tr.From)
	assert.Equal(t, agents.StatusAwaitingApproval, tr.To)
	assert.Equal(t, clock.t, tr.At)
}

func TestRunCommandFlashWinsAndCancel(t *testing.T) {
	remote := &fakeRemote{}
	p := New(Deps{Panes: &fakePanes{}, Remote: remote}, Options{Interval: 10 * time.Millisecond})

	updates := make(chan Update, 1)
	commands := make(chan Command, 1)
	commands <- SubmitRequest{Text: "x"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, updates, commands) }()

	first := <-updates
	assert.Equal(t, uint64(0), first.Poll)
	assert.True(t, first.RemoteConnected)
	assert.Equal(t, "Pipeline: AgentOS not connected", first.Flash)

	second := <-updates
	assert.Equal(t, uint64(1), second.Poll)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
