package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/config"
	"github.com/asheshgoplani/agent-watch/internal/history"
	"github.com/asheshgoplani/agent-watch/internal/monitor"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
	"github.com/asheshgoplani/agent-watch/internal/tmux"
)

func TestApplyOverridesOnlyExplicitFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keeps config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 500, cfg.PollIntervalMS)
				assert.Equal(t, 100, cfg.CaptureLines)
				assert.True(t, cfg.AgentOSEnabled)
			},
		},
		{
			name: "short poll interval",
			args: []string{"-p", "250"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 250, cfg.PollIntervalMS)
			},
		},
		{
			name: "long poll interval below floor is clamped",
			args: []string{"--poll-interval", "5"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 100, cfg.PollIntervalMS)
			},
		},
		{
			name: "capture lines",
			args: []string{"-c", "40"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 40, cfg.CaptureLines)
			},
		},
		{
			name: "zero capture lines is ignored",
			args: []string{"--capture-lines", "0"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 100, cfg.CaptureLines)
			},
		},
		{
			name: "no-agentos disables remote",
			args: []string{"--no-agentos"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.False(t, cfg.AgentOSEnabled)
			},
		},
		{
			name: "agentos url re-enables remote",
			args: []string{"--agentos-url", "http://box:3100"},
			check: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "http://box:3100", cfg.AgentOSURL)
				assert.True(t, cfg.AgentOSEnabled)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, flags := newFlagSet("test")
			require.NoError(t, fs.Parse(tt.args))
			cfg := config.Default()
			flags.apply(cfg, fs)
			tt.check(t, cfg)
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "custom.toml")

	fs, flags := newFlagSet("test")
	require.NoError(t, fs.Parse([]string{"-f", want}))
	got, err := flags.resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	fs, flags = newFlagSet("test")
	require.NoError(t, fs.Parse([]string{"--config", want, "-f", "other.toml"}))
	got, err = flags.resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, want, got, "long flag wins")

	t.Setenv("HOME", dir)
	fs, flags = newFlagSet("test")
	require.NoError(t, fs.Parse(nil))
	got, err = flags.resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".agent-watch", "config.toml"), got)
}

func TestDebugEnabled(t *testing.T) {
	tests := []struct {
		env  string
		flag bool
		want bool
	}{
		{"", false, false},
		{"1", false, true},
		{"0", false, false},
		{"false", false, false},
		{"", true, true},
	}
	for _, tt := range tests {
		t.Setenv("AGENT_WATCH_DEBUG", tt.env)
		f := &cliFlags{debug: tt.flag}
		assert.Equal(t, tt.want, f.debugEnabled(), "env=%q flag=%v", tt.env, tt.flag)
	}
}

func TestNewPollerUsesConfigCadence(t *testing.T) {
	cfg := config.Default()
	cfg.PollIntervalMS = 750
	cfg.CaptureLines = 60

	p := newPoller(cfg, &cliFlags{noAgentOS: true}, tmux.NewClient(), nil, parsers.DefaultRegistry(nil))
	assert.Equal(t, 750*time.Millisecond, p.Options().Interval)
	assert.Equal(t, 60, p.Options().CaptureLines)
}

func TestInitConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")

	assert.Equal(t, 0, initConfigFile(path))
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().PollIntervalMS, cfg.PollIntervalMS)

	// Existing files are left alone.
	assert.Equal(t, 0, initConfigFile(path))
}

func listUpdate() monitor.Update {
	ctx := 42
	return monitor.Update{
		Agents: []agents.MonitoredAgent{
			{
				ID: "main:0.0-100", Target: "main:0.0", Path: "/home/dev/src/api",
				Tool:             agents.ToolClaude,
				Status:           agents.AwaitingApproval(agents.ApprovalKind{Type: agents.ApprovalFileEdit}, "main.go"),
				PID:              100,
				ContextRemaining: &ctx,
			},
			{
				ID: "agentos-3", Target: "agentos:3", Path: "/srv/infra",
				Tool: agents.ToolCodex, Source: agents.SourceRemote,
				Status: agents.Processing("Running tests"),
			},
		},
		RemoteConnected: true,
	}
}

func TestWriteAgentsTable(t *testing.T) {
	var buf bytes.Buffer
	writeAgentsTable(&buf, listUpdate())
	out := buf.String()

	assert.Contains(t, out, "TARGET")
	assert.Contains(t, out, "main:0.0")
	assert.Contains(t, out, "APPROVAL NEEDED [Edit]")
	assert.Contains(t, out, "/h/d/s/api")
	assert.Contains(t, out, "Running tests")
	assert.Contains(t, out, "Total: 2 agents, 1 need attention, 0 queued (AgentOS connected)")
}

func TestWriteAgentsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAgentsJSON(&buf, listUpdate()))

	var got listJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got.Agents, 2)
	assert.True(t, got.RemoteConnected)

	first := got.Agents[0]
	assert.Equal(t, "claude", first.Tool)
	assert.Equal(t, "awaiting_approval", first.Status)
	assert.Equal(t, "Edit: main.go", first.Detail)
	assert.Equal(t, "local", first.Source)
	require.NotNil(t, first.ContextRemaining)
	assert.Equal(t, 42, *first.ContextRemaining)

	second := got.Agents[1]
	assert.Equal(t, "remote", second.Source)
	assert.Equal(t, "processing", second.Status)
	assert.Equal(t, "Running tests", second.Detail)
	assert.Nil(t, second.ContextRemaining)
}

func TestWriteHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []history.Record{{
		Transition: history.Transition{
			At: at, AgentID: "main:0.0-100", Target: "main:0.0", Tool: agents.ToolClaude,
			From: agents.StatusProcessing, To: agents.StatusAwaitingApproval, Detail: "main.go",
		},
		ID: 1, RunID: "run-1",
	}}

	var table bytes.Buffer
	writeHistoryTable(&table, records)
	assert.Contains(t, table.String(), "processing → awaiting_approval")
	assert.Contains(t, table.String(), "main.go")

	var raw bytes.Buffer
	require.NoError(t, writeHistoryJSON(&raw, records))
	var got []transitionJSON
	require.NoError(t, json.Unmarshal(raw.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "awaiting_approval", got[0].To)
	assert.Equal(t, "run-1", got[0].RunID)
	assert.True(t, at.Equal(got[0].At))
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer string", 10, "a longe..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max), tt.in)
	}
}

func TestMergeFlags(t *testing.T) {
	assert.Equal(t, "long", mergeFlags("long", "short"))
	assert.Equal(t, "short", mergeFlags("", "short"))
	assert.Empty(t, mergeFlags("", ""))
}
