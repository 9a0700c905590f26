package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asheshgoplani/agent-watch/internal/agentos"
	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/config"
	"github.com/asheshgoplani/agent-watch/internal/git"
	"github.com/asheshgoplani/agent-watch/internal/history"
	"github.com/asheshgoplani/agent-watch/internal/logging"
	"github.com/asheshgoplani/agent-watch/internal/monitor"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
	"github.com/asheshgoplani/agent-watch/internal/tmux"
)

// Table column widths for list and history output
const (
	tableColTarget = 18
	tableColTool   = 12
	tableColStatus = 32
	tableColPath   = 36
)

const (
	historyFile  = "history.db"
	listTimeout  = 15 * time.Second
	historyLimit = 20
)

// cliFlags holds the options shared by the dashboard and the list command.
type cliFlags struct {
	pollMS       int
	captureLines int
	configLong   string
	configShort  string
	agentOSURL   string
	noAgentOS    bool
	debug        bool

	showConfigPath bool
	initConfig     bool
}

// newFlagSet registers the global options on a new FlagSet. Short and long
// names share one variable except -f/--config, which goes through mergeFlags.
func newFlagSet(name string) (*flag.FlagSet, *cliFlags) {
	f := &cliFlags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.IntVar(&f.pollMS, "poll-interval", 0, "Delay between poll cycles in milliseconds")
	fs.IntVar(&f.pollMS, "p", 0, "Delay between poll cycles (short)")
	fs.IntVar(&f.captureLines, "capture-lines", 0, "Scrollback lines captured per pane")
	fs.IntVar(&f.captureLines, "c", 0, "Scrollback lines captured per pane (short)")
	fs.StringVar(&f.configLong, "config", "", "Config file path")
	fs.StringVar(&f.configShort, "f", "", "Config file path (short)")
	fs.StringVar(&f.agentOSURL, "agentos-url", "", "AgentOS API base URL")
	fs.BoolVar(&f.noAgentOS, "no-agentos", false, "Do not poll the AgentOS API")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.debug, "d", false, "Enable debug logging (short)")
	fs.BoolVar(&f.showConfigPath, "show-config-path", false, "Print the config path and exit")
	fs.BoolVar(&f.initConfig, "init-config", false, "Write a default config file and exit")
	return fs, f
}

// resolveConfigPath returns the -f/--config value or the default location.
func (f *cliFlags) resolveConfigPath() (string, error) {
	if p := mergeFlags(f.configLong, f.configShort); p != "" {
		return filepath.Abs(p)
	}
	return config.DefaultPath()
}

// debugEnabled reports whether -d or AGENT_WATCH_DEBUG asks for logs.
func (f *cliFlags) debugEnabled() bool {
	if f.debug {
		return true
	}
	v := os.Getenv("AGENT_WATCH_DEBUG")
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}

// apply overrides cfg with the flags the user actually passed, so a flag
// left at its zero value never masks the config file.
func (f *cliFlags) apply(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "poll-interval", "p":
			cfg.PollIntervalMS = f.pollMS
			if floor := int(config.MinPollInterval / time.Millisecond); cfg.PollIntervalMS < floor {
				cfg.PollIntervalMS = floor
			}
		case "capture-lines", "c":
			if f.captureLines > 0 {
				cfg.CaptureLines = f.captureLines
			}
		case "agentos-url":
			cfg.AgentOSURL = f.agentOSURL
			cfg.AgentOSEnabled = true
		case "no-agentos":
			if f.noAgentOS {
				cfg.AgentOSEnabled = false
			}
		}
	})
}

// newPoller wires the poll loop. Optional collaborators are only set when
// present so the poller sees a nil interface rather than a nil pointer.
func newPoller(cfg *config.Config, flags *cliFlags, panes *tmux.Client, store *history.Store, reg *parsers.Registry) *monitor.Poller {
	deps := monitor.Deps{
		Panes:    panes,
		Parsers:  reg,
		Branches: git.NewBranchCache(git.DefaultBranchTTL, git.GetCurrentBranch),
	}
	if cfg.AgentOSEnabled && !flags.noAgentOS {
		url := cfg.AgentOSURL
		if url == "" {
			url = agentos.DefaultURL
		}
		deps.Remote = agentos.NewClient(url)
	}
	if store != nil {
		deps.Recorder = store
	}
	return monitor.New(deps, monitor.Options{
		Interval:     cfg.PollInterval(),
		CaptureLines: cfg.CaptureLines,
	})
}

// openHistory opens and prunes the transition log. Failures disable
// history rather than blocking startup.
func openHistory(cfg *config.Config, baseDir string) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	log := logging.ForComponent(logging.CompHistory)

	store, err := history.Open(filepath.Join(baseDir, historyFile))
	if err != nil {
		log.Warn("history_open_failed", slog.String("error", err.Error()))
		return nil
	}
	if err := store.Migrate(); err != nil {
		log.Warn("history_migrate_failed", slog.String("error", err.Error()))
		_ = store.Close()
		return nil
	}
	if days := cfg.History.RetentionDays; days > 0 {
		cutoff := time.Now().AddDate(0, 0, -days)
		if _, err := store.Prune(context.Background(), cutoff); err != nil {
			log.Warn("history_prune_failed", slog.String("error", err.Error()))
		}
	}
	return store
}

func handleList(args []string) int {
	fs, flags := newFlagSet("list")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: agent-watch list [options]")
		fmt.Println()
		fmt.Println("Run one poll cycle and print the detected agents.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  agent-watch list                   # Table of local and remote agents")
		fmt.Println("  agent-watch list --no-agentos      # Local tmux panes only")
		fmt.Println("  agent-watch list --json            # JSON for scripting")
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfgPath, err := flags.resolveConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	flags.apply(cfg, fs)
	if baseDir, err := config.Dir(); err == nil {
		logging.Init(cfg.LoggingConfig(baseDir, flags.debugEnabled()))
		defer logging.Shutdown()
	}

	tmuxClient := tmux.NewClient()
	poller := newPoller(cfg, flags, tmuxClient, nil, parsers.DefaultRegistry(cfg.ToolPatterns()))

	ctx, cancel := context.WithTimeout(context.Background(), listTimeout)
	defer cancel()
	update := poller.Poll(ctx)

	if *jsonOutput {
		if err := writeAgentsJSON(os.Stdout, update); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to format JSON output: %v\n", err)
			return 1
		}
		return 0
	}

	if len(update.Agents) == 0 {
		fmt.Println("No agents found.")
		if update.Flash != "" {
			fmt.Println(update.Flash)
		}
		return 0
	}
	writeAgentsTable(os.Stdout, update)
	return 0
}

type agentJSON struct {
	ID               string `json:"id"`
	Target           string `json:"target"`
	Tool             string `json:"tool"`
	Source           string `json:"source"`
	Status           string `json:"status"`
	Detail           string `json:"detail,omitempty"`
	Path             string `json:"path"`
	Branch           string `json:"branch,omitempty"`
	PID              int    `json:"pid,omitempty"`
	ContextRemaining *int   `json:"context_remaining,omitempty"`
	Subagents        int    `json:"active_subagents"`
}

type listJSON struct {
	Agents          []agentJSON `json:"agents"`
	Queue           int         `json:"queue"`
	RemoteConnected bool        `json:"remote_connected"`
}

func writeAgentsJSON(w io.Writer, u monitor.Update) error {
	out := listJSON{
		Agents:          make([]agentJSON, 0, len(u.Agents)),
		Queue:           len(u.Queue),
		RemoteConnected: u.RemoteConnected,
	}
	for i := range u.Agents {
		a := &u.Agents[i]
		out.Agents = append(out.Agents, agentJSON{
			ID:               a.ID,
			Target:           a.Target,
			Tool:             string(a.Tool),
			Source:           a.Source.String(),
			Status:           a.Status.Kind.String(),
			Detail:           statusDetail(a.Status),
			Path:             a.Path,
			Branch:           a.Branch,
			PID:              a.PID,
			ContextRemaining: a.ContextRemaining,
			Subagents:        a.ActiveSubagentCount(),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func statusDetail(s agents.Status) string {
	switch s.Kind {
	case agents.StatusProcessing:
		return s.Activity
	case agents.StatusAwaitingApproval:
		if s.Detail != "" {
			return s.Approval.ShortDesc() + ": " + s.Detail
		}
		return s.Approval.ShortDesc()
	case agents.StatusError:
		return s.Message
	}
	return ""
}

func writeAgentsTable(w io.Writer, u monitor.Update) {
	fmt.Fprintf(w, "%-*s %-*s %-*s %s\n",
		tableColTarget, "TARGET", tableColTool, "TOOL", tableColStatus, "STATUS", "PATH")
	fmt.Fprintln(w, strings.Repeat("-", tableColTarget+tableColTool+tableColStatus+tableColPath+3))
	attention := 0
	for i := range u.Agents {
		a := &u.Agents[i]
		if a.NeedsAttention() {
			attention++
		}
		status := a.Status.Indicator() + " " + a.Status.ShortText()
		fmt.Fprintf(w, "%-*s %-*s %-*s %s\n",
			tableColTarget, truncate(a.Target, tableColTarget),
			tableColTool, truncate(a.Tool.ShortName(), tableColTool),
			tableColStatus, truncate(status, tableColStatus),
			truncate(a.AbbreviatedPath(), tableColPath))
	}
	remote := "offline"
	if u.RemoteConnected {
		remote = "connected"
	}
	fmt.Fprintf(w, "\nTotal: %d agents, %d need attention, %d queued (AgentOS %s)\n",
		len(u.Agents), attention, len(u.Queue), remote)
}

func handleHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", historyLimit, "Number of transitions to show")
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Println("Usage: agent-watch history [options]")
		fmt.Println()
		fmt.Println("Show recent agent status transitions, newest first.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -n must be positive")
		return 2
	}

	baseDir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	path := filepath.Join(baseDir, historyFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No history recorded yet.")
		return 0
	}

	store, err := history.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	records, err := store.Recent(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		if err := writeHistoryJSON(os.Stdout, records); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to format JSON output: %v\n", err)
			return 1
		}
		return 0
	}
	if len(records) == 0 {
		fmt.Println("No history recorded yet.")
		return 0
	}
	writeHistoryTable(os.Stdout, records)
	return 0
}

type transitionJSON struct {
	At      time.Time `json:"at"`
	AgentID string    `json:"agent_id"`
	Target  string    `json:"target"`
	Tool    string    `json:"tool"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Detail  string    `json:"detail,omitempty"`
	RunID   string    `json:"run_id"`
}

func writeHistoryJSON(w io.Writer, records []history.Record) error {
	out := make([]transitionJSON, len(records))
	for i, r := range records {
		out[i] = transitionJSON{
			At:      r.At,
			AgentID: r.AgentID,
			Target:  r.Target,
			Tool:    string(r.Tool),
			From:    r.From.String(),
			To:      r.To.String(),
			Detail:  r.Detail,
			RunID:   r.RunID,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeHistoryTable(w io.Writer, records []history.Record) {
	fmt.Fprintf(w, "%-19s %-*s %-*s %s\n", "TIME", tableColTarget, "TARGET", tableColTool, "TOOL", "TRANSITION")
	fmt.Fprintln(w, strings.Repeat("-", 19+tableColTarget+tableColTool+40))
	for _, r := range records {
		line := fmt.Sprintf("%-19s %-*s %-*s %s → %s",
			r.At.Local().Format("2006-01-02 15:04:05"),
			tableColTarget, truncate(r.Target, tableColTarget),
			tableColTool, truncate(r.Tool.ShortName(), tableColTool),
			r.From, r.To)
		if r.Detail != "" {
			line += "  " + r.Detail
		}
		fmt.Fprintln(w, line)
	}
}

// mergeFlags returns the non-empty value, preferring the first
func mergeFlags(long, short string) string {
	if long != "" {
		return long
	}
	return short
}

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
