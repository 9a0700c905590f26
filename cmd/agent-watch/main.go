package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asheshgoplani/agent-watch/internal/config"
	"github.com/asheshgoplani/agent-watch/internal/logging"
	"github.com/asheshgoplani/agent-watch/internal/monitor"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
	"github.com/asheshgoplani/agent-watch/internal/platform"
	"github.com/asheshgoplani/agent-watch/internal/sysstats"
	"github.com/asheshgoplani/agent-watch/internal/tmux"
	"github.com/asheshgoplani/agent-watch/internal/ui"
)

const Version = "0.4.0"

const (
	updatesBuffer  = 32
	commandsBuffer = 16
)

// init sets up color profile for consistent terminal colors across environments
func init() {
	initColorProfile()
}

// initColorProfile configures lipgloss color profile based on terminal capabilities.
// Prefers TrueColor for best visuals, falls back to ANSI256 for compatibility.
func initColorProfile() {
	// AGENT_WATCH_COLOR: truecolor, 256, 16, none
	if colorEnv := os.Getenv("AGENT_WATCH_COLOR"); colorEnv != "" {
		switch strings.ToLower(colorEnv) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// Terminals that support TrueColor without advertising it
	termEnv := os.Getenv("TERM")
	for _, t := range []string{"xterm-256color", "screen-256color", "tmux-256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(termEnv, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	if os.Getenv("WT_SESSION") != "" || // Windows Terminal
		os.Getenv("ITERM_SESSION_ID") != "" || // iTerm2
		os.Getenv("TERMINAL_EMULATOR") != "" || // JetBrains terminals
		os.Getenv("KONSOLE_VERSION") != "" { // Konsole
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	// SSH sessions and older emulators
	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("Agent Watch v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "list", "ls":
			os.Exit(handleList(args[1:]))
		case "history":
			os.Exit(handleHistory(args[1:]))
		}
	}

	os.Exit(runTUI(args))
}

// runTUI parses the global flags, wires the poller to the dashboard and
// blocks until the user quits. The return value is the exit status.
func runTUI(args []string) int {
	fs, flags := newFlagSet("agent-watch")
	fs.Usage = printHelp
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", fs.Arg(0))
		fmt.Fprintln(os.Stderr, "Run 'agent-watch help' for usage.")
		return 2
	}

	cfgPath, err := flags.resolveConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if flags.showConfigPath {
		fmt.Println(cfgPath)
		return 0
	}
	if flags.initConfig {
		return initConfigFile(cfgPath)
	}

	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	flags.apply(cfg, fs)

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: agent-watch needs an interactive terminal.")
		fmt.Fprintln(os.Stderr, "Use 'agent-watch list' for one-shot output.")
		return 1
	}

	tmuxClient := tmux.NewClient()
	if !tmuxClient.IsAvailable(context.Background()) {
		fmt.Fprintln(os.Stderr, "Error: no tmux server found.")
		fmt.Fprintln(os.Stderr, "\nAgent Watch monitors agents running in tmux. Install with:")
		fmt.Fprintln(os.Stderr, "  brew install tmux")
		return 1
	}

	baseDir, err := config.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	setupLogging(cfg, baseDir, flags.debugEnabled())
	defer logging.Shutdown()
	logger := logging.ForComponent(logging.CompUI)

	store := openHistory(cfg, baseDir)
	if store != nil {
		defer store.Close()
	}

	reg := parsers.DefaultRegistry(cfg.ToolPatterns())
	poller := newPoller(cfg, flags, tmuxClient, store, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	updates := make(chan monitor.Update, updatesBuffer)
	commands := make(chan monitor.Command, commandsBuffer)
	go func() {
		if err := poller.Run(ctx, updates, commands); err != nil && ctx.Err() == nil {
			logger.Error("poller_stopped", slog.String("error", err.Error()))
		}
		close(updates)
	}()

	watcher, err := config.NewWatcher(cfgPath)
	if err != nil {
		logger.Warn("config_watch_failed", slog.String("error", err.Error()))
	} else {
		watcher.Start()
		defer watcher.Close()
	}
	notice := platform.WatchWarning(cfgPath)
	if notice != "" {
		logger.Warn("config_watch_unreliable", slog.String("path", cfgPath), slog.String("platform", platform.Detect().String()))
	}

	var themeWatcher *ui.ThemeWatcher
	if cfg.Theme == config.ThemeAuto {
		themeWatcher = ui.NewThemeWatcher(ctx)
		if themeWatcher != nil {
			defer themeWatcher.Close()
		}
	}
	ui.InitTheme(cfg.ResolveTheme())

	opts := ui.Options{
		Updates:       updates,
		Commands:      commands,
		Actions:       tmuxClient,
		Parsers:       reg,
		Stats:         sysstats.NewSampler(),
		ConfigWatcher: watcher,
		ThemeWatcher:  themeWatcher,
		ConfigPath:    cfgPath,
		Theme:         cfg.Theme,
		Version:       Version,
		Notice:        notice,
	}
	if store != nil {
		opts.History = store
	}

	logger.Info("dashboard_started",
		slog.Int("pid", os.Getpid()),
		slog.String("config", cfgPath),
		slog.Duration("interval", poller.Options().Interval))

	p := tea.NewProgram(ui.New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// setupLogging initializes structured logging and installs the SIGUSR1
// ring buffer dump.
func setupLogging(cfg *config.Config, baseDir string, debug bool) {
	logging.Init(cfg.LoggingConfig(baseDir, debug))
	// Stdlib log output from dependencies must not reach the alt screen.
	log.SetFlags(0)
	log.SetOutput(logging.NewBridgeWriter(logging.CompUI))
	if !debug && cfg.Logs.Level == "" {
		return
	}

	usr1Chan := make(chan os.Signal, 1)
	signal.Notify(usr1Chan, syscall.SIGUSR1)
	go func() {
		for range usr1Chan {
			dumpPath := filepath.Join(baseDir, fmt.Sprintf("crash-dump-%d.jsonl", time.Now().Unix()))
			if err := logging.DumpRingBuffer(dumpPath); err != nil {
				logging.ForComponent(logging.CompUI).Error("crash_dump_failed",
					slog.String("error", err.Error()))
			} else {
				logging.ForComponent(logging.CompUI).Info("crash_dump_written",
					slog.String("path", dumpPath))
			}
		}
	}()
}

// initConfigFile writes the default config unless one already exists.
func initConfigFile(path string) int {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists: %s\n", path)
		return 0
	}
	if err := config.SaveTo(config.Default(), path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write config: %v\n", err)
		return 1
	}
	fmt.Printf("Wrote default config to %s\n", path)
	return 0
}

func printHelp() {
	fmt.Printf("Agent Watch v%s\n", Version)
	fmt.Println("Dashboard for AI coding agents running in tmux")
	fmt.Println()
	fmt.Println("Usage: agent-watch [options] [command]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -p, --poll-interval <ms>   Delay between poll cycles (default from config: 500)")
	fmt.Println("  -c, --capture-lines <n>    Scrollback lines captured per pane (default: 100)")
	fmt.Println("  -f, --config <path>        Config file (default: ~/.agent-watch/config.toml)")
	fmt.Println("      --agentos-url <url>    AgentOS API base URL")
	fmt.Println("      --no-agentos           Do not poll the AgentOS API")
	fmt.Println("  -d, --debug                Write debug logs to ~/.agent-watch/debug.log")
	fmt.Println("      --show-config-path     Print the config path and exit")
	fmt.Println("      --init-config          Write a default config file and exit")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none)           Start the dashboard")
	fmt.Println("  list, ls         Run one poll cycle and print the agents")
	fmt.Println("  history          Show recent status transitions")
	fmt.Println("  version          Show version")
	fmt.Println("  help             Show this help")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  agent-watch                          # Start the dashboard")
	fmt.Println("  agent-watch -p 250 --no-agentos      # Fast local-only polling")
	fmt.Println("  agent-watch list --json              # Agents as JSON")
	fmt.Println("  agent-watch history -n 50            # Last 50 transitions")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  AGENT_WATCH_DEBUG    Set to 1 to enable debug logging")
	fmt.Println("  AGENT_WATCH_COLOR    Color mode: truecolor, 256, 16, none")
	fmt.Println()
	fmt.Println("Keyboard shortcuts (in dashboard):")
	fmt.Println("  j/k        Move between agents")
	fmt.Println("  y/n        Approve or reject the selected prompts")
	fmt.Println("  a          Approve every waiting agent")
	fmt.Println("  1-9        Pick a numbered choice")
	fmt.Println("  f          Focus the agent's tmux pane")
	fmt.Println("  i          Type input for the agent")
	fmt.Println("  /          Filter")
	fmt.Println("  ?          Help")
	fmt.Println("  q          Quit")
}
