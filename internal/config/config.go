// Package config loads and saves ~/.agent-watch/config.toml.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/asheshgoplani/agent-watch/internal/agents"
	"github.com/asheshgoplani/agent-watch/internal/logging"
	"github.com/asheshgoplani/agent-watch/internal/parsers"
	"github.com/asheshgoplani/agent-watch/internal/platform"
)

// FileName is the TOML config file for user preferences
const FileName = "config.toml"

// MinPollInterval is the fastest allowed poll cadence.
const MinPollInterval = 100 * time.Millisecond

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemeAuto  = "auto"
)

// Config represents user-facing configuration in TOML format
type Config struct {
	// PollIntervalMS is the delay between poll cycles. Default: 500
	PollIntervalMS int `toml:"poll_interval_ms"`

	// CaptureLines is how many scrollback lines are read per pane. Default: 100
	CaptureLines int `toml:"capture_lines"`

	// AgentOSURL is the base URL of the AgentOS API
	AgentOSURL string `toml:"agentos_url"`

	// AgentOSEnabled turns remote polling on. Default: true
	AgentOSEnabled bool `toml:"agentos_enabled"`

	// Theme is "dark" (default), "light", or "auto" to follow the OS
	Theme string `toml:"theme"`

	Logs    LogSettings     `toml:"logs"`
	History HistorySettings `toml:"history"`

	// Patterns holds extra detection cues per tool, e.g. [patterns.codex]
	Patterns map[string]parsers.PatternSet `toml:"patterns"`
}

// LogSettings defines debug log configuration
type LogSettings struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	// Empty keeps logging off unless -d is given.
	Level string `toml:"level"`

	// Format is "json" (default) or "text"
	Format string `toml:"format"`

	MaxSizeMB  int  `toml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days"`
	Compress   bool `toml:"compress"`

	// PprofEnabled starts a pprof server on localhost:6060 when logging is on
	PprofEnabled bool `toml:"pprof_enabled"`

	// AggregateIntervalSecs is the event aggregation flush interval. Default: 30
	AggregateIntervalSecs int `toml:"aggregate_interval_secs"`
}

// HistorySettings controls the status-transition log
type HistorySettings struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		PollIntervalMS: 500,
		CaptureLines:   100,
		AgentOSURL:     "http://localhost:3100",
		AgentOSEnabled: true,
		Theme:          ThemeDark,
		Logs: LogSettings{
			Format:                "json",
			MaxSizeMB:             10,
			MaxBackups:            3,
			MaxAgeDays:            7,
			Compress:              true,
			AggregateIntervalSecs: 30,
		},
		History: HistorySettings{
			Enabled:       true,
			RetentionDays: 7,
		},
		Patterns: make(map[string]parsers.PatternSet),
	}
}

// Dir returns ~/.agent-watch.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".agent-watch"), nil
}

// DefaultPath returns the path to the user config file
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Cache for the default-path config (loaded once per run)
var (
	cache   *Config
	cacheMu sync.RWMutex
)

// Load reads the config at DefaultPath, returning the cached copy after the
// first call. A missing file yields defaults. On a parse error the defaults
// are cached and the error returned so the caller can show it.
func Load() (*Config, error) {
	cacheMu.RLock()
	if cache != nil {
		defer cacheMu.RUnlock()
		return cache, nil
	}
	cacheMu.RUnlock()

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if cache != nil {
		return cache, nil
	}

	path, err := DefaultPath()
	if err != nil {
		cache = Default()
		return cache, nil
	}
	cfg, err := LoadFrom(path)
	if err != nil {
		cache = Default()
		return cache, err
	}
	cache = cfg
	return cache, nil
}

// LoadFrom reads path without caching. Keys absent from the file keep
// their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return Default(), fmt.Errorf("%s parse error: %w", filepath.Base(path), err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	d := Default()
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = d.PollIntervalMS
	}
	if c.CaptureLines <= 0 {
		c.CaptureLines = d.CaptureLines
	}
	if c.AgentOSURL == "" {
		c.AgentOSURL = d.AgentOSURL
	}
	switch c.Theme {
	case ThemeDark, ThemeLight, ThemeAuto:
	case "system":
		c.Theme = ThemeAuto
	default:
		c.Theme = ThemeDark
	}
	if c.History.RetentionDays <= 0 {
		c.History.RetentionDays = d.History.RetentionDays
	}
	if c.Logs.AggregateIntervalSecs <= 0 {
		c.Logs.AggregateIntervalSecs = d.Logs.AggregateIntervalSecs
	}
	if c.Patterns == nil {
		c.Patterns = make(map[string]parsers.PatternSet)
	}
}

// Save writes cfg to DefaultPath and clears the cache.
func Save(cfg *Config) error {
	path, err := DefaultPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := SaveTo(cfg, path); err != nil {
		return err
	}
	ClearCache()
	return nil
}

// SaveTo writes the config using the atomic write pattern: temp file with
// 0600 permissions, fsync, then rename over the target.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# agent-watch configuration\n")
	buf.WriteString("# Changes are applied while the dashboard is running\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := syncFile(tmpPath); err != nil {
		configLog.Debug("config_fsync_failed", slog.String("error", err.Error()))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// ClearCache drops the cached config; the next Load reads from disk.
func ClearCache() {
	cacheMu.Lock()
	cache = nil
	cacheMu.Unlock()
}

// PollInterval returns the configured cadence, never below MinPollInterval.
func (c *Config) PollInterval() time.Duration {
	return max(time.Duration(c.PollIntervalMS)*time.Millisecond, MinPollInterval)
}

// ToolPatterns converts [patterns.<tool>] tables into parser extras.
// Unknown tool names are ignored.
func (c *Config) ToolPatterns() map[agents.Tool]parsers.PatternSet {
	out := make(map[agents.Tool]parsers.PatternSet, len(c.Patterns))
	for name, set := range c.Patterns {
		tool := agents.Tool(name)
		switch tool {
		case agents.ToolClaude, agents.ToolOpenCode, agents.ToolCodex, agents.ToolGemini:
			out[tool] = set
		default:
			configLog.Warn("unknown_pattern_tool", slog.String("tool", name))
		}
	}
	return out
}

// ResolveTheme resolves the configured theme to "dark" or "light".
// "auto" follows the OS setting and falls back to dark.
func (c *Config) ResolveTheme() string {
	if c.Theme != ThemeAuto {
		if c.Theme == ThemeLight {
			return ThemeLight
		}
		return ThemeDark
	}
	if !platform.SupportsThemeDetection() {
		return ThemeDark
	}
	isDark, err := dark.IsDarkMode()
	if err != nil || isDark {
		return ThemeDark
	}
	return ThemeLight
}

// LoggingConfig maps [logs] onto the logging package. Logging is enabled
// when debug is set or a level is configured.
func (c *Config) LoggingConfig(logDir string, debug bool) logging.Config {
	enabled := debug || c.Logs.Level != ""
	if !enabled {
		logDir = ""
	}
	level := c.Logs.Level
	if debug && level == "" {
		level = "debug"
	}
	return logging.Config{
		LogDir:                logDir,
		Level:                 level,
		Format:                c.Logs.Format,
		MaxSizeMB:             c.Logs.MaxSizeMB,
		MaxBackups:            c.Logs.MaxBackups,
		MaxAgeDays:            c.Logs.MaxAgeDays,
		Compress:              c.Logs.Compress,
		AggregateIntervalSecs: c.Logs.AggregateIntervalSecs,
		PprofEnabled:          c.Logs.PprofEnabled,
		Debug:                 enabled,
	}
}
