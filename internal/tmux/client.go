// Package tmux enumerates tmux panes, captures their text and drives them
// with send-keys. All tmux access goes through a Runner so tests can fake it.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"github.com/asheshgoplani/agent-watch/internal/logging"
)

var tmuxLog = logging.ForComponent(logging.CompTmux)

// ErrCaptureTimeout is returned when capture-pane exceeds its timeout.
var ErrCaptureTimeout = errors.New("capture-pane timed out")

// ErrNoServer is returned when no tmux server is running.
var ErrNoServer = errors.New("no tmux server running")

const (
	listTimeout    = 3 * time.Second
	captureTimeout = 3 * time.Second
	sendTimeout    = 2 * time.Second

	literalChunkSize  = 4096
	literalChunkDelay = 50 * time.Millisecond

	// enterDelay lets TUIs finish handling the bracketed paste tmux 3.2+
	// wraps around send-keys -l; otherwise the Enter is swallowed.
	enterDelay = 100 * time.Millisecond
)

// Runner executes one tmux command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "tmux", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if strings.Contains(stderr, "no server running") || strings.Contains(stderr, "error connecting to") {
				return nil, ErrNoServer
			}
			if stderr != "" {
				return nil, fmt.Errorf("tmux %s: %s: %w", args[0], stderr, err)
			}
		}
		return nil, fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return out, nil
}

// Client talks to the tmux server and enriches panes from a ProcessTree.
type Client struct {
	runner Runner
	procs  *ProcessTree
	sleep  func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRunner replaces the tmux executable.
func WithRunner(r Runner) ClientOption {
	return func(c *Client) { c.runner = r }
}

// WithProcessTree shares a process cache with the client.
func WithProcessTree(t *ProcessTree) ClientOption {
	return func(c *Client) { c.procs = t }
}

// WithSleep replaces the pause used between chunks and before Enter.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient returns a client using the tmux binary on PATH.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{runner: execRunner{}, sleep: sleepCtx}
	for _, opt := range opts {
		opt(c)
	}
	if c.procs == nil {
		c.procs = NewProcessTree()
	}
	return c
}

// ProcessTree returns the cache used to enrich panes.
func (c *Client) ProcessTree() *ProcessTree { return c.procs }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.runner.Run(ctx, args...)
}

// IsAvailable reports whether a tmux server answers list-sessions.
func (c *Client) IsAvailable(ctx context.Context) bool {
	_, err := c.run(ctx, listTimeout, "list-sessions")
	return err == nil
}

// CapturePane returns the last lines of the pane's visible history with any
// escape sequences removed.
func (c *Client) CapturePane(ctx context.Context, target string, lines int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	out, err := c.runner.Run(ctx, "capture-pane", "-p", "-t", target, "-S", "-"+strconv.Itoa(lines))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrCaptureTimeout
		}
		return "", fmt.Errorf("failed to capture pane %s: %w", target, err)
	}
	return ansi.Strip(string(out)), nil
}

// SendKeys sends one key that tmux interprets by name, e.g. "Enter" or "y".
func (c *Client) SendKeys(ctx context.Context, target, key string) error {
	if _, err := c.run(ctx, sendTimeout, "send-keys", "-t", target, key); err != nil {
		return fmt.Errorf("failed to send %q to %s: %w", key, target, err)
	}
	return nil
}

// SendLiteral types text into the pane without key-name interpretation.
// Text over 4KB is sent in chunks split at newlines where possible.
func (c *Client) SendLiteral(ctx context.Context, target, text string) error {
	chunks := splitIntoChunks(text, literalChunkSize)
	for i, chunk := range chunks {
		if _, err := c.run(ctx, sendTimeout, "send-keys", "-l", "-t", target, "--", chunk); err != nil {
			if len(chunks) == 1 {
				return fmt.Errorf("failed to send text to %s: %w", target, err)
			}
			return fmt.Errorf("failed to send chunk %d/%d to %s: %w", i+1, len(chunks), target, err)
		}
		if i < len(chunks)-1 {
			if err := c.sleep(ctx, literalChunkDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

// SendLiteralAndEnter types text, pauses briefly, then presses Enter.
func (c *Client) SendLiteralAndEnter(ctx context.Context, target, text string) error {
	if err := c.SendLiteral(ctx, target, text); err != nil {
		return err
	}
	if err := c.sleep(ctx, enterDelay); err != nil {
		return err
	}
	return c.SendKeys(ctx, target, "Enter")
}

// SelectWindow makes the window holding target current in its session.
func (c *Client) SelectWindow(ctx context.Context, target string) error {
	if _, err := c.run(ctx, sendTimeout, "select-window", "-t", target); err != nil {
		return fmt.Errorf("failed to select window %s: %w", target, err)
	}
	return nil
}

// SelectPane makes target the active pane of its window.
func (c *Client) SelectPane(ctx context.Context, target string) error {
	if _, err := c.run(ctx, sendTimeout, "select-pane", "-t", target); err != nil {
		return fmt.Errorf("failed to select pane %s: %w", target, err)
	}
	return nil
}

// FocusPane selects the pane's window and then the pane itself.
func (c *Client) FocusPane(ctx context.Context, target string) error {
	if err := c.SelectWindow(ctx, target); err != nil {
		return err
	}
	if err := c.SelectPane(ctx, target); err != nil {
		return err
	}
	tmuxLog.Debug("pane_focused", slog.String("target", target))
	return nil
}

// splitIntoChunks splits content into chunks of at most maxSize bytes,
// preferring newline boundaries. A line longer than maxSize is cut at the
// last rune boundary that fits.
func splitIntoChunks(content string, maxSize int) []string {
	if content == "" {
		return nil
	}
	if len(content) <= maxSize {
		return []string{content}
	}

	var chunks []string
	remaining := content
	for len(remaining) > maxSize {
		cut := strings.LastIndex(remaining[:maxSize], "\n") + 1
		if cut <= 0 {
			cut = maxSize
			for cut > 0 && !utf8.RuneStart(remaining[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxSize
			}
		}
		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut:]
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}
