// Package clipboard copies captured pane text to the system clipboard,
// falling back to an OSC 52 escape sequence for remote terminals.
package clipboard

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	sysclip "github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"

	"github.com/asheshgoplani/agent-watch/internal/platform"
)

// ErrEmpty is returned for an empty copy request.
var ErrEmpty = errors.New("no content to copy")

// Result describes a successful copy.
type Result struct {
	Method string // "native", "clip.exe" or "osc52"
	Bytes  int
	Lines  int
}

// Swapped in tests.
var (
	nativeSupported = func() bool { return !sysclip.Unsupported }
	writeNative     = sysclip.WriteAll
	writeWSL        = func(text string) error {
		cmd := exec.Command("clip.exe")
		cmd.Stdin = strings.NewReader(text)
		return cmd.Run()
	}
	openTTY = func() (io.WriteCloser, error) {
		return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	}
	insideTmux = func() bool { return os.Getenv("TMUX") != "" }
)

// Copy writes text to the clipboard. Under WSL it uses clip.exe, elsewhere
// xclip/xsel/wl-copy/pbcopy through atotto/clipboard, and when neither
// works an OSC 52 sequence written straight to the terminal.
func Copy(text string) (*Result, error) {
	if text == "" {
		return nil, ErrEmpty
	}
	res := &Result{Bytes: len(text), Lines: countLines(text)}

	var nativeErr error
	switch {
	case platform.IsWSL():
		if nativeErr = writeWSL(text); nativeErr == nil {
			res.Method = "clip.exe"
			return res, nil
		}
	case nativeSupported():
		if nativeErr = writeNative(text); nativeErr == nil {
			res.Method = "native"
			return res, nil
		}
	default:
		nativeErr = errors.New("no clipboard command (install xclip, xsel or wl-copy)")
	}

	if err := copyOSC52(text); err != nil {
		return nil, fmt.Errorf("%v; osc52: %w", nativeErr, err)
	}
	res.Method = "osc52"
	return res, nil
}

// copyOSC52 writes the sequence to the controlling terminal so it bypasses
// the alt-screen renderer. Inside tmux it is wrapped for passthrough.
func copyOSC52(text string) error {
	tty, err := openTTY()
	if err != nil {
		return fmt.Errorf("open tty: %w", err)
	}
	defer tty.Close()

	seq := osc52.New(text)
	if insideTmux() {
		seq = seq.Tmux()
	}
	_, err = seq.WriteTo(tty)
	return err
}

// countLines counts lines; a trailing newline does not add one.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
