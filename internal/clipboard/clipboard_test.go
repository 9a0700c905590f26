package clipboard

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/agent-watch/internal/platform"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

// stubBackends replaces the clipboard backends for one test.
func stubBackends(t *testing.T, supported bool, native func(string) error, tmux bool) *bytes.Buffer {
	t.Helper()
	origSupported, origNative, origWSL, origTTY, origTmux := nativeSupported, writeNative, writeWSL, openTTY, insideTmux
	t.Cleanup(func() {
		nativeSupported, writeNative, writeWSL, openTTY, insideTmux = origSupported, origNative, origWSL, origTTY, origTmux
	})

	var tty bytes.Buffer
	nativeSupported = func() bool { return supported }
	writeNative = native
	writeWSL = native
	openTTY = func() (io.WriteCloser, error) { return nopCloser{&tty}, nil }
	insideTmux = func() bool { return tmux }
	return &tty
}

func TestCopyEmpty(t *testing.T) {
	_, err := Copy("")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestCopyNative(t *testing.T) {
	var got string
	tty := stubBackends(t, true, func(s string) error { got = s; return nil }, false)

	res, err := Copy("one\ntwo\n")
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", got)
	assert.Equal(t, 2, res.Lines)
	assert.Equal(t, 8, res.Bytes)
	if platform.IsWSL() {
		assert.Equal(t, "clip.exe", res.Method)
	} else {
		assert.Equal(t, "native", res.Method)
	}
	assert.Zero(t, tty.Len(), "no escape sequence when the native copy works")
}

func TestCopyFallsBackToOSC52(t *testing.T) {
	tty := stubBackends(t, true, func(string) error { return errors.New("xclip: can't open display") }, false)

	res, err := Copy("hello")
	require.NoError(t, err)
	assert.Equal(t, "osc52", res.Method)
	assert.Contains(t, tty.String(), "\x1b]52;c;"+base64.StdEncoding.EncodeToString([]byte("hello")))
}

func TestCopyOSC52WrapsForTmux(t *testing.T) {
	tty := stubBackends(t, false, func(string) error { return errors.New("clip.exe missing") }, true)

	res, err := Copy("hi")
	require.NoError(t, err)
	assert.Equal(t, "osc52", res.Method)
	assert.Contains(t, tty.String(), "\x1bPtmux;")
}

func TestCopyReportsBothFailures(t *testing.T) {
	stubBackends(t, true, func(string) error { return errors.New("native broke") }, false)
	openTTY = func() (io.WriteCloser, error) { return nil, errors.New("no tty") }

	_, err := Copy("x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "native broke")
	assert.Contains(t, err.Error(), "no tty")
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"hello world", 1},
		{"line1\nline2\nline3\n", 3},
		{"line1\nline2\nline3", 3},
		{"\n\n\n", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countLines(tt.in), "%q", tt.in)
	}
}
