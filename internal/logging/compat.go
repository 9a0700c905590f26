package logging

import (
	"bytes"
	"log/slog"
	"strings"
)

// BridgeWriter adapts slog to io.Writer so output from the standard log
// package (ours or a dependency's) lands in the structured log. A leading
// "[category]" tag becomes the component attribute.
type BridgeWriter struct {
	component string
}

// NewBridgeWriter creates a writer that forwards each write as one record.
// defaultComponent is used when a line carries no [category] tag.
func NewBridgeWriter(defaultComponent string) *BridgeWriter {
	return &BridgeWriter{component: defaultComponent}
}

// Write implements io.Writer.
func (bw *BridgeWriter) Write(p []byte) (int, error) {
	n := len(p)
	msg := string(bytes.TrimSpace(p))
	if msg == "" {
		return n, nil
	}
	msg = stripLogTimestamp(msg)

	component := bw.component
	if strings.HasPrefix(msg, "[") {
		if idx := strings.Index(msg, "] "); idx > 0 {
			component = strings.ToLower(msg[1:idx])
			msg = msg[idx+2:]
		}
	}

	Logger().Info(msg, slog.String("component", canonicalComponent(component)))
	return n, nil
}

// stripLogTimestamp removes the prefix written by log.Ltime, with or
// without log.Lmicroseconds.
func stripLogTimestamp(s string) string {
	if len(s) > 16 && s[2] == ':' && s[5] == ':' && s[8] == '.' && s[15] == ' ' {
		return s[16:]
	}
	if len(s) > 9 && s[2] == ':' && s[5] == ':' && s[8] == ' ' {
		return s[9:]
	}
	return s
}

func canonicalComponent(cat string) string {
	switch cat {
	case "poll", "poller", "monitor":
		return CompPoll
	case "tmux", "pane", "capture", "ps":
		return CompTmux
	case "parser", "parse":
		return CompParser
	case "remote", "agentos", "http", "api":
		return CompRemote
	case "ui", "tea":
		return CompUI
	case "history", "sqlite", "db":
		return CompHistory
	case "config", "toml":
		return CompConfig
	case "perf":
		return CompPerf
	default:
		return cat
	}
}
