// Package parsers turns captured pane text into agent status. Each supported
// tool has one stateless Parser; the Registry picks the first that matches a
// pane's detection strings.
package parsers

import (
	"strings"
	"unicode/utf8"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

// Parser classifies the captured text of one tool's pane. Implementations
// must be pure functions of their input.
type Parser interface {
	Tool() agents.Tool
	Name() string
	Matches(detection []string) bool
	ParseStatus(content string) agents.Status
	ParseSubagents(content string) []agents.Subagent
	ParseContextRemaining(content string) (int, bool)
	ApprovalKeys() string
	RejectionKeys() string
}

// defaults supplies the optional parts of Parser.
type defaults struct{}

func (defaults) ParseSubagents(string) []agents.Subagent  { return nil }
func (defaults) ParseContextRemaining(string) (int, bool) { return 0, false }
func (defaults) ApprovalKeys() string                     { return "y" }
func (defaults) RejectionKeys() string                    { return "n" }

// Registry holds parsers in priority order.
type Registry struct {
	parsers []Parser
}

// NewRegistry creates a registry; earlier parsers win ties.
func NewRegistry(parsers ...Parser) *Registry {
	return &Registry{parsers: parsers}
}

// DefaultRegistry registers Claude, OpenCode, Codex and Gemini in that
// order. extra appends user patterns to the pattern-driven parsers.
func DefaultRegistry(extra map[agents.Tool]PatternSet) *Registry {
	return NewRegistry(
		NewClaudeParser(),
		NewOpenCodeParser(extra[agents.ToolOpenCode]),
		NewCodexParser(extra[agents.ToolCodex]),
		NewGeminiParser(extra[agents.ToolGemini]),
	)
}

// Find returns the first parser matching detection, or nil.
func (r *Registry) Find(detection []string) Parser {
	for _, p := range r.parsers {
		if p.Matches(detection) {
			return p
		}
	}
	return nil
}

// ForTool returns the parser registered for tool, or nil.
func (r *Registry) ForTool(tool agents.Tool) Parser {
	for _, p := range r.parsers {
		if p.Tool() == tool {
			return p
		}
	}
	return nil
}

// Parsers returns the registered parsers in order.
func (r *Registry) Parsers() []Parser {
	return append([]Parser(nil), r.parsers...)
}

// tailRunes returns the last n runes of s without splitting a character.
func tailRunes(s string, n int) string {
	i := len(s)
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

// splitLines splits text into lines the way a terminal shows them: a final
// newline does not start an empty line and a trailing \r is dropped.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// lastLines returns at most the final n lines.
func lastLines(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// containsAnyFold reports whether any detection string contains any token,
// ignoring case.
func containsAnyFold(detection []string, tokens ...string) bool {
	for _, s := range detection {
		lower := strings.ToLower(s)
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				return true
			}
		}
	}
	return false
}
