package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

func TestDefaultRegistryOrder(t *testing.T) {
	r := DefaultRegistry(nil)
	var tools []agents.Tool
	for _, p := range r.Parsers() {
		tools = append(tools, p.Tool())
	}
	assert.Equal(t, []agents.Tool{agents.ToolClaude, agents.ToolOpenCode, agents.ToolCodex, agents.ToolGemini}, tools)
}

func TestRegistryFind(t *testing.T) {
	r := DefaultRegistry(nil)
	tests := []struct {
		name      string
		detection []string
		want      agents.Tool
	}{
		{"claude title", []string{"node", "Claude Code", "/usr/bin/claude"}, agents.ToolClaude},
		{"opencode", []string{"opencode", "", "opencode"}, agents.ToolOpenCode},
		{"codex child", []string{"zsh", "~", "-zsh", "node /usr/lib/codex/bin/codex.js", "node"}, agents.ToolCodex},
		{"gemini upper", []string{"GEMINI", "", ""}, agents.ToolGemini},
		{"first match wins", []string{"codex", "claude", ""}, agents.ToolClaude},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := r.Find(tt.detection)
			require.NotNil(t, p)
			assert.Equal(t, tt.want, p.Tool())
		})
	}

	assert.Nil(t, r.Find([]string{"fish", "~", "fish"}))
	assert.Nil(t, r.Find(nil))
}

// Each tool's own name token matches only its parser, in any letter case.
func TestMatchesIsExclusiveForNameTokens(t *testing.T) {
	r := DefaultRegistry(nil)
	tokens := map[agents.Tool]string{
		agents.ToolClaude:   "claude",
		agents.ToolOpenCode: "opencode",
		agents.ToolCodex:    "codex",
		agents.ToolGemini:   "gemini",
	}
	for tool, tok := range tokens {
		for _, variant := range []string{tok, strings.ToUpper(tok), strings.ToUpper(tok[:1]) + tok[1:]} {
			for _, p := range r.Parsers() {
				assert.Equal(t, p.Tool() == tool, p.Matches([]string{variant}), "%s vs %s", variant, p.Name())
			}
		}
	}
}

func TestRegistryForTool(t *testing.T) {
	r := DefaultRegistry(nil)
	require.NotNil(t, r.ForTool(agents.ToolGemini))
	assert.Equal(t, "Gemini CLI", r.ForTool(agents.ToolGemini).Name())
	assert.Nil(t, r.ForTool(agents.ToolUnknown))
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "", tailRunes("", 5))
	assert.Equal(t, "abc", tailRunes("abc", 5))
	assert.Equal(t, "bc", tailRunes("abc", 2))
	assert.Equal(t, "", tailRunes("abc", 0))
	assert.Equal(t, "界✳", tailRunes("世界✳", 2))
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(""))
	assert.Equal(t, []string{"a", "b"}, splitLines("a\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, splitLines("a\r\n\r\nb"))
	assert.Equal(t, []string{""}, splitLines("\n"))
}

func TestLastLines(t *testing.T) {
	lines := []string{"1", "2", "3"}
	assert.Equal(t, lines, lastLines(lines, 5))
	assert.Equal(t, []string{"2", "3"}, lastLines(lines, 2))
}
