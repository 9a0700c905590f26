package parsers

import (
	"github.com/asheshgoplani/agent-watch/internal/agents"
)

const simpleTailRunes = 500

// patternParser classifies a tool from three independent cues checked over
// the tail of the capture: approval, then processing, then idle.
type patternParser struct {
	defaults

	tool     agents.Tool
	tokens   []string
	activity string

	approval   matcher
	processing matcher
	idle       matcher
}

func newPatternParser(tool agents.Tool, tokens []string, activity string, set PatternSet) *patternParser {
	return &patternParser{
		tool:       tool,
		tokens:     tokens,
		activity:   activity,
		approval:   compileMatcher(string(tool)+".approval", set.Approval),
		processing: compileMatcher(string(tool)+".processing", set.Processing),
		idle:       compileMatcher(string(tool)+".idle", set.Idle),
	}
}

// CodexPatterns are the built-in Codex CLI cues.
var CodexPatterns = PatternSet{
	Approval:   []string{`re:(?i)\[y/n\]|\[yes/no\]|confirm|approve|run this`},
	Processing: []string{`re:(?i)(thinking|running|executing|generating)`},
	Idle:       []string{`re:(?i)(ready|waiting|>\s*$|\$\s*$)`},
}

// OpenCodePatterns are the built-in OpenCode cues.
var OpenCodePatterns = PatternSet{
	Approval:   []string{`re:(?i)\[y/n\]|\[yes/no\]|confirm|approve|allow`},
	Processing: []string{`re:(?i)(thinking|processing|generating|analyzing|working)`},
	Idle:       []string{`re:(?i)(ready|waiting|idle|>\s*$)`},
}

// GeminiPatterns are the built-in Gemini CLI cues.
var GeminiPatterns = PatternSet{
	Approval:   []string{`re:(?i)\[y/n\]|\[yes/no\]|confirm|approve|allow`},
	Processing: []string{`re:(?i)(thinking|generating|processing|analyzing)`},
	Idle:       []string{`re:(?i)(ready|waiting|>\s*$)`},
}

// NewCodexParser builds the Codex CLI parser with user patterns appended.
func NewCodexParser(extra PatternSet) Parser {
	return newPatternParser(agents.ToolCodex, []string{"codex", "openai"}, "Processing...", CodexPatterns.Merge(extra))
}

// NewOpenCodeParser builds the OpenCode parser with user patterns appended.
func NewOpenCodeParser(extra PatternSet) Parser {
	return newPatternParser(agents.ToolOpenCode, []string{"opencode", "open-code"}, "Processing...", OpenCodePatterns.Merge(extra))
}

// NewGeminiParser builds the Gemini CLI parser with user patterns appended.
func NewGeminiParser(extra PatternSet) Parser {
	return newPatternParser(agents.ToolGemini, []string{"gemini", "google"}, "Generating...", GeminiPatterns.Merge(extra))
}

func (p *patternParser) Tool() agents.Tool { return p.tool }
func (p *patternParser) Name() string      { return p.tool.DisplayName() }

func (p *patternParser) Matches(detection []string) bool {
	return containsAnyFold(detection, p.tokens...)
}

func (p *patternParser) ParseStatus(content string) agents.Status {
	recent := tailRunes(content, simpleTailRunes)
	switch {
	case p.approval.MatchString(recent):
		return agents.AwaitingApproval(agents.OtherApproval("Pending"), "")
	case p.processing.MatchString(recent):
		return agents.Processing(p.activity)
	case p.idle.MatchString(recent):
		return agents.Idle()
	default:
		return agents.Unknown()
	}
}
