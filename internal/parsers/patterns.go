package parsers

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/asheshgoplani/agent-watch/internal/logging"
)

var parserLog = logging.ForComponent(logging.CompParser)

// PatternSet holds raw approval/processing/idle patterns for one tool.
// Entries prefixed with "re:" are regular expressions; anything else is a
// case-insensitive literal.
type PatternSet struct {
	Approval   []string `toml:"approval"`
	Processing []string `toml:"processing"`
	Idle       []string `toml:"idle"`
}

// Merge returns defaults followed by extra.
func (p PatternSet) Merge(extra PatternSet) PatternSet {
	return PatternSet{
		Approval:   appendCopy(p.Approval, extra.Approval),
		Processing: appendCopy(p.Processing, extra.Processing),
		Idle:       appendCopy(p.Idle, extra.Idle),
	}
}

// IsEmpty reports whether the set has no patterns at all.
func (p PatternSet) IsEmpty() bool {
	return len(p.Approval) == 0 && len(p.Processing) == 0 && len(p.Idle) == 0
}

func appendCopy(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// matcher reports whether any of its compiled patterns match.
type matcher []*regexp.Regexp

func (m matcher) MatchString(s string) bool {
	for _, re := range m {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// compileMatcher compiles raw patterns. Invalid regexes are logged and
// skipped so a bad user pattern never disables a parser.
func compileMatcher(kind string, raw []string) matcher {
	var m matcher
	for _, p := range raw {
		if p == "" {
			continue
		}
		expr := "(?i)" + regexp.QuoteMeta(p)
		if strings.HasPrefix(p, "re:") {
			expr = p[3:]
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			parserLog.Warn("invalid_pattern",
				slog.String("kind", kind),
				slog.String("pattern", p),
				slog.String("error", err.Error()))
			continue
		}
		m = append(m, re)
	}
	return m
}
