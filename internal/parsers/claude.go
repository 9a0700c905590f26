package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

const (
	approvalTailLines  = 20
	questionWindow     = 25
	questionNearPrompt = 8
	questionLookBack   = 5
	buttonWindow       = 8
	buttonMaxDistance  = 4
	textApprovalLines  = 10
	approvalKindRunes  = 1500
	contextTailRunes   = 1000
)

var (
	claudeFileEdit   = regexp.MustCompile(`(?i)(Edit|Write|Modify)\s+.*?\?|Do you want to (edit|write|modify)|Allow.*?edit`)
	claudeFileCreate = regexp.MustCompile(`(?i)Create\s+.*?\?|Do you want to create|Allow.*?create`)
	claudeFileDelete = regexp.MustCompile(`(?i)Delete\s+.*?\?|Do you want to delete|Allow.*?delete`)
	claudeShell      = regexp.MustCompile(`(?i)(Run|Execute)\s+(command|bash|shell)|Do you want to run|Allow.*?(command|bash)|run this command`)
	claudeMCP        = regexp.MustCompile(`(?i)MCP\s+tool|Do you want to use.*?MCP|Allow.*?MCP`)
	claudeYesNoText  = regexp.MustCompile(`(?i)\[y/n\]|\[Y/n\]|\[yes/no\]|\(Y\)es\s*/\s*\(N\)o|Yes\s*/\s*No|y/n|Allow\?|Do you want to (allow|proceed|continue|run|execute)`)

	// ⏺ Task(subagent_type="Explore", description="search the codebase")
	claudeTaskStart = regexp.MustCompile(`(?m)[⏺⠿⠇⠋⠙⠸⠴⠦⠧⠖⠏]\s*Task\s*\([^)]*subagent_type\s*[:=]\s*["']?(\w[\w-]*)["']?[^)]*description\s*[:=]\s*["']([^"']+)["']`)
	// ▶ Plan: designing the API (lines inside box borders are ignored)
	claudeTaskRunning  = regexp.MustCompile(`(?m)^[^│\n]*[▶►⠿⠇⠋⠙⠸⠴⠦⠧⠖⠏]\s*(\w+)(?:\s*agent)?:?\s*(.*)$`)
	claudeTaskComplete = regexp.MustCompile(`(?m)[✓✔]\s*(\w+).*?(?:completed|finished|done|returned)`)

	claudeContext  = regexp.MustCompile(`(?i)Context\s+(?:left|remaining).*?(\d+)%`)
	claudeChoice   = regexp.MustCompile(`^\s*(\d+)\.\s+(.+)$`)
	claudeFilePath = regexp.MustCompile(`(?m)(?:file|path)[:\s]+([^\s\n]+)|([./][\w/.-]+\.\w+)`)
	claudeCommand  = regexp.MustCompile("(?m)(?:command|run)[:\\s]+`([^`]+)`|```(?:bash|sh)?\\n([^`]+)```")

	trailingAnnotation = regexp.MustCompile(`\s*(\([^()]*\)|\[[^\[\]]*\])$`)
)

// ClaudeParser recognizes Claude Code. It reports approvals, subagents and
// remaining context; Processing comes from the pane title spinner, which
// the poller checks.
type ClaudeParser struct{}

// NewClaudeParser returns the Claude Code parser.
func NewClaudeParser() *ClaudeParser { return &ClaudeParser{} }

func (*ClaudeParser) Tool() agents.Tool     { return agents.ToolClaude }
func (*ClaudeParser) Name() string          { return agents.ToolClaude.DisplayName() }
func (*ClaudeParser) ApprovalKeys() string  { return "y" }
func (*ClaudeParser) RejectionKeys() string { return "n" }

// Matches accepts the tool name, the ✳ title glyph, or a bare version
// string, which Claude Code reports as its pane command.
func (*ClaudeParser) Matches(detection []string) bool {
	if containsAnyFold(detection, "claude", "anthropic") {
		return true
	}
	for _, s := range detection {
		if strings.ContainsRune(s, '✳') || isVersionLike(s) {
			return true
		}
	}
	return false
}

// isVersionLike matches strings such as "2.1.11": digits and dots only,
// at least one dot, starting with a digit.
func isVersionLike(s string) bool {
	if s == "" || !strings.Contains(s, ".") || s[0] < '0' || s[0] > '9' {
		return false
	}
	for _, r := range s {
		if r != '.' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func (p *ClaudeParser) ParseStatus(content string) agents.Status {
	if kind, detail, ok := p.detectApproval(content); ok {
		return agents.AwaitingApproval(kind, detail)
	}
	if strings.TrimSpace(content) == "" {
		return agents.Unknown()
	}
	return agents.Idle()
}

func (p *ClaudeParser) detectApproval(content string) (agents.ApprovalKind, string, bool) {
	lines := splitLines(content)
	if len(lines) == 0 {
		return agents.ApprovalKind{}, "", false
	}
	recentLines := lastLines(lines, approvalTailLines)

	if choices, question, ok := extractUserQuestion(recentLines); ok {
		return agents.QuestionApproval(choices, false), question, true
	}

	buttons := detectYesNoButtons(recentLines)
	textApproval := claudeYesNoText.MatchString(reverseJoin(lastLines(recentLines, textApprovalLines)))
	if !buttons && !textApproval {
		return agents.ApprovalKind{}, "", false
	}

	window := tailRunes(content, approvalKindRunes)
	switch {
	case claudeFileEdit.MatchString(window):
		return agents.ApprovalKind{Type: agents.ApprovalFileEdit}, extractFilePath(window), true
	case claudeFileCreate.MatchString(window):
		return agents.ApprovalKind{Type: agents.ApprovalFileCreate}, extractFilePath(window), true
	case claudeFileDelete.MatchString(window):
		return agents.ApprovalKind{Type: agents.ApprovalFileDelete}, extractFilePath(window), true
	case claudeShell.MatchString(window):
		return agents.ApprovalKind{Type: agents.ApprovalShellCommand}, extractCommand(window), true
	case claudeMCP.MatchString(window):
		return agents.ApprovalKind{Type: agents.ApprovalMCPTool}, "MCP tool call", true
	default:
		return agents.OtherApproval("Pending approval"), "", true
	}
}

// reverseJoin joins lines last-first. Only used for unanchored matching.
func reverseJoin(lines []string) string {
	rev := make([]string, len(lines))
	for i, l := range lines {
		rev[len(lines)-1-i] = l
	}
	return strings.Join(rev, "\n")
}

// detectYesNoButtons looks for the button-style prompt:
//
//	Yes
//	Yes, and don't ask again for this session
//	No
//
// Both a short Yes line and a short No line must appear in the final lines,
// close to each other.
func detectYesNoButtons(lines []string) bool {
	yesIdx, noIdx := -1, -1
	for i, line := range lastLines(lines, buttonWindow) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || len(trimmed) > 50 {
			continue
		}
		if isButton(trimmed, "Yes") {
			yesIdx = i
		}
		if isButton(trimmed, "No") {
			noIdx = i
		}
	}
	if yesIdx < 0 || noIdx < 0 {
		return false
	}
	d := yesIdx - noIdx
	if d < 0 {
		d = -d
	}
	return d <= buttonMaxDistance
}

func isButton(line, word string) bool {
	if len(line) >= 40 {
		return false
	}
	return line == word || strings.HasPrefix(line, word+",") || strings.HasPrefix(line, word+" ")
}

// extractUserQuestion finds a numbered choice list (1., 2., ...) sitting
// just above the active prompt and the question line preceding it.
func extractUserQuestion(lines []string) ([]string, string, bool) {
	if len(lines) == 0 {
		return nil, "", false
	}

	// Anything after the last prompt marker is the input area.
	searchEnd := len(lines)
	for i := len(lines) - 1; i >= 0; i-- {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "❯") || (strings.HasPrefix(trimmed, ">") && len(trimmed) < 3) {
			searchEnd = i
			break
		}
	}
	searchStart := searchEnd - questionWindow
	if searchStart < 0 {
		searchStart = 0
	}
	check := lines[searchStart:searchEnd]
	if len(check) == 0 {
		return nil, "", false
	}

	var choices []string
	firstIdx, lastIdx := -1, -1
	reset := func() {
		choices = nil
		firstIdx, lastIdx = -1, -1
	}

	for i, line := range check {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "│") || strings.HasPrefix(trimmed, "├") ||
			strings.HasPrefix(trimmed, "└") || strings.HasPrefix(trimmed, "┌") ||
			strings.HasPrefix(trimmed, "─") || strings.HasPrefix(trimmed, "✻") {
			if len(choices) > 0 {
				reset()
			}
			continue
		}

		if m := claudeChoice.FindStringSubmatch(line); m != nil {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if num == len(choices)+1 {
				choices = append(choices, cleanChoiceLabel(m[2]))
				if firstIdx < 0 {
					firstIdx = i
				}
				lastIdx = i
			} else if len(choices) > 0 {
				reset()
			}
			continue
		}

		// Short or blank lines may sit between choices; longer text means
		// the list was output, not an open prompt.
		if len(choices) > 0 && trimmed != "" && len(trimmed) > 30 {
			reset()
		}
	}

	if lastIdx >= 0 && len(check)-lastIdx > questionNearPrompt {
		return nil, "", false
	}
	if len(choices) < 2 {
		return nil, "", false
	}

	question := ""
	for j := firstIdx - 1; j >= 0; j-- {
		prev := strings.TrimSpace(check[j])
		if prev == "" {
			continue
		}
		if strings.ContainsAny(prev, "?？") {
			question = prev
			break
		}
		if question == "" {
			question = prev
		}
		if firstIdx-j > questionLookBack {
			break
		}
	}
	return choices, question, true
}

// cleanChoiceLabel drops a full-width parenthetical and a trailing
// "(Recommended)" style annotation.
func cleanChoiceLabel(text string) string {
	label := strings.TrimSpace(text)
	if i := strings.Index(label, "（"); i >= 0 {
		label = strings.TrimSpace(label[:i])
	}
	if stripped := trailingAnnotation.ReplaceAllString(label, ""); stripped != "" {
		label = strings.TrimSpace(stripped)
	}
	return label
}

func extractFilePath(content string) string {
	m := claudeFilePath.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

func extractCommand(content string) string {
	m := claudeCommand.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(m[2])
}

// ParseSubagents extracts Task delegations. Identity is the type name:
// start markers first, then running lines for types not yet seen, then
// completion markers flip every subagent of that type to Completed.
func (*ClaudeParser) ParseSubagents(content string) []agents.Subagent {
	var subs []agents.Subagent
	nextID := func() string { return fmt.Sprintf("subagent-%d", len(subs)+1) }

	for _, m := range claudeTaskStart.FindAllStringSubmatch(content, -1) {
		subs = append(subs, agents.Subagent{
			ID:          nextID(),
			Type:        agents.ParseSubagentType(m[1]),
			Description: m[2],
			Status:      agents.SubagentRunning,
		})
	}

	for _, m := range claudeTaskRunning.FindAllStringSubmatch(content, -1) {
		if hasSubagentType(subs, m[1]) {
			continue
		}
		subs = append(subs, agents.Subagent{
			ID:          nextID(),
			Type:        agents.ParseSubagentType(m[1]),
			Description: strings.TrimSpace(m[2]),
			Status:      agents.SubagentRunning,
		})
	}

	for _, m := range claudeTaskComplete.FindAllStringSubmatch(content, -1) {
		for i := range subs {
			if strings.EqualFold(string(subs[i].Type), m[1]) {
				subs[i].Status = agents.SubagentCompleted
			}
		}
	}
	return subs
}

func hasSubagentType(subs []agents.Subagent, name string) bool {
	for _, s := range subs {
		if strings.EqualFold(string(s.Type), name) {
			return true
		}
	}
	return false
}

// ParseContextRemaining reads "Context left until auto-compact: 42%".
func (*ClaudeParser) ParseContextRemaining(content string) (int, bool) {
	m := claudeContext.FindStringSubmatch(tailRunes(content, contextTailRunes))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 100 {
		return 0, false
	}
	return n, true
}
