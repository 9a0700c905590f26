// Package agents holds the data model shared by the poller, the parsers and the UI.
package agents

import (
	"fmt"
)

// Tool identifies a supported agent product.
type Tool string

const (
	ToolClaude   Tool = "claude"
	ToolOpenCode Tool = "opencode"
	ToolCodex    Tool = "codex"
	ToolGemini   Tool = "gemini"
	ToolUnknown  Tool = "unknown"
)

// DisplayName returns the human name of the tool.
func (t Tool) DisplayName() string {
	switch t {
	case ToolClaude:
		return "Claude Code"
	case ToolOpenCode:
		return "OpenCode"
	case ToolCodex:
		return "Codex CLI"
	case ToolGemini:
		return "Gemini CLI"
	default:
		return "Unknown"
	}
}

// ShortName returns the compact label used in narrow columns.
func (t Tool) ShortName() string {
	switch t {
	case ToolClaude:
		return "Claude"
	case ToolOpenCode:
		return "Open"
	case ToolCodex:
		return "Codex"
	case ToolGemini:
		return "Gemini"
	default:
		return "???"
	}
}

func (t Tool) String() string { return t.DisplayName() }

// ApprovalType is the category of decision an approval prompt asks for.
type ApprovalType int

const (
	ApprovalOther ApprovalType = iota
	ApprovalFileEdit
	ApprovalFileCreate
	ApprovalFileDelete
	ApprovalShellCommand
	ApprovalMCPTool
	ApprovalUserQuestion
)

// ApprovalKind describes a pending prompt. Choices and MultiSelect are only
// set for ApprovalUserQuestion, Description only for ApprovalOther.
type ApprovalKind struct {
	Type        ApprovalType
	Choices     []string
	MultiSelect bool
	Description string
}

// OtherApproval builds a free-text approval kind.
func OtherApproval(desc string) ApprovalKind {
	return ApprovalKind{Type: ApprovalOther, Description: desc}
}

// QuestionApproval builds a multi-choice question kind.
func QuestionApproval(choices []string, multiSelect bool) ApprovalKind {
	return ApprovalKind{Type: ApprovalUserQuestion, Choices: choices, MultiSelect: multiSelect}
}

// ShortDesc returns the one-word label shown in status badges.
func (k ApprovalKind) ShortDesc() string {
	switch k.Type {
	case ApprovalFileEdit:
		return "Edit"
	case ApprovalFileCreate:
		return "Create"
	case ApprovalFileDelete:
		return "Delete"
	case ApprovalShellCommand:
		return "Shell"
	case ApprovalMCPTool:
		return "MCP"
	case ApprovalUserQuestion:
		return "Question"
	default:
		return "Other"
	}
}

// IsYesNo reports whether the prompt is answered with the approval/rejection keys.
func (k ApprovalKind) IsYesNo() bool {
	return k.Type != ApprovalUserQuestion
}

// IsQuestion reports whether the prompt is a numbered multi-choice question.
func (k ApprovalKind) IsQuestion() bool {
	return k.Type == ApprovalUserQuestion
}

func (k ApprovalKind) String() string {
	switch k.Type {
	case ApprovalFileEdit:
		return "File Edit"
	case ApprovalFileCreate:
		return "File Create"
	case ApprovalFileDelete:
		return "File Delete"
	case ApprovalShellCommand:
		return "Shell Command"
	case ApprovalMCPTool:
		return "MCP Tool"
	case ApprovalUserQuestion:
		return fmt.Sprintf("Question (%d choices)", len(k.Choices))
	default:
		return k.Description
	}
}

// StatusKind discriminates Status. The zero value is StatusUnknown.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusIdle
	StatusProcessing
	StatusAwaitingApproval
	StatusError
)

func (k StatusKind) String() string {
	switch k {
	case StatusIdle:
		return "idle"
	case StatusProcessing:
		return "processing"
	case StatusAwaitingApproval:
		return "awaiting_approval"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the classification of one agent at one point in time.
// Activity is set for Processing, Approval and Detail for AwaitingApproval,
// Message for Error.
type Status struct {
	Kind     StatusKind
	Activity string
	Approval ApprovalKind
	Detail   string
	Message  string
}

func Idle() Status    { return Status{Kind: StatusIdle} }
func Unknown() Status { return Status{Kind: StatusUnknown} }

func Processing(activity string) Status {
	return Status{Kind: StatusProcessing, Activity: activity}
}

func AwaitingApproval(kind ApprovalKind, detail string) Status {
	return Status{Kind: StatusAwaitingApproval, Approval: kind, Detail: detail}
}

func Errored(msg string) Status {
	return Status{Kind: StatusError, Message: msg}
}

// NeedsAttention is true while the agent waits on the operator.
func (s Status) NeedsAttention() bool {
	return s.Kind == StatusAwaitingApproval || s.Kind == StatusError
}

// IsActive is true for the statuses the stabilizer remembers.
func (s Status) IsActive() bool {
	return s.Kind == StatusProcessing || s.Kind == StatusAwaitingApproval
}

// Indicator returns the single glyph drawn next to the agent.
func (s Status) Indicator() string {
	switch s.Kind {
	case StatusIdle:
		return "●"
	case StatusProcessing:
		return "◐"
	case StatusAwaitingApproval:
		return "⚠"
	case StatusError:
		return "✗"
	default:
		return "?"
	}
}

// ShortText returns the status label without the indicator.
func (s Status) ShortText() string {
	switch s.Kind {
	case StatusIdle:
		return "Idle"
	case StatusProcessing:
		if s.Activity == "" {
			return "Processing"
		}
		return s.Activity
	case StatusAwaitingApproval:
		return fmt.Sprintf("APPROVAL NEEDED [%s]", s.Approval.ShortDesc())
	case StatusError:
		return "Error: " + s.Message
	default:
		return "Unknown"
	}
}

func (s Status) String() string {
	return s.Indicator() + " " + s.ShortText()
}
