package agentos

import "encoding/json"

// Pane is one session record from /api/status.
type Pane struct {
	Pane       int     `json:"pane"`
	Theme      string  `json:"theme"`
	ThemeColor string  `json:"theme_color"`
	Status     string  `json:"status"`
	Project    string  `json:"project"`
	Task       string  `json:"task"`
	RoleFull   string  `json:"role_full"`
	Role       string  `json:"role"`
	Branch     string  `json:"branch"`
	Workspace  string  `json:"workspace"`
	PTYActive  bool    `json:"pty_active"`
	PTYRunning bool    `json:"pty_running"`
	LineCount  int     `json:"line_count"`
	StartedAt  string  `json:"started_at"`
	ACU        float64 `json:"acu"`
	Space      string  `json:"space"`
	IssueID    string  `json:"issue_id"`
}

// QueueTask is one entry of /api/queue. Pane is nil while unassigned.
type QueueTask struct {
	ID          string   `json:"id"`
	Project     string   `json:"project"`
	Role        string   `json:"role"`
	Task        string   `json:"task"`
	Priority    int      `json:"priority"`
	Status      string   `json:"status"`
	Pane        *int     `json:"pane"`
	DependsOn   []string `json:"depends_on"`
	AddedAt     string   `json:"added_at"`
	StartedAt   string   `json:"started_at"`
	CompletedAt string   `json:"completed_at"`
}

// Digest is the rolled-up 24h usage summary.
type Digest struct {
	ToolCalls      int64  `json:"tool_calls"`
	Errors         int64  `json:"errors"`
	ErrorRate      string `json:"error_rate"`
	Commits        int64  `json:"commits"`
	FilesTouched   int64  `json:"files_touched"`
	AgentsActive   int64  `json:"agents_active"`
	TasksCompleted int64  `json:"tasks_completed"`
}

type Alert struct {
	Level     string `json:"level"`
	Type      string `json:"type"`
	PaneID    string `json:"pane_id"`
	Project   string `json:"project"`
	ErrorRate string `json:"error_rate"`
}

type Alerts struct {
	Alerts []Alert `json:"alerts"`
	Count  int64   `json:"count"`
}

// Capacity is compute and review budget usage.
type Capacity struct {
	ACUUsed      float64 `json:"acu_used"`
	ACUTotal     float64 `json:"acu_total"`
	ReviewsUsed  int     `json:"reviews_used"`
	ReviewsTotal int     `json:"reviews_total"`
}

// ACUPercent is used/total compute as a percentage, 0 without a budget.
func (c Capacity) ACUPercent() float64 {
	if c.ACUTotal <= 0 {
		return 0
	}
	return c.ACUUsed / c.ACUTotal * 100
}

// ReviewPercent is used/total reviews as a percentage, 0 without a budget.
func (c Capacity) ReviewPercent() float64 {
	if c.ReviewsTotal <= 0 {
		return 0
	}
	return float64(c.ReviewsUsed) / float64(c.ReviewsTotal) * 100
}

// Bottleneck names the resource closest to exhaustion.
func (c Capacity) Bottleneck() string {
	switch {
	case c.ReviewPercent() > 80:
		return "REVIEW"
	case c.ACUPercent() > 90:
		return "COMPUTE"
	default:
		return "BALANCED"
	}
}

// BoardSpace holds issue counts by status for one space.
type BoardSpace struct {
	Name   string         `json:"name"`
	Counts map[string]int `json:"counts"`
}

type MCPServer struct {
	Name   string `json:"name"`
	Tools  int    `json:"tools"`
	IsRust bool   `json:"is_rust"`
}

type Activity struct {
	TS      string `json:"ts"`
	Pane    int    `json:"pane"`
	Event   string `json:"event"`
	Summary string `json:"summary"`
}

// AutoConfig is the remote auto-orchestration configuration.
type AutoConfig struct {
	MaxParallel   int    `json:"max_parallel"`
	ReservedPanes []int  `json:"reserved_panes"`
	AutoAssign    bool   `json:"auto_assign"`
	AutoComplete  bool   `json:"auto_complete"`
	DefaultRole   string `json:"default_role"`
	CycleInterval int    `json:"cycle_interval" alias:"cycle_interval_secs"`
}

type Session struct {
	CurrentTask string   `json:"current_task"`
	Completed   []string `json:"completed"`
	NextSteps   []string `json:"next_steps"`
	BlockedOn   string   `json:"blocked_on"`
}

type Milestone struct {
	Name    string `json:"name"`
	Space   string `json:"space"`
	Status  string `json:"status"`
	DueDate string `json:"due_date"`
}

// Process is a running multi-step workflow.
type Process struct {
	ID             string `json:"id"`
	Template       string `json:"template"`
	Space          string `json:"space"`
	Status         string `json:"status"`
	TotalSteps     int    `json:"total_steps"`
	CompletedSteps int    `json:"completed_steps"`
}

// PeerAgent is another agent the remote service knows about.
type PeerAgent struct {
	Pane    string `json:"pane"`
	Project string `json:"project"`
	Task    string `json:"task"`
}

// Dashboard is the aggregate /api/dashboard payload.
type Dashboard struct {
	Capacity     Capacity          `json:"capacity"`
	Sprints      []json.RawMessage `json:"sprints"`
	BoardSummary []BoardSpace      `json:"board_summary"`
	MCPs         []MCPServer       `json:"mcps"`
	Activity     []Activity        `json:"activity"`
	AutoConfig   AutoConfig        `json:"auto_config"`
	Session      Session           `json:"session"`
	Milestones   []Milestone       `json:"milestones"`
	Processes    []Process         `json:"processes"`
	Agents       []PeerAgent       `json:"agents"`
	Digest       *Digest           `json:"digest"`
	Alerts       *Alerts           `json:"alerts"`

	// Sprint is derived from Sprints when the payload is fetched.
	Sprint *SprintSummary `json:"-"`
}

// TotalIssues sums every status count of every board space.
func (d *Dashboard) TotalIssues() int {
	n := 0
	for _, s := range d.BoardSummary {
		for _, c := range s.Counts {
			n += c
		}
	}
	return n
}

// TotalMCPTools sums the tools registered across MCP servers.
func (d *Dashboard) TotalMCPTools() int {
	n := 0
	for _, m := range d.MCPs {
		n += m.Tools
	}
	return n
}

// PipelineClassification is how the pipeline routed a request.
type PipelineClassification struct {
	Project string `json:"project"`
	Role    string `json:"role"`
	Type    string `json:"type"`
}

// PipelineTask is one stage of a pipeline request.
type PipelineTask struct {
	Stage  string `json:"stage"`
	Role   string `json:"role"`
	Status string `json:"status"`
	Pane   *int   `json:"pane"`
}

// PipelineRequest is a free-text request submitted to the remote pipeline.
type PipelineRequest struct {
	ID             string                 `json:"id"`
	Request        string                 `json:"request"`
	Status         string                 `json:"status"`
	Classification PipelineClassification `json:"classification"`
	Tasks          []PipelineTask         `json:"tasks"`
	CreatedAt      string                 `json:"created_at"`
}

// SubmitResult is the reply to SubmitRequest.
type SubmitResult struct {
	ID      string `json:"id" alias:"factory_id"`
	Message string `json:"message"`
}

type statusResponse struct {
	Panes []Pane `json:"panes"`
}

type queueResponse struct {
	Tasks []QueueTask `json:"tasks"`
}

type pipelineResponse struct {
	Requests []PipelineRequest `json:"requests"`
}
