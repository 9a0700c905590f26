package agentos

import (
	"encoding/json"
	"math"
	"time"
)

// SprintSummary condenses the current sprint for display.
type SprintSummary struct {
	Name        string
	Space       string
	TotalIssues int
	DoneIssues  int
	TotalACU    float64
	UsedACU     float64
	DaysLeft    int
	Ended       bool
}

// Percent is the share of issues done.
func (s SprintSummary) Percent() float64 {
	if s.TotalIssues == 0 {
		return 0
	}
	return float64(s.DoneIssues) / float64(s.TotalIssues) * 100
}

// SummarizeSprint picks the active sprint, or the last one, and derives
// progress from its planned issues. It returns nil when there is no sprint
// or the chosen sprint has no plan.
func SummarizeSprint(raw []json.RawMessage, today time.Time) *SprintSummary {
	var sprints []map[string]any
	for _, r := range raw {
		var m map[string]any
		if err := json.Unmarshal(r, &m); err == nil && m != nil {
			sprints = append(sprints, m)
		}
	}
	if len(sprints) == 0 {
		return nil
	}

	s := sprints[len(sprints)-1]
	for _, cand := range sprints {
		if str(cand, "status") == "active" {
			s = cand
			break
		}
	}

	planned, ok := s["planned"].(map[string]any)
	if !ok {
		return nil
	}

	name := str(s, "name")
	if name == "" {
		name = str(s, "id")
	}
	if name == "" {
		name = "?"
	}
	out := &SprintSummary{Name: name, Space: str(s, "space")}

	issues, _ := planned["issues"].([]any)
	var estimated, used float64
	for _, it := range issues {
		issue, _ := it.(map[string]any)
		out.TotalIssues++
		_, hasActual := issue["actual_acu"]
		if str(issue, "status") == "done" || hasActual {
			out.DoneIssues++
		}
		if v, ok := issue["estimated_acu"].(float64); ok {
			estimated += v
		}
		if v, ok := issue["actual_acu"].(float64); ok {
			used += v
		}
	}

	total, ok := planned["total_acu"].(float64)
	if !ok {
		total = estimated
	}
	out.TotalACU = round1(total)
	out.UsedACU = round1(used)

	if end, err := time.Parse("2006-01-02", str(s, "end_date")); err == nil {
		y, m, d := today.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		days := int(end.Sub(start).Hours()/24) + 1
		out.DaysLeft = max(days, 0)
		out.Ended = days < 0
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
