package agentos

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawSprints(t *testing.T, docs ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		require.True(t, json.Valid([]byte(d)), d)
		out[i] = json.RawMessage(d)
	}
	return out
}

func TestSummarizeSprint(t *testing.T) {
	today := time.Date(2026, 10, 19, 22, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		docs []string
		want *SprintSummary
	}{
		{
			name: "no sprints",
			want: nil,
		},
		{
			name: "no plan",
			docs: []string{`{"name":"S1","status":"active"}`},
			want: nil,
		},
		{
			name: "active preferred over last",
			docs: []string{
				`{"name":"S1","status":"active","space":"core","planned":{"issues":[]}}`,
				`{"name":"S2","status":"planned","planned":{"issues":[]}}`,
			},
			want: &SprintSummary{Name: "S1", Space: "core"},
		},
		{
			name: "falls back to last",
			docs: []string{
				`{"name":"S1","status":"closed","planned":{}}`,
				`{"id":"sprint-2","status":"closed","planned":{}}`,
			},
			want: &SprintSummary{Name: "sprint-2"},
		},
		{
			name: "unnamed",
			docs: []string{`{"planned":{}}`},
			want: &SprintSummary{Name: "?"},
		},
		{
			name: "issue progress and estimated total",
			docs: []string{`{"name":"S3","status":"active","end_date":"2026-10-19","planned":{"issues":[
				{"status":"done","estimated_acu":1.04,"actual_acu":1.26},
				{"status":"review","estimated_acu":2,"actual_acu":0.5},
				{"status":"open","estimated_acu":3}
			]}}`},
			want: &SprintSummary{Name: "S3", TotalIssues: 3, DoneIssues: 2, TotalACU: 6, UsedACU: 1.8, DaysLeft: 1},
		},
		{
			name: "planned total wins",
			docs: []string{`{"name":"S4","planned":{"total_acu":12.345,"issues":[{"estimated_acu":1}]}}`},
			want: &SprintSummary{Name: "S4", TotalIssues: 1, TotalACU: 12.3},
		},
		{
			name: "ended yesterday",
			docs: []string{`{"name":"S5","end_date":"2026-10-18","planned":{}}`},
			want: &SprintSummary{Name: "S5", DaysLeft: 0, Ended: false},
		},
		{
			name: "ended",
			docs: []string{`{"name":"S6","end_date":"2026-10-10","planned":{}}`},
			want: &SprintSummary{Name: "S6", DaysLeft: 0, Ended: true},
		},
		{
			name: "bad end date ignored",
			docs: []string{`{"name":"S7","end_date":"soon","planned":{}}`},
			want: &SprintSummary{Name: "S7"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeSprint(rawSprints(t, tt.docs...), today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSprintPercent(t *testing.T) {
	assert.Equal(t, 0.0, SprintSummary{}.Percent())
	assert.InDelta(t, 25.0, SprintSummary{TotalIssues: 8, DoneIssues: 2}.Percent(), 0.001)
}
