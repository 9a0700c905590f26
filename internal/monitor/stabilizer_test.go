package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

func TestStabilizerApply(t *testing.T) {
	t0 := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	working := agents.Processing(WorkingLabel)

	type step struct {
		at   time.Duration
		in   agents.Status
		want agents.Status
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{
			name: "idle inside grace is held",
			steps: []step{
				{0, agents.Processing("Reading"), agents.Processing("Reading")},
				{1000 * time.Millisecond, agents.Idle(), working},
				{2500 * time.Millisecond, agents.Idle(), agents.Idle()},
			},
		},
		{
			name: "grace boundary is exclusive",
			steps: []step{
				{0, agents.Processing(""), agents.Processing("")},
				{2000 * time.Millisecond, agents.Idle(), agents.Idle()},
			},
		},
		{
			name: "override does not extend the window",
			steps: []step{
				{0, agents.Processing(""), agents.Processing("")},
				{1500 * time.Millisecond, agents.Idle(), working},
				{2100 * time.Millisecond, agents.Idle(), agents.Idle()},
			},
		},
		{
			name: "approval counts as active",
			steps: []step{
				{0, agents.AwaitingApproval(agents.OtherApproval("x"), ""), agents.AwaitingApproval(agents.OtherApproval("x"), "")},
				{500 * time.Millisecond, agents.Idle(), working},
			},
		},
		{
			name: "errors and unknown pass through",
			steps: []step{
				{0, agents.Processing(""), agents.Processing("")},
				{100 * time.Millisecond, agents.Errored("boom"), agents.Errored("boom")},
				{200 * time.Millisecond, agents.Unknown(), agents.Unknown()},
				{300 * time.Millisecond, agents.Idle(), working},
			},
		},
		{
			name: "never active stays idle",
			steps: []step{
				{0, agents.Idle(), agents.Idle()},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStabilizer(0)
			for i, st := range tt.steps {
				got := s.Apply("main:0.0", st.in, t0.Add(st.at))
				assert.Equal(t, st.want, got, "step %d", i)
			}
		})
	}
}

func TestStabilizerTargetsAreIndependent(t *testing.T) {
	now := time.Now()
	s := NewStabilizer(2 * time.Second)
	s.Apply("a:0.0", agents.Processing(""), now)

	assert.Equal(t, agents.Idle(), s.Apply("b:0.0", agents.Idle(), now.Add(time.Millisecond)))
}

func TestStabilizerRetain(t *testing.T) {
	now := time.Now()
	s := NewStabilizer(0)
	s.Apply("a:0.0", agents.Processing(""), now)
	s.Apply("b:0.0", agents.Processing(""), now)
	s.Apply("c:0.0", agents.Idle(), now)
	assert.Equal(t, 2, s.Len())

	s.Retain([]string{"b:0.0", "z:9.9"})
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, agents.Idle(), s.Apply("a:0.0", agents.Idle(), now.Add(time.Millisecond)))
	assert.Equal(t, agents.Processing(WorkingLabel), s.Apply("b:0.0", agents.Idle(), now.Add(time.Millisecond)))
}
