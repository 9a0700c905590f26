package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/asheshgoplani/agent-watch/internal/agents"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func transition(at time.Time, id string, tool agents.Tool, from, to agents.StatusKind) Transition {
	return Transition{At: at, AgentID: id, Target: "main:0." + id, Tool: tool, From: from, To: to}
}

func TestOpenReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s1.RecordTransition(ctx, transition(time.Now(), "1", agents.ToolClaude, agents.StatusIdle, agents.StatusProcessing)); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	firstRun := s1.RunID()
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	defer s2.Close()
	if err := s2.Migrate(); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
	if s2.RunID() == firstRun {
		t.Errorf("expected a fresh run id per open")
	}

	recs, err := s2.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].RunID != firstRun {
		t.Errorf("RunID = %q, want %q", recs[0].RunID, firstRun)
	}
	if recs[0].From != agents.StatusIdle || recs[0].To != agents.StatusProcessing {
		t.Errorf("unexpected kinds: %v -> %v", recs[0].From, recs[0].To)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		tr := transition(base.Add(time.Duration(i)*time.Minute), id, agents.ToolCodex, agents.StatusUnknown, agents.StatusIdle)
		tr.Detail = "step " + id
		if err := s.RecordTransition(ctx, tr); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}

	recs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].AgentID != "c" || recs[1].AgentID != "b" {
		t.Errorf("expected newest first, got %s, %s", recs[0].AgentID, recs[1].AgentID)
	}
	if recs[0].Detail != "step c" || recs[0].Tool != agents.ToolCodex {
		t.Errorf("unexpected record: %+v", recs[0])
	}
	if !recs[0].At.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("At = %v", recs[0].At)
	}
}

func TestCountsSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	records := []Transition{
		transition(base.Add(-time.Hour), "old", agents.ToolClaude, agents.StatusIdle, agents.StatusAwaitingApproval),
		transition(base, "1", agents.ToolClaude, agents.StatusIdle, agents.StatusAwaitingApproval),
		transition(base.Add(time.Second), "2", agents.ToolClaude, agents.StatusProcessing, agents.StatusAwaitingApproval),
		transition(base.Add(2*time.Second), "1", agents.ToolClaude, agents.StatusAwaitingApproval, agents.StatusProcessing),
		transition(base.Add(3*time.Second), "3", agents.ToolGemini, agents.StatusProcessing, agents.StatusIdle),
	}
	for _, r := range records {
		if err := s.RecordTransition(ctx, r); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}

	counts, err := s.CountsSince(ctx, base)
	if err != nil {
		t.Fatalf("CountsSince: %v", err)
	}

	got := map[agents.Tool]map[agents.StatusKind]int{}
	for _, c := range counts {
		if got[c.Tool] == nil {
			got[c.Tool] = map[agents.StatusKind]int{}
		}
		got[c.Tool][c.Status] = c.N
	}
	if got[agents.ToolClaude][agents.StatusAwaitingApproval] != 2 {
		t.Errorf("claude approvals = %d, want 2", got[agents.ToolClaude][agents.StatusAwaitingApproval])
	}
	if got[agents.ToolClaude][agents.StatusProcessing] != 1 {
		t.Errorf("claude processing = %d, want 1", got[agents.ToolClaude][agents.StatusProcessing])
	}
	if got[agents.ToolGemini][agents.StatusIdle] != 1 {
		t.Errorf("gemini idle = %d, want 1", got[agents.ToolGemini][agents.StatusIdle])
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i-2) * 24 * time.Hour)
		if err := s.RecordTransition(ctx, transition(at, "x", agents.ToolClaude, agents.StatusIdle, agents.StatusProcessing)); err != nil {
			t.Fatalf("RecordTransition: %v", err)
		}
	}

	n, err := s.Prune(ctx, base)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d rows, want 2", n)
	}
	recs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("expected 2 remaining, got %d", len(recs))
	}
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	before := time.Now().Add(-time.Second)

	if err := s.RecordTransition(ctx, Transition{AgentID: "z", Tool: agents.ToolOpenCode, To: agents.StatusError}); err != nil {
		t.Fatalf("RecordTransition: %v", err)
	}
	recs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 1 || recs[0].At.Before(before) {
		t.Fatalf("expected a current timestamp, got %+v", recs)
	}
	if recs[0].From != agents.StatusUnknown || recs[0].To != agents.StatusError {
		t.Errorf("unexpected kinds: %v -> %v", recs[0].From, recs[0].To)
	}
}

func TestConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := transition(time.Now(), "c", agents.ToolClaude, agents.StatusIdle, agents.StatusProcessing)
			if err := s.RecordTransition(ctx, tr); err != nil {
				t.Errorf("RecordTransition %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	recs, err := s.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 10 {
		t.Errorf("expected 10 records, got %d", len(recs))
	}
}
