package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rcliao/memory-engine/internal/model"
)

func TestBeginSessionEndsPrevious(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, closed, err := s.BeginSession(ctx, "first task", model.InitialPhase, testNow)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if len(closed) != 0 {
		t.Errorf("expected nothing closed, got %v", closed)
	}

	second, closed, err := s.BeginSession(ctx, "second task", model.InitialPhase, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("begin again: %v", err)
	}
	if len(closed) != 1 || closed[0] != first.ID {
		t.Errorf("expected %s closed, got %v", first.ID, closed)
	}

	_, active, _ := s.CountSessions(ctx)
	if active != 1 {
		t.Errorf("expected exactly one active session, got %d", active)
	}
	cur, err := s.ActiveSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cur.ID != second.ID || cur.Phase != model.InitialPhase {
		t.Errorf("unexpected active session %+v", cur)
	}
}

func TestActiveSessionNone(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.ActiveSession(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckpointsAndEnd(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess, _, _ := s.BeginSession(ctx, "task", model.InitialPhase, testNow)

	n, err := s.AddCheckpoint(ctx, model.Checkpoint{SessionID: sess.ID, Note: "read code", Importance: "normal", CreatedAt: testNow})
	if err != nil || n != 1 {
		t.Fatalf("checkpoint: %d %v", n, err)
	}
	n, _ = s.AddCheckpoint(ctx, model.Checkpoint{SessionID: sess.ID, Phase: "execute", Note: "wrote fix", Importance: "high", CreatedAt: testNow.Add(time.Minute)})
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}

	cur, _ := s.ActiveSession(ctx)
	if cur.Phase != "execute" {
		t.Errorf("expected phase execute, got %q", cur.Phase)
	}
	if len(cur.Checkpoints) != 2 || cur.Checkpoints[0].Note != "read code" {
		t.Errorf("unexpected checkpoints %+v", cur.Checkpoints)
	}

	if err := s.EndSession(ctx, sess.ID, "done", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("end: %v", err)
	}
	ended, _ := s.GetSession(ctx, sess.ID)
	if ended.Active() || ended.Outcome != "done" {
		t.Errorf("expected ended session with outcome, got %+v", ended)
	}
	if err := s.EndSession(ctx, sess.ID, "again", testNow); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound ending twice, got %v", err)
	}
}

func TestDecisions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.InsertDecision(ctx, &model.Decision{Decision: "Use SQLite", Context: "storage for memories", Rationale: "embedded", CreatedAt: testNow})
	s.InsertDecision(ctx, &model.Decision{Decision: "Use cobra", Context: "CLI parsing", Alternatives: []string{"urfave"}, CreatedAt: testNow.Add(time.Minute)})

	got, err := s.SearchDecisions(ctx, "sqlite", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Decision != "Use SQLite" {
		t.Fatalf("expected SQLite decision, got %+v", got)
	}

	got, _ = s.SearchDecisions(ctx, "cli", 10)
	if len(got) != 1 || len(got[0].Alternatives) != 1 {
		t.Fatalf("expected context match with alternatives, got %+v", got)
	}

	got, _ = s.SearchDecisions(ctx, "", 10)
	if len(got) != 2 || got[0].Decision != "Use cobra" {
		t.Fatalf("expected newest first, got %+v", got)
	}
}

func TestToolUsage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.RecordToolCall(ctx, "memory_search", testNow)
	s.RecordToolCall(ctx, "memory_search", testNow.Add(time.Minute))
	s.RecordToolCall(ctx, "checkpoint", testNow)

	usage, err := s.ToolUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 2 || usage[0].ToolName != "memory_search" || usage[0].CallCount != 2 {
		t.Fatalf("unexpected usage %+v", usage)
	}
	if !usage[0].FirstCalledAt.Equal(testNow) || !usage[0].LastCalledAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("unexpected timestamps %+v", usage[0])
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := putMemory(t, s, "s-a", "a", "c")
	putMemory(t, s, "s-b", "b", "c")
	s.RecordAccess(ctx, []string{a.ID}, testNow)

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalMemories != 2 || st.ByKind["semantic"] != 2 || st.ByKind["skill"] != 0 {
		t.Errorf("unexpected counts %+v", st)
	}
	if st.NeverAccessed != 1 || len(st.TopAccessed) != 1 || st.TopAccessed[0].ID != a.ID {
		t.Errorf("unexpected access stats %+v", st)
	}
	if st.DBSizeBytes == 0 {
		t.Error("expected non-zero db size")
	}
}

func TestConcurrentCheckpoints(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sess, _, err := s.BeginSession(ctx, "task", model.InitialPhase, testNow)
	if err != nil {
		t.Fatal(err)
	}

	const n = 8
	var wg sync.WaitGroup
	counts := make(chan int, n)
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.AddCheckpoint(ctx, model.Checkpoint{
				SessionID:  sess.ID,
				Phase:      "execute",
				Note:       fmt.Sprintf("step %d", i),
				Importance: "normal",
				CreatedAt:  testNow,
			})
			if err != nil {
				errs <- err
				return
			}
			counts <- c
		}()
	}
	wg.Wait()
	close(errs)
	close(counts)

	for err := range errs {
		t.Errorf("checkpoint: %v", err)
	}
	seen := map[int]bool{}
	for c := range counts {
		if seen[c] {
			t.Errorf("sequence %d handed out twice", c)
		}
		seen[c] = true
	}
	cps, err := s.Checkpoints(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(cps) != n {
		t.Errorf("expected %d checkpoints, got %d", n, len(cps))
	}
}

func TestConcurrentBeginSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := s.BeginSession(ctx, fmt.Sprintf("task %d", i), model.InitialPhase, testNow); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("begin: %v", err)
	}
	total, active, err := s.CountSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != n || active != 1 {
		t.Errorf("expected %d sessions with one active, got %d total %d active", n, total, active)
	}
}

func TestMatchDecisions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.InsertDecision(ctx, &model.Decision{Decision: "Use SQLite WAL for storage", Context: "storage layer concurrency", CreatedAt: testNow})
	s.InsertDecision(ctx, &model.Decision{Decision: "Cache snapshots", Context: "storage reads", CreatedAt: testNow.Add(time.Minute)})
	s.InsertDecision(ctx, &model.Decision{Decision: "Use cobra", Context: "CLI parsing", CreatedAt: testNow.Add(2 * time.Minute)})

	got, err := s.MatchDecisions(ctx, []string{"improve", "storage", "layer", "concurrency"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %+v", got)
	}
	// More matched terms outrank recency.
	if got[0].Decision != "Use SQLite WAL for storage" || got[1].Decision != "Cache snapshots" {
		t.Errorf("unexpected order: %s, %s", got[0].Decision, got[1].Decision)
	}

	got, err = s.MatchDecisions(ctx, nil, 10)
	if err != nil || len(got) != 0 {
		t.Errorf("expected no matches without terms, got %+v %v", got, err)
	}
}
