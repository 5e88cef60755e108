package store

import (
	"context"
	"testing"
	"time"

	"github.com/rcliao/memory-engine/internal/model"
)

func TestSearchText_Basic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putMemory(t, s, "go", "golang", "Go is a compiled language with goroutines")
	putMemory(t, s, "py", "python", "Python is an interpreted language")
	putMemory(t, s, "rs", "rust", "Rust has a borrow checker")

	results, err := s.SearchText(ctx, TextSearchParams{Query: "language"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// Case-insensitive, matches title.
	results, _ = s.SearchText(ctx, TextSearchParams{Query: "GOLANG"})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	results, _ = s.SearchText(ctx, TextSearchParams{Query: "javascript"})
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestSearchText_Tags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m := &model.Memory{ID: "tagged", Kind: model.KindSemantic, Title: "t", Content: "c",
		Tags: []string{"kubernetes"}, CreatedAt: testNow, UpdatedAt: testNow}
	s.InsertMemory(ctx, m)

	results, _ := s.SearchText(ctx, TextSearchParams{Query: "kubernetes"})
	if len(results) != 1 {
		t.Fatalf("expected tag match, got %d", len(results))
	}
}

func TestSearchText_Wildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	putMemory(t, s, "pct", "discount", "save 50% today")
	putMemory(t, s, "plain", "other", "save 50 today")

	results, _ := s.SearchText(ctx, TextSearchParams{Query: "50%"})
	if len(results) != 1 || results[0].ID != "pct" {
		t.Fatalf("expected literal %% match only, got %v", results)
	}
}

func TestSearchText_OrderAndKinds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	putMemory(t, s, "cold", "deploy notes", "deploy")
	hot := putMemory(t, s, "hot", "deploy runbook", "deploy")
	proc := &model.Memory{ID: "proc", Kind: model.KindProcedural, Title: "deploy how-to", Content: "deploy",
		CreatedAt: testNow, UpdatedAt: testNow}
	s.InsertMemory(ctx, proc)

	s.RecordAccess(ctx, []string{hot.ID}, testNow.Add(time.Hour))
	s.RecordAccess(ctx, []string{hot.ID}, testNow.Add(2*time.Hour))

	results, _ := s.SearchText(ctx, TextSearchParams{Query: "deploy"})
	if len(results) != 3 || results[0].ID != "hot" {
		t.Fatalf("expected most accessed first, got %v", results)
	}

	results, _ = s.SearchText(ctx, TextSearchParams{Query: "deploy", Kinds: []model.Kind{model.KindProcedural}})
	if len(results) != 1 || results[0].ID != "proc" {
		t.Fatalf("expected kind filter, got %v", results)
	}

	results, _ = s.SearchText(ctx, TextSearchParams{Query: "deploy", Limit: 1})
	if len(results) != 1 {
		t.Fatalf("expected limit 1, got %d", len(results))
	}
}
