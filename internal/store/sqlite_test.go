package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/memory-engine/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func putMemory(t *testing.T, s *SQLiteStore, id, title, content string) *model.Memory {
	t.Helper()
	m := &model.Memory{
		ID:         id,
		Kind:       model.KindSemantic,
		Title:      title,
		Content:    content,
		Confidence: 1,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	if err := s.InsertMemory(context.Background(), m); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	return m
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &model.Memory{
		ID:         "3f2a9c1e-0000-4000-8000-000000000001",
		Kind:       model.KindProcedural,
		Category:   "build",
		Title:      "release steps",
		Content:    "tag, push, wait for CI",
		Tags:       []string{"release", "ci"},
		Confidence: 0.8,
		Embedding:  []float32{0.6, 0.8},
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	if err := s.InsertMemory(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != m.Kind || got.Title != m.Title || got.Content != m.Content || got.Confidence != m.Confidence {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "release" || got.Tags[1] != "ci" {
		t.Errorf("expected tags to survive, got %v", got.Tags)
	}
	if len(got.Embedding) != 2 || got.Embedding[1] != 0.8 {
		t.Errorf("expected embedding to survive, got %v", got.Embedding)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Errorf("expected created_at %v, got %v", testNow, got.CreatedAt)
	}
	if got.LastAccessedAt != nil {
		t.Error("expected nil last_accessed_at on a new memory")
	}
}

func TestInsertRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)
	err := s.InsertMemory(context.Background(), &model.Memory{ID: "x", Kind: "opinion", Title: "t", Content: "c"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSkillKindAccepted(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	m := &model.Memory{ID: "skill-1", Kind: model.KindSkill, Title: "deploy", Content: "trigger: deploy", CreatedAt: testNow, UpdatedAt: testNow}
	if err := s.InsertMemory(ctx, m); err != nil {
		t.Fatalf("insert skill: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetMemory(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveShortID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putMemory(t, s, "abcd1234-1111-4000-8000-000000000001", "one", "first")
	putMemory(t, s, "ffff0000-1111-4000-8000-000000000002", "two", "second")
	putMemory(t, s, "ffff0000-2222-4000-8000-000000000003", "three", "third")

	got, err := s.ResolveMemory(ctx, "abcd1234")
	if err != nil {
		t.Fatalf("resolve short id: %v", err)
	}
	if got.Title != "one" {
		t.Errorf("expected 'one', got %q", got.Title)
	}

	got, err = s.ResolveMemory(ctx, "ffff0000-2222-4000-8000-000000000003")
	if err != nil || got.Title != "three" {
		t.Fatalf("resolve full id: %v %v", got, err)
	}

	if _, err := s.ResolveMemory(ctx, "ffff0000"); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous, got %v", err)
	}
	if _, err := s.ResolveMemory(ctx, "00000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// Prefixes of other lengths are not short ids.
	if _, err := s.ResolveMemory(ctx, "abcd"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for 4-char prefix, got %v", err)
	}
}

func TestUpdateMemory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := putMemory(t, s, "upd-1", "title", "old")

	m.Content = "new"
	m.Tags = []string{"fresh"}
	m.Embedding = nil
	m.UpdatedAt = testNow.Add(time.Hour)
	if err := s.UpdateMemory(ctx, m); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ := s.GetMemory(ctx, m.ID)
	if got.Content != "new" || len(got.Tags) != 1 {
		t.Errorf("update not persisted: %+v", got)
	}
	if !got.UpdatedAt.Equal(m.UpdatedAt) {
		t.Errorf("expected updated_at %v, got %v", m.UpdatedAt, got.UpdatedAt)
	}

	missing := &model.Memory{ID: "nope"}
	if err := s.UpdateMemory(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesLinks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := putMemory(t, s, "del-a", "a", "memory a")
	b := putMemory(t, s, "del-b", "b", "memory b")

	if _, err := s.UpsertLink(ctx, a.ID, b.ID, "related_to", testNow); err != nil {
		t.Fatalf("link: %v", err)
	}

	ok, err := s.DeleteMemory(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	out, in, _ := s.LinksFor(ctx, b.ID)
	if len(out)+len(in) != 0 {
		t.Errorf("expected links removed with memory, got %d", len(out)+len(in))
	}

	ok, _ = s.DeleteMemory(ctx, a.ID)
	if ok {
		t.Error("expected second delete to report nothing removed")
	}
}

func TestRecordAccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := putMemory(t, s, "acc-1", "t", "c")

	at := testNow.Add(24 * time.Hour)
	for range 3 {
		if err := s.RecordAccess(ctx, []string{m.ID}, at); err != nil {
			t.Fatal(err)
		}
	}
	got, _ := s.GetMemory(ctx, m.ID)
	if got.AccessCount != 3 {
		t.Errorf("expected access_count 3, got %d", got.AccessCount)
	}
	if got.LastAccessedAt == nil || !got.LastAccessedAt.Equal(at) {
		t.Errorf("expected last_accessed_at %v, got %v", at, got.LastAccessedAt)
	}
}

func TestAbsorbMemories(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	target := putMemory(t, s, "tgt", "target", "keep me")
	dup := putMemory(t, s, "dup", "dup", "drop me")
	s.RecordAccess(ctx, []string{dup.ID}, testNow)

	n, err := s.AbsorbMemories(ctx, AbsorbParams{
		TargetID:    target.ID,
		Tags:        []string{"a", "b"},
		AccessDelta: 1,
		RemoveIDs:   []string{dup.ID},
		At:          testNow,
	})
	if err != nil {
		t.Fatalf("absorb: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	got, _ := s.GetMemory(ctx, target.ID)
	if got.AccessCount != 1 || len(got.Tags) != 2 {
		t.Errorf("target did not absorb: %+v", got)
	}
	if _, err := s.GetMemory(ctx, dup.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected duplicate gone, got %v", err)
	}
}

func TestPruneCandidates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	old := putMemory(t, s, "old", "old", "stale")
	used := putMemory(t, s, "used", "used", "old but read")
	s.RecordAccess(ctx, []string{used.ID}, testNow)

	fresh := &model.Memory{ID: "fresh", Kind: model.KindSemantic, Title: "f", Content: "c",
		CreatedAt: testNow.Add(90 * 24 * time.Hour), UpdatedAt: testNow}
	s.InsertMemory(ctx, fresh)

	got, err := s.PruneCandidates(ctx, testNow.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != old.ID {
		t.Errorf("expected only %q, got %v", old.ID, got)
	}
}

func TestCorruptVectorTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	m := putMemory(t, s, "corrupt", "t", "c")

	if _, err := s.db.ExecContext(ctx, `UPDATE memories SET embedding = ? WHERE id = ?`, []byte{1, 2, 3, 4, 5}, m.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetMemory(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HasEmbedding() {
		t.Errorf("expected corrupt vector to decode as absent, got %v", got.Embedding)
	}
}

func TestCountMemoriesAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	putMemory(t, s, "c1", "t", "c")
	putMemory(t, s, "c2", "t", "c")

	n, err := CountMemoriesAt(ctx, s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	putMemory(t, src, "e1", "one", "first")
	putMemory(t, src, "e2", "two", "second")

	all, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestStore(t)
	putMemory(t, dst, "e1", "one", "already here")
	n, err := dst.Import(ctx, all)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 imported (existing id skipped), got %d", n)
	}
	if c, _ := dst.CountMemories(ctx); c != 2 {
		t.Errorf("expected 2 memories, got %d", c)
	}
}
