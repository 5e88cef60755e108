package store

import (
	"context"
	"testing"
)

func TestLinkCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := putMemory(t, s, "link-a", "a", "memory a")
	b := putMemory(t, s, "link-b", "b", "memory b")

	link, err := s.UpsertLink(ctx, a.ID, b.ID, "depends_on", testNow)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if link.Relationship != "depends_on" || link.ID == "" {
		t.Errorf("unexpected link %+v", link)
	}

	out, in, err := s.LinksFor(ctx, b.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(out) != 0 || len(in) != 1 {
		t.Fatalf("expected 0 out / 1 in, got %d / %d", len(out), len(in))
	}
	if in[0].SourceID != a.ID || in[0].Relationship != "depends_on" {
		t.Errorf("unexpected incoming link %+v", in[0])
	}
}

func TestLinkUpsertOverwritesRelationship(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := putMemory(t, s, "up-a", "a", "memory a")
	b := putMemory(t, s, "up-b", "b", "memory b")

	first, _ := s.UpsertLink(ctx, a.ID, b.ID, "related_to", testNow)
	second, err := s.UpsertLink(ctx, a.ID, b.ID, "supersedes", testNow)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("expected same edge id, got %s vs %s", first.ID, second.ID)
	}
	if second.Relationship != "supersedes" {
		t.Errorf("expected supersedes, got %s", second.Relationship)
	}
	if n, _ := s.CountLinks(ctx); n != 1 {
		t.Errorf("expected 1 link, got %d", n)
	}

	// The reverse direction is a distinct pair.
	if _, err := s.UpsertLink(ctx, b.ID, a.ID, "related_to", testNow); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.CountLinks(ctx); n != 2 {
		t.Errorf("expected 2 links, got %d", n)
	}
}

func TestLinkRejectsSelfAndBadRelationship(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := putMemory(t, s, "self", "a", "memory a")

	if _, err := s.UpsertLink(ctx, a.ID, a.ID, "related_to", testNow); err == nil {
		t.Error("expected error for self link")
	}
	if _, err := s.UpsertLink(ctx, a.ID, "other", "contradicts", testNow); err == nil {
		t.Error("expected error for unknown relationship")
	}
}

func TestLinkRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := putMemory(t, s, "rm-a", "a", "memory a")
	b := putMemory(t, s, "rm-b", "b", "memory b")
	s.UpsertLink(ctx, a.ID, b.ID, "related_to", testNow)

	ok, err := s.DeleteLink(ctx, a.ID, b.ID)
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, _ = s.DeleteLink(ctx, a.ID, b.ID)
	if ok {
		t.Error("expected second delete to report not found")
	}
}

func TestDeleteLinksTouching(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := putMemory(t, s, "t-a", "a", "memory a")
	b := putMemory(t, s, "t-b", "b", "memory b")
	c := putMemory(t, s, "t-c", "c", "memory c")
	s.UpsertLink(ctx, a.ID, b.ID, "related_to", testNow)
	s.UpsertLink(ctx, c.ID, a.ID, "example_of", testNow)
	s.UpsertLink(ctx, b.ID, c.ID, "related_to", testNow)

	n, err := s.DeleteLinksTouching(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if left, _ := s.CountLinks(ctx); left != 1 {
		t.Errorf("expected 1 link left, got %d", left)
	}
}
