package comments

import (
	"testing"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

func newComment(id, sectionID, body string) model.Comment {
	return model.Comment{
		ID:         id,
		DocumentID: "42",
		SectionID:  sectionID,
		Author:     "user1",
		Body:       body,
		CreatedAt:  time.Now(),
	}
}

func TestApplyAddedIsIdempotentPerID(t *testing.T) {
	store := NewStore()
	item := newComment("cmt_1", "5", "fix typo")

	if !store.ApplyAdded(item) {
		t.Fatalf("first ApplyAdded must report a change")
	}
	if store.ApplyAdded(item) {
		t.Fatalf("duplicate ApplyAdded must be a no-op")
	}
	if got := store.List(); len(got) != 1 {
		t.Fatalf("expected exactly one comment, got %d", len(got))
	}
}

func TestResolveIsMonotonic(t *testing.T) {
	store := NewStore()
	store.ApplyAdded(newComment("cmt_1", "5", "fix typo"))

	first := time.Now()
	if !store.ApplyResolved("cmt_1", first) {
		t.Fatalf("first resolve must report a change")
	}
	if store.ApplyResolved("cmt_1", first.Add(time.Hour)) {
		t.Fatalf("second resolve must be a no-op")
	}

	item, ok := store.Get("cmt_1")
	if !ok || !item.Resolved {
		t.Fatalf("expected comment resolved")
	}
	if !item.ResolvedAt.Equal(first) {
		t.Fatalf("ResolvedAt must keep the first resolution timestamp, got %v", item.ResolvedAt)
	}
}

func TestResolveUnknownCommentIsNoOp(t *testing.T) {
	store := NewStore()
	if store.ApplyResolved("missing", time.Now()) {
		t.Fatalf("resolving an unknown comment must report no change")
	}
}

func TestDeleteIsLocalOnly(t *testing.T) {
	store := NewStore()
	store.ApplyAdded(newComment("cmt_1", "5", "a"))
	store.ApplyAdded(newComment("cmt_2", "5", "b"))

	if !store.Delete("cmt_1") {
		t.Fatalf("expected delete to remove cmt_1")
	}
	if store.Delete("cmt_1") {
		t.Fatalf("second delete must be a no-op")
	}
	got := store.List()
	if len(got) != 1 || got[0].ID != "cmt_2" {
		t.Fatalf("expected [cmt_2], got %v", got)
	}
}

func TestListKeepsArrivalOrder(t *testing.T) {
	store := NewStore()
	store.ApplyAdded(newComment("cmt_2", "1", "second created, first delivered"))
	store.ApplyAdded(newComment("cmt_1", "1", "first created, second delivered"))

	got := store.List()
	if got[0].ID != "cmt_2" || got[1].ID != "cmt_1" {
		t.Fatalf("expected arrival order [cmt_2 cmt_1], got %v", got)
	}
}

func TestReplaceAndSectionFilter(t *testing.T) {
	store := NewStore()
	store.ApplyAdded(newComment("stale", "1", "gone after reload"))

	store.Replace([]model.Comment{
		newComment("cmt_1", "5", "a"),
		newComment("cmt_2", "7", "b"),
		newComment("cmt_3", "5", "c"),
	})

	if _, ok := store.Get("stale"); ok {
		t.Fatalf("replace must drop entries missing from the authoritative list")
	}
	section := store.ListForSection("5")
	if len(section) != 2 || section[0].ID != "cmt_1" || section[1].ID != "cmt_3" {
		t.Fatalf("expected section 5 comments [cmt_1 cmt_3], got %v", section)
	}
	if store.UnresolvedCount() != 3 {
		t.Fatalf("expected 3 unresolved, got %d", store.UnresolvedCount())
	}
}
