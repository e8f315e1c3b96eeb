package devserver

import (
	"testing"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

func testContent(title, about string) model.PortfolioContent {
	return model.PortfolioContent{
		Title:    title,
		Sections: map[string]string{"about": about},
	}
}

func newTestGitStore(t *testing.T) *GitStore {
	t.Helper()
	store := NewGitStore(t.TempDir())
	if err := store.Ensure("doc_1", testContent("My Portfolio", "hello"), "Ada"); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	return store
}

func TestFirstVersionGetsIDOne(t *testing.T) {
	store := newTestGitStore(t)

	snapshot, err := store.SaveVersion("doc_1", testContent("My Portfolio", "v1"), "Ada", "first draft")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if snapshot.ID != 1 {
		t.Fatalf("first snapshot id = %d, want 1", snapshot.ID)
	}
	if snapshot.Description != "first draft" || snapshot.Author != "Ada" {
		t.Fatalf("snapshot = %+v", snapshot)
	}
	if snapshot.ContentRef == "" {
		t.Fatal("snapshot has no content ref")
	}

	second, err := store.SaveVersion("doc_1", testContent("My Portfolio", "v2"), "Grace", "second draft")
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if second.ID != 2 {
		t.Fatalf("second snapshot id = %d, want 2", second.ID)
	}
}

func TestListVersionsNewestFirstWithoutBaseline(t *testing.T) {
	store := newTestGitStore(t)
	for _, description := range []string{"one", "two", "three"} {
		if _, err := store.SaveVersion("doc_1", testContent("My Portfolio", description), "Ada", description); err != nil {
			t.Fatalf("save %s: %v", description, err)
		}
	}

	versions, err := store.ListVersions("doc_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions = %d, want 3 (baseline excluded)", len(versions))
	}
	for i, wantID := range []int{3, 2, 1} {
		if versions[i].ID != wantID {
			t.Fatalf("versions[%d].ID = %d, want %d", i, versions[i].ID, wantID)
		}
	}
}

func TestContentAtReadsHistoricalSnapshot(t *testing.T) {
	store := newTestGitStore(t)
	if _, err := store.SaveVersion("doc_1", testContent("My Portfolio", "old text"), "Ada", "one"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.SaveVersion("doc_1", testContent("My Portfolio", "new text"), "Ada", "two"); err != nil {
		t.Fatalf("save: %v", err)
	}

	content, err := store.ContentAt("doc_1", 1)
	if err != nil {
		t.Fatalf("content at 1: %v", err)
	}
	if content.Sections["about"] != "old text" {
		t.Fatalf("about = %q, want old text", content.Sections["about"])
	}
	if _, err := store.ContentAt("doc_1", 99); err == nil {
		t.Fatal("unknown version must error")
	}
	if _, err := store.ContentAt("doc_1", 0); err == nil {
		t.Fatal("baseline is not an addressable version")
	}
}

func TestRestoreCreatesNewSnapshotKeepingTarget(t *testing.T) {
	store := newTestGitStore(t)
	if _, err := store.SaveVersion("doc_1", testContent("My Portfolio", "original"), "Ada", "one"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.SaveVersion("doc_1", testContent("My Portfolio", "changed"), "Ada", "two"); err != nil {
		t.Fatalf("save: %v", err)
	}

	snapshot, content, err := store.Restore("doc_1", 1, "Grace")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if snapshot.ID != 3 {
		t.Fatalf("restore snapshot id = %d, want 3", snapshot.ID)
	}
	if content.Sections["about"] != "original" {
		t.Fatalf("restored about = %q, want original", content.Sections["about"])
	}

	// the restored-from version is untouched
	target, err := store.ContentAt("doc_1", 1)
	if err != nil {
		t.Fatalf("content at 1 after restore: %v", err)
	}
	if target.Sections["about"] != "original" {
		t.Fatalf("target mutated: %q", target.Sections["about"])
	}
	// and the restore is itself a version that can be restored from
	versions, err := store.ListVersions("doc_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if versions[0].ID != 3 || versions[0].Description != "Restore of version 1" {
		t.Fatalf("latest version = %+v", versions[0])
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	store := newTestGitStore(t)
	if err := store.Ensure("doc_1", testContent("Other", "other"), "Grace"); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	content, err := store.HeadContent("doc_1")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if content.Title != "My Portfolio" {
		t.Fatalf("title = %q, second ensure must not overwrite", content.Title)
	}
}

func TestDiffContent(t *testing.T) {
	from := model.PortfolioContent{
		Title:    "Old title",
		Sections: map[string]string{"about": "same", "skills": "go"},
	}
	to := model.PortfolioContent{
		Title:    "New title",
		Sections: map[string]string{"about": "same", "skills": "go, sql", "projects": "folio"},
	}

	diffs := DiffContent(from, to)
	want := []model.FieldDiff{
		{Field: "title", Before: "Old title", After: "New title"},
		{Field: "sections.projects", Before: "", After: "folio"},
		{Field: "sections.skills", Before: "go", After: "go, sql"},
	}
	if len(diffs) != len(want) {
		t.Fatalf("diffs = %+v, want %d entries", diffs, len(want))
	}
	for i := range want {
		if diffs[i] != want[i] {
			t.Fatalf("diffs[%d] = %+v, want %+v", i, diffs[i], want[i])
		}
	}
	if got := DiffContent(from, from); len(got) != 0 {
		t.Fatalf("identical contents produced diffs: %+v", got)
	}
}
