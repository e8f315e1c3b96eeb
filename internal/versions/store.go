// Package versions holds the client-side view of a document's immutable
// version snapshots, ordered newest-first. Snapshots are applied from the
// createVersion / restoreVersion responses directly (request-returns-final):
// other collaborators learn of new snapshots only through reload, not live
// push.
package versions

import (
	"sync"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

type Store struct {
	mu    sync.Mutex
	items []model.VersionSnapshot
}

func NewStore() *Store {
	return &Store{}
}

// Replace swaps the collection for the authoritative server list. The list
// is stored as given; the server serves newest-first.
func (s *Store) Replace(items []model.VersionSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items[:0], items...)
}

// Prepend inserts a freshly created snapshot at the head. A snapshot ID that
// is already present is a no-op; history is append-only and snapshots are
// immutable once stored.
func (s *Store) Prepend(item model.VersionSnapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.ID == item.ID {
			return false
		}
	}
	s.items = append([]model.VersionSnapshot{item}, s.items...)
	return true
}

func (s *Store) Get(id int) (model.VersionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return model.VersionSnapshot{}, false
}

// List returns the snapshots newest-first.
func (s *Store) List() []model.VersionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.VersionSnapshot, len(s.items))
	copy(items, s.items)
	return items
}

// Latest returns the newest snapshot, if any.
func (s *Store) Latest() (model.VersionSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return model.VersionSnapshot{}, false
	}
	return s.items[0], true
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
