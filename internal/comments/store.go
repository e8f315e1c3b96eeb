// Package comments holds the client-side view of a document's threaded,
// section-anchored comments. Entries are added only when the server's
// comment_added event arrives, never from the request response, so every
// collaborator (the author included) observes comments through one ordering
// source. Order is arrival order.
package comments

import (
	"sync"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

type Store struct {
	mu      sync.Mutex
	ordered []string
	byID    map[string]model.Comment
}

func NewStore() *Store {
	return &Store{byID: make(map[string]model.Comment)}
}

// Replace swaps the whole collection for the authoritative server list,
// used by load/reload.
func (s *Store) Replace(items []model.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ordered = s.ordered[:0]
	s.byID = make(map[string]model.Comment, len(items))
	for _, item := range items {
		if _, ok := s.byID[item.ID]; ok {
			continue
		}
		s.ordered = append(s.ordered, item.ID)
		s.byID[item.ID] = item
	}
}

// ApplyAdded appends a comment from a comment_added event. A duplicate
// delivery of the same comment ID is a no-op.
func (s *Store) ApplyAdded(item model.Comment) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[item.ID]; ok {
		return false
	}
	s.ordered = append(s.ordered, item.ID)
	s.byID[item.ID] = item
	return true
}

// ApplyResolved marks a comment resolved with the server timestamp.
// Resolution is monotonic: resolving an already-resolved comment leaves
// ResolvedAt unchanged. It reports whether state changed.
func (s *Store) ApplyResolved(id string, resolvedAt time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID[id]
	if !ok || item.Resolved {
		return false
	}
	item.Resolved = true
	at := resolvedAt
	item.ResolvedAt = &at
	s.byID[id] = item
	return true
}

// Delete removes a comment locally. Deletion has no corresponding inbound
// event; it is a local-only, non-propagated operation.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, existing := range s.ordered {
		if existing == id {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	return true
}

func (s *Store) Get(id string) (model.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.byID[id]
	return item, ok
}

// List returns all comments in arrival order.
func (s *Store) List() []model.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Comment, 0, len(s.ordered))
	for _, id := range s.ordered {
		items = append(items, s.byID[id])
	}
	return items
}

// ListForSection returns the comments anchored to one section, in arrival order.
func (s *Store) ListForSection(sectionID string) []model.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]model.Comment, 0)
	for _, id := range s.ordered {
		if item := s.byID[id]; item.SectionID == sectionID {
			items = append(items, item)
		}
	}
	return items
}

// UnresolvedCount returns how many comments are still open.
func (s *Store) UnresolvedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, item := range s.byID {
		if !item.Resolved {
			count++
		}
	}
	return count
}
