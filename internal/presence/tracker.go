// Package presence maintains per-document live-session membership from
// user_joined / user_left events.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

type sessionKey struct {
	documentID string
	userID     string
}

// Tracker holds the (documentID, userID) -> Session mapping. Joins upsert
// idempotently and leaves remove idempotently, so out-of-order or duplicated
// delivery never corrupts membership.
type Tracker struct {
	mu       sync.Mutex
	sessions map[sessionKey]model.Session
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[sessionKey]model.Session)}
}

// Join records a session. A duplicate join for the same (document, user)
// keeps the original JoinedAt and is otherwise a no-op.
func (t *Tracker) Join(documentID, userID, userName string, joinedAt time.Time) model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sessionKey{documentID: documentID, userID: userID}
	if existing, ok := t.sessions[key]; ok {
		if userName != "" && existing.UserName != userName {
			existing.UserName = userName
			t.sessions[key] = existing
		}
		return t.sessions[key]
	}
	if joinedAt.IsZero() {
		joinedAt = time.Now()
	}
	session := model.Session{
		DocumentID: documentID,
		UserID:     userID,
		UserName:   userName,
		JoinedAt:   joinedAt,
	}
	t.sessions[key] = session
	return session
}

// Leave removes a session. Leaving without a matching session is a no-op.
func (t *Tracker) Leave(documentID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionKey{documentID: documentID, userID: userID})
}

// List returns the sessions for one document ordered by join time, with
// user ID as a tiebreaker so the order is stable.
func (t *Tracker) List(documentID string) []model.Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	sessions := make([]model.Session, 0)
	for key, session := range t.sessions {
		if key.documentID == documentID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].JoinedAt.Equal(sessions[j].JoinedAt) {
			return sessions[i].UserID < sessions[j].UserID
		}
		return sessions[i].JoinedAt.Before(sessions[j].JoinedAt)
	})
	return sessions
}

// Count returns the number of live sessions on a document.
func (t *Tracker) Count(documentID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	count := 0
	for key := range t.sessions {
		if key.documentID == documentID {
			count++
		}
	}
	return count
}

// DropDocument removes every session for a document, used on document close.
func (t *Tracker) DropDocument(documentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key := range t.sessions {
		if key.documentID == documentID {
			delete(t.sessions, key)
		}
	}
}
