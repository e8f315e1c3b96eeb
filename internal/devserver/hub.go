package devserver

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/realtime"
)

const sessionSendBuffer = 32

// session is one live websocket connection with its authenticated identity.
// Writes go through the buffered send channel drained by writeLoop, so one
// slow consumer never blocks a broadcast.
type session struct {
	conn     *websocket.Conn
	identity Identity

	mu     sync.Mutex
	send   chan realtime.Envelope
	closed bool
}

func newSession(conn *websocket.Conn, identity Identity) *session {
	return &session{
		conn:     conn,
		identity: identity,
		send:     make(chan realtime.Envelope, sessionSendBuffer),
	}
}

func (s *session) writeLoop() {
	for env := range s.send {
		if err := s.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// deliver enqueues without blocking; a full buffer drops the event. The
// mutex orders deliveries against close: broadcasts snapshot their targets
// outside the hub lock, so a target may already be torn down by the time it
// is delivered to.
func (s *session) deliver(env realtime.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- env:
	default:
		log.Printf("devserver: dropping %s for slow session %s", env.Event, s.identity.UserID)
	}
}

// Hub tracks which sessions are in which document rooms and fans events out
// to them. A session may sit in several rooms at once.
type Hub struct {
	mu       sync.Mutex
	sessions map[*session]bool
	rooms    map[string]map[*session]bool
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[*session]bool),
		rooms:    make(map[string]map[*session]bool),
	}
}

// Register adds a freshly upgraded session to the hub.
func (h *Hub) Register(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s] = true
}

// Join adds the session to a room and reports whether it was newly added.
func (h *Hub) Join(s *session, documentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[documentID] == nil {
		h.rooms[documentID] = make(map[*session]bool)
	}
	if h.rooms[documentID][s] {
		return false
	}
	h.rooms[documentID][s] = true
	return true
}

// Leave removes the session from a room and reports whether it was present.
func (h *Hub) Leave(s *session, documentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[documentID]
	if !ok || !members[s] {
		return false
	}
	delete(members, s)
	if len(members) == 0 {
		delete(h.rooms, documentID)
	}
	return true
}

// Drop removes the session from every room and returns the rooms it was in,
// so the caller can emit the matching user_left broadcasts.
func (h *Hub) Drop(s *session) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, s)
	left := make([]string, 0)
	for documentID, members := range h.rooms {
		if members[s] {
			delete(members, s)
			left = append(left, documentID)
			if len(members) == 0 {
				delete(h.rooms, documentID)
			}
		}
	}
	return left
}

// Broadcast fans an event out to every session in the room, the sender
// included: authors observe their own changes through the same event path
// as everyone else.
func (h *Hub) Broadcast(documentID string, env realtime.Envelope) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.rooms[documentID]))
	for member := range h.rooms[documentID] {
		targets = append(targets, member)
	}
	h.mu.Unlock()

	for _, target := range targets {
		target.deliver(env)
	}
}

// BroadcastAll fans an event out to every connected session, in a room or
// not. Used for user-scoped pushes like notifications.
func (h *Hub) BroadcastAll(env realtime.Envelope) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for member := range h.sessions {
		targets = append(targets, member)
	}
	h.mu.Unlock()

	for _, target := range targets {
		target.deliver(env)
	}
}

// Members returns the sessions currently in a room.
func (h *Hub) Members(documentID string) []*session {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := make([]*session, 0, len(h.rooms[documentID]))
	for member := range h.rooms[documentID] {
		members = append(members, member)
	}
	return members
}

// RoomSize reports how many sessions are currently in a room.
func (h *Hub) RoomSize(documentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[documentID])
}
