// Package devserver is the in-process collaboration backend: the REST
// surface the api client talks to plus the websocket endpoint the realtime
// channel connects to. It backs version history with per-document git
// repositories and presence with redis when configured.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/realtime"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/util"
)

const activityLimit = 500

// documentState is the live, non-versioned state of one portfolio document.
// Version snapshots live in the git store; everything here is rebuilt by
// clients through list endpoints and events.
type documentState struct {
	content   model.PortfolioContent
	comments  []model.Comment
	approvals []model.ApprovalRequest
	team      []model.TeamMember
	links     []model.ShareLink
	activity  []model.ActivityEntry
}

type Server struct {
	secret   []byte
	hub      *Hub
	git      *GitStore
	presence PresenceStore
	upgrader websocket.Upgrader

	mu        sync.Mutex
	documents map[string]*documentState
	unread    map[string]int
}

func New(secret string, git *GitStore, presence PresenceStore) *Server {
	return &Server{
		secret:    []byte(secret),
		hub:       NewHub(),
		git:       git,
		presence:  presence,
		documents: make(map[string]*documentState),
		unread:    make(map[string]int),
	}
}

func (s *Server) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	if r.URL.Path == "/ws" {
		s.handleSocket(w, r)
		return
	}
	if !strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}

	identity, err := s.authenticate(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/notifications/unread-count" {
		s.mu.Lock()
		count := s.unread[identity.UserID]
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
		return
	}

	segments := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/"), "/")
	if len(segments) < 3 || segments[0] != "portfolios" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}
	documentID := segments[1]
	rest := segments[2:]

	doc, err := s.document(documentID, identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILED", err.Error())
		return
	}

	switch rest[0] {
	case "team":
		s.handleTeam(w, r, identity, documentID, doc, rest[1:])
	case "comments":
		s.handleComments(w, r, identity, documentID, doc, rest[1:])
	case "versions":
		s.handleVersions(w, r, identity, documentID, doc, rest[1:])
	case "approvals":
		s.handleApprovals(w, r, identity, documentID, doc, rest[1:])
	case "share-links":
		s.handleShareLinks(w, r, identity, documentID, doc, rest[1:])
	case "activity":
		s.handleActivity(w, r, documentID, doc)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	}
}

func (s *Server) authenticate(r *http.Request) (Identity, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return Identity{}, ErrInvalidToken
	}
	identity, err := ParseToken(s.secret, strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return Identity{}, err
	}
	s.mu.Lock()
	if _, ok := s.unread[identity.UserID]; !ok {
		s.unread[identity.UserID] = 0
	}
	s.mu.Unlock()
	return identity, nil
}

// document returns the live state, initializing the git repository and the
// in-memory state on first touch.
func (s *Server) document(documentID string, identity Identity) (*documentState, error) {
	s.mu.Lock()
	doc, ok := s.documents[documentID]
	s.mu.Unlock()
	if ok {
		return doc, nil
	}

	initial := model.PortfolioContent{Title: "Untitled Portfolio", Sections: map[string]string{}}
	author := identity.UserName
	if author == "" {
		author = identity.UserID
	}
	if err := s.git.Ensure(documentID, initial, author); err != nil {
		return nil, err
	}
	content, err := s.git.HeadContent(documentID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok = s.documents[documentID]; ok {
		return doc, nil
	}
	doc = &documentState{content: content}
	s.documents[documentID] = doc
	return doc, nil
}

// --- team ---

func (s *Server) handleTeam(w http.ResponseWriter, r *http.Request, identity Identity, documentID string, doc *documentState, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		s.mu.Lock()
		members := append([]model.TeamMember(nil), doc.team...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"members": members})

	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "invite":
		var body struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if !strings.Contains(body.Email, "@") {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "A valid email is required")
			return
		}
		if body.Role == "" {
			body.Role = "viewer"
		}
		member := model.TeamMember{
			ID:        util.NewID("mem"),
			Email:     body.Email,
			Role:      body.Role,
			InvitedAt: time.Now(),
		}
		s.mu.Lock()
		doc.team = append(doc.team, member)
		s.mu.Unlock()
		s.logActivity(doc, documentID, identity, "team.invited", member.ID)
		s.notify(identity, "Team invitation", identity.UserName+" invited "+body.Email, member.ID)
		writeJSON(w, http.StatusCreated, member)

	case r.Method == http.MethodPut && len(rest) == 2 && rest[1] == "role":
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		s.mu.Lock()
		var updated *model.TeamMember
		for i := range doc.team {
			if doc.team[i].ID == rest[0] {
				doc.team[i].Role = body.Role
				updated = &doc.team[i]
				break
			}
		}
		var member model.TeamMember
		if updated != nil {
			member = *updated
		}
		s.mu.Unlock()
		if updated == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Member not found")
			return
		}
		s.logActivity(doc, documentID, identity, "team.role_changed", member.ID)
		writeJSON(w, http.StatusOK, member)

	case r.Method == http.MethodDelete && len(rest) == 1:
		s.mu.Lock()
		found := false
		kept := doc.team[:0]
		for _, member := range doc.team {
			if member.ID == rest[0] {
				found = true
				continue
			}
			kept = append(kept, member)
		}
		doc.team = kept
		s.mu.Unlock()
		if !found {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Member not found")
			return
		}
		s.logActivity(doc, documentID, identity, "team.removed", rest[0])
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	}
}

// --- comments ---

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request, identity Identity, documentID string, doc *documentState, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		s.mu.Lock()
		comments := append([]model.Comment(nil), doc.comments...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"comments": comments})

	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			SectionID string `json:"sectionId"`
			Body      string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if strings.TrimSpace(body.Body) == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Comment body is required")
			return
		}
		comment := model.Comment{
			ID:         util.NewID("cmt"),
			DocumentID: documentID,
			SectionID:  body.SectionID,
			Author:     identity.UserName,
			Body:       body.Body,
			CreatedAt:  time.Now(),
		}
		s.mu.Lock()
		doc.comments = append(doc.comments, comment)
		s.mu.Unlock()
		s.logActivity(doc, documentID, identity, "comment.added", comment.ID)

		// accepted, not created: the comment reaches every client,
		// the author included, through the comment_added broadcast
		writeJSON(w, http.StatusAccepted, map[string]string{"id": comment.ID})
		s.hub.Broadcast(documentID, mustEnvelope(realtime.EventCommentAdded, realtime.CommentAddedPayload{Comment: comment}))

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "resolve":
		s.mu.Lock()
		var target *model.Comment
		for i := range doc.comments {
			if doc.comments[i].ID == rest[0] {
				target = &doc.comments[i]
				break
			}
		}
		if target == nil {
			s.mu.Unlock()
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Comment not found")
			return
		}
		if target.Resolved {
			s.mu.Unlock()
			w.WriteHeader(http.StatusAccepted)
			return
		}
		now := time.Now()
		target.Resolved = true
		target.ResolvedAt = &now
		s.mu.Unlock()
		s.logActivity(doc, documentID, identity, "comment.resolved", rest[0])

		w.WriteHeader(http.StatusAccepted)
		s.hub.Broadcast(documentID, mustEnvelope(realtime.EventCommentResolved, realtime.CommentResolvedPayload{
			DocumentID: documentID,
			CommentID:  rest[0],
			ResolvedBy: identity.UserID,
			ResolvedAt: now,
		}))

	case r.Method == http.MethodDelete && len(rest) == 1:
		s.mu.Lock()
		kept := doc.comments[:0]
		for _, comment := range doc.comments {
			if comment.ID != rest[0] {
				kept = append(kept, comment)
			}
		}
		doc.comments = kept
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	}
}

// --- versions ---

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request, identity Identity, documentID string, doc *documentState, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		versions, err := s.git.ListVersions(documentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILED", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"versions": versions})

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "compare":
		from, errFrom := strconv.Atoi(r.URL.Query().Get("from"))
		to, errTo := strconv.Atoi(r.URL.Query().Get("to"))
		if errFrom != nil || errTo != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "from and to must be version ids")
			return
		}
		if from == to {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Cannot compare a version with itself")
			return
		}
		fromContent, err := s.git.ContentAt(documentID, from)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		toContent, err := s.git.ContentAt(documentID, to)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"from":   from,
			"to":     to,
			"fields": DiffContent(fromContent, toContent),
		})

	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			Description string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if strings.TrimSpace(body.Description) == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Description is required")
			return
		}
		s.mu.Lock()
		content := doc.content
		s.mu.Unlock()
		snapshot, err := s.git.SaveVersion(documentID, content, identity.UserName, body.Description)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILED", err.Error())
			return
		}
		s.logActivity(doc, documentID, identity, "version.created", strconv.Itoa(snapshot.ID))
		writeJSON(w, http.StatusCreated, snapshot)

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "restore":
		versionID, err := strconv.Atoi(rest[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Version id must be a number")
			return
		}
		snapshot, content, err := s.git.Restore(documentID, versionID, identity.UserName)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		s.mu.Lock()
		doc.content = content
		s.mu.Unlock()
		s.logActivity(doc, documentID, identity, "version.restored", strconv.Itoa(versionID))
		s.notify(identity, "Version restored", identity.UserName+" restored version "+strconv.Itoa(versionID), documentID)
		writeJSON(w, http.StatusCreated, snapshot)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	}
}

// --- approvals ---

func (s *Server) handleApprovals(w http.ResponseWriter, r *http.Request, identity Identity, documentID string, doc *documentState, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		s.mu.Lock()
		approvals := append([]model.ApprovalRequest(nil), doc.approvals...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"approvals": approvals})

	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			SectionID string `json:"sectionId"`
			Message   string `json:"message"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if body.SectionID == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Section id is required")
			return
		}
		request := model.ApprovalRequest{
			ID:         util.NewID("apr"),
			DocumentID: documentID,
			SectionID:  body.SectionID,
			Requester:  identity.UserID,
			Message:    body.Message,
			Status:     model.ApprovalPending,
			CreatedAt:  time.Now(),
		}
		s.mu.Lock()
		doc.approvals = append(doc.approvals, request)
		s.mu.Unlock()
		s.logActivity(doc, documentID, identity, "approval.requested", request.ID)
		s.notify(identity, "Approval requested", identity.UserName+" requested a review", request.ID)
		writeJSON(w, http.StatusCreated, request)

	case r.Method == http.MethodPost && len(rest) == 2 && (rest[1] == "approve" || rest[1] == "reject"):
		s.resolveApproval(w, r, identity, documentID, doc, rest[0], rest[1])

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	}
}

// resolveApproval applies approve or reject with first-decision-wins: once a
// request is terminal every later resolution attempt gets a 409.
func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request, identity Identity, documentID string, doc *documentState, approvalID, verb string) {
	var body struct {
		Comments string `json:"comments"`
		Reason   string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if verb == "reject" && strings.TrimSpace(body.Reason) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "A rejection reason is required")
		return
	}

	s.mu.Lock()
	var target *model.ApprovalRequest
	for i := range doc.approvals {
		if doc.approvals[i].ID == approvalID {
			target = &doc.approvals[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Approval request not found")
		return
	}
	if target.Status.Terminal() {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "ALREADY_RESOLVED", "Approval request already resolved")
		return
	}
	now := time.Now()
	target.ResolvedBy = identity.UserID
	target.ResolvedAt = &now
	if verb == "approve" {
		target.Status = model.ApprovalApproved
		target.Reason = body.Comments
	} else {
		target.Status = model.ApprovalRejected
		target.Reason = body.Reason
	}
	resolved := *target
	s.mu.Unlock()

	s.logActivity(doc, documentID, identity, "approval."+verb+"d", approvalID)
	s.notify(identity, "Approval "+string(resolved.Status), identity.UserName+" "+verb+"ed a change", approvalID)
	writeJSON(w, http.StatusOK, resolved)
}

// --- share links ---

func (s *Server) handleShareLinks(w http.ResponseWriter, r *http.Request, identity Identity, documentID string, doc *documentState, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		s.mu.Lock()
		links := append([]model.ShareLink(nil), doc.links...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"links": links})

	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		if body.Role == "" {
			body.Role = "viewer"
		}
		link := model.ShareLink{
			ID:         util.NewID("lnk"),
			DocumentID: documentID,
			Token:      util.ShortID(16),
			Role:       body.Role,
			CreatedAt:  time.Now(),
		}
		s.mu.Lock()
		doc.links = append(doc.links, link)
		s.mu.Unlock()
		s.logActivity(doc, documentID, identity, "share_link.created", link.ID)
		writeJSON(w, http.StatusCreated, link)

	case r.Method == http.MethodPut && len(rest) == 1:
		var body struct {
			Role string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
		s.mu.Lock()
		var updated *model.ShareLink
		for i := range doc.links {
			if doc.links[i].ID == rest[0] && !doc.links[i].Revoked {
				doc.links[i].Role = body.Role
				updated = &doc.links[i]
				break
			}
		}
		var link model.ShareLink
		if updated != nil {
			link = *updated
		}
		s.mu.Unlock()
		if updated == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Share link not found")
			return
		}
		writeJSON(w, http.StatusOK, link)

	case r.Method == http.MethodDelete && len(rest) == 1:
		s.mu.Lock()
		for i := range doc.links {
			if doc.links[i].ID == rest[0] {
				doc.links[i].Revoked = true
			}
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	}
}

// --- activity ---

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request, documentID string, doc *documentState) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.mu.Lock()
	stored := doc.activity
	// stored oldest-first, served newest-first
	items := make([]model.ActivityEntry, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		items = append(items, stored[i])
	}
	s.mu.Unlock()

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) logActivity(doc *documentState, documentID string, identity Identity, action, entityID string) {
	entry := model.ActivityEntry{
		ID:         util.NewID("act"),
		DocumentID: documentID,
		Actor:      identity.UserID,
		Action:     action,
		EntityID:   entityID,
		CreatedAt:  time.Now(),
	}
	s.mu.Lock()
	doc.activity = append(doc.activity, entry)
	if len(doc.activity) > activityLimit {
		doc.activity = doc.activity[len(doc.activity)-activityLimit:]
	}
	s.mu.Unlock()
}

// notify pushes a notification event to every connected session and bumps
// the unread counter of everyone but the actor.
func (s *Server) notify(actor Identity, title, message, entityID string) {
	notification := model.Notification{
		ID:              util.NewID("ntf"),
		Type:            "notification",
		Title:           title,
		Message:         message,
		CreatedAt:       time.Now(),
		RelatedEntityID: entityID,
	}
	s.mu.Lock()
	for userID := range s.unread {
		if userID != actor.UserID {
			s.unread[userID]++
		}
	}
	s.mu.Unlock()
	s.hub.BroadcastAll(mustEnvelope(realtime.EventNotification, realtime.NotificationPayload{Notification: notification}))
}

// --- websocket ---

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	identity, err := ParseToken(s.secret, r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing token")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	if _, ok := s.unread[identity.UserID]; !ok {
		s.unread[identity.UserID] = 0
	}
	s.mu.Unlock()

	sess := newSession(conn, identity)
	s.hub.Register(sess)
	go sess.writeLoop()

	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		s.handleSocketEvent(r.Context(), sess, env)
	}

	for _, documentID := range s.hub.Drop(sess) {
		_ = s.presence.Remove(r.Context(), documentID, identity.UserID)
		s.hub.Broadcast(documentID, mustEnvelope(realtime.EventUserLeft, realtime.MemberPayload{
			DocumentID: documentID,
			UserID:     identity.UserID,
			UserName:   identity.UserName,
			Timestamp:  time.Now(),
		}))
	}
	sess.close()
}

func (s *Server) handleSocketEvent(ctx context.Context, sess *session, env realtime.Envelope) {
	switch env.Event {
	case realtime.EventJoinPortfolio:
		var payload realtime.RoomPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.DocumentID == "" {
			return
		}
		s.joinRoom(ctx, sess, payload.DocumentID)

	case realtime.EventLeavePortfolio:
		var payload realtime.RoomPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.DocumentID == "" {
			return
		}
		if s.hub.Leave(sess, payload.DocumentID) {
			_ = s.presence.Remove(ctx, payload.DocumentID, sess.identity.UserID)
			s.hub.Broadcast(payload.DocumentID, mustEnvelope(realtime.EventUserLeft, realtime.MemberPayload{
				DocumentID: payload.DocumentID,
				UserID:     sess.identity.UserID,
				UserName:   sess.identity.UserName,
				Timestamp:  time.Now(),
			}))
		}

	case realtime.EventContentUpdate:
		var payload realtime.ContentUpdatePayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.DocumentID == "" || payload.SectionID == "" {
			return
		}
		payload.UserID = sess.identity.UserID
		payload.Timestamp = time.Now()
		s.mu.Lock()
		if doc, ok := s.documents[payload.DocumentID]; ok {
			if doc.content.Sections == nil {
				doc.content.Sections = make(map[string]string)
			}
			doc.content.Sections[payload.SectionID] = payload.Content
		}
		s.mu.Unlock()
		s.hub.Broadcast(payload.DocumentID, mustEnvelope(realtime.EventContentUpdated, payload))

	case realtime.EventCursorUpdate:
		var payload realtime.CursorPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.DocumentID == "" {
			return
		}
		payload.UserID = sess.identity.UserID
		payload.Timestamp = time.Now()
		s.hub.Broadcast(payload.DocumentID, mustEnvelope(realtime.EventCursorMoved, payload))

	case realtime.EventTypingStart, realtime.EventTypingStop:
		var payload realtime.TypingPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.DocumentID == "" {
			return
		}
		payload.UserID = sess.identity.UserID
		s.hub.Broadcast(payload.DocumentID, mustEnvelope(env.Event, payload))
	}
}

// joinRoom adds the session to the room, replays the existing members to
// the joiner as user_joined events, then broadcasts the joiner to everyone.
func (s *Server) joinRoom(ctx context.Context, sess *session, documentID string) {
	existing := s.hub.Members(documentID)
	if !s.hub.Join(sess, documentID) {
		return
	}
	_ = s.presence.Touch(ctx, documentID, sess.identity.UserID)

	for _, member := range existing {
		sess.deliver(mustEnvelope(realtime.EventUserJoined, realtime.MemberPayload{
			DocumentID: documentID,
			UserID:     member.identity.UserID,
			UserName:   member.identity.UserName,
			Timestamp:  time.Now(),
		}))
	}
	s.hub.Broadcast(documentID, mustEnvelope(realtime.EventUserJoined, realtime.MemberPayload{
		DocumentID: documentID,
		UserID:     sess.identity.UserID,
		UserName:   sess.identity.UserName,
		Timestamp:  time.Now(),
	}))
}

// --- http plumbing ---

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}
		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		recorder.Header().Set("Content-Type", "application/json")
		recorder.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(recorder, r)

		log.Printf(`{"method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			r.Method,
			r.URL.Path,
			recorder.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"code": code, "error": message})
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return err
	}
	return nil
}

func mustEnvelope(event string, payload any) realtime.Envelope {
	env, err := realtime.NewEnvelope(event, payload)
	if err != nil {
		return realtime.Envelope{Event: event}
	}
	return env
}
