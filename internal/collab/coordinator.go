// Package collab orchestrates real-time collaboration for one open portfolio
// document: room membership, presence, comments, version history, approvals
// and content broadcasts, composed over the shared realtime channel and the
// request/response API client.
//
// Two operation classes exist, and the choice is explicit per operation:
//
//   - request-then-event: addComment, resolveComment and content broadcasts
//     take effect locally only when the corresponding inbound event arrives,
//     so the author observes changes through the same path as every other
//     collaborator.
//   - request-returns-final: createVersion, restoreVersion, invite and
//     approve/reject apply the response itself immediately.
package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/api"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/approvals"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/comments"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/edithistory"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/presence"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/realtime"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/versions"
)

var (
	ErrEmptyCommentBody    = errors.New("collab: comment body is empty")
	ErrEmptyDescription    = errors.New("collab: version description is empty")
	ErrEmptySection        = errors.New("collab: section id is empty")
	ErrEmptyReason         = errors.New("collab: rejection reason is empty")
	ErrInvalidEmail        = errors.New("collab: invite email is invalid")
	ErrSameVersion         = errors.New("collab: cannot compare a version with itself")
	ErrOffline             = errors.New("collab: channel offline, mutation rejected")
	ErrStaleGeneration     = errors.New("collab: response discarded for closed document")
	ErrAlreadyResolved     = errors.New("collab: approval request already resolved")
	ErrClosed              = errors.New("collab: coordinator closed")
)

// Identity is the local user on whose behalf the coordinator acts.
type Identity struct {
	UserID   string
	UserName string
}

// eventChannel is the slice of realtime.Channel the coordinator uses.
type eventChannel interface {
	Subscribe(event string, handler realtime.Handler) *realtime.Subscription
	OnStateChange(fn func(realtime.State)) *realtime.Subscription
	Emit(event string, payload any) error
	JoinRoom(documentID string) error
	LeaveRoom(documentID string) error
	State() realtime.State
}

// backend is the slice of api.Client the coordinator uses.
type backend interface {
	ListComments(ctx context.Context, documentID string) ([]model.Comment, error)
	AddComment(ctx context.Context, documentID, sectionID, body string) (string, error)
	ResolveComment(ctx context.Context, documentID, commentID string) error
	DeleteComment(ctx context.Context, documentID, commentID string) error
	ListVersions(ctx context.Context, documentID string) ([]model.VersionSnapshot, error)
	CreateVersion(ctx context.Context, documentID, description string) (model.VersionSnapshot, error)
	RestoreVersion(ctx context.Context, documentID string, versionID int) (model.VersionSnapshot, error)
	CompareVersions(ctx context.Context, documentID string, from, to int) (api.VersionDiff, error)
	ListApprovals(ctx context.Context, documentID string) ([]model.ApprovalRequest, error)
	RequestApproval(ctx context.Context, documentID, sectionID, message string) (model.ApprovalRequest, error)
	ApproveChange(ctx context.Context, documentID, approvalID, comments string) (model.ApprovalRequest, error)
	RejectChange(ctx context.Context, documentID, approvalID, reason string) (model.ApprovalRequest, error)
	ListTeamMembers(ctx context.Context, documentID string) ([]model.TeamMember, error)
	InviteTeamMember(ctx context.Context, documentID, email, role string) (model.TeamMember, error)
	ActivityLog(ctx context.Context, documentID string, limit int) ([]model.ActivityEntry, error)
}

// Coordinator exclusively owns its document's presence, comment, version and
// approval state. The channel is shared across all open documents.
type Coordinator struct {
	documentID string
	identity   Identity
	channel    eventChannel
	backend    backend

	presence  *presence.Tracker
	comments  *comments.Store
	versions  *versions.Store
	approvals *approvals.Workflow
	history   *edithistory.Buffer

	// generation invalidates in-flight responses after Close: a response
	// whose captured generation no longer matches is discarded, not applied.
	generation atomic.Uint64

	mu        sync.Mutex
	closed    bool
	subs      []*realtime.Subscription
	lastError error
	lastState realtime.State
	content   map[string]string
	cursors   map[string]realtime.CursorPosition
	team      []model.TeamMember
}

func NewCoordinator(documentID string, identity Identity, channel eventChannel, client backend, historyDepth int) *Coordinator {
	return &Coordinator{
		documentID: documentID,
		identity:   identity,
		channel:    channel,
		backend:    client,
		presence:   presence.NewTracker(),
		comments:   comments.NewStore(),
		versions:   versions.NewStore(),
		approvals:  approvals.NewWorkflow(),
		history:    edithistory.NewBuffer(historyDepth),
		content:    make(map[string]string),
		cursors:    make(map[string]realtime.CursorPosition),
		lastState:  realtime.StateDisconnected,
	}
}

// Open wires the document: event handlers are installed before the room is
// joined, so the local user's own join broadcast is never missed by its own
// just-installed handlers. It finishes with the initial authoritative load.
func (c *Coordinator) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.subs = append(c.subs,
		c.channel.Subscribe(realtime.EventUserJoined, c.onUserJoined),
		c.channel.Subscribe(realtime.EventUserLeft, c.onUserLeft),
		c.channel.Subscribe(realtime.EventCommentAdded, c.onCommentAdded),
		c.channel.Subscribe(realtime.EventCommentResolved, c.onCommentResolved),
		c.channel.Subscribe(realtime.EventContentUpdated, c.onContentUpdated),
		c.channel.Subscribe(realtime.EventCursorMoved, c.onCursorMoved),
		c.channel.OnStateChange(c.onStateChange),
	)
	c.mu.Unlock()

	if err := c.channel.JoinRoom(c.documentID); err != nil {
		return c.recordErr(fmt.Errorf("join room: %w", err))
	}
	return c.Load(ctx)
}

// Close tears the document down: every subscription handle is cancelled
// regardless of exit path, the room reference count is decremented, and the
// generation is bumped so late responses are discarded.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.generation.Add(1)
	for _, sub := range subs {
		sub.Cancel()
	}
	_ = c.channel.LeaveRoom(c.documentID)
	c.presence.DropDocument(c.documentID)
	c.history.Clear()
}

// Load fetches the authoritative comment, version, approval and team state.
// Reload must be called after every reconnect: events during a disconnect
// window may be lost, and the live feed is only a delta stream on top of
// these full loads.
func (c *Coordinator) Load(ctx context.Context) error {
	gen := c.generation.Load()

	commentList, err := c.backend.ListComments(ctx, c.documentID)
	if err != nil {
		return c.recordErr(fmt.Errorf("load comments: %w", err))
	}
	versionList, err := c.backend.ListVersions(ctx, c.documentID)
	if err != nil {
		return c.recordErr(fmt.Errorf("load versions: %w", err))
	}
	approvalList, err := c.backend.ListApprovals(ctx, c.documentID)
	if err != nil {
		return c.recordErr(fmt.Errorf("load approvals: %w", err))
	}
	teamList, err := c.backend.ListTeamMembers(ctx, c.documentID)
	if err != nil {
		return c.recordErr(fmt.Errorf("load team: %w", err))
	}

	if c.generation.Load() != gen {
		return ErrStaleGeneration
	}
	c.comments.Replace(commentList)
	c.versions.Replace(versionList)
	c.approvals.Replace(approvalList)
	c.mu.Lock()
	c.team = teamList
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) Reload(ctx context.Context) error { return c.Load(ctx) }

// --- inbound events ---

func (c *Coordinator) onUserJoined(data json.RawMessage) {
	var payload realtime.MemberPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.DocumentID != c.documentID {
		return
	}
	c.presence.Join(payload.DocumentID, payload.UserID, payload.UserName, payload.Timestamp)
}

func (c *Coordinator) onUserLeft(data json.RawMessage) {
	var payload realtime.MemberPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.DocumentID != c.documentID {
		return
	}
	c.presence.Leave(payload.DocumentID, payload.UserID)
	c.mu.Lock()
	delete(c.cursors, payload.UserID)
	c.mu.Unlock()
}

func (c *Coordinator) onCommentAdded(data json.RawMessage) {
	var payload realtime.CommentAddedPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Comment.DocumentID != c.documentID {
		return
	}
	c.comments.ApplyAdded(payload.Comment)
}

func (c *Coordinator) onCommentResolved(data json.RawMessage) {
	var payload realtime.CommentResolvedPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.DocumentID != c.documentID {
		return
	}
	c.comments.ApplyResolved(payload.CommentID, payload.ResolvedAt)
}

// onContentUpdated applies a confirmed content broadcast. Simultaneous edits
// to one section resolve as last-confirmed-write-wins.
func (c *Coordinator) onContentUpdated(data json.RawMessage) {
	var payload realtime.ContentUpdatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.DocumentID != c.documentID {
		return
	}
	c.mu.Lock()
	c.content[payload.SectionID] = payload.Content
	c.mu.Unlock()
}

func (c *Coordinator) onCursorMoved(data json.RawMessage) {
	var payload realtime.CursorPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.DocumentID != c.documentID {
		return
	}
	if payload.UserID == c.identity.UserID {
		return
	}
	c.mu.Lock()
	c.cursors[payload.UserID] = payload.Position
	c.mu.Unlock()
}

// onStateChange schedules a resynchronizing reload once a reconnect lands.
func (c *Coordinator) onStateChange(state realtime.State) {
	c.mu.Lock()
	previous := c.lastState
	c.lastState = state
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}
	if state == realtime.StateConnected && previous == realtime.StateReconnecting {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = c.Load(ctx)
		}()
	}
}

// --- mutations: request-then-event ---

// AddComment submits a new comment. The store reflects it only when the
// comment_added echo arrives; the returned ID lets the caller correlate.
func (c *Coordinator) AddComment(ctx context.Context, sectionID, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrEmptyCommentBody
	}
	if strings.TrimSpace(sectionID) == "" {
		return "", ErrEmptySection
	}
	if err := c.requireOnline(); err != nil {
		return "", err
	}
	gen := c.generation.Load()
	id, err := c.backend.AddComment(ctx, c.documentID, sectionID, body)
	if err != nil {
		return "", c.recordErr(fmt.Errorf("add comment: %w", err))
	}
	if c.generation.Load() != gen {
		return "", ErrStaleGeneration
	}
	return id, nil
}

// ResolveComment requests resolution; the state flips on the
// comment_resolved echo. Resolving an already-resolved comment is a no-op.
func (c *Coordinator) ResolveComment(ctx context.Context, commentID string) error {
	if existing, ok := c.comments.Get(commentID); ok && existing.Resolved {
		return nil
	}
	if err := c.requireOnline(); err != nil {
		return err
	}
	gen := c.generation.Load()
	if err := c.backend.ResolveComment(ctx, c.documentID, commentID); err != nil {
		return c.recordErr(fmt.Errorf("resolve comment: %w", err))
	}
	if c.generation.Load() != gen {
		return ErrStaleGeneration
	}
	return nil
}

// DeleteComment removes the comment locally right away; there is no inbound
// event for deletion, so the removal is local-only and never propagated to
// other collaborators' live views.
func (c *Coordinator) DeleteComment(ctx context.Context, commentID string) error {
	c.comments.Delete(commentID)
	if err := c.requireOnline(); err != nil {
		return err
	}
	if err := c.backend.DeleteComment(ctx, c.documentID, commentID); err != nil {
		return c.recordErr(fmt.Errorf("delete comment: %w", err))
	}
	return nil
}

// UpdateContent records the locally authored edit in the undo buffer and
// broadcasts it. The confirmed value lands in Content via the
// content_updated echo, not here.
func (c *Coordinator) UpdateContent(sectionID, content string) error {
	if strings.TrimSpace(sectionID) == "" {
		return ErrEmptySection
	}
	c.history.Push(sectionID, content)
	return c.channel.Emit(realtime.EventContentUpdate, realtime.ContentUpdatePayload{
		DocumentID: c.documentID,
		SectionID:  sectionID,
		Content:    content,
		UserID:     c.identity.UserID,
		Timestamp:  time.Now(),
	})
}

func (c *Coordinator) UpdateCursor(position realtime.CursorPosition) error {
	return c.channel.Emit(realtime.EventCursorUpdate, realtime.CursorPayload{
		DocumentID: c.documentID,
		UserID:     c.identity.UserID,
		Position:   position,
		Timestamp:  time.Now(),
	})
}

func (c *Coordinator) StartTyping() error {
	return c.channel.Emit(realtime.EventTypingStart, realtime.TypingPayload{
		DocumentID: c.documentID,
		UserID:     c.identity.UserID,
	})
}

func (c *Coordinator) StopTyping() error {
	return c.channel.Emit(realtime.EventTypingStop, realtime.TypingPayload{
		DocumentID: c.documentID,
		UserID:     c.identity.UserID,
	})
}

// --- mutations: request-returns-final ---

// CreateVersion applies the response immediately; other collaborators learn
// of the snapshot on their next reload.
func (c *Coordinator) CreateVersion(ctx context.Context, description string) (model.VersionSnapshot, error) {
	if strings.TrimSpace(description) == "" {
		return model.VersionSnapshot{}, ErrEmptyDescription
	}
	if err := c.requireOnline(); err != nil {
		return model.VersionSnapshot{}, err
	}
	gen := c.generation.Load()
	snapshot, err := c.backend.CreateVersion(ctx, c.documentID, description)
	if err != nil {
		return model.VersionSnapshot{}, c.recordErr(fmt.Errorf("create version: %w", err))
	}
	if c.generation.Load() != gen {
		return model.VersionSnapshot{}, ErrStaleGeneration
	}
	c.versions.Prepend(snapshot)
	return snapshot, nil
}

// RestoreVersion never mutates the target snapshot: the server answers with
// a new snapshot holding the restored content, so restores are themselves
// reversible and history stays append-only.
func (c *Coordinator) RestoreVersion(ctx context.Context, versionID int) (model.VersionSnapshot, error) {
	if err := c.requireOnline(); err != nil {
		return model.VersionSnapshot{}, err
	}
	gen := c.generation.Load()
	snapshot, err := c.backend.RestoreVersion(ctx, c.documentID, versionID)
	if err != nil {
		return model.VersionSnapshot{}, c.recordErr(fmt.Errorf("restore version: %w", err))
	}
	if c.generation.Load() != gen {
		return model.VersionSnapshot{}, ErrStaleGeneration
	}
	c.versions.Prepend(snapshot)
	return snapshot, nil
}

func (c *Coordinator) CompareVersions(ctx context.Context, from, to int) (api.VersionDiff, error) {
	if from == to {
		return api.VersionDiff{}, ErrSameVersion
	}
	if err := c.requireOnline(); err != nil {
		return api.VersionDiff{}, err
	}
	diff, err := c.backend.CompareVersions(ctx, c.documentID, from, to)
	if err != nil {
		return api.VersionDiff{}, c.recordErr(fmt.Errorf("compare versions: %w", err))
	}
	return diff, nil
}

func (c *Coordinator) RequestApproval(ctx context.Context, sectionID, message string) (model.ApprovalRequest, error) {
	if strings.TrimSpace(sectionID) == "" {
		return model.ApprovalRequest{}, ErrEmptySection
	}
	if err := c.requireOnline(); err != nil {
		return model.ApprovalRequest{}, err
	}
	gen := c.generation.Load()
	request, err := c.backend.RequestApproval(ctx, c.documentID, sectionID, message)
	if err != nil {
		return model.ApprovalRequest{}, c.recordErr(fmt.Errorf("request approval: %w", err))
	}
	if c.generation.Load() != gen {
		return model.ApprovalRequest{}, ErrStaleGeneration
	}
	c.approvals.Track(request)
	return request, nil
}

// ApproveChange resolves a pending request. If the request is already
// terminal locally (someone else won the race) the call is a no-op returning
// the recorded state; a server-side conflict is informational, not fatal.
func (c *Coordinator) ApproveChange(ctx context.Context, approvalID, comments string) (model.ApprovalRequest, error) {
	return c.resolveApproval(ctx, approvalID, func(ctx context.Context) (model.ApprovalRequest, error) {
		return c.backend.ApproveChange(ctx, c.documentID, approvalID, comments)
	})
}

func (c *Coordinator) RejectChange(ctx context.Context, approvalID, reason string) (model.ApprovalRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return model.ApprovalRequest{}, ErrEmptyReason
	}
	return c.resolveApproval(ctx, approvalID, func(ctx context.Context) (model.ApprovalRequest, error) {
		return c.backend.RejectChange(ctx, c.documentID, approvalID, reason)
	})
}

func (c *Coordinator) resolveApproval(ctx context.Context, approvalID string, call func(context.Context) (model.ApprovalRequest, error)) (model.ApprovalRequest, error) {
	if existing, ok := c.approvals.Get(approvalID); ok && existing.Status.Terminal() {
		return existing, ErrAlreadyResolved
	}
	if err := c.requireOnline(); err != nil {
		return model.ApprovalRequest{}, err
	}
	gen := c.generation.Load()
	resolved, err := call(ctx)
	if err != nil {
		var reqErr *api.RequestError
		if errors.As(err, &reqErr) && reqErr.IsConflict() {
			// someone else resolved first; the next reload settles the winner
			if existing, ok := c.approvals.Get(approvalID); ok {
				return existing, ErrAlreadyResolved
			}
			return model.ApprovalRequest{}, ErrAlreadyResolved
		}
		return model.ApprovalRequest{}, c.recordErr(fmt.Errorf("resolve approval: %w", err))
	}
	if c.generation.Load() != gen {
		return model.ApprovalRequest{}, ErrStaleGeneration
	}
	var resolvedAt time.Time
	if resolved.ResolvedAt != nil {
		resolvedAt = *resolved.ResolvedAt
	}
	c.approvals.Track(resolved)
	c.approvals.ApplyResolution(resolved.ID, resolved.Status, resolved.ResolvedBy, resolved.Reason, resolvedAt)
	return resolved, nil
}

func (c *Coordinator) InviteTeamMember(ctx context.Context, email, role string) (model.TeamMember, error) {
	if !strings.Contains(strings.TrimSpace(email), "@") {
		return model.TeamMember{}, ErrInvalidEmail
	}
	if err := c.requireOnline(); err != nil {
		return model.TeamMember{}, err
	}
	gen := c.generation.Load()
	member, err := c.backend.InviteTeamMember(ctx, c.documentID, email, role)
	if err != nil {
		return model.TeamMember{}, c.recordErr(fmt.Errorf("invite member: %w", err))
	}
	if c.generation.Load() != gen {
		return model.TeamMember{}, ErrStaleGeneration
	}
	c.mu.Lock()
	c.team = append(c.team, member)
	c.mu.Unlock()
	return member, nil
}

func (c *Coordinator) Activity(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	entries, err := c.backend.ActivityLog(ctx, c.documentID, limit)
	if err != nil {
		return nil, c.recordErr(fmt.Errorf("load activity: %w", err))
	}
	return entries, nil
}

// --- local edit history ---

func (c *Coordinator) Undo() (edithistory.Entry, bool) { return c.history.Undo() }
func (c *Coordinator) Redo() (edithistory.Entry, bool) { return c.history.Redo() }

// --- accessors ---

func (c *Coordinator) DocumentID() string { return c.documentID }

func (c *Coordinator) Presence() []model.Session { return c.presence.List(c.documentID) }

func (c *Coordinator) Comments() []model.Comment { return c.comments.List() }

func (c *Coordinator) Versions() []model.VersionSnapshot { return c.versions.List() }

func (c *Coordinator) Approvals() []model.ApprovalRequest { return c.approvals.List() }

func (c *Coordinator) TeamMembers() []model.TeamMember {
	c.mu.Lock()
	defer c.mu.Unlock()
	members := make([]model.TeamMember, len(c.team))
	copy(members, c.team)
	return members
}

// Content returns the last server-confirmed content of a section.
func (c *Coordinator) Content(sectionID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.content[sectionID]
	return content, ok
}

// Cursors returns the last known cursor position of each other collaborator.
func (c *Coordinator) Cursors() map[string]realtime.CursorPosition {
	c.mu.Lock()
	defer c.mu.Unlock()
	cursors := make(map[string]realtime.CursorPosition, len(c.cursors))
	for userID, position := range c.cursors {
		cursors[userID] = position
	}
	return cursors
}

// LastError returns the most recent operation failure. Failed operations
// never crash the coordinator and never discard already-loaded state.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

func (c *Coordinator) recordErr(err error) error {
	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()
	return err
}

// requireOnline fails mutations fast while the channel is down; loaded local
// state stays readable throughout.
func (c *Coordinator) requireOnline() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if c.channel.State() != realtime.StateConnected {
		return ErrOffline
	}
	return nil
}
