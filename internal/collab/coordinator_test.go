package collab

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/api"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/realtime"
)

type fakeChannel struct {
	state    realtime.State
	actions  []string
	emits    []emittedEvent
	handlers map[string][]realtime.Handler
	stateFns []func(realtime.State)
	cancels  int
}

type emittedEvent struct {
	event   string
	payload any
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		state:    realtime.StateConnected,
		handlers: make(map[string][]realtime.Handler),
	}
}

func (f *fakeChannel) Subscribe(event string, handler realtime.Handler) *realtime.Subscription {
	f.actions = append(f.actions, "subscribe:"+event)
	f.handlers[event] = append(f.handlers[event], handler)
	return realtime.NewSubscription(func() { f.cancels++ })
}

func (f *fakeChannel) OnStateChange(fn func(realtime.State)) *realtime.Subscription {
	f.actions = append(f.actions, "watch-state")
	f.stateFns = append(f.stateFns, fn)
	return realtime.NewSubscription(func() { f.cancels++ })
}

func (f *fakeChannel) Emit(event string, payload any) error {
	f.emits = append(f.emits, emittedEvent{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) JoinRoom(documentID string) error {
	f.actions = append(f.actions, "join:"+documentID)
	return nil
}

func (f *fakeChannel) LeaveRoom(documentID string) error {
	f.actions = append(f.actions, "leave:"+documentID)
	return nil
}

func (f *fakeChannel) State() realtime.State { return f.state }

// fire delivers an inbound event to every installed handler, the way the
// channel's dispatch loop would.
func (f *fakeChannel) fire(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	for _, handler := range f.handlers[event] {
		handler(data)
	}
}

func (f *fakeChannel) fireState(state realtime.State) {
	for _, fn := range f.stateFns {
		fn(state)
	}
}

type fakeBackend struct {
	listCommentsFn    func(ctx context.Context, documentID string) ([]model.Comment, error)
	addCommentFn      func(ctx context.Context, documentID, sectionID, body string) (string, error)
	resolveCommentFn  func(ctx context.Context, documentID, commentID string) error
	deleteCommentFn   func(ctx context.Context, documentID, commentID string) error
	listVersionsFn    func(ctx context.Context, documentID string) ([]model.VersionSnapshot, error)
	createVersionFn   func(ctx context.Context, documentID, description string) (model.VersionSnapshot, error)
	restoreVersionFn  func(ctx context.Context, documentID string, versionID int) (model.VersionSnapshot, error)
	compareVersionsFn func(ctx context.Context, documentID string, from, to int) (api.VersionDiff, error)
	listApprovalsFn   func(ctx context.Context, documentID string) ([]model.ApprovalRequest, error)
	requestApprovalFn func(ctx context.Context, documentID, sectionID, message string) (model.ApprovalRequest, error)
	approveChangeFn   func(ctx context.Context, documentID, approvalID, comments string) (model.ApprovalRequest, error)
	rejectChangeFn    func(ctx context.Context, documentID, approvalID, reason string) (model.ApprovalRequest, error)
	listTeamFn        func(ctx context.Context, documentID string) ([]model.TeamMember, error)
	inviteFn          func(ctx context.Context, documentID, email, role string) (model.TeamMember, error)
	activityFn        func(ctx context.Context, documentID string, limit int) ([]model.ActivityEntry, error)
}

func (f *fakeBackend) ListComments(ctx context.Context, documentID string) ([]model.Comment, error) {
	if f.listCommentsFn != nil {
		return f.listCommentsFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeBackend) AddComment(ctx context.Context, documentID, sectionID, body string) (string, error) {
	if f.addCommentFn != nil {
		return f.addCommentFn(ctx, documentID, sectionID, body)
	}
	return "cmt_test", nil
}

func (f *fakeBackend) ResolveComment(ctx context.Context, documentID, commentID string) error {
	if f.resolveCommentFn != nil {
		return f.resolveCommentFn(ctx, documentID, commentID)
	}
	return nil
}

func (f *fakeBackend) DeleteComment(ctx context.Context, documentID, commentID string) error {
	if f.deleteCommentFn != nil {
		return f.deleteCommentFn(ctx, documentID, commentID)
	}
	return nil
}

func (f *fakeBackend) ListVersions(ctx context.Context, documentID string) ([]model.VersionSnapshot, error) {
	if f.listVersionsFn != nil {
		return f.listVersionsFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeBackend) CreateVersion(ctx context.Context, documentID, description string) (model.VersionSnapshot, error) {
	if f.createVersionFn != nil {
		return f.createVersionFn(ctx, documentID, description)
	}
	return model.VersionSnapshot{}, nil
}

func (f *fakeBackend) RestoreVersion(ctx context.Context, documentID string, versionID int) (model.VersionSnapshot, error) {
	if f.restoreVersionFn != nil {
		return f.restoreVersionFn(ctx, documentID, versionID)
	}
	return model.VersionSnapshot{}, nil
}

func (f *fakeBackend) CompareVersions(ctx context.Context, documentID string, from, to int) (api.VersionDiff, error) {
	if f.compareVersionsFn != nil {
		return f.compareVersionsFn(ctx, documentID, from, to)
	}
	return api.VersionDiff{}, nil
}

func (f *fakeBackend) ListApprovals(ctx context.Context, documentID string) ([]model.ApprovalRequest, error) {
	if f.listApprovalsFn != nil {
		return f.listApprovalsFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeBackend) RequestApproval(ctx context.Context, documentID, sectionID, message string) (model.ApprovalRequest, error) {
	if f.requestApprovalFn != nil {
		return f.requestApprovalFn(ctx, documentID, sectionID, message)
	}
	return model.ApprovalRequest{}, nil
}

func (f *fakeBackend) ApproveChange(ctx context.Context, documentID, approvalID, comments string) (model.ApprovalRequest, error) {
	if f.approveChangeFn != nil {
		return f.approveChangeFn(ctx, documentID, approvalID, comments)
	}
	return model.ApprovalRequest{}, nil
}

func (f *fakeBackend) RejectChange(ctx context.Context, documentID, approvalID, reason string) (model.ApprovalRequest, error) {
	if f.rejectChangeFn != nil {
		return f.rejectChangeFn(ctx, documentID, approvalID, reason)
	}
	return model.ApprovalRequest{}, nil
}

func (f *fakeBackend) ListTeamMembers(ctx context.Context, documentID string) ([]model.TeamMember, error) {
	if f.listTeamFn != nil {
		return f.listTeamFn(ctx, documentID)
	}
	return nil, nil
}

func (f *fakeBackend) InviteTeamMember(ctx context.Context, documentID, email, role string) (model.TeamMember, error) {
	if f.inviteFn != nil {
		return f.inviteFn(ctx, documentID, email, role)
	}
	return model.TeamMember{}, nil
}

func (f *fakeBackend) ActivityLog(ctx context.Context, documentID string, limit int) ([]model.ActivityEntry, error) {
	if f.activityFn != nil {
		return f.activityFn(ctx, documentID, limit)
	}
	return nil, nil
}

func newTestCoordinator(channel *fakeChannel, backend *fakeBackend) *Coordinator {
	return NewCoordinator("doc_42", Identity{UserID: "user_1", UserName: "Ada"}, channel, backend, 100)
}

func TestOpenSubscribesBeforeJoining(t *testing.T) {
	channel := newFakeChannel()
	coordinator := newTestCoordinator(channel, &fakeBackend{})

	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	joinIndex := -1
	lastSubscribe := -1
	for i, action := range channel.actions {
		switch {
		case action == "join:doc_42":
			joinIndex = i
		case action == "watch-state" || len(action) > 10 && action[:10] == "subscribe:":
			lastSubscribe = i
		}
	}
	if joinIndex == -1 {
		t.Fatalf("room was never joined: %v", channel.actions)
	}
	if lastSubscribe > joinIndex {
		t.Fatalf("subscriptions installed after join: %v", channel.actions)
	}
}

func TestOpenLoadsInitialState(t *testing.T) {
	channel := newFakeChannel()
	backend := &fakeBackend{
		listCommentsFn: func(ctx context.Context, documentID string) ([]model.Comment, error) {
			return []model.Comment{{ID: "cmt_1", DocumentID: documentID, Body: "nice"}}, nil
		},
		listVersionsFn: func(ctx context.Context, documentID string) ([]model.VersionSnapshot, error) {
			return []model.VersionSnapshot{{ID: 2}, {ID: 1}}, nil
		},
		listApprovalsFn: func(ctx context.Context, documentID string) ([]model.ApprovalRequest, error) {
			return []model.ApprovalRequest{{ID: "apr_1", Status: model.ApprovalPending}}, nil
		},
		listTeamFn: func(ctx context.Context, documentID string) ([]model.TeamMember, error) {
			return []model.TeamMember{{ID: "mem_2", Role: "editor"}}, nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)

	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	if got := len(coordinator.Comments()); got != 1 {
		t.Fatalf("comments = %d, want 1", got)
	}
	if got := coordinator.Versions(); len(got) != 2 || got[0].ID != 2 {
		t.Fatalf("versions = %+v, want newest-first [2 1]", got)
	}
	if got := len(coordinator.Approvals()); got != 1 {
		t.Fatalf("approvals = %d, want 1", got)
	}
	if got := coordinator.TeamMembers(); len(got) != 1 || got[0].ID != "mem_2" {
		t.Fatalf("team = %+v", got)
	}
}

func TestAddCommentReflectsOnlyOnEcho(t *testing.T) {
	channel := newFakeChannel()
	backendCalls := 0
	backend := &fakeBackend{
		addCommentFn: func(ctx context.Context, documentID, sectionID, body string) (string, error) {
			backendCalls++
			return "cmt_9", nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	id, err := coordinator.AddComment(context.Background(), "about", "looks great")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if id != "cmt_9" || backendCalls != 1 {
		t.Fatalf("id=%q calls=%d", id, backendCalls)
	}
	if got := len(coordinator.Comments()); got != 0 {
		t.Fatalf("comment visible before echo, count=%d", got)
	}

	channel.fire(t, realtime.EventCommentAdded, realtime.CommentAddedPayload{
		Comment: model.Comment{ID: "cmt_9", DocumentID: "doc_42", SectionID: "about", Body: "looks great"},
	})
	if got := coordinator.Comments(); len(got) != 1 || got[0].ID != "cmt_9" {
		t.Fatalf("comments after echo = %+v", got)
	}
}

func TestAddCommentValidation(t *testing.T) {
	channel := newFakeChannel()
	backend := &fakeBackend{
		addCommentFn: func(ctx context.Context, documentID, sectionID, body string) (string, error) {
			t.Fatal("backend reached with empty body")
			return "", nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	if _, err := coordinator.AddComment(context.Background(), "about", "   "); !errors.Is(err, ErrEmptyCommentBody) {
		t.Fatalf("err = %v, want ErrEmptyCommentBody", err)
	}
}

func TestResolveCommentAlreadyResolvedIsNoop(t *testing.T) {
	channel := newFakeChannel()
	resolveCalls := 0
	backend := &fakeBackend{
		resolveCommentFn: func(ctx context.Context, documentID, commentID string) error {
			resolveCalls++
			return nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	channel.fire(t, realtime.EventCommentAdded, realtime.CommentAddedPayload{
		Comment: model.Comment{ID: "cmt_1", DocumentID: "doc_42", Body: "fix this"},
	})
	if err := coordinator.ResolveComment(context.Background(), "cmt_1"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	channel.fire(t, realtime.EventCommentResolved, realtime.CommentResolvedPayload{
		DocumentID: "doc_42", CommentID: "cmt_1", ResolvedAt: time.Now(),
	})

	if err := coordinator.ResolveComment(context.Background(), "cmt_1"); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if resolveCalls != 1 {
		t.Fatalf("backend resolve calls = %d, want 1", resolveCalls)
	}
}

func TestCreateVersionAppliesResponse(t *testing.T) {
	channel := newFakeChannel()
	backend := &fakeBackend{
		createVersionFn: func(ctx context.Context, documentID, description string) (model.VersionSnapshot, error) {
			return model.VersionSnapshot{ID: 1, DocumentID: documentID, Description: description}, nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	snapshot, err := coordinator.CreateVersion(context.Background(), "first draft")
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	if snapshot.ID != 1 {
		t.Fatalf("snapshot id = %d, want 1", snapshot.ID)
	}
	if got := coordinator.Versions(); len(got) != 1 || got[0].Description != "first draft" {
		t.Fatalf("versions = %+v", got)
	}

	if _, err := coordinator.CreateVersion(context.Background(), " "); !errors.Is(err, ErrEmptyDescription) {
		t.Fatalf("err = %v, want ErrEmptyDescription", err)
	}
}

func TestCompareVersionsRejectsSameID(t *testing.T) {
	channel := newFakeChannel()
	coordinator := newTestCoordinator(channel, &fakeBackend{})
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	if _, err := coordinator.CompareVersions(context.Background(), 3, 3); !errors.Is(err, ErrSameVersion) {
		t.Fatalf("err = %v, want ErrSameVersion", err)
	}
}

func TestApprovalFirstTerminalWins(t *testing.T) {
	channel := newFakeChannel()
	now := time.Now()
	rejectCalls := 0
	backend := &fakeBackend{
		requestApprovalFn: func(ctx context.Context, documentID, sectionID, message string) (model.ApprovalRequest, error) {
			return model.ApprovalRequest{ID: "apr_1", DocumentID: documentID, SectionID: sectionID, Status: model.ApprovalPending}, nil
		},
		approveChangeFn: func(ctx context.Context, documentID, approvalID, comments string) (model.ApprovalRequest, error) {
			return model.ApprovalRequest{ID: approvalID, DocumentID: documentID, Status: model.ApprovalApproved, ResolvedBy: "user_1", ResolvedAt: &now}, nil
		},
		rejectChangeFn: func(ctx context.Context, documentID, approvalID, reason string) (model.ApprovalRequest, error) {
			rejectCalls++
			return model.ApprovalRequest{}, nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	if _, err := coordinator.RequestApproval(context.Background(), "hero", "please review"); err != nil {
		t.Fatalf("request approval: %v", err)
	}
	approved, err := coordinator.ApproveChange(context.Background(), "apr_1", "ship it")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != model.ApprovalApproved {
		t.Fatalf("status = %q, want approved", approved.Status)
	}

	recorded, err := coordinator.RejectChange(context.Background(), "apr_1", "changed my mind")
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("err = %v, want ErrAlreadyResolved", err)
	}
	if recorded.Status != model.ApprovalApproved {
		t.Fatalf("recorded status = %q, approved must stand", recorded.Status)
	}
	if rejectCalls != 0 {
		t.Fatalf("reject reached backend %d times", rejectCalls)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	channel := newFakeChannel()
	coordinator := newTestCoordinator(channel, &fakeBackend{})
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	if _, err := coordinator.RejectChange(context.Background(), "apr_1", ""); !errors.Is(err, ErrEmptyReason) {
		t.Fatalf("err = %v, want ErrEmptyReason", err)
	}
}

func TestOfflineMutationsRejectedLocalStateReadable(t *testing.T) {
	channel := newFakeChannel()
	backend := &fakeBackend{
		listCommentsFn: func(ctx context.Context, documentID string) ([]model.Comment, error) {
			return []model.Comment{{ID: "cmt_1", DocumentID: documentID}}, nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	channel.state = realtime.StateReconnecting
	if _, err := coordinator.AddComment(context.Background(), "about", "hello"); !errors.Is(err, ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if _, err := coordinator.CreateVersion(context.Background(), "draft"); !errors.Is(err, ErrOffline) {
		t.Fatalf("err = %v, want ErrOffline", err)
	}
	if got := len(coordinator.Comments()); got != 1 {
		t.Fatalf("loaded state lost while offline, comments = %d", got)
	}

	// content edits still enter the local undo buffer and the transport
	// queue while offline
	if err := coordinator.UpdateContent("about", "draft text"); err != nil {
		t.Fatalf("update content: %v", err)
	}
	if entry, ok := coordinator.Undo(); ok || entry.Content != "" {
		t.Fatalf("single edit should not be undoable past the baseline, got %+v ok=%v", entry, ok)
	}
}

func TestCloseDiscardsLateResponse(t *testing.T) {
	channel := newFakeChannel()
	var coordinator *Coordinator
	backend := &fakeBackend{
		createVersionFn: func(ctx context.Context, documentID, description string) (model.VersionSnapshot, error) {
			coordinator.Close()
			return model.VersionSnapshot{ID: 7, DocumentID: documentID}, nil
		},
	}
	coordinator = newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := coordinator.CreateVersion(context.Background(), "late"); !errors.Is(err, ErrStaleGeneration) {
		t.Fatalf("err = %v, want ErrStaleGeneration", err)
	}
	if got := len(coordinator.Versions()); got != 0 {
		t.Fatalf("late response applied, versions = %d", got)
	}
	if _, err := coordinator.CreateVersion(context.Background(), "after close"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

func TestCloseCancelsSubscriptionsAndLeavesRoom(t *testing.T) {
	channel := newFakeChannel()
	coordinator := newTestCoordinator(channel, &fakeBackend{})
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	coordinator.Close()
	coordinator.Close() // idempotent

	if channel.cancels != 7 {
		t.Fatalf("cancels = %d, want 7 (6 events + state watcher)", channel.cancels)
	}
	left := false
	for _, action := range channel.actions {
		if action == "leave:doc_42" {
			left = true
		}
	}
	if !left {
		t.Fatalf("room never left: %v", channel.actions)
	}
}

func TestReloadAfterReconnect(t *testing.T) {
	channel := newFakeChannel()
	loads := make(chan struct{}, 4)
	backend := &fakeBackend{
		listCommentsFn: func(ctx context.Context, documentID string) ([]model.Comment, error) {
			loads <- struct{}{}
			return nil, nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()
	<-loads // initial load

	channel.fireState(realtime.StateReconnecting)
	channel.fireState(realtime.StateConnected)

	select {
	case <-loads:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after reconnect")
	}
}

func TestContentEchoAndPresence(t *testing.T) {
	channel := newFakeChannel()
	coordinator := newTestCoordinator(channel, &fakeBackend{})
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	if err := coordinator.UpdateContent("about", "v1"); err != nil {
		t.Fatalf("update content: %v", err)
	}
	if _, ok := coordinator.Content("about"); ok {
		t.Fatal("content visible before the confirming broadcast")
	}
	channel.fire(t, realtime.EventContentUpdated, realtime.ContentUpdatePayload{
		DocumentID: "doc_42", SectionID: "about", Content: "v1",
	})
	if got, ok := coordinator.Content("about"); !ok || got != "v1" {
		t.Fatalf("content = %q ok=%v", got, ok)
	}

	channel.fire(t, realtime.EventUserJoined, realtime.MemberPayload{
		DocumentID: "doc_42", UserID: "user_2", UserName: "Grace", Timestamp: time.Now(),
	})
	channel.fire(t, realtime.EventCursorMoved, realtime.CursorPayload{
		DocumentID: "doc_42", UserID: "user_2",
		Position: realtime.CursorPosition{SectionID: "about", Offset: 4},
	})
	if got := coordinator.Presence(); len(got) != 1 || got[0].UserName != "Grace" {
		t.Fatalf("presence = %+v", got)
	}
	if got := coordinator.Cursors(); got["user_2"].Offset != 4 {
		t.Fatalf("cursors = %+v", got)
	}

	// events for other documents are ignored
	channel.fire(t, realtime.EventUserJoined, realtime.MemberPayload{
		DocumentID: "doc_99", UserID: "user_3", Timestamp: time.Now(),
	})
	if got := coordinator.Presence(); len(got) != 1 {
		t.Fatalf("presence leaked across documents: %+v", got)
	}

	channel.fire(t, realtime.EventUserLeft, realtime.MemberPayload{
		DocumentID: "doc_42", UserID: "user_2",
	})
	if got := coordinator.Presence(); len(got) != 0 {
		t.Fatalf("presence after leave = %+v", got)
	}
	if got := coordinator.Cursors(); len(got) != 0 {
		t.Fatalf("cursor retained after leave: %+v", got)
	}
}

func TestInviteValidatesEmail(t *testing.T) {
	channel := newFakeChannel()
	backend := &fakeBackend{
		inviteFn: func(ctx context.Context, documentID, email, role string) (model.TeamMember, error) {
			return model.TeamMember{ID: "mem_8", Email: email, Role: role}, nil
		},
	}
	coordinator := newTestCoordinator(channel, backend)
	if err := coordinator.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	defer coordinator.Close()

	for _, email := range []string{"not-an-email", "", "   "} {
		if _, err := coordinator.InviteTeamMember(context.Background(), email, "editor"); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("invite %q: err = %v, want ErrInvalidEmail", email, err)
		}
	}
	member, err := coordinator.InviteTeamMember(context.Background(), "grace@example.com", "editor")
	if err != nil {
		t.Fatalf("invite: %v", err)
	}
	if member.Role != "editor" {
		t.Fatalf("member = %+v", member)
	}
	if got := coordinator.TeamMembers(); len(got) != 1 {
		t.Fatalf("team = %+v", got)
	}
}
