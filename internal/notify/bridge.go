// Package notify maps inbound channel events to user alerts. Every relevant
// event produces exactly one Notification, fanned out to two independent
// sinks driven by the same value: the persistent notification list
// (read/unread, clearable) and an ephemeral auto-dismissing alert.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/realtime"
	"github.com/devTechs001/e-commerce-folio-sub002/internal/util"
)

// Alert is the ephemeral presentation of one notification.
type Alert struct {
	Notification model.Notification
	Duration     time.Duration
}

// AlertSink receives transient alerts; it must not block.
type AlertSink func(Alert)

// UnreadSource fetches the server-authoritative unread count, covering
// notifications that predate this session.
type UnreadSource func(ctx context.Context) (int, error)

// eventChannel is the slice of realtime.Channel the bridge uses.
type eventChannel interface {
	Subscribe(event string, handler realtime.Handler) *realtime.Subscription
	OnStateChange(fn func(realtime.State)) *realtime.Subscription
}

// alertDurations holds the type-specific auto-dismiss times.
var alertDurations = map[string]time.Duration{
	"notification":      5 * time.Second,
	"job_posted":        8 * time.Second,
	"portfolio_created": 5 * time.Second,
	"comment_added":     4 * time.Second,
	"comment_resolved":  4 * time.Second,
}

type Bridge struct {
	mu sync.Mutex
	// serverBaseline is the authoritative unread count fetched on
	// (re)connect, covering notifications that predate this session.
	serverBaseline int
	items          []model.Notification
	sink           AlertSink
	subs           []*realtime.Subscription
}

func NewBridge(sink AlertSink) *Bridge {
	return &Bridge{sink: sink}
}

// Attach subscribes the bridge to every inbound event type it presents and,
// when unread is non-nil, refreshes the server baseline on every transition
// to Connected. Detach cancels all of it.
func (b *Bridge) Attach(channel eventChannel, unread UnreadSource) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs,
		channel.Subscribe(realtime.EventNotification, b.onNotification),
		channel.Subscribe(realtime.EventJobPosted, b.onJobPosted),
		channel.Subscribe(realtime.EventPortfolioCreated, b.onPortfolioCreated),
		channel.Subscribe(realtime.EventCommentAdded, b.onCommentAdded),
		channel.Subscribe(realtime.EventCommentResolved, b.onCommentResolved),
		channel.OnStateChange(func(state realtime.State) {
			if state != realtime.StateConnected || unread == nil {
				return
			}
			go b.refreshUnread(unread)
		}),
	)
}

func (b *Bridge) refreshUnread(source UnreadSource) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	count, err := source(ctx)
	if err != nil {
		log.Printf("notify: unread count refresh failed: %v", err)
		return
	}
	b.SetUnreadCount(count)
}

func (b *Bridge) Detach() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}

func (b *Bridge) onNotification(data json.RawMessage) {
	var payload realtime.NotificationPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	item := payload.Notification
	if item.ID == "" {
		item.ID = util.NewID("ntf")
	}
	if item.Type == "" {
		item.Type = "notification"
	}
	b.deliver(item)
}

func (b *Bridge) onJobPosted(data json.RawMessage) {
	var payload realtime.JobPostedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	message := payload.Title
	if payload.Company != "" {
		message += " at " + payload.Company
	}
	b.deliver(model.Notification{
		ID:              util.NewID("ntf"),
		Type:            "job_posted",
		Title:           "New job opportunity",
		Message:         message,
		RelatedEntityID: payload.JobID,
	})
}

func (b *Bridge) onPortfolioCreated(data json.RawMessage) {
	var payload realtime.PortfolioCreatedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	b.deliver(model.Notification{
		ID:              util.NewID("ntf"),
		Type:            "portfolio_created",
		Title:           "Portfolio created",
		Message:         payload.Title,
		RelatedEntityID: payload.DocumentID,
	})
}

func (b *Bridge) onCommentAdded(data json.RawMessage) {
	var payload realtime.CommentAddedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	b.deliver(model.Notification{
		ID:              util.NewID("ntf"),
		Type:            "comment_added",
		Title:           "New comment",
		Message:         payload.Comment.Body,
		RelatedEntityID: payload.Comment.ID,
	})
}

func (b *Bridge) onCommentResolved(data json.RawMessage) {
	var payload realtime.CommentResolvedPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}
	b.deliver(model.Notification{
		ID:              util.NewID("ntf"),
		Type:            "comment_resolved",
		Title:           "Comment resolved",
		Message:         "A comment thread was resolved",
		RelatedEntityID: payload.CommentID,
	})
}

// deliver appends to the persistent list and pushes the ephemeral alert,
// both from the same Notification value.
func (b *Bridge) deliver(item model.Notification) {
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	b.mu.Lock()
	b.items = append(b.items, item)
	sink := b.sink
	b.mu.Unlock()

	if sink != nil {
		duration, ok := alertDurations[item.Type]
		if !ok {
			duration = 5 * time.Second
		}
		sink(Alert{Notification: item, Duration: duration})
	}
}

// Notifications returns the persistent list, oldest first.
func (b *Bridge) Notifications() []model.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]model.Notification, len(b.items))
	copy(items, b.items)
	return items
}

// UnreadCount is the server baseline plus the unread notifications received
// during this session.
func (b *Bridge) UnreadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := b.serverBaseline
	for _, item := range b.items {
		if !item.Read {
			count++
		}
	}
	return count
}

// SetUnreadCount replaces the server-authoritative baseline, fetched on
// (re)connect. Locally received unread notifications keep counting on top.
func (b *Bridge) SetUnreadCount(count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if count < 0 {
		count = 0
	}
	b.serverBaseline = count
}

func (b *Bridge) MarkRead(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id && !b.items[i].Read {
			b.items[i].Read = true
			return true
		}
	}
	return false
}

func (b *Bridge) MarkAllRead() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.serverBaseline = 0
	for i := range b.items {
		b.items[i].Read = true
	}
}

// Clear drops the persistent list; the server baseline is untouched.
func (b *Bridge) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}
