package realtime

import (
	"encoding/json"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

// Inbound events.
const (
	EventUserJoined       = "user_joined"
	EventUserLeft         = "user_left"
	EventCommentAdded     = "comment_added"
	EventCommentResolved  = "comment_resolved"
	EventContentUpdated   = "content_updated"
	EventCursorMoved      = "cursor_moved"
	EventNotification     = "notification"
	EventJobPosted        = "job_posted"
	EventPortfolioCreated = "portfolio_created"
)

// Outbound events.
const (
	EventJoinPortfolio  = "join_portfolio"
	EventLeavePortfolio = "leave_portfolio"
	EventContentUpdate  = "content_update"
	EventCursorUpdate   = "cursor_update"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}

// RoomPayload accompanies join_portfolio / leave_portfolio.
type RoomPayload struct {
	DocumentID string `json:"documentId"`
}

// MemberPayload accompanies user_joined / user_left.
type MemberPayload struct {
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type ContentUpdatePayload struct {
	DocumentID string    `json:"documentId"`
	SectionID  string    `json:"sectionId"`
	Content    string    `json:"content"`
	UserID     string    `json:"userId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type CursorPosition struct {
	SectionID string `json:"sectionId"`
	Offset    int    `json:"offset"`
}

type CursorPayload struct {
	DocumentID string         `json:"documentId"`
	UserID     string         `json:"userId,omitempty"`
	Position   CursorPosition `json:"position"`
	Timestamp  time.Time      `json:"timestamp"`
}

type TypingPayload struct {
	DocumentID string `json:"documentId"`
	UserID     string `json:"userId,omitempty"`
}

// CommentAddedPayload carries the authoritative comment created by the server.
type CommentAddedPayload struct {
	Comment model.Comment `json:"comment"`
}

type CommentResolvedPayload struct {
	DocumentID string    `json:"documentId"`
	CommentID  string    `json:"commentId"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// NotificationPayload carries server-pushed generic notifications.
type NotificationPayload struct {
	Notification model.Notification `json:"notification"`
}

type JobPostedPayload struct {
	JobID   string `json:"jobId"`
	Title   string `json:"title"`
	Company string `json:"company,omitempty"`
}

type PortfolioCreatedPayload struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Owner      string `json:"owner,omitempty"`
}
