package model

import "time"

// Session is one user's live presence on a portfolio document. Unique per
// (DocumentID, UserID).
type Session struct {
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName,omitempty"`
	JoinedAt   time.Time `json:"joinedAt"`
}

type Comment struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	SectionID  string     `json:"sectionId"`
	Author     string     `json:"author"`
	Body       string     `json:"body"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// VersionSnapshot is an immutable stored copy of portfolio content.
// IDs are assigned sequentially per document, starting at 1; lists are
// ordered newest-first.
type VersionSnapshot struct {
	ID          int       `json:"id"`
	DocumentID  string    `json:"documentId"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"createdAt"`
	ContentRef  string    `json:"contentRef"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

type ApprovalRequest struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"documentId"`
	SectionID  string         `json:"sectionId"`
	Requester  string         `json:"requester"`
	Message    string         `json:"message"`
	Status     ApprovalStatus `json:"status"`
	ResolvedBy string         `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time     `json:"resolvedAt,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

type Notification struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Read            bool      `json:"read"`
	CreatedAt       time.Time `json:"createdAt"`
	RelatedEntityID string    `json:"relatedEntityId,omitempty"`
}

type TeamMember struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role"`
	InvitedAt time.Time `json:"invitedAt"`
}

type ShareLink struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"documentId"`
	Token      string     `json:"token"`
	Role       string     `json:"role"`
	Revoked    bool       `json:"revoked"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

type ActivityEntry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityID   string    `json:"entityId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PortfolioContent is the editable content of one portfolio document:
// a title plus a set of independently edited sections.
type PortfolioContent struct {
	Title    string            `json:"title"`
	Sections map[string]string `json:"sections,omitempty"`
}

// FieldDiff describes one changed field between two version snapshots.
type FieldDiff struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}
