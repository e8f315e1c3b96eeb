// Package approvals tracks the request -> approve/reject state machine for
// proposed changes. The only legal transitions are pending -> approved and
// pending -> rejected; a resolved request is terminal and retained for audit.
// When two conflicting terminal resolutions race, the first one observed
// locally wins and later ones are ignored.
package approvals

import (
	"sync"
	"time"

	"github.com/devTechs001/e-commerce-folio-sub002/internal/model"
)

type Workflow struct {
	mu      sync.Mutex
	ordered []string
	byID    map[string]model.ApprovalRequest
}

func NewWorkflow() *Workflow {
	return &Workflow{byID: make(map[string]model.ApprovalRequest)}
}

// Replace swaps the collection for the authoritative server list.
func (w *Workflow) Replace(items []model.ApprovalRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ordered = w.ordered[:0]
	w.byID = make(map[string]model.ApprovalRequest, len(items))
	for _, item := range items {
		if _, ok := w.byID[item.ID]; ok {
			continue
		}
		w.ordered = append(w.ordered, item.ID)
		w.byID[item.ID] = item
	}
}

// Track records a newly created request. An already-known ID is a no-op.
func (w *Workflow) Track(item model.ApprovalRequest) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.byID[item.ID]; ok {
		return false
	}
	if item.Status == "" {
		item.Status = model.ApprovalPending
	}
	w.ordered = append(w.ordered, item.ID)
	w.byID[item.ID] = item
	return true
}

// ApplyResolution applies a terminal transition. It reports false when the
// request is unknown or already terminal (first-terminal-wins: a conflicting
// later resolution for the same ID never overwrites the recorded one).
func (w *Workflow) ApplyResolution(id string, status model.ApprovalStatus, resolvedBy, reason string, resolvedAt time.Time) bool {
	if !status.Terminal() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	item, ok := w.byID[id]
	if !ok || item.Status.Terminal() {
		return false
	}
	item.Status = status
	item.ResolvedBy = resolvedBy
	item.Reason = reason
	at := resolvedAt
	if at.IsZero() {
		at = time.Now()
	}
	item.ResolvedAt = &at
	w.byID[id] = item
	return true
}

func (w *Workflow) Get(id string) (model.ApprovalRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	item, ok := w.byID[id]
	return item, ok
}

// List returns all requests in arrival order, resolved ones included.
func (w *Workflow) List() []model.ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := make([]model.ApprovalRequest, 0, len(w.ordered))
	for _, id := range w.ordered {
		items = append(items, w.byID[id])
	}
	return items
}

// Pending returns the requests still awaiting resolution.
func (w *Workflow) Pending() []model.ApprovalRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := make([]model.ApprovalRequest, 0)
	for _, id := range w.ordered {
		if item := w.byID[id]; item.Status == model.ApprovalPending {
			items = append(items, item)
		}
	}
	return items
}
