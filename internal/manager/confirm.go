package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/noah-isme/campus-admin-console/internal/models"
)

// ConfirmState is the confirm modal's lifecycle.
type ConfirmState string

const (
	ConfirmClosed     ConfirmState = "closed"
	ConfirmOpen       ConfirmState = "open"
	ConfirmConfirming ConfirmState = "confirming"
)

// ErrNotOpen is returned when confirming a modal that is closed.
var ErrNotOpen = errors.New("confirmation is not open")

// ConfirmRequest describes the pending action and how to present it.
type ConfirmRequest struct {
	State        ConfirmState
	Action       models.Action
	TargetID     string
	Name         string
	Title        string
	Body         string
	ConfirmLabel string
	Danger       bool
	Loading      bool
}

// Open reports whether the modal is showing.
func (r ConfirmRequest) Open() bool {
	return r.State != ConfirmClosed
}

// ConfirmModal gates destructive and status actions behind an explicit affirmation.
type ConfirmModal struct {
	mu         sync.Mutex
	req        ConfirmRequest
	generation uint64
}

// NewConfirmModal returns a closed modal.
func NewConfirmModal() *ConfirmModal {
	return &ConfirmModal{req: ConfirmRequest{State: ConfirmClosed}}
}

// Open shows the modal for action against the target. Presentation is derived from the action.
func (m *ConfirmModal) Open(action models.Action, targetID, name string) {
	if name == "" {
		name = targetID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.req = present(action, targetID, name)
}

// Confirm runs fn once. A second call while fn is running returns ErrBusy. Success closes
// the modal; failure leaves it open with loading cleared.
func (m *ConfirmModal) Confirm(ctx context.Context, fn func(ctx context.Context, req ConfirmRequest) error) error {
	m.mu.Lock()
	switch m.req.State {
	case ConfirmClosed:
		m.mu.Unlock()
		return ErrNotOpen
	case ConfirmConfirming:
		m.mu.Unlock()
		return ErrBusy
	}
	m.req.State = ConfirmConfirming
	m.req.Loading = true
	req := m.req
	gen := m.generation
	m.mu.Unlock()

	err := fn(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		// cancelled or reopened while in flight
		return err
	}
	if err != nil {
		m.req.State = ConfirmOpen
		m.req.Loading = false
		return err
	}
	m.req = ConfirmRequest{State: ConfirmClosed}
	return nil
}

// Cancel closes the modal. An in-flight confirm keeps running but no longer touches the modal.
func (m *ConfirmModal) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.req = ConfirmRequest{State: ConfirmClosed}
}

// Snapshot returns the current request.
func (m *ConfirmModal) Snapshot() ConfirmRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.req
}

func present(action models.Action, targetID, name string) ConfirmRequest {
	req := ConfirmRequest{
		State:    ConfirmOpen,
		Action:   action,
		TargetID: targetID,
		Name:     name,
	}
	switch action {
	case models.ActionDelete:
		req.Title = fmt.Sprintf("Delete %s?", name)
		req.Body = fmt.Sprintf("%s will be permanently removed. This cannot be undone.", name)
		req.ConfirmLabel = "Delete"
		req.Danger = true
	case models.ActionActivate:
		req.Title = fmt.Sprintf("Activate %s?", name)
		req.Body = fmt.Sprintf("%s will be available again.", name)
		req.ConfirmLabel = "Activate"
	case models.ActionDeactivate:
		req.Title = fmt.Sprintf("Deactivate %s?", name)
		req.Body = fmt.Sprintf("%s will no longer be available for new records.", name)
		req.ConfirmLabel = "Deactivate"
	}
	return req
}
