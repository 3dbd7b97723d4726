package workorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a work order.
type Status string

const (
	StatusNew        Status = "new"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusClosed     Status = "closed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusNew, StatusAssigned, StatusInProgress, StatusCompleted, StatusClosed}

// ParseStatus normalizes and validates a status string.
func ParseStatus(value string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	s = Status(strings.ReplaceAll(string(s), "-", "_"))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", value)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Next returns the following status in lifecycle order, wrapping around.
func (s Status) Next() Status {
	for i, known := range Statuses {
		if known == s {
			return Statuses[(i+1)%len(Statuses)]
		}
	}
	return Statuses[0]
}

// Label returns a human-friendly rendering ("in progress").
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Priority ranks how urgent a work order is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities from most to least urgent. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 99
	}
}

// WorkOrder mirrors a row of the work_orders table. It is owned by the server
// and always replaced wholesale on fetch.
type WorkOrder struct {
	ID           uuid.UUID  `json:"id"`
	CreatedAt    time.Time  `json:"created_at,omitzero"`
	UpdatedAt    time.Time  `json:"updated_at,omitzero"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       Status     `json:"status"`
	Priority     Priority   `json:"priority"`
	PropertyID   *uuid.UUID `json:"property_id,omitempty"`
	TechnicianID uuid.UUID  `json:"technician_id"`
	CreatedBy    uuid.UUID  `json:"created_by"`
}

// PendingUpdate is a status/notes edit that has not been confirmed by the
// server. At most one exists per work order.
type PendingUpdate struct {
	ID          uuid.UUID `json:"id"`
	WorkOrderID uuid.UUID `json:"workOrderId"`
	Status      Status    `json:"status"`
	Notes       string    `json:"notes"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

// NewPendingUpdate stamps a fresh pending update for workOrderID.
func NewPendingUpdate(workOrderID uuid.UUID, status Status, notes string, now time.Time) PendingUpdate {
	return PendingUpdate{
		ID:          uuid.New(),
		WorkOrderID: workOrderID,
		Status:      status,
		Notes:       notes,
		EnqueuedAt:  now.UTC(),
	}
}

// Attachment mirrors a row of work_order_attachments. SignedURL is filled
// client side and is empty when signing failed.
type Attachment struct {
	ID          uuid.UUID `json:"id"`
	WorkOrderID uuid.UUID `json:"work_order_id"`
	StoragePath string    `json:"storage_path"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	SignedURL   string    `json:"-"`
}
