package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies the ledger event a notification carries.
type NotificationKind string

const (
	NotificationLoanOverdue     NotificationKind = "loan_overdue"
	NotificationInterestUpdated NotificationKind = "interest_updated"
	NotificationLoanCancelled   NotificationKind = "loan_cancelled"
)

// Notification is a persisted, human-readable record of a ledger event.
// Delivery to listeners is at-most-once and never blocks ledger writes.
type Notification struct {
	ID        uuid.UUID              `json:"id"`
	Kind      NotificationKind       `json:"kind"`
	LoanID    uuid.UUID              `json:"loanId"`
	ClientID  uuid.UUID              `json:"clientId"`
	Message   string                 `json:"message"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

// ListNotificationsParams controls notification listing.
type ListNotificationsParams struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// NotificationRepository persists notifications.
type NotificationRepository interface {
	Insert(ctx context.Context, n *Notification) error
	// List returns a page of notifications newest first, plus the total count.
	List(ctx context.Context, params ListNotificationsParams) ([]*Notification, int64, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*Notification, error)
	MarkAllRead(ctx context.Context) error
}
