package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/solcred/prestago-backend/internal/domain"
)

// Emitter delivers ledger notifications. Emission is fire-and-forget:
// implementations log their own failures and never propagate them into
// the ledger write path.
type Emitter interface {
	Emit(ctx context.Context, n domain.Notification)
}

// BroadcastEmitter persists each notification and pushes it to all
// connected listeners. Either collaborator may be nil.
type BroadcastEmitter struct {
	repo domain.NotificationRepository
	hub  *Hub
}

// NewBroadcastEmitter creates a BroadcastEmitter.
func NewBroadcastEmitter(repo domain.NotificationRepository, hub *Hub) *BroadcastEmitter {
	return &BroadcastEmitter{repo: repo, hub: hub}
}

// Ensure BroadcastEmitter implements Emitter
var _ Emitter = (*BroadcastEmitter)(nil)

// Emit stores the notification and broadcasts it. At-most-once: failures
// are logged, not retried.
func (e *BroadcastEmitter) Emit(ctx context.Context, n domain.Notification) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if e.repo != nil {
		if err := e.repo.Insert(ctx, &n); err != nil {
			log.Error().
				Err(err).
				Str("kind", string(n.Kind)).
				Str("loan_id", n.LoanID.String()).
				Msg("Failed to store notification")
		}
	}

	if e.hub != nil {
		e.hub.Broadcast(NewNotificationEvent(n))
	}
}

// NoOpEmitter discards every notification (for tests or when the
// notification channel is disabled).
type NoOpEmitter struct{}

// Emit does nothing
func (NoOpEmitter) Emit(ctx context.Context, n domain.Notification) {}
