package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solcred/prestago-backend/internal/domain"
	"github.com/solcred/prestago-backend/internal/testutil"
)

func TestBroadcastEmitter_PersistsAndBroadcasts(t *testing.T) {
	repo := testutil.NewMockNotificationRepository()
	hub := NewHub()
	client := newMockClient("client-1")
	hub.Register(client)

	emitter := NewBroadcastEmitter(repo, hub)
	emitter.Emit(context.Background(), domain.Notification{
		Kind:   domain.NotificationLoanOverdue,
		LoanID: uuid.New(),
	})

	kinds := repo.Kinds()
	require.Len(t, kinds, 1)
	assert.Equal(t, domain.NotificationLoanOverdue, kinds[0])
	waitFor(t, func() bool { return client.sentCount() == 1 })
}

func TestBroadcastEmitter_AssignsIDAndTimestamp(t *testing.T) {
	repo := testutil.NewMockNotificationRepository()
	emitter := NewBroadcastEmitter(repo, nil)

	emitter.Emit(context.Background(), domain.Notification{Kind: domain.NotificationLoanCancelled})

	require.Len(t, repo.Notifications, 1)
	stored := repo.Notifications[0]
	assert.NotEqual(t, uuid.Nil, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
}

func TestBroadcastEmitter_StoreFailureStillBroadcasts(t *testing.T) {
	repo := testutil.NewMockNotificationRepository()
	repo.InsertErr = errors.New("disk full")
	hub := NewHub()
	client := newMockClient("client-1")
	hub.Register(client)

	emitter := NewBroadcastEmitter(repo, hub)
	emitter.Emit(context.Background(), domain.Notification{Kind: domain.NotificationInterestUpdated})

	waitFor(t, func() bool { return client.sentCount() == 1 })
}

func TestNoOpEmitter(t *testing.T) {
	// Must not panic
	NoOpEmitter{}.Emit(context.Background(), domain.Notification{})
}
