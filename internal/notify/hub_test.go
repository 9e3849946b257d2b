package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/solcred/prestago-backend/internal/domain"
)

// mockClient is a test double for Client that captures sent messages
type mockClient struct {
	id       string
	messages [][]byte
	mu       sync.Mutex
	closed   bool
}

func newMockClient(id string) *mockClient {
	return &mockClient{id: id, messages: make([][]byte, 0)}
}

func (m *mockClient) ID() string {
	return m.id
}

func (m *mockClient) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClientClosed
	}
	m.messages = append(m.messages, data)
	return nil
}

func (m *mockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockClient) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// waitFor polls until the condition holds or the deadline passes. Broadcast
// delivers on per-client goroutines, so tests have to wait.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Condition not met within deadline")
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	client := newMockClient("client-1")

	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	// Unregistering again is a no-op
	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := NewHub()
	client1 := newMockClient("client-1")
	client2 := newMockClient("client-2")
	hub.Register(client1)
	hub.Register(client2)

	event := NewNotificationEvent(domain.Notification{
		ID:   uuid.New(),
		Kind: domain.NotificationLoanOverdue,
	})
	hub.Broadcast(event)

	waitFor(t, func() bool { return client1.sentCount() == 1 && client2.sentCount() == 1 })
}

func TestHub_BroadcastSkipsUnregistered(t *testing.T) {
	hub := NewHub()
	client1 := newMockClient("client-1")
	client2 := newMockClient("client-2")
	hub.Register(client1)
	hub.Register(client2)
	hub.Unregister(client2)

	hub.Broadcast(NewNotificationEvent(domain.Notification{ID: uuid.New()}))

	waitFor(t, func() bool { return client1.sentCount() == 1 })
	assert.Equal(t, 0, client2.sentCount())
}

func TestHub_BroadcastWithNoClients(t *testing.T) {
	hub := NewHub()
	// Must not panic or block
	hub.Broadcast(NewNotificationEvent(domain.Notification{ID: uuid.New()}))
}

func TestHub_SendFailureDoesNotAffectOthers(t *testing.T) {
	hub := NewHub()
	closed := newMockClient("closed")
	_ = closed.Close()
	healthy := newMockClient("healthy")
	hub.Register(closed)
	hub.Register(healthy)

	hub.Broadcast(NewNotificationEvent(domain.Notification{ID: uuid.New()}))

	waitFor(t, func() bool { return healthy.sentCount() == 1 })
}
