package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solcred/prestago-backend/internal/domain"
)

// MockLoanRepository is an in-memory implementation of domain.LoanRepository.
// It clones aggregates on read and write, and enforces the same version
// check as the real store so optimistic-retry paths can be exercised.
type MockLoanRepository struct {
	mu    sync.Mutex
	Loans map[uuid.UUID]*domain.Loan
	seq   int64

	// SaveFn, when set, intercepts Save. Use it to inject failures.
	SaveFn func(loan *domain.Loan) error
	// ConflictsLeft forces that many Saves to fail with ErrVersionConflict.
	ConflictsLeft int
}

// NewMockLoanRepository creates a new MockLoanRepository
func NewMockLoanRepository() *MockLoanRepository {
	return &MockLoanRepository{Loans: make(map[uuid.UUID]*domain.Loan)}
}

// Create stores a new loan and allocates its sequence number.
func (m *MockLoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	loan.Number = m.seq
	loan.Version = 1
	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now

	m.Loans[loan.ID] = CloneLoan(loan)
	return CloneLoan(loan), nil
}

// GetByID retrieves a loan by ID
func (m *MockLoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loan, ok := m.Loans[id]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	return CloneLoan(loan), nil
}

// ListByStatus returns loans whose status matches any of the given statuses.
func (m *MockLoanRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Loan
	for _, loan := range m.Loans {
		for _, s := range statuses {
			if loan.Status == s {
				out = append(out, CloneLoan(loan))
				break
			}
		}
	}
	return out, nil
}

// Save writes the whole aggregate back, failing with ErrVersionConflict
// when the stored version no longer matches.
func (m *MockLoanRepository) Save(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveFn != nil {
		if err := m.SaveFn(loan); err != nil {
			return nil, err
		}
	}
	if m.ConflictsLeft > 0 {
		m.ConflictsLeft--
		return nil, domain.ErrVersionConflict
	}

	stored, ok := m.Loans[loan.ID]
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	if stored.Version != loan.Version {
		return nil, domain.ErrVersionConflict
	}

	saved := CloneLoan(loan)
	saved.Version = loan.Version + 1
	saved.UpdatedAt = time.Now()
	m.Loans[loan.ID] = CloneLoan(saved)
	return saved, nil
}

// Stored returns the stored copy of a loan for direct assertions.
func (m *MockLoanRepository) Stored(id uuid.UUID) *domain.Loan {
	m.mu.Lock()
	defer m.mu.Unlock()
	if loan, ok := m.Loans[id]; ok {
		return CloneLoan(loan)
	}
	return nil
}

// CloneLoan deep-copies a loan aggregate.
func CloneLoan(loan *domain.Loan) *domain.Loan {
	c := *loan
	c.Installments = make([]domain.Installment, len(loan.Installments))
	copy(c.Installments, loan.Installments)
	c.Payments = make([]domain.PaymentRecord, len(loan.Payments))
	copy(c.Payments, loan.Payments)
	if loan.CustomAmount != nil {
		v := *loan.CustomAmount
		c.CustomAmount = &v
	}
	if loan.OverdueBase != nil {
		v := *loan.OverdueBase
		c.OverdueBase = &v
	}
	return &c
}

// MockNotificationRepository is an in-memory implementation of
// domain.NotificationRepository.
type MockNotificationRepository struct {
	mu            sync.Mutex
	Notifications []*domain.Notification

	// InsertErr, when set, is returned by Insert.
	InsertErr error
}

// NewMockNotificationRepository creates a new MockNotificationRepository
func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{}
}

// Insert stores a notification
func (m *MockNotificationRepository) Insert(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return m.InsertErr
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	stored := *n
	m.Notifications = append(m.Notifications, &stored)
	return nil
}

// List returns a page of notifications newest first plus the total count.
func (m *MockNotificationRepository) List(ctx context.Context, params domain.ListNotificationsParams) ([]*domain.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 20
	}

	var filtered []*domain.Notification
	for i := len(m.Notifications) - 1; i >= 0; i-- {
		n := m.Notifications[i]
		if params.UnreadOnly && n.Read {
			continue
		}
		filtered = append(filtered, n)
	}

	total := int64(len(filtered))
	start := (params.Page - 1) * params.Limit
	if start >= len(filtered) {
		return nil, total, nil
	}
	end := start + params.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], total, nil
}

// MarkRead marks one notification as read
func (m *MockNotificationRepository) MarkRead(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.Notifications {
		if n.ID == id {
			n.Read = true
			return n, nil
		}
	}
	return nil, domain.ErrNotificationNotFound
}

// MarkAllRead marks every notification as read
func (m *MockNotificationRepository) MarkAllRead(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.Notifications {
		n.Read = true
	}
	return nil
}

// Kinds returns the kinds of all stored notifications in insertion order.
func (m *MockNotificationRepository) Kinds() []domain.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()

	kinds := make([]domain.NotificationKind, 0, len(m.Notifications))
	for _, n := range m.Notifications {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// CapturingEmitter records emitted notifications for assertions.
type CapturingEmitter struct {
	mu     sync.Mutex
	Events []domain.Notification
}

// Emit records the notification
func (e *CapturingEmitter) Emit(ctx context.Context, n domain.Notification) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Events = append(e.Events, n)
}

// Emitted returns a snapshot of the recorded notifications.
func (e *CapturingEmitter) Emitted() []domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Notification, len(e.Events))
	copy(out, e.Events)
	return out
}

// KindCount returns how many recorded notifications have the given kind.
func (e *CapturingEmitter) KindCount(kind domain.NotificationKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	count := 0
	for _, n := range e.Events {
		if n.Kind == kind {
			count++
		}
	}
	return count
}
