package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/solcred/prestago-backend/internal/domain"
)

// maxSaveAttempts bounds optimistic-write retries per mutation.
const maxSaveAttempts = 3

// LoanLocker serializes mutating operations per loan. A collector bulk
// upload and a manual reconciliation can target the same loan at once; each
// read-compute-write cycle runs under that loan's mutex.
type LoanLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLoanLocker creates a new LoanLocker.
func NewLoanLocker() *LoanLocker {
	return &LoanLocker{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the mutex for the given loan and returns its unlock func.
func (l *LoanLocker) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// mutateLoan loads a loan, applies fn and saves the whole aggregate under
// the loan's lock. The version check on Save guards against writers outside
// this process; on ErrVersionConflict the cycle reloads and reapplies fn.
// fn must be side-effect free until the save succeeds.
func mutateLoan(ctx context.Context, repo domain.LoanRepository, locker *LoanLocker, id uuid.UUID, fn func(*domain.Loan) error) (*domain.Loan, error) {
	unlock := locker.Lock(id)
	defer unlock()

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		loan, err := repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := fn(loan); err != nil {
			return nil, err
		}

		saved, err := repo.Save(ctx, loan)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return saved, nil
	}
	return nil, domain.ErrVersionConflict
}
