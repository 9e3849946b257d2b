package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solcred/prestago-backend/internal/domain"
)

// LoanService creates loans and drives their lifecycle state machine.
type LoanService struct {
	repo   domain.LoanRepository
	locker *LoanLocker
}

// NewLoanService creates a new LoanService
func NewLoanService(repo domain.LoanRepository, locker *LoanLocker) *LoanService {
	return &LoanService{repo: repo, locker: locker}
}

// CreateLoanInput contains input for creating a loan.
// CustomInstallmentAmount and InterestRate are mutually exclusive in effect:
// when a custom amount is present it wins and the rate is derived from it.
type CreateLoanInput struct {
	Name                    string
	ClientID                uuid.UUID
	Principal               decimal.Decimal
	InstallmentCount        int32
	Frequency               domain.Frequency
	StartDate               *time.Time // defaults to now
	InterestRate            *decimal.Decimal
	CustomInstallmentAmount *decimal.Decimal
}

// CreateLoan validates the input, derives the total amount and rate, builds
// the amortization schedule and persists the new loan.
func (s *LoanService) CreateLoan(ctx context.Context, input CreateLoanInput) (*domain.Loan, error) {
	start := time.Now().UTC()
	if input.StartDate != nil {
		start = *input.StartDate
	}

	var total, rate decimal.Decimal
	switch {
	case input.CustomInstallmentAmount != nil:
		if input.CustomInstallmentAmount.LessThanOrEqual(decimal.Zero) {
			return nil, domain.ErrCustomAmountInvalid
		}
		if input.InstallmentCount < 1 || input.InstallmentCount > domain.MaxInstallmentCount {
			return nil, domain.ErrInstallmentCountInvalid
		}
		total = TotalFromCustom(*input.CustomInstallmentAmount, input.InstallmentCount)
		if input.Principal.LessThanOrEqual(decimal.Zero) {
			return nil, domain.ErrPrincipalInvalid
		}
		rate = EquivalentRate(input.Principal, total)
	default:
		if input.InterestRate != nil {
			rate = *input.InterestRate
		}
		total = TotalWithRate(input.Principal, rate)
	}

	loan := &domain.Loan{
		ID:               uuid.New(),
		Name:             strings.TrimSpace(input.Name),
		ClientID:         input.ClientID,
		StartDate:        start,
		Frequency:        input.Frequency,
		InstallmentCount: input.InstallmentCount,
		Principal:        input.Principal,
		InterestRate:     rate,
		CustomAmount:     input.CustomInstallmentAmount,
		TotalAmount:      total,
		Balance:          total,
		Status:           domain.StatusActive,
		PenaltyInterest:  decimal.Zero,
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}

	loan.Installments = BuildSchedule(total, input.InstallmentCount, input.Frequency, start, input.CustomInstallmentAmount)
	loan.DueDate = loan.Installments[len(loan.Installments)-1].DueDate

	return s.repo.Create(ctx, loan)
}

// GetLoan retrieves a loan by ID.
func (s *LoanService) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return s.repo.GetByID(ctx, id)
}

// ListLoans retrieves loans, optionally filtered by status. With no filter
// every status is included.
func (s *LoanService) ListLoans(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	if len(statuses) == 0 {
		statuses = []domain.LoanStatus{
			domain.StatusActive,
			domain.StatusOverdue,
			domain.StatusCancelled,
			domain.StatusDeactivated,
		}
	}
	return s.repo.ListByStatus(ctx, statuses...)
}

// DeactivateLoan puts a loan into the deactivated override state. Cancelled
// loans are terminal and cannot be deactivated. Ledger math is untouched.
func (s *LoanService) DeactivateLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return mutateLoan(ctx, s.repo, s.locker, id, func(loan *domain.Loan) error {
		if loan.Status == domain.StatusCancelled {
			return domain.ErrLoanCancelled
		}
		loan.Status = domain.StatusDeactivated
		return nil
	})
}

// ActivateLoan returns a deactivated (or overdue) loan to active without
// replaying ledger state. Activating a cancelled loan is rejected.
func (s *LoanService) ActivateLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	return mutateLoan(ctx, s.repo, s.locker, id, func(loan *domain.Loan) error {
		switch loan.Status {
		case domain.StatusCancelled:
			return domain.ErrLoanCancelled
		case domain.StatusActive:
			return domain.ErrLoanAlreadyActive
		}
		loan.Status = domain.StatusActive
		return nil
	})
}
