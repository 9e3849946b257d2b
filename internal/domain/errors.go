package domain

import "errors"

// Domain errors
var (
	// Validation errors: rejected before any mutation.
	ErrLoanNameInvalid         = errors.New("loan name must be between 2 and 100 characters")
	ErrPrincipalInvalid        = errors.New("principal must be positive")
	ErrInstallmentCountInvalid = errors.New("installment count must be between 1 and 36")
	ErrFrequencyInvalid        = errors.New("frequency must be weekly, biweekly or monthly")
	ErrInterestRateInvalid     = errors.New("interest rate must be between 0 and 1000")
	ErrCustomAmountInvalid     = errors.New("custom installment amount must be positive")
	ErrPaymentAmountInvalid    = errors.New("payment amount must be positive")
	ErrClientRequired          = errors.New("client reference is required")

	// Not-found errors.
	ErrLoanNotFound         = errors.New("loan not found")
	ErrPaymentNotFound      = errors.New("payment record not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// State-conflict errors.
	ErrLoanCancelled     = errors.New("loan is cancelled and cannot change status")
	ErrLoanAlreadyActive = errors.New("loan is already active")

	// ErrVersionConflict signals a lost optimistic write; callers reload and retry.
	ErrVersionConflict = errors.New("loan was modified concurrently")
)

// Validation constants
const (
	MinLoanNameLength   = 2
	MaxLoanNameLength   = 100
	MaxInstallmentCount = 36
	MaxInterestRate     = 1000
)
