package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the repayment cadence of a loan.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Valid reports whether the frequency is one of the supported cadences.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly:
		return true
	}
	return false
}

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	StatusActive      LoanStatus = "active"
	StatusOverdue     LoanStatus = "overdue"
	StatusCancelled   LoanStatus = "cancelled"
	StatusDeactivated LoanStatus = "deactivated"
)

// InstallmentState is derived from the paid amount, never set directly.
type InstallmentState string

const (
	InstallmentPending  InstallmentState = "pending"
	InstallmentPartial  InstallmentState = "partial"
	InstallmentComplete InstallmentState = "complete"
)

// Installment is one scheduled repayment unit of a loan. Installments are
// addressed by their immutable Number (1..N), never by slice position.
type Installment struct {
	Number  int32            `json:"number"`
	DueDate time.Time        `json:"dueDate"`
	Amount  decimal.Decimal  `json:"amount"`
	Paid    decimal.Decimal  `json:"paid"`
	State   InstallmentState `json:"state"`
}

// RefreshState re-derives State from Paid and Amount.
func (i *Installment) RefreshState() {
	switch {
	case i.Paid.GreaterThanOrEqual(i.Amount):
		i.State = InstallmentComplete
	case i.Paid.GreaterThan(decimal.Zero):
		i.State = InstallmentPartial
	default:
		i.State = InstallmentPending
	}
}

// Remaining returns the unpaid portion of the installment.
func (i *Installment) Remaining() decimal.Decimal {
	r := i.Amount.Sub(i.Paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// PaymentRecord is an atomic cash receipt applied to a loan. Records are
// append-only in normal operation; editing or deleting one forces a full
// replay of the loan's installment state.
type PaymentRecord struct {
	ID     uuid.UUID       `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt time.Time       `json:"paidAt"`
}

// Loan is the aggregate root. It exclusively owns its installments and
// payment records; Version is the optimistic concurrency token bumped on
// every persisted write.
type Loan struct {
	ID               uuid.UUID        `json:"id"`
	Number           int64            `json:"number"`
	Name             string           `json:"name"`
	ClientID         uuid.UUID        `json:"clientId"`
	StartDate        time.Time        `json:"startDate"`
	DueDate          time.Time        `json:"dueDate"`
	Frequency        Frequency        `json:"frequency"`
	InstallmentCount int32            `json:"installmentCount"`
	Principal        decimal.Decimal  `json:"principal"`
	InterestRate     decimal.Decimal  `json:"interestRate"`
	CustomAmount     *decimal.Decimal `json:"customInstallmentAmount,omitempty"`
	TotalAmount      decimal.Decimal  `json:"totalAmount"`
	Balance          decimal.Decimal  `json:"balance"`
	Status           LoanStatus       `json:"status"`
	Installments     []Installment    `json:"installments"`
	Payments         []PaymentRecord  `json:"payments"`
	OverdueWeeks     int32            `json:"overdueWeeks"`
	PenaltyInterest  decimal.Decimal  `json:"penaltyInterest"`
	OverdueBase      *decimal.Decimal `json:"overdueBase,omitempty"`
	OverdueNotified  bool             `json:"overdueNotified"`
	Version          int64            `json:"version"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Validate checks the creation-time fields of a loan.
func (l *Loan) Validate() error {
	name := strings.TrimSpace(l.Name)
	if len(name) < MinLoanNameLength || len(name) > MaxLoanNameLength {
		return ErrLoanNameInvalid
	}
	if l.ClientID == uuid.Nil {
		return ErrClientRequired
	}
	if l.Principal.LessThanOrEqual(decimal.Zero) {
		return ErrPrincipalInvalid
	}
	if l.InstallmentCount < 1 || l.InstallmentCount > MaxInstallmentCount {
		return ErrInstallmentCountInvalid
	}
	if !l.Frequency.Valid() {
		return ErrFrequencyInvalid
	}
	if l.InterestRate.IsNegative() || l.InterestRate.GreaterThan(decimal.NewFromInt(MaxInterestRate)) {
		return ErrInterestRateInvalid
	}
	return nil
}

// FirstIncomplete returns the earliest installment that is not complete,
// or nil when the loan is fully paid.
func (l *Loan) FirstIncomplete() *Installment {
	for idx := range l.Installments {
		if l.Installments[idx].State != InstallmentComplete {
			return &l.Installments[idx]
		}
	}
	return nil
}

// AllComplete reports whether every installment is complete.
func (l *Loan) AllComplete() bool {
	return l.FirstIncomplete() == nil
}

// TotalPaid sums the paid amount across all installments.
func (l *Loan) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for idx := range l.Installments {
		total = total.Add(l.Installments[idx].Paid)
	}
	return total
}

// ScheduledTotal sums the scheduled installment amounts. It may differ from
// TotalAmount by less than InstallmentCount cents when the per-installment
// rounding does not divide evenly.
func (l *Loan) ScheduledTotal() decimal.Decimal {
	total := decimal.Zero
	for idx := range l.Installments {
		total = total.Add(l.Installments[idx].Amount)
	}
	return total
}

// PaymentByID returns the payment record with the given id and its
// insertion position, or nil and -1 when absent.
func (l *Loan) PaymentByID(id uuid.UUID) (*PaymentRecord, int) {
	for idx := range l.Payments {
		if l.Payments[idx].ID == id {
			return &l.Payments[idx], idx
		}
	}
	return nil, -1
}

// LoanRepository persists loans as whole aggregates.
type LoanRepository interface {
	// Create stores a new loan and allocates its sequence number
	// atomically within the same transaction.
	Create(ctx context.Context, loan *Loan) (*Loan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)
	ListByStatus(ctx context.Context, statuses ...LoanStatus) ([]*Loan, error)
	// Save writes the full aggregate in one transaction. It fails with
	// ErrVersionConflict when the stored version no longer matches.
	Save(ctx context.Context, loan *Loan) (*Loan, error)
}
