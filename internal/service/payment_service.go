package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solcred/prestago-backend/internal/domain"
	"github.com/solcred/prestago-backend/internal/notify"
)

// PaymentService owns the payment side of the ledger: applying incoming
// payments across installments and keeping loan state consistent when a
// payment record is edited or deleted.
type PaymentService struct {
	repo    domain.LoanRepository
	locker  *LoanLocker
	emitter notify.Emitter
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(repo domain.LoanRepository, locker *LoanLocker, emitter notify.Emitter) *PaymentService {
	if emitter == nil {
		emitter = notify.NoOpEmitter{}
	}
	return &PaymentService{repo: repo, locker: locker, emitter: emitter}
}

// RecordPaymentResult reports the outcome of applying a payment.
type RecordPaymentResult struct {
	Loan                 *domain.Loan          `json:"loan"`
	AffectedInstallments []AffectedInstallment `json:"affectedInstallments"`
	// Leftover is the portion that exceeded the remaining debt. It is kept
	// on the payment record but not allocated to any installment.
	Leftover decimal.Decimal `json:"leftover"`
}

// RecordPayment appends a payment record and allocates its amount across
// incomplete installments oldest first. A payment that completes every
// installment cancels the loan and emits a loan_cancelled notification.
func (s *PaymentService) RecordPayment(ctx context.Context, loanID uuid.UUID, amount decimal.Decimal, at *time.Time) (*RecordPaymentResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrPaymentAmountInvalid
	}

	paidAt := time.Now().UTC()
	if at != nil {
		paidAt = *at
	}

	var result RecordPaymentResult
	var cancelled bool

	saved, err := mutateLoan(ctx, s.repo, s.locker, loanID, func(loan *domain.Loan) error {
		cancelled = false

		affected, leftover := allocate(loan, amount)

		balance := loan.Balance.Sub(amount)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		loan.Balance = balance

		if loan.AllComplete() && loan.Status != domain.StatusCancelled {
			loan.Status = domain.StatusCancelled
			cancelled = true
		}

		loan.Payments = append(loan.Payments, domain.PaymentRecord{
			ID:     uuid.New(),
			Amount: amount,
			PaidAt: paidAt,
		})

		result.AffectedInstallments = affected
		result.Leftover = leftover
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		s.emitter.Emit(ctx, notify.CancelledNotification(saved))
	}

	result.Loan = saved
	return &result, nil
}

// EditPayment changes the amount and/or date of an existing payment record
// and replays the loan's full state from the updated record set.
func (s *PaymentService) EditPayment(ctx context.Context, loanID, paymentID uuid.UUID, newAmount *decimal.Decimal, newAt *time.Time) (*domain.Loan, error) {
	if newAmount != nil && newAmount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrPaymentAmountInvalid
	}

	var cancelled bool
	saved, err := mutateLoan(ctx, s.repo, s.locker, loanID, func(loan *domain.Loan) error {
		cancelled = false

		record, _ := loan.PaymentByID(paymentID)
		if record == nil {
			return domain.ErrPaymentNotFound
		}

		if newAmount != nil {
			record.Amount = *newAmount
		}
		if newAt != nil {
			record.PaidAt = *newAt
		}

		wasCancelled := loan.Status == domain.StatusCancelled
		Replay(loan)
		cancelled = !wasCancelled && loan.Status == domain.StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cancelled {
		s.emitter.Emit(ctx, notify.CancelledNotification(saved))
	}
	return saved, nil
}

// DeletePayment removes a payment record and replays the loan's full state
// from the remaining record set, reproducing the exact state that existed
// before the record was ever added.
func (s *PaymentService) DeletePayment(ctx context.Context, loanID, paymentID uuid.UUID) (*domain.Loan, error) {
	return mutateLoan(ctx, s.repo, s.locker, loanID, func(loan *domain.Loan) error {
		_, idx := loan.PaymentByID(paymentID)
		if idx < 0 {
			return domain.ErrPaymentNotFound
		}

		loan.Payments = append(loan.Payments[:idx], loan.Payments[idx+1:]...)
		Replay(loan)
		return nil
	})
}
