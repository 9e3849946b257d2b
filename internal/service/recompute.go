package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/solcred/prestago-backend/internal/domain"
)

// AffectedInstallment describes the effect of one payment allocation step.
type AffectedInstallment struct {
	Number        int32                   `json:"number"`
	Applied       decimal.Decimal         `json:"applied"`
	PreviousState domain.InstallmentState `json:"previousState"`
	NewState      domain.InstallmentState `json:"newState"`
}

// allocate runs the payment waterfall: the amount is applied to incomplete
// installments in ascending number order, each taking
// min(remaining, amount - paid), until the amount is exhausted. The
// unallocated leftover is returned alongside the touched installments.
func allocate(loan *domain.Loan, amount decimal.Decimal) (affected []AffectedInstallment, leftover decimal.Decimal) {
	remaining := amount
	for idx := range loan.Installments {
		inst := &loan.Installments[idx]
		if inst.State == domain.InstallmentComplete {
			continue
		}
		missing := inst.Remaining()
		if !missing.IsPositive() {
			continue
		}

		apply := decimal.Min(remaining, missing)
		previous := inst.State
		inst.Paid = inst.Paid.Add(apply)
		inst.RefreshState()

		affected = append(affected, AffectedInstallment{
			Number:        inst.Number,
			Applied:       apply,
			PreviousState: previous,
			NewState:      inst.State,
		})

		remaining = remaining.Sub(apply)
		if !remaining.IsPositive() {
			break
		}
	}
	return affected, remaining
}

// Replay deterministically re-derives a loan's installment, balance and
// status state from its current payment-record set. Records are applied in
// paid-at order (ties keep insertion order), so two loans with the same
// record set converge to the same state no matter how edits and deletions
// got them there. Replaying twice is a no-op.
func Replay(loan *domain.Loan) {
	for idx := range loan.Installments {
		loan.Installments[idx].Paid = decimal.Zero
		loan.Installments[idx].State = domain.InstallmentPending
	}

	ordered := make([]domain.PaymentRecord, len(loan.Payments))
	copy(ordered, loan.Payments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PaidAt.Before(ordered[j].PaidAt)
	})

	for idx := range ordered {
		allocate(loan, ordered[idx].Amount)
	}

	balance := loan.TotalAmount.Sub(loan.TotalPaid())
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	loan.Balance = balance

	switch {
	case loan.AllComplete():
		loan.Status = domain.StatusCancelled
	case loan.Balance.LessThan(loan.TotalAmount):
		loan.Status = domain.StatusActive
	}
	// Otherwise the status is left as-is: a freshly unpaid loan keeps
	// whatever state (deactivated, overdue) it already carried.
}
