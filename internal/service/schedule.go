package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/solcred/prestago-backend/internal/domain"
)

var (
	oneHundred = decimal.NewFromInt(100)
	one        = decimal.NewFromInt(1)
)

// TotalWithRate derives the total repayable amount from a principal and a
// nominal interest rate percentage: principal * (1 + rate/100), rounded to
// 2 places. A zero rate leaves the principal untouched.
func TotalWithRate(principal, rate decimal.Decimal) decimal.Decimal {
	if rate.LessThanOrEqual(decimal.Zero) {
		return principal
	}
	multiplier := one.Add(rate.Div(oneHundred))
	return principal.Mul(multiplier).Round(2)
}

// TotalFromCustom derives the total repayable amount from a fixed
// per-installment amount: custom * count, rounded to 2 places.
func TotalFromCustom(custom decimal.Decimal, count int32) decimal.Decimal {
	return custom.Mul(decimal.NewFromInt32(count)).Round(2)
}

// EquivalentRate derives the interest rate percentage implied by a total:
// ((total - principal) / principal) * 100, rounded to 2 places.
func EquivalentRate(principal, total decimal.Decimal) decimal.Decimal {
	return total.Sub(principal).Div(principal).Mul(oneHundred).Round(2)
}

// BuildSchedule generates the installment plan for a loan. Installment i
// (1-based) is due i periods after start: 7 days for weekly, 15 days for
// biweekly, one calendar month for monthly. Each installment amount is the
// custom amount when supplied, otherwise round2(total/count).
//
// When total/count does not divide evenly the per-installment rounding
// residual is deliberately not folded into the final installment, so the
// scheduled sum can drift from the nominal total by under count cents.
// Loan.ScheduledTotal exposes the actual sum.
func BuildSchedule(total decimal.Decimal, count int32, frequency domain.Frequency, start time.Time, custom *decimal.Decimal) []domain.Installment {
	amount := total.Div(decimal.NewFromInt32(count)).Round(2)
	if custom != nil {
		amount = custom.Round(2)
	}

	installments := make([]domain.Installment, 0, count)
	for i := int32(1); i <= count; i++ {
		installments = append(installments, domain.Installment{
			Number:  i,
			DueDate: installmentDueDate(start, frequency, i),
			Amount:  amount,
			Paid:    decimal.Zero,
			State:   domain.InstallmentPending,
		})
	}
	return installments
}

// installmentDueDate returns start advanced by n periods of the given frequency.
func installmentDueDate(start time.Time, frequency domain.Frequency, n int32) time.Time {
	switch frequency {
	case domain.FrequencyWeekly:
		return start.AddDate(0, 0, int(n)*7)
	case domain.FrequencyBiweekly:
		return start.AddDate(0, 0, int(n)*15)
	default: // monthly
		return start.AddDate(0, int(n), 0)
	}
}
