package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/solcred/prestago-backend/internal/domain"
	"github.com/solcred/prestago-backend/internal/testutil"
)

func newLoanFixture() (*LoanService, *testutil.MockLoanRepository) {
	repo := testutil.NewMockLoanRepository()
	return NewLoanService(repo, NewLoanLocker()), repo
}

func validInput() CreateLoanInput {
	rate := decimal.NewFromInt(10)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return CreateLoanInput{
		Name:             "Corner store working capital",
		ClientID:         uuid.New(),
		Principal:        decimal.NewFromInt(1000),
		InstallmentCount: 10,
		Frequency:        domain.FrequencyWeekly,
		StartDate:        &start,
		InterestRate:     &rate,
	}
}

func TestCreateLoan_RateMode(t *testing.T) {
	// $1000 at 10% over 10 weekly installments:
	// total 1100, installment 110, due date 70 days out
	svc, _ := newLoanFixture()

	loan, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !loan.TotalAmount.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected total 1100, got %s", loan.TotalAmount.String())
	}
	if !loan.Balance.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected balance 1100, got %s", loan.Balance.String())
	}
	if len(loan.Installments) != 10 {
		t.Fatalf("Expected 10 installments, got %d", len(loan.Installments))
	}
	if !loan.Installments[0].Amount.Equal(decimal.NewFromInt(110)) {
		t.Errorf("Expected installment amount 110, got %s", loan.Installments[0].Amount.String())
	}
	expectedDue := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	if !loan.DueDate.Equal(expectedDue) {
		t.Errorf("Expected due date %s, got %s", expectedDue, loan.DueDate)
	}
	if loan.Status != domain.StatusActive {
		t.Errorf("Expected active status, got %s", loan.Status)
	}
	if loan.Number != 1 {
		t.Errorf("Expected loan number 1, got %d", loan.Number)
	}
}

func TestCreateLoan_CustomAmountMode(t *testing.T) {
	// Custom $110 x 10 against a $1000 principal: total 1100, derived rate 10%
	svc, _ := newLoanFixture()

	input := validInput()
	input.InterestRate = nil
	custom := decimal.NewFromInt(110)
	input.CustomInstallmentAmount = &custom

	loan, err := svc.CreateLoan(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !loan.TotalAmount.Equal(decimal.NewFromInt(1100)) {
		t.Errorf("Expected total 1100, got %s", loan.TotalAmount.String())
	}
	if !loan.InterestRate.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected derived rate 10, got %s", loan.InterestRate.String())
	}
	if loan.CustomAmount == nil || !loan.CustomAmount.Equal(custom) {
		t.Error("Expected custom amount preserved on the loan")
	}
}

func TestCreateLoan_CustomAmountWinsOverRate(t *testing.T) {
	// When both are supplied the custom amount drives the math
	svc, _ := newLoanFixture()

	input := validInput() // carries a 10% rate
	custom := decimal.NewFromInt(150)
	input.CustomInstallmentAmount = &custom

	loan, err := svc.CreateLoan(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// 150 x 10 = 1500 total, derived rate 50%
	if !loan.TotalAmount.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("Expected total 1500, got %s", loan.TotalAmount.String())
	}
	if !loan.InterestRate.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected derived rate 50, got %s", loan.InterestRate.String())
	}
}

func TestCreateLoan_SequentialNumbers(t *testing.T) {
	svc, _ := newLoanFixture()

	first, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if first.Number != 1 || second.Number != 2 {
		t.Errorf("Expected numbers 1 and 2, got %d and %d", first.Number, second.Number)
	}
}

func TestCreateLoan_ValidationErrors(t *testing.T) {
	svc, _ := newLoanFixture()

	tests := []struct {
		name    string
		mutate  func(*CreateLoanInput)
		wantErr error
	}{
		{"short name", func(in *CreateLoanInput) { in.Name = "x" }, domain.ErrLoanNameInvalid},
		{"missing client", func(in *CreateLoanInput) { in.ClientID = uuid.Nil }, domain.ErrClientRequired},
		{"zero principal", func(in *CreateLoanInput) { in.Principal = decimal.Zero }, domain.ErrPrincipalInvalid},
		{"zero installments", func(in *CreateLoanInput) { in.InstallmentCount = 0 }, domain.ErrInstallmentCountInvalid},
		{"too many installments", func(in *CreateLoanInput) { in.InstallmentCount = domain.MaxInstallmentCount + 1 }, domain.ErrInstallmentCountInvalid},
		{"bad frequency", func(in *CreateLoanInput) { in.Frequency = "daily" }, domain.ErrFrequencyInvalid},
		{"negative rate", func(in *CreateLoanInput) {
			rate := decimal.NewFromInt(-5)
			in.InterestRate = &rate
		}, domain.ErrInterestRateInvalid},
		{"zero custom amount", func(in *CreateLoanInput) {
			custom := decimal.Zero
			in.CustomInstallmentAmount = &custom
		}, domain.ErrCustomAmountInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			_, err := svc.CreateLoan(context.Background(), input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	svc, _ := newLoanFixture()

	_, err := svc.GetLoan(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrLoanNotFound) {
		t.Errorf("Expected ErrLoanNotFound, got %v", err)
	}
}

func TestListLoans_FiltersByStatus(t *testing.T) {
	svc, _ := newLoanFixture()

	active, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	other, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := svc.DeactivateLoan(context.Background(), other.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	actives, err := svc.ListLoans(context.Background(), domain.StatusActive)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(actives) != 1 || actives[0].ID != active.ID {
		t.Errorf("Expected only the active loan, got %d loans", len(actives))
	}

	all, err := svc.ListLoans(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 loans with no filter, got %d", len(all))
	}
}

func TestDeactivateLoan(t *testing.T) {
	svc, _ := newLoanFixture()

	loan, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updated, err := svc.DeactivateLoan(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated.Status != domain.StatusDeactivated {
		t.Errorf("Expected deactivated status, got %s", updated.Status)
	}
	// Ledger state untouched
	if !updated.Balance.Equal(loan.Balance) {
		t.Errorf("Expected balance unchanged, got %s", updated.Balance.String())
	}
}

func TestDeactivateLoan_CancelledIsTerminal(t *testing.T) {
	svc, repo := newLoanFixture()

	loan, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stored := repo.Stored(loan.ID)
	stored.Status = domain.StatusCancelled
	repo.Loans[loan.ID] = stored

	_, err = svc.DeactivateLoan(context.Background(), loan.ID)
	if !errors.Is(err, domain.ErrLoanCancelled) {
		t.Errorf("Expected ErrLoanCancelled, got %v", err)
	}
}

func TestActivateLoan(t *testing.T) {
	svc, _ := newLoanFixture()

	loan, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := svc.DeactivateLoan(context.Background(), loan.ID); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updated, err := svc.ActivateLoan(context.Background(), loan.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if updated.Status != domain.StatusActive {
		t.Errorf("Expected active status, got %s", updated.Status)
	}
}

func TestActivateLoan_AlreadyActive(t *testing.T) {
	svc, _ := newLoanFixture()

	loan, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = svc.ActivateLoan(context.Background(), loan.ID)
	if !errors.Is(err, domain.ErrLoanAlreadyActive) {
		t.Errorf("Expected ErrLoanAlreadyActive, got %v", err)
	}
}

func TestActivateLoan_CancelledIsTerminal(t *testing.T) {
	svc, repo := newLoanFixture()

	loan, err := svc.CreateLoan(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	stored := repo.Stored(loan.ID)
	stored.Status = domain.StatusCancelled
	repo.Loans[loan.ID] = stored

	_, err = svc.ActivateLoan(context.Background(), loan.ID)
	if !errors.Is(err, domain.ErrLoanCancelled) {
		t.Errorf("Expected ErrLoanCancelled, got %v", err)
	}
}
