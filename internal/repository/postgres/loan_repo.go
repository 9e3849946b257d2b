package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solcred/prestago-backend/internal/domain"
)

// LoanRepository implements domain.LoanRepository using PostgreSQL.
// Loans are persisted as whole aggregates: every write replaces the loan
// row (guarded by the version column) together with its installments and
// payment records in one transaction.
type LoanRepository struct {
	pool *pgxpool.Pool
}

// NewLoanRepository creates a new LoanRepository
func NewLoanRepository(pool *pgxpool.Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

const loanColumns = `id, number, name, client_id, start_date, due_date, frequency,
	installment_count, principal, interest_rate, custom_amount, total_amount,
	balance, status, overdue_weeks, penalty_interest, overdue_base,
	overdue_notified, version, created_at, updated_at`

// Create stores a new loan, allocating its sequence number from the shared
// counter inside the same transaction.
func (r *LoanRepository) Create(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Atomic increment-and-get; concurrent creations cannot collide.
	err = tx.QueryRow(ctx, `
		INSERT INTO counters (name, seq) VALUES ('loan', 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq`).Scan(&loan.Number)
	if err != nil {
		return nil, err
	}

	principal, err := decimalToPgNumeric(loan.Principal)
	if err != nil {
		return nil, err
	}
	rate, err := decimalToPgNumeric(loan.InterestRate)
	if err != nil {
		return nil, err
	}
	custom, err := nullableDecimalToPgNumeric(loan.CustomAmount)
	if err != nil {
		return nil, err
	}
	total, err := decimalToPgNumeric(loan.TotalAmount)
	if err != nil {
		return nil, err
	}
	balance, err := decimalToPgNumeric(loan.Balance)
	if err != nil {
		return nil, err
	}
	penalty, err := decimalToPgNumeric(loan.PenaltyInterest)
	if err != nil {
		return nil, err
	}
	base, err := nullableDecimalToPgNumeric(loan.OverdueBase)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO loans (
			id, number, name, client_id, start_date, due_date, frequency,
			installment_count, principal, interest_rate, custom_amount,
			total_amount, balance, status, overdue_weeks, penalty_interest,
			overdue_base, overdue_notified, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,1)
		RETURNING version, created_at, updated_at`,
		loan.ID, loan.Number, loan.Name, loan.ClientID, loan.StartDate,
		loan.DueDate, string(loan.Frequency), loan.InstallmentCount, principal,
		rate, custom, total, balance, string(loan.Status), loan.OverdueWeeks,
		penalty, base, loan.OverdueNotified,
	).Scan(&loan.Version, &loan.CreatedAt, &loan.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := insertChildren(ctx, tx, loan); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return loan, nil
}

// GetByID retrieves a loan aggregate by its ID.
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, err
	}
	if err := r.loadChildren(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// ListByStatus retrieves loans whose status is in the given set,
// newest first.
func (r *LoanRepository) ListByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]*domain.Loan, error) {
	set := make([]string, len(statuses))
	for i, s := range statuses {
		set[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+loanColumns+` FROM loans
		WHERE status = ANY($1)
		ORDER BY created_at DESC`, set)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, loan := range loans {
		if err := r.loadChildren(ctx, loan); err != nil {
			return nil, err
		}
	}
	return loans, nil
}

// Save replaces the whole aggregate. The loan row update is guarded by the
// optimistic version check; installments and payment records are rewritten
// in the same transaction so no partially-applied state is ever persisted.
func (r *LoanRepository) Save(ctx context.Context, loan *domain.Loan) (*domain.Loan, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rate, err := decimalToPgNumeric(loan.InterestRate)
	if err != nil {
		return nil, err
	}
	total, err := decimalToPgNumeric(loan.TotalAmount)
	if err != nil {
		return nil, err
	}
	balance, err := decimalToPgNumeric(loan.Balance)
	if err != nil {
		return nil, err
	}
	penalty, err := decimalToPgNumeric(loan.PenaltyInterest)
	if err != nil {
		return nil, err
	}
	base, err := nullableDecimalToPgNumeric(loan.OverdueBase)
	if err != nil {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		UPDATE loans SET
			name = $1, due_date = $2, interest_rate = $3, total_amount = $4,
			balance = $5, status = $6, overdue_weeks = $7,
			penalty_interest = $8, overdue_base = $9, overdue_notified = $10,
			version = version + 1, updated_at = now()
		WHERE id = $11 AND version = $12
		RETURNING version, updated_at`,
		loan.Name, loan.DueDate, rate, total, balance, string(loan.Status),
		loan.OverdueWeeks, penalty, base, loan.OverdueNotified,
		loan.ID, loan.Version,
	).Scan(&loan.Version, &loan.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyMissingWrite(ctx, loan.ID)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM loan_installments WHERE loan_id = $1`, loan.ID); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM loan_payments WHERE loan_id = $1`, loan.ID); err != nil {
		return nil, err
	}
	if err := insertChildren(ctx, tx, loan); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return loan, nil
}

// classifyMissingWrite distinguishes a stale version from a missing loan.
func (r *LoanRepository) classifyMissingWrite(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrVersionConflict
	}
	return domain.ErrLoanNotFound
}

// insertChildren writes the loan's installments and payment records.
func insertChildren(ctx context.Context, tx pgx.Tx, loan *domain.Loan) error {
	for idx := range loan.Installments {
		inst := &loan.Installments[idx]
		amount, err := decimalToPgNumeric(inst.Amount)
		if err != nil {
			return err
		}
		paid, err := decimalToPgNumeric(inst.Paid)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO loan_installments (loan_id, number, due_date, amount, paid, state)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			loan.ID, inst.Number, inst.DueDate, amount, paid, string(inst.State))
		if err != nil {
			return err
		}
	}

	for idx := range loan.Payments {
		rec := &loan.Payments[idx]
		amount, err := decimalToPgNumeric(rec.Amount)
		if err != nil {
			return err
		}
		// position preserves insertion order: replay tie-breaks equal
		// timestamps by it.
		_, err = tx.Exec(ctx, `
			INSERT INTO loan_payments (id, loan_id, amount, paid_at, position)
			VALUES ($1,$2,$3,$4,$5)`,
			rec.ID, loan.ID, amount, rec.PaidAt, idx)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadChildren populates a loan's installments and payment records.
func (r *LoanRepository) loadChildren(ctx context.Context, loan *domain.Loan) error {
	rows, err := r.pool.Query(ctx, `
		SELECT number, due_date, amount, paid, state
		FROM loan_installments WHERE loan_id = $1
		ORDER BY number`, loan.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	loan.Installments = nil
	for rows.Next() {
		var inst domain.Installment
		var amount, paid pgtype.Numeric
		var state string
		if err := rows.Scan(&inst.Number, &inst.DueDate, &amount, &paid, &state); err != nil {
			return err
		}
		inst.Amount = pgNumericToDecimal(amount)
		inst.Paid = pgNumericToDecimal(paid)
		inst.State = domain.InstallmentState(state)
		loan.Installments = append(loan.Installments, inst)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := r.pool.Query(ctx, `
		SELECT id, amount, paid_at
		FROM loan_payments WHERE loan_id = $1
		ORDER BY position`, loan.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()

	loan.Payments = nil
	for payRows.Next() {
		var rec domain.PaymentRecord
		var amount pgtype.Numeric
		if err := payRows.Scan(&rec.ID, &amount, &rec.PaidAt); err != nil {
			return err
		}
		rec.Amount = pgNumericToDecimal(amount)
		loan.Payments = append(loan.Payments, rec)
	}
	return payRows.Err()
}

// scanLoan scans one loans row into a domain.Loan.
func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var loan domain.Loan
	var frequency, status string
	var principal, rate, custom, total, balance, penalty, base pgtype.Numeric

	err := row.Scan(
		&loan.ID, &loan.Number, &loan.Name, &loan.ClientID, &loan.StartDate,
		&loan.DueDate, &frequency, &loan.InstallmentCount, &principal, &rate,
		&custom, &total, &balance, &status, &loan.OverdueWeeks, &penalty,
		&base, &loan.OverdueNotified, &loan.Version, &loan.CreatedAt,
		&loan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.Frequency = domain.Frequency(frequency)
	loan.Status = domain.LoanStatus(status)
	loan.Principal = pgNumericToDecimal(principal)
	loan.InterestRate = pgNumericToDecimal(rate)
	loan.CustomAmount = pgNumericToNullableDecimal(custom)
	loan.TotalAmount = pgNumericToDecimal(total)
	loan.Balance = pgNumericToDecimal(balance)
	loan.PenaltyInterest = pgNumericToDecimal(penalty)
	loan.OverdueBase = pgNumericToNullableDecimal(base)
	return &loan, nil
}
