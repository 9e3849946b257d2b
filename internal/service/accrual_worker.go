package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/solcred/prestago-backend/internal/domain"
	"github.com/solcred/prestago-backend/internal/notify"
)

// weeklyPenaltyRate is the penalty interest applied per whole overdue week,
// compounding on the frozen overdue balance.
var weeklyPenaltyRate = decimal.NewFromFloat(0.05)

const overdueWeek = 7 * 24 * time.Hour

// AccrualWorker is a background worker that periodically scans active and
// overdue loans and accrues weekly penalty interest on the overdue ones.
type AccrualWorker struct {
	repo     domain.LoanRepository
	locker   *LoanLocker
	emitter  notify.Emitter
	logger   zerolog.Logger
	interval time.Duration
	enabled  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

// AccrualWorkerConfig holds configuration for the accrual worker.
type AccrualWorkerConfig struct {
	Interval time.Duration // How often to run the overdue scan
	Enabled  bool          // When false, Start is a no-op
}

// DefaultAccrualWorkerConfig returns sensible defaults
func DefaultAccrualWorkerConfig() AccrualWorkerConfig {
	return AccrualWorkerConfig{
		Interval: 30 * time.Minute,
		Enabled:  true,
	}
}

// NewAccrualWorker creates a new accrual worker
func NewAccrualWorker(
	repo domain.LoanRepository,
	locker *LoanLocker,
	emitter notify.Emitter,
	logger zerolog.Logger,
	config AccrualWorkerConfig,
) *AccrualWorker {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Minute
	}
	if emitter == nil {
		emitter = notify.NoOpEmitter{}
	}

	return &AccrualWorker{
		repo:     repo,
		locker:   locker,
		emitter:  emitter,
		logger:   logger.With().Str("component", "accrual_worker").Logger(),
		interval: config.Interval,
		enabled:  config.Enabled,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background overdue scan. Ticks are consumed by a single
// goroutine, so a run never overlaps the previous one.
func (w *AccrualWorker) Start(ctx context.Context) {
	if !w.enabled {
		w.logger.Info().Msg("Accrual worker disabled")
		return
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info().
		Dur("interval", w.interval).
		Msg("Starting accrual worker")

	go w.run(ctx)
}

// Stop gracefully stops the accrual worker
func (w *AccrualWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	w.logger.Info().Msg("Stopping accrual worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info().Msg("Accrual worker stopped")
}

// IsRunning returns whether the worker is currently running
func (w *AccrualWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run is the main loop for the accrual worker
func (w *AccrualWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	// Run immediately on startup
	w.Tick(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-w.stopCh:
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			return
		case <-ticker.C:
			w.Tick(ctx, time.Now().UTC())
		}
	}
}

// TickSummary reports the outcome of one accrual run.
type TickSummary struct {
	Processed int
	Overdue   int
	Cancelled int
	Errors    int
}

// Tick runs one overdue scan at the given instant. Per-loan failures are
// logged and counted but never abort the rest of the batch; Tick itself
// never returns an error to its scheduler.
func (w *AccrualWorker) Tick(ctx context.Context, now time.Time) TickSummary {
	startTime := time.Now()
	var summary TickSummary

	loans, err := w.repo.ListByStatus(ctx, domain.StatusActive, domain.StatusOverdue)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list loans for accrual scan")
		summary.Errors++
		return summary
	}

	for _, loan := range loans {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Context cancelled, stopping scan")
			return summary
		case <-w.stopCh:
			w.logger.Info().Msg("Stop signal received, stopping scan")
			return summary
		default:
		}

		status, err := w.accrueLoan(ctx, loan.ID, now)
		if err != nil {
			w.logger.Error().
				Err(err).
				Str("loan_id", loan.ID.String()).
				Int64("loan_number", loan.Number).
				Msg("Failed to accrue loan")
			summary.Errors++
			continue
		}

		summary.Processed++
		switch status {
		case domain.StatusOverdue:
			summary.Overdue++
		case domain.StatusCancelled:
			summary.Cancelled++
		}
	}

	w.logger.Info().
		Int("loans", len(loans)).
		Int("processed", summary.Processed).
		Int("overdue", summary.Overdue).
		Int("cancelled", summary.Cancelled).
		Int("errors", summary.Errors).
		Dur("elapsed", time.Since(startTime)).
		Msg("Completed accrual scan")

	return summary
}

// accrueLoan applies the accrual rules to a single loan under its lock and
// returns the loan's resulting status.
func (w *AccrualWorker) accrueLoan(ctx context.Context, id uuid.UUID, now time.Time) (domain.LoanStatus, error) {
	var pending []domain.Notification

	saved, err := mutateLoan(ctx, w.repo, w.locker, id, func(loan *domain.Loan) error {
		pending = pending[:0]

		switch loan.Status {
		case domain.StatusActive, domain.StatusOverdue:
		default:
			// Status changed since the scan listed it; leave it alone.
			return nil
		}

		first := loan.FirstIncomplete()
		if first == nil {
			loan.Status = domain.StatusCancelled
			loan.OverdueWeeks = 0
			loan.PenaltyInterest = decimal.Zero
			loan.OverdueBase = nil
			return nil
		}

		if now.After(first.DueDate) {
			weeks := int32(now.Sub(first.DueDate) / overdueWeek)
			if weeks <= loan.OverdueWeeks {
				return nil
			}

			newWeeks := weeks - loan.OverdueWeeks
			wasActive := loan.Status != domain.StatusOverdue

			// The overdue balance is frozen at the first transition and
			// penalty compounds on it, not on the live balance.
			if wasActive && loan.OverdueBase == nil {
				base := loan.Balance
				loan.OverdueBase = &base
			}

			base := loan.Balance
			if loan.OverdueBase != nil {
				base = *loan.OverdueBase
			}

			increment := base.Mul(weeklyPenaltyRate).Mul(decimal.NewFromInt32(newWeeks))
			loan.PenaltyInterest = loan.PenaltyInterest.Add(increment).Round(2)
			frozen := base.Add(increment).Round(2)
			loan.OverdueBase = &frozen
			loan.Status = domain.StatusOverdue
			loan.OverdueWeeks = weeks

			if wasActive && !loan.OverdueNotified {
				pending = append(pending, notify.OverdueNotification(loan, weeks))
				loan.OverdueNotified = true
			}
			pending = append(pending, notify.InterestUpdatedNotification(loan, weeks, newWeeks))
			return nil
		}

		// Earliest incomplete installment is not due yet: clear any
		// previous overdue accrual.
		loan.PenaltyInterest = decimal.Zero
		loan.OverdueWeeks = 0
		loan.OverdueBase = nil
		loan.Status = domain.StatusActive
		return nil
	})
	if err != nil {
		return "", err
	}

	for idx := range pending {
		pending[idx].LoanID = saved.ID
		pending[idx].ClientID = saved.ClientID
		w.emitter.Emit(ctx, pending[idx])
	}
	return saved.Status, nil
}
