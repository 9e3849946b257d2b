package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/solcred/prestago-backend/internal/domain"
)

// Event is the wire envelope pushed to connected listeners.
// Format: { type, payload, timestamp }
type Event struct {
	Type      string      `json:"type"` // e.g. "notification.loan_overdue"
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewNotificationEvent wraps a notification for broadcast.
func NewNotificationEvent(n domain.Notification) Event {
	return Event{
		Type:      fmt.Sprintf("notification.%s", n.Kind),
		Payload:   n,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes.
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// OverdueNotification builds the loan_overdue notification for a loan.
func OverdueNotification(loan *domain.Loan, weeksOverdue int32) domain.Notification {
	return domain.Notification{
		Kind:     domain.NotificationLoanOverdue,
		LoanID:   loan.ID,
		ClientID: loan.ClientID,
		Message: fmt.Sprintf("Loan #%d (%s) is overdue. Weeks overdue: %d.",
			loan.Number, loan.Name, weeksOverdue),
		Metadata: map[string]interface{}{
			"weeksOverdue": weeksOverdue,
			"loanNumber":   loan.Number,
		},
	}
}

// InterestUpdatedNotification builds the interest_updated notification
// emitted each run that adds penalty interest.
func InterestUpdatedNotification(loan *domain.Loan, weeksOverdue, newWeeks int32) domain.Notification {
	return domain.Notification{
		Kind:     domain.NotificationInterestUpdated,
		LoanID:   loan.ID,
		ClientID: loan.ClientID,
		Message: fmt.Sprintf("Penalty interest updated on loan #%d (%s): $%s (weeks overdue: %d).",
			loan.Number, loan.Name, loan.PenaltyInterest.StringFixed(2), weeksOverdue),
		Metadata: map[string]interface{}{
			"weeksOverdue":    weeksOverdue,
			"newWeeks":        newWeeks,
			"penaltyInterest": loan.PenaltyInterest.StringFixed(2),
			"loanNumber":      loan.Number,
		},
	}
}

// CancelledNotification builds the loan_cancelled notification emitted
// when a loan is fully repaid.
func CancelledNotification(loan *domain.Loan) domain.Notification {
	return domain.Notification{
		Kind:     domain.NotificationLoanCancelled,
		LoanID:   loan.ID,
		ClientID: loan.ClientID,
		Message: fmt.Sprintf("Loan #%d (%s) has been cancelled (fully repaid).",
			loan.Number, loan.Name),
		Metadata: map[string]interface{}{
			"loanNumber": loan.Number,
		},
	}
}
