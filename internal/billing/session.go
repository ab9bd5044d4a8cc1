package billing

import (
	"fmt"
	"time"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
)

// SessionRoster is everything needed to bill one session.
type SessionRoster struct {
	SessionDate      time.Time
	MatchID          *string
	MemberIDs        []string
	ShuttlecocksUsed int
	// Memberships maps member ID to that member's membership history.
	Memberships map[string][]models.MembershipPayment
}

// GenerateSessionPayments builds one pending daily Payment per attending member.
// Nothing is persisted; the caller stores the returned records.
func (c *Calculator) GenerateSessionPayments(roster SessionRoster) ([]models.Payment, []SessionPaymentResult, error) {
	if roster.SessionDate.IsZero() {
		return nil, nil, apperr.Validation("session date is required")
	}
	if len(roster.MemberIDs) == 0 {
		return nil, nil, apperr.Validation("at least one member is required")
	}

	results, err := c.CalculateGroupSessionPayments(roster.MemberIDs, roster.SessionDate, roster.ShuttlecocksUsed, roster.Memberships)
	if err != nil {
		return nil, nil, err
	}

	payments := make([]models.Payment, 0, len(results))
	for _, r := range results {
		payments = append(payments, models.Payment{
			MemberID:       r.MemberID,
			MatchID:        roster.MatchID,
			Type:           models.PaymentTypeDaily,
			Amount:         r.TotalFee,
			Status:         models.PaymentStatusPending,
			DueDate:        r.SessionDate,
			ShuttlecockFee: r.ShuttlecockFee,
			SessionFee:     r.SessionFee,
			Notes:          c.sessionNote(r),
			Source:         models.PaymentSourceSession,
			Version:        1,
		})
	}
	return payments, results, nil
}

func (c *Calculator) sessionNote(r SessionPaymentResult) string {
	shuttles := fmt.Sprintf("shuttlecock fee %d (%d x %d)", r.ShuttlecockFee, r.ShuttlecocksUsed, c.schedule.ShuttlecockPrice)
	if r.HasMembership {
		return fmt.Sprintf("Membership active for %s %d: session fee waived, %s",
			r.SessionDate.Month(), r.SessionDate.Year(), shuttles)
	}
	return fmt.Sprintf("No membership for %s %d: session fee %d + %s",
		r.SessionDate.Month(), r.SessionDate.Year(), r.SessionFee, shuttles)
}
