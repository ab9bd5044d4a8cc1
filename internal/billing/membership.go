package billing

import (
	"time"

	"badminton_club/internal/models"
)

// MembershipStatus is derived on every calculation pass and never cached.
type MembershipStatus struct {
	MemberID        string                  `json:"member_id"`
	IsActive        bool                    `json:"is_active"`
	ActiveMonth     int                     `json:"active_month,omitempty"`
	ActiveYear      int                     `json:"active_year,omitempty"`
	SourcePaymentID string                  `json:"source_payment_id,omitempty"`
	PaymentStatus   models.MembershipStatus `json:"payment_status,omitempty"`
}

// CoversDate reports whether the status grants membership for the month of d.
func (s MembershipStatus) CoversDate(d time.Time) bool {
	return s.IsActive && s.ActiveYear == d.Year() && s.ActiveMonth == int(d.Month())
}

// CheckMembershipStatus resolves membership for the month containing ref.
//
// Any membership record for that month makes the member active, whatever its
// payment status: choosing monthly billing is what waives session fees, not
// settling the bill. PaymentStatus carries the settlement state for display.
// Records that belong to another member are ignored when memberID is set.
func CheckMembershipStatus(memberID string, payments []models.MembershipPayment, ref time.Time) MembershipStatus {
	status := MembershipStatus{MemberID: memberID}
	year, month := ref.Year(), int(ref.Month())

	for _, p := range payments {
		if memberID != "" && p.MemberID != "" && p.MemberID != memberID {
			continue
		}
		if p.Year != year || p.Month != month {
			continue
		}
		status.IsActive = true
		status.ActiveMonth = month
		status.ActiveYear = year
		if status.SourcePaymentID == "" || p.Status == models.MembershipStatusPaid {
			status.SourcePaymentID = p.ID
			status.PaymentStatus = p.Status
		}
	}
	return status
}
