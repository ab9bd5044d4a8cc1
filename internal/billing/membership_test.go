package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"badminton_club/internal/models"
)

func TestCheckMembershipStatus(t *testing.T) {
	ref := date("2025-01-18")

	tests := []struct {
		name           string
		payments       []models.MembershipPayment
		expectedActive bool
		expectedSource string
	}{
		{
			name:           "no records",
			payments:       nil,
			expectedActive: false,
		},
		{
			name:           "paid record for the month",
			payments:       []models.MembershipPayment{{ID: "a", MemberID: "m1", Year: 2025, Month: 1, Status: models.MembershipStatusPaid}},
			expectedActive: true,
			expectedSource: "a",
		},
		{
			name:           "record for another month",
			payments:       []models.MembershipPayment{{ID: "a", MemberID: "m1", Year: 2025, Month: 2, Status: models.MembershipStatusPaid}},
			expectedActive: false,
		},
		{
			name:           "same month in another year",
			payments:       []models.MembershipPayment{{ID: "a", MemberID: "m1", Year: 2024, Month: 1, Status: models.MembershipStatusPaid}},
			expectedActive: false,
		},
		{
			name:           "record of another member",
			payments:       []models.MembershipPayment{{ID: "a", MemberID: "m2", Year: 2025, Month: 1, Status: models.MembershipStatusPaid}},
			expectedActive: false,
		},
		{
			name: "paid record preferred as source",
			payments: []models.MembershipPayment{
				{ID: "pending", MemberID: "m1", Year: 2025, Month: 1, Status: models.MembershipStatusPending},
				{ID: "paid", MemberID: "m1", Year: 2025, Month: 1, Status: models.MembershipStatusPaid},
			},
			expectedActive: true,
			expectedSource: "paid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := CheckMembershipStatus("m1", tt.payments, ref)
			assert.Equal(t, tt.expectedActive, status.IsActive)
			assert.Equal(t, tt.expectedSource, status.SourcePaymentID)
			if tt.expectedActive {
				assert.Equal(t, 1, status.ActiveMonth)
				assert.Equal(t, 2025, status.ActiveYear)
			}
		})
	}
}

// Opting into monthly billing is enough to waive session fees: an unpaid
// membership record still makes the member active for the month.
func TestUnpaidMembershipStillGrantsFreeSessions(t *testing.T) {
	for _, status := range []models.MembershipStatus{models.MembershipStatusPending, models.MembershipStatusOverdue} {
		t.Run(string(status), func(t *testing.T) {
			payments := []models.MembershipPayment{{ID: "a", MemberID: "m1", Year: 2025, Month: 1, Status: status}}

			membership := CheckMembershipStatus("m1", payments, date("2025-01-04"))
			assert.True(t, membership.IsActive)
			assert.Equal(t, status, membership.PaymentStatus)

			calc := NewCalculator(DefaultFeeSchedule())
			fee, err := calc.CalculateSessionPayment("m1", date("2025-01-04"), 2, membership)
			assert.NoError(t, err)
			assert.Equal(t, int64(0), fee.SessionFee)
			assert.Equal(t, int64(10000), fee.TotalFee)
		})
	}
}
