package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
)

func activeMembership(memberID string, year, month int, status models.MembershipStatus) models.MembershipPayment {
	return models.MembershipPayment{
		ID:           memberID + "-membership",
		MemberID:     memberID,
		Year:         year,
		Month:        month,
		WeeksInMonth: 4,
		Amount:       DefaultMonthlyFeeFourWeeks,
		Status:       status,
	}
}

func TestCalculateMonthlyFee(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())

	tests := []struct {
		name          string
		year, month   int
		expectedWeeks int
		expectedFee   int64
	}{
		{"four saturdays", 2025, 1, 4, 40000},
		{"five saturdays", 2025, 3, 5, 45000},
		{"five saturdays starting on the first", 2025, 11, 5, 45000},
		{"leap february", 2024, 2, 4, 40000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, err := calc.CalculateMonthlyFee(tt.year, tt.month)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedWeeks, fee.WeeksInMonth)
			assert.Equal(t, tt.expectedFee, fee.Amount)
			assert.Equal(t, time.Date(tt.year, time.Month(tt.month), 1, 0, 0, 0, 0, time.UTC), fee.DueDate)
			assert.NotEmpty(t, fee.Description)
		})
	}
}

func TestCalculateMonthlyFeeHasOnlyTwoPrices(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())
	for year := 2020; year <= 2030; year++ {
		for month := 1; month <= 12; month++ {
			fee, err := calc.CalculateMonthlyFee(year, month)
			require.NoError(t, err)
			switch fee.WeeksInMonth {
			case 4:
				assert.Equal(t, int64(40000), fee.Amount)
			case 5:
				assert.Equal(t, int64(45000), fee.Amount)
			default:
				t.Fatalf("%d-%02d: unexpected week count %d", year, month, fee.WeeksInMonth)
			}
		}
	}
}

func TestCalculateMonthlyFeeRejectsInvalidMonth(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())
	for _, month := range []int{0, 13, -1} {
		_, err := calc.CalculateMonthlyFee(2025, month)
		assert.True(t, apperr.Is(err, apperr.KindValidation), "month %d", month)
	}
}

func TestCalculateSessionPayment(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())
	sessionDate := date("2025-01-04")
	janActive := CheckMembershipStatus("m1", []models.MembershipPayment{activeMembership("m1", 2025, 1, models.MembershipStatusPaid)}, sessionDate)
	decActive := CheckMembershipStatus("m1", []models.MembershipPayment{activeMembership("m1", 2024, 12, models.MembershipStatusPaid)}, date("2024-12-07"))

	tests := []struct {
		name             string
		shuttlecocks     int
		status           MembershipStatus
		expectedSession  int64
		expectedShuttles int64
		expectedMember   bool
	}{
		{"member without shuttlecocks", 0, janActive, 0, 0, true},
		{"member with shuttlecocks", 3, janActive, 0, 15000, true},
		{"non member", 1, MembershipStatus{MemberID: "m1"}, 18000, 5000, false},
		{"membership for another month", 2, decActive, 18000, 10000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.CalculateSessionPayment("m1", sessionDate, tt.shuttlecocks, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedSession, got.SessionFee)
			assert.Equal(t, tt.expectedShuttles, got.ShuttlecockFee)
			assert.Equal(t, tt.expectedSession+tt.expectedShuttles, got.TotalFee)
			assert.Equal(t, tt.expectedMember, got.HasMembership)
		})
	}
}

func TestCalculateSessionPaymentValidation(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())

	_, err := calc.CalculateSessionPayment("", date("2025-01-04"), 1, MembershipStatus{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = calc.CalculateSessionPayment("m1", date("2025-01-04"), -1, MembershipStatus{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCalculateSessionPaymentUsesConfiguredShuttlecockPrice(t *testing.T) {
	schedule := DefaultFeeSchedule()
	schedule.ShuttlecockPrice = 7000
	calc := NewCalculator(schedule)

	got, err := calc.CalculateSessionPayment("m1", date("2025-01-04"), 2, MembershipStatus{})
	require.NoError(t, err)
	assert.Equal(t, int64(14000), got.ShuttlecockFee)
	assert.Equal(t, int64(32000), got.TotalFee)
}

func TestCalculateGroupSessionPayments(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())
	memberships := map[string][]models.MembershipPayment{
		"m1": {activeMembership("m1", 2025, 1, models.MembershipStatusPaid)},
		"m2": {},
	}

	got, err := calc.CalculateGroupSessionPayments([]string{"m1", "m2"}, date("2025-01-04"), 1, memberships)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "m1", got[0].MemberID)
	assert.Equal(t, int64(0), got[0].SessionFee)
	assert.Equal(t, int64(5000), got[0].ShuttlecockFee)
	assert.True(t, got[0].HasMembership)

	assert.Equal(t, "m2", got[1].MemberID)
	assert.Equal(t, int64(18000), got[1].SessionFee)
	assert.Equal(t, int64(5000), got[1].ShuttlecockFee)
	assert.False(t, got[1].HasMembership)
}

func TestCalculateGroupSessionPaymentsKeepsRosterOrder(t *testing.T) {
	calc := NewCalculator(DefaultFeeSchedule())
	roster := []string{"zed", "amy", "kai"}

	got, err := calc.CalculateGroupSessionPayments(roster, date("2025-01-04"), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, roster, []string{got[0].MemberID, got[1].MemberID, got[2].MemberID})
}

func TestGeneratePaymentSummary(t *testing.T) {
	results := []SessionPaymentResult{
		{MemberID: "m1", SessionFee: 0, ShuttlecockFee: 5000, TotalFee: 5000, HasMembership: true},
		{MemberID: "m2", SessionFee: 18000, ShuttlecockFee: 5000, TotalFee: 23000},
		{MemberID: "m3", SessionFee: 18000, ShuttlecockFee: 0, TotalFee: 18000},
	}

	summary := GeneratePaymentSummary(results, date("2025-01-04"))

	assert.Equal(t, int64(46000), summary.TotalRevenue)
	assert.Equal(t, int64(36000), summary.TotalSessionFees)
	assert.Equal(t, int64(10000), summary.TotalShuttlecockFees)
	assert.Equal(t, 3, summary.MemberCount)
	assert.Equal(t, 1, summary.MembershipCount)
	assert.Equal(t, 2, summary.NonMembershipCount)
	assert.Equal(t, date("2025-01-04"), summary.SessionDate)
}

func TestGeneratePaymentSummaryEmpty(t *testing.T) {
	summary := GeneratePaymentSummary(nil, date("2025-01-04"))
	assert.Zero(t, summary.TotalRevenue)
	assert.Zero(t, summary.MemberCount)
}

func TestCalculateMonthlyFeeRejectsUnknownWeekday(t *testing.T) {
	schedule := DefaultFeeSchedule()
	schedule.Weekday = 9

	_, err := NewCalculator(schedule).CalculateMonthlyFee(2025, 1)
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
}
