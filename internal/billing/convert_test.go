package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
)

func fixedClock(s string) func() time.Time {
	d := date(s)
	return func() time.Time { return d.Add(10 * time.Hour) }
}

func sessionPayment() models.Payment {
	return models.Payment{
		ID:       "p1",
		MemberID: "m1",
		Type:     models.PaymentTypeDaily,
		Amount:   18000,
		Status:   models.PaymentStatusPending,
		DueDate:  date("2025-01-04"),
		Notes:    "No membership for January 2025",
		Version:  3,
	}
}

func TestSessionToMembership(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-01-10")))
	original := sessionPayment()

	got, err := conv.SessionToMembership(original)
	require.NoError(t, err)

	assert.Equal(t, "p1", got.Payment.ID)
	assert.Equal(t, models.PaymentTypeMonthly, got.Payment.Type)
	assert.Equal(t, int64(40000), got.Payment.Amount)
	assert.Equal(t, date("2025-01-04"), got.Payment.DueDate)
	assert.Equal(t, models.PaymentStatusPending, got.Payment.Status)
	assert.Equal(t, 3, got.Payment.Version)
	assert.Contains(t, got.Payment.Notes, "No membership for January 2025\nConverted to membership")
	assert.Equal(t, int64(18000), got.PreviousAmount)
	assert.Equal(t, 2025, got.TargetYear)
	assert.Equal(t, 1, got.TargetMonth)
	assert.Equal(t, 4, got.WeeksInMonth)
	assert.Equal(t, 2025, got.Payment.BilledYear)
	assert.Equal(t, 1, got.Payment.BilledMonth)

	assert.Equal(t, sessionPayment(), original, "input payment must not be mutated")
}

func TestSessionToMembershipAcceptsSessionPlusShuttlecocks(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-01-10")))
	p := sessionPayment()
	p.Amount = 23000
	p.ShuttlecockFee = 5000

	got, err := conv.SessionToMembership(p)
	require.NoError(t, err)
	assert.Equal(t, int64(45000), got.Payment.Amount)
	assert.Equal(t, int64(40000), got.Payment.SessionFee)
	assert.Equal(t, int64(5000), got.Payment.ShuttlecockFee)
	assert.Equal(t, int64(23000), got.PreviousAmount)

	back, err := conv.MembershipToSession(got.Payment)
	require.NoError(t, err)
	assert.Equal(t, int64(23000), back.Payment.Amount)
	assert.Equal(t, int64(18000), back.Payment.SessionFee)
	assert.Equal(t, int64(5000), back.Payment.ShuttlecockFee)
}

func TestSessionToMembershipPreconditions(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-01-10")))

	tests := []struct {
		name   string
		mutate func(p *models.Payment)
	}{
		{"amount below session fee", func(p *models.Payment) { p.Amount = 5000 }},
		{"already paid", func(p *models.Payment) { p.Status = models.PaymentStatusPaid }},
		{"partially paid", func(p *models.Payment) { p.Status = models.PaymentStatusPartial }},
		{"cancelled", func(p *models.Payment) { p.Status = models.PaymentStatusCancelled }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sessionPayment()
			tt.mutate(&p)
			_, err := conv.SessionToMembership(p)
			assert.True(t, apperr.Is(err, apperr.KindPrecondition), "got %v", err)
		})
	}
}

func TestMembershipToSession(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-01-10")))
	p := sessionPayment()
	p.Type = models.PaymentTypeMonthly
	p.Amount = 45000

	got, err := conv.MembershipToSession(p)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentTypeDaily, got.Payment.Type)
	assert.Equal(t, int64(18000), got.Payment.Amount)
	assert.Equal(t, date("2025-01-04"), got.Payment.DueDate)
	assert.Contains(t, got.Payment.Notes, "was membership 45000")
	assert.Equal(t, int64(45000), got.PreviousAmount)
}

func TestMembershipToSessionUsesBilledMonth(t *testing.T) {
	january := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-01-10")))
	february := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-02-03")))

	monthly, err := january.SessionToMembership(sessionPayment())
	require.NoError(t, err)

	back, err := february.MembershipToSession(monthly.Payment)
	require.NoError(t, err)
	assert.Equal(t, 2025, back.TargetYear)
	assert.Equal(t, 1, back.TargetMonth)
	assert.Zero(t, back.Payment.BilledYear)
	assert.Zero(t, back.Payment.BilledMonth)
}

func TestMembershipToSessionWithoutBilledMonthFallsBackToClock(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-02-03")))
	p := sessionPayment()
	p.Type = models.PaymentTypeMonthly
	p.Amount = 40000

	got, err := conv.MembershipToSession(p)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TargetMonth)
}

func TestMembershipToSessionPreconditions(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()))

	daily := sessionPayment()
	_, err := conv.MembershipToSession(daily)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))

	paid := sessionPayment()
	paid.Type = models.PaymentTypeMonthly
	paid.Status = models.PaymentStatusPaid
	_, err = conv.MembershipToSession(paid)
	assert.True(t, apperr.Is(err, apperr.KindPrecondition))
}

func TestConversionRoundTrip(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-03-15")))

	toMembership, err := conv.SessionToMembership(sessionPayment())
	require.NoError(t, err)
	back, err := conv.MembershipToSession(toMembership.Payment)
	require.NoError(t, err)

	assert.Equal(t, int64(18000), back.Payment.Amount)
	assert.Equal(t, models.PaymentTypeDaily, back.Payment.Type)
	assert.Equal(t, date("2025-01-04"), back.Payment.DueDate)
	assert.Equal(t, "p1", back.Payment.ID)
}

// Pinned, possibly buggy: the billed month follows the clock, not the payment's
// due date. A January session converted in March is billed as March (5 weeks).
func TestSessionToMembershipBillsCurrentMonthNotDueDateMonth(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()), WithClock(fixedClock("2025-03-15")))

	got, err := conv.SessionToMembership(sessionPayment())
	require.NoError(t, err)
	assert.Equal(t, 3, got.TargetMonth)
	assert.Equal(t, 5, got.WeeksInMonth)
	assert.Equal(t, int64(45000), got.Payment.Amount)
}

func TestSessionToMembershipWithMonthFromDueDate(t *testing.T) {
	conv := NewConverter(NewCalculator(DefaultFeeSchedule()),
		WithClock(fixedClock("2025-03-15")),
		WithMonthFromDueDate(true),
	)

	got, err := conv.SessionToMembership(sessionPayment())
	require.NoError(t, err)
	assert.Equal(t, 1, got.TargetMonth)
	assert.Equal(t, int64(40000), got.Payment.Amount)
}
