package billing

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
)

// Default community pricing, in rupiah.
const (
	DefaultMonthlyFeeFourWeeks int64 = 40000
	DefaultMonthlyFeeFiveWeeks int64 = 45000
	DefaultSessionFee          int64 = 18000
	DefaultShuttlecockPrice    int64 = 5000
)

// FeeSchedule holds the prices and the session weekday the calculator works with.
type FeeSchedule struct {
	Weekday             time.Weekday
	MonthlyFeeFourWeeks int64
	MonthlyFeeFiveWeeks int64
	SessionFee          int64
	ShuttlecockPrice    int64
}

// DefaultFeeSchedule is the Saturday schedule with the standard prices.
func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		Weekday:             time.Saturday,
		MonthlyFeeFourWeeks: DefaultMonthlyFeeFourWeeks,
		MonthlyFeeFiveWeeks: DefaultMonthlyFeeFiveWeeks,
		SessionFee:          DefaultSessionFee,
		ShuttlecockPrice:    DefaultShuttlecockPrice,
	}
}

// MonthlyFee is the quote for one month of membership.
type MonthlyFee struct {
	Year         int       `json:"year"`
	Month        int       `json:"month"`
	Amount       int64     `json:"amount"`
	WeeksInMonth int       `json:"weeks_in_month"`
	DueDate      time.Time `json:"due_date"`
	Description  string    `json:"description"`
}

// SessionPaymentResult is one member's fee for one session.
type SessionPaymentResult struct {
	MemberID         string    `json:"member_id"`
	SessionDate      time.Time `json:"session_date"`
	ShuttlecocksUsed int       `json:"shuttlecocks_used"`
	SessionFee       int64     `json:"session_fee"`
	ShuttlecockFee   int64     `json:"shuttlecock_fee"`
	TotalFee         int64     `json:"total_fee"`
	HasMembership    bool      `json:"has_membership"`
	MembershipID     string    `json:"membership_id,omitempty"`
}

// PaymentSummary aggregates the fees of one session.
type PaymentSummary struct {
	SessionDate          time.Time `json:"session_date"`
	TotalRevenue         int64     `json:"total_revenue"`
	TotalSessionFees     int64     `json:"total_session_fees"`
	TotalShuttlecockFees int64     `json:"total_shuttlecock_fees"`
	MemberCount          int       `json:"member_count"`
	MembershipCount      int       `json:"membership_count"`
	NonMembershipCount   int       `json:"non_membership_count"`
}

// Calculator computes fees. It holds no state besides its schedule and is safe
// for concurrent use.
type Calculator struct {
	schedule FeeSchedule
}

func NewCalculator(schedule FeeSchedule) *Calculator {
	return &Calculator{schedule: schedule}
}

// Schedule returns the fee schedule the calculator was built with.
func (c *Calculator) Schedule() FeeSchedule {
	return c.schedule
}

// MonthlyFeeForWeeks applies the bracket: four-week months cost the four-week
// price, every other month costs the five-week price. There is no per-week rate.
func (c *Calculator) MonthlyFeeForWeeks(weeks int) int64 {
	if weeks == 4 {
		return c.schedule.MonthlyFeeFourWeeks
	}
	return c.schedule.MonthlyFeeFiveWeeks
}

// CalculateMonthlyFee quotes the membership fee for a calendar month.
func (c *Calculator) CalculateMonthlyFee(year, month int) (MonthlyFee, error) {
	if month < 1 || month > 12 {
		return MonthlyFee{}, apperr.Validation("month must be between 1 and 12, got %d", month)
	}
	if year < 1 {
		return MonthlyFee{}, apperr.Validation("invalid year %d", year)
	}

	weeks := CountWeeksInCalendarMonth(year, time.Month(month), c.schedule.Weekday)
	if weeks == 0 {
		return MonthlyFee{}, apperr.Validation("session weekday %d is not a day of the week", int(c.schedule.Weekday))
	}
	first, _ := MonthBounds(year, time.Month(month))

	return MonthlyFee{
		Year:         year,
		Month:        month,
		Amount:       c.MonthlyFeeForWeeks(weeks),
		WeeksInMonth: weeks,
		DueDate:      first,
		Description:  fmt.Sprintf("Membership fee %s %d (%d sessions)", time.Month(month), year, weeks),
	}, nil
}

// CalculateSessionPayment prices one member's attendance. An active membership
// for the session's month waives the session fee; shuttlecocks are always charged.
func (c *Calculator) CalculateSessionPayment(memberID string, sessionDate time.Time, shuttlecocksUsed int, status MembershipStatus) (SessionPaymentResult, error) {
	if memberID == "" {
		return SessionPaymentResult{}, apperr.Validation("member_id is required")
	}
	if shuttlecocksUsed < 0 {
		return SessionPaymentResult{}, apperr.Validation("shuttlecocks used cannot be negative, got %d", shuttlecocksUsed)
	}
	sessionDate = DateOf(sessionDate)

	active := status.CoversDate(sessionDate)
	sessionFee := c.schedule.SessionFee
	if active {
		sessionFee = 0
	}
	shuttlecockFee := int64(shuttlecocksUsed) * c.schedule.ShuttlecockPrice

	result := SessionPaymentResult{
		MemberID:         memberID,
		SessionDate:      sessionDate,
		ShuttlecocksUsed: shuttlecocksUsed,
		SessionFee:       sessionFee,
		ShuttlecockFee:   shuttlecockFee,
		TotalFee:         sessionFee + shuttlecockFee,
		HasMembership:    active,
	}
	if active {
		result.MembershipID = status.SourcePaymentID
	}
	return result, nil
}

// CalculateGroupSessionPayments prices every member of a roster, preserving the
// roster order. membershipsByMember holds each member's membership history.
func (c *Calculator) CalculateGroupSessionPayments(memberIDs []string, sessionDate time.Time, shuttlecocksUsed int, membershipsByMember map[string][]models.MembershipPayment) ([]SessionPaymentResult, error) {
	results := make([]SessionPaymentResult, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		status := CheckMembershipStatus(memberID, membershipsByMember[memberID], sessionDate)
		result, err := c.CalculateSessionPayment(memberID, sessionDate, shuttlecocksUsed, status)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// GeneratePaymentSummary totals the results of one session.
func GeneratePaymentSummary(results []SessionPaymentResult, sessionDate time.Time) PaymentSummary {
	memberships := lo.CountBy(results, func(r SessionPaymentResult) bool { return r.HasMembership })
	return PaymentSummary{
		SessionDate:          DateOf(sessionDate),
		TotalRevenue:         lo.SumBy(results, func(r SessionPaymentResult) int64 { return r.TotalFee }),
		TotalSessionFees:     lo.SumBy(results, func(r SessionPaymentResult) int64 { return r.SessionFee }),
		TotalShuttlecockFees: lo.SumBy(results, func(r SessionPaymentResult) int64 { return r.ShuttlecockFee }),
		MemberCount:          len(results),
		MembershipCount:      memberships,
		NonMembershipCount:   len(results) - memberships,
	}
}
