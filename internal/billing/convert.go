package billing

import (
	"fmt"
	"strings"
	"time"

	"badminton_club/internal/apperr"
	"badminton_club/internal/models"
)

// Conversion is the outcome of switching a payment's billing mode. Payment is
// the updated copy; the input record is never touched.
type Conversion struct {
	Payment        models.Payment     `json:"payment"`
	PreviousAmount int64              `json:"previous_amount"`
	PreviousType   models.PaymentType `json:"previous_type"`
	TargetYear     int                `json:"target_year"`
	TargetMonth    int                `json:"target_month"`
	WeeksInMonth   int                `json:"weeks_in_month,omitempty"`
}

// Converter switches pending payments between session and membership billing,
// keeping the record's ID and due date so its grouping is unchanged.
type Converter struct {
	calc *Calculator
	now  func() time.Time
	// monthFromDueDate bills the payment's own due-date month instead of the
	// month of now.
	monthFromDueDate bool
}

type ConverterOption func(*Converter)

// WithClock overrides the reference "today" used to pick the billed month.
func WithClock(now func() time.Time) ConverterOption {
	return func(c *Converter) { c.now = now }
}

// WithMonthFromDueDate makes conversions bill the month of the payment's due date.
func WithMonthFromDueDate(enabled bool) ConverterOption {
	return func(c *Converter) { c.monthFromDueDate = enabled }
}

func NewConverter(calc *Calculator, opts ...ConverterOption) *Converter {
	c := &Converter{calc: calc, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TargetPeriod is the (year, month) a conversion of p bills.
func (c *Converter) TargetPeriod(p models.Payment) (int, time.Month) {
	ref := c.now()
	if c.monthFromDueDate {
		ref = p.DueDate
	}
	return ref.Year(), ref.Month()
}

// BilledPeriod is the membership month a monthly payment covers: the month
// recorded by its conversion, or TargetPeriod for records that carry none.
func (c *Converter) BilledPeriod(p models.Payment) (int, time.Month) {
	if year, month, ok := p.BilledPeriod(); ok {
		return year, month
	}
	return c.TargetPeriod(p)
}

// SessionToMembership turns a pending session payment into the monthly
// membership fee. The billed month comes from the converter's clock unless
// WithMonthFromDueDate is set, and is recorded on the payment. The shuttlecock
// charge stays on the record.
func (c *Converter) SessionToMembership(p models.Payment) (Conversion, error) {
	sessionFee := c.calc.schedule.SessionFee
	if p.Status != models.PaymentStatusPending {
		return Conversion{}, apperr.Precondition("only pending payments can be converted, payment is %s", p.Status)
	}
	if p.Amount < sessionFee {
		return Conversion{}, apperr.Precondition("payment amount %d is below the session fee %d", p.Amount, sessionFee)
	}

	year, month := c.TargetPeriod(p)
	fee, err := c.calc.CalculateMonthlyFee(year, int(month))
	if err != nil {
		return Conversion{}, err
	}

	out := p
	out.Type = models.PaymentTypeMonthly
	out.Amount = fee.Amount + p.ShuttlecockFee
	out.SessionFee = fee.Amount
	out.BilledYear = year
	out.BilledMonth = int(month)
	out.Notes = appendNote(p.Notes, fmt.Sprintf("Converted to membership for %s %d (%d sessions): %d, was %d",
		month, year, fee.WeeksInMonth, out.Amount, p.Amount))

	return Conversion{
		Payment:        out,
		PreviousAmount: p.Amount,
		PreviousType:   p.Type,
		TargetYear:     year,
		TargetMonth:    int(month),
		WeeksInMonth:   fee.WeeksInMonth,
	}, nil
}

// MembershipToSession turns a pending monthly payment back into a flat session
// fee plus its shuttlecock charge. The target period is the month the payment
// was billed for, not the current one.
func (c *Converter) MembershipToSession(p models.Payment) (Conversion, error) {
	if p.Type != models.PaymentTypeMonthly {
		return Conversion{}, apperr.Precondition("only monthly payments can be converted to session billing, payment is %s", p.Type)
	}
	if p.Status != models.PaymentStatusPending {
		return Conversion{}, apperr.Precondition("only pending payments can be converted, payment is %s", p.Status)
	}

	sessionFee := c.calc.schedule.SessionFee
	year, month := c.BilledPeriod(p)

	out := p
	out.Type = models.PaymentTypeDaily
	out.Amount = sessionFee + p.ShuttlecockFee
	out.SessionFee = sessionFee
	out.BilledYear = 0
	out.BilledMonth = 0
	out.Notes = appendNote(p.Notes, fmt.Sprintf("Converted to session billing: %d, was membership %d", out.Amount, p.Amount))

	return Conversion{
		Payment:        out,
		PreviousAmount: p.Amount,
		PreviousType:   p.Type,
		TargetYear:     year,
		TargetMonth:    int(month),
	}, nil
}

func appendNote(notes, line string) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
