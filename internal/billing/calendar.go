package billing

import (
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

// DateOf truncates t to its calendar date at 00:00 UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// EnumerateWeeklySessions returns every date falling on weekday between start and
// end, both inclusive, in ascending order. An inverted range or a weekday
// outside Sunday..Saturday yields no dates.
func EnumerateWeeklySessions(start, end time.Time, weekday time.Weekday) []time.Time {
	start, end = DateOf(start), DateOf(end)
	byday, ok := rruleWeekdays[weekday]
	if !ok || start.After(end) {
		return []time.Time{}
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   start,
		Until:     end,
		Byweekday: []rrule.Weekday{byday},
	})
	if err != nil {
		return []time.Time{}
	}

	dates := rule.All()
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		out = append(out, DateOf(d))
	}
	return out
}

// MonthBounds returns the first and last calendar day of a month.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// CountWeeksInCalendarMonth counts the sessions held on weekday in the month.
// The result is 4 or 5 for a valid weekday and 0 otherwise.
func CountWeeksInCalendarMonth(year int, month time.Month, weekday time.Weekday) int {
	first, last := MonthBounds(year, month)
	return len(EnumerateWeeklySessions(first, last, weekday))
}
