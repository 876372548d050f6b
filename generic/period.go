package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// DATES - ISO calendar days (YYYY-MM-DD)
// =============================================================================

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// WeekdayCodes are indexed by time.Weekday (0 = Sunday).
var WeekdayCodes = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// ParseDate parses a strict YYYY-MM-DD date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// IsValidDate reports whether s is a real YYYY-MM-DD date.
func IsValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekdayCode returns the three-letter code for t ("Sun".."Sat").
func WeekdayCode(t time.Time) string {
	return WeekdayCodes[t.Weekday()]
}

// WeekdayIndex returns 0..6 for a code, or -1.
func WeekdayIndex(code string) int {
	for i, c := range WeekdayCodes {
		if c == code {
			return i
		}
	}
	return -1
}

// AddDays shifts a YYYY-MM-DD string by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// =============================================================================
// DATE RANGE - Inclusive span of calendar days
// =============================================================================

// DateRange is an inclusive [Start, End] span of days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange parses both bounds and rejects End before Start.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("invalid range: %s is before %s", end, start)
	}
	return DateRange{Start: s, End: e}, nil
}

// Contains returns true if t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Len returns the number of days in the range.
func (r DateRange) Len() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Days returns every day in the range, in order.
func (r DateRange) Days() []time.Time {
	days := make([]time.Time, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// String returns a string representation of the range.
func (r DateRange) String() string {
	return "[" + FormatDate(r.Start) + ", " + FormatDate(r.End) + "]"
}
