/*
holidays.go - Recurring holiday closures

PURPOSE:
  Holiday rules describe dates the hall closes (or closes early) every
  year. They expand into dated occurrences and from there into calendar
  overrides, so resolution needs no holiday knowledge of its own.

RULE TYPES:
  EASTER       Western Easter Sunday (anonymous Gregorian computus)
  FIXED_DATE   month + day, e.g. Christmas on 12/25
  NTH_WEEKDAY  month + weekday (0 = Sunday) + week (1..5),
               e.g. Thanksgiving on the 4th Thursday of November

  A rule produces nothing for years outside [start_year, end_year] and
  for dates that do not exist that year (Feb 29, a 5th weekday the
  month lacks).

CLOSURES:
  CLOSED       becomes a CLOSED override carrying the holiday name
  CLOSE_EARLY  becomes a CLOSE_EARLY override with until_time = close_time

SEE ALSO:
  - calendar.go: How the generated overrides resolve
  - workflow/opsschema.go: Rule storage and ApplyHolidays on the draft
*/
package opsschema

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/hallops/generic"
)

// Holiday rule types.
const (
	HolidayEaster     = "EASTER"
	HolidayFixedDate  = "FIXED_DATE"
	HolidayNthWeekday = "NTH_WEEKDAY"
)

// HolidayRule is one recurring closure. Closure is OverrideClosed or
// OverrideCloseEarly.
type HolidayRule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	RuleType  string `json:"rule_type"`
	Month     int    `json:"month,omitempty"`
	Day       int    `json:"day,omitempty"`
	Weekday   int    `json:"weekday,omitempty"`
	Week      int    `json:"week,omitempty"`
	Closure   string `json:"closure_type"`
	CloseTime string `json:"close_time,omitempty"`
	StartYear int    `json:"start_year,omitempty"`
	EndYear   int    `json:"end_year,omitempty"`
}

// HolidayOccurrence is a rule landing on a concrete date.
type HolidayOccurrence struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Closure   string `json:"closure_type"`
	CloseTime string `json:"close_time,omitempty"`
	RuleID    string `json:"rule_id"`
}

// DefaultHolidayRules are used until an admin saves their own list.
func DefaultHolidayRules() []HolidayRule {
	return []HolidayRule{
		{ID: "easter", Name: "Easter", RuleType: HolidayEaster, Closure: OverrideClosed},
		{ID: "thanksgiving", Name: "Thanksgiving", RuleType: HolidayNthWeekday,
			Month: 11, Weekday: int(time.Thursday), Week: 4, Closure: OverrideClosed},
		{ID: "christmas-eve", Name: "Christmas Eve", RuleType: HolidayFixedDate,
			Month: 12, Day: 24, Closure: OverrideCloseEarly, CloseTime: "17:00"},
		{ID: "christmas", Name: "Christmas", RuleType: HolidayFixedDate,
			Month: 12, Day: 25, Closure: OverrideClosed},
	}
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

// EasterSunday returns Western Easter for year at UTC midnight.
func EasterSunday(year int) time.Time {
	a := year % 19
	b, c := year/100, year%100
	d, e := b/4, b%4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i, k := c/4, c%4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	n := h + l - 7*m + 114
	return time.Date(year, time.Month(n/31), n%31+1, 0, 0, 0, 0, time.UTC)
}

// NthWeekday returns the week-th weekday of month, or false when that
// month has no such day.
func NthWeekday(year int, month time.Month, weekday time.Weekday, week int) (time.Time, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	day := first.AddDate(0, 0, offset+(week-1)*7)
	return day, day.Month() == month
}

// Occurrence returns the date r falls on in year.
func (r HolidayRule) Occurrence(year int) (time.Time, bool) {
	if (r.StartYear != 0 && year < r.StartYear) || (r.EndYear != 0 && year > r.EndYear) {
		return time.Time{}, false
	}
	switch r.RuleType {
	case HolidayEaster:
		return EasterSunday(year), true
	case HolidayFixedDate:
		day := time.Date(year, time.Month(r.Month), r.Day, 0, 0, 0, 0, time.UTC)
		return day, day.Month() == time.Month(r.Month) && day.Day() == r.Day
	case HolidayNthWeekday:
		return NthWeekday(year, time.Month(r.Month), time.Weekday(r.Weekday), r.Week)
	}
	return time.Time{}, false
}

// =============================================================================
// EXPANSION
// =============================================================================

// HolidayOccurrences expands rules over every year rng touches and keeps
// the dates inside it, ordered by date then name.
func HolidayOccurrences(rules []HolidayRule, rng generic.DateRange) []HolidayOccurrence {
	var out []HolidayOccurrence
	for year := rng.Start.Year(); year <= rng.End.Year(); year++ {
		for _, r := range rules {
			day, ok := r.Occurrence(year)
			if !ok || !rng.Contains(day) {
				continue
			}
			out = append(out, HolidayOccurrence{
				Date:      generic.FormatDate(day),
				Name:      r.Name,
				Closure:   r.Closure,
				CloseTime: r.CloseTime,
				RuleID:    r.ID,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// HolidayOverrideID is the override id used for rule on date. Stable ids
// make ApplyHolidays idempotent.
func HolidayOverrideID(ruleID, date string) string {
	return "holiday-" + ruleID + "-" + date
}

// Override converts the occurrence into a calendar override.
func (o HolidayOccurrence) Override() Override {
	ov := Override{ID: HolidayOverrideID(o.RuleID, o.Date), Kind: o.Closure, Reason: o.Name}
	if o.Closure == OverrideCloseEarly {
		ov.UntilTime = o.CloseTime
	}
	return ov
}

// ApplyHolidays appends an override for every occurrence inside the
// calendar range. Occurrences whose override is already present are
// skipped. The added overrides are returned.
func ApplyHolidays(cal *Calendar, rules []HolidayRule) ([]Override, error) {
	if err := ValidateHolidayRules(rules); err != nil {
		return nil, err
	}
	rng, err := generic.ParseDateRange(cal.Range.Start, cal.Range.End)
	if err != nil {
		return nil, generic.Precondition("apply_holidays", err.Error(),
			"start", cal.Range.Start, "end", cal.Range.End)
	}
	var added []Override
	for _, occ := range HolidayOccurrences(rules, rng) {
		ov := occ.Override()
		if hasOverride(cal, occ.Date, ov.ID) {
			continue
		}
		AddOverride(cal, occ.Date, ov)
		added = append(added, ov)
	}
	return added, nil
}

func hasOverride(cal *Calendar, date, id string) bool {
	for _, o := range cal.Overrides[date] {
		if o.ID == id {
			return true
		}
	}
	return false
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateHolidayRules checks every rule and returns a
// *generic.ValidationError listing all problems, or nil.
func ValidateHolidayRules(rules []HolidayRule) error {
	var issues []generic.Issue
	add := func(p generic.Path, code, format string, args ...any) {
		issues = append(issues, generic.Issue{Path: p, Code: code, Message: fmt.Sprintf(format, args...)})
	}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		p := generic.Path{"holiday_rules", i}
		if r.ID == "" {
			add(generic.NewPath(p, "id"), CodeRequired, "is required")
		} else if seen[r.ID] {
			add(generic.NewPath(p, "id"), CodeDuplicateID, "duplicate id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Name == "" {
			add(generic.NewPath(p, "name"), CodeRequired, "is required")
		}

		switch r.RuleType {
		case HolidayEaster:
		case HolidayFixedDate:
			if r.Month < 1 || r.Month > 12 || r.Day < 1 || r.Day > 31 {
				add(p, CodeRequired, "fixed date rules require month 1-12 and day 1-31")
			}
		case HolidayNthWeekday:
			if r.Month < 1 || r.Month > 12 || r.Weekday < 0 || r.Weekday > 6 || r.Week < 1 || r.Week > 5 {
				add(p, CodeRequired, "nth weekday rules require month 1-12, weekday 0-6 and week 1-5")
			}
		default:
			add(generic.NewPath(p, "rule_type"), CodeInvalidEnum, "%q is not a holiday rule type", r.RuleType)
		}

		switch r.Closure {
		case OverrideClosed:
		case OverrideCloseEarly:
			if !generic.IsValidHHMM(r.CloseTime) {
				add(generic.NewPath(p, "close_time"), CodeInvalidTime, "close early rules require close_time as HH:MM")
			}
		default:
			add(generic.NewPath(p, "closure_type"), CodeInvalidEnum, "%q must be %s or %s",
				r.Closure, OverrideClosed, OverrideCloseEarly)
		}

		if r.StartYear != 0 && r.EndYear != 0 && r.EndYear < r.StartYear {
			add(generic.NewPath(p, "end_year"), CodeInvalidRange, "end year %d is before start year %d", r.EndYear, r.StartYear)
		}
	}
	if len(issues) > 0 {
		return &generic.ValidationError{Issues: issues}
	}
	return nil
}
