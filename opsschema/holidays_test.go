package opsschema_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/opsschema"
)

func dateRange(t *testing.T, start, end string) generic.DateRange {
	t.Helper()
	rng, err := generic.ParseDateRange(start, end)
	require.NoError(t, err)
	return rng
}

func TestEasterSunday(t *testing.T) {
	tests := []struct {
		year int
		want string
	}{
		{2000, "2000-04-23"},
		{2019, "2019-04-21"},
		{2024, "2024-03-31"},
		{2025, "2025-04-20"},
		{2026, "2026-04-05"},
		{2038, "2038-04-25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, generic.FormatDate(opsschema.EasterSunday(tt.year)), tt.year)
	}
}

func TestNthWeekday(t *testing.T) {
	tests := []struct {
		name    string
		year    int
		month   time.Month
		weekday time.Weekday
		week    int
		want    string
		ok      bool
	}{
		{"thanksgiving 2025", 2025, time.November, time.Thursday, 4, "2025-11-27", true},
		{"thanksgiving 2024", 2024, time.November, time.Thursday, 4, "2024-11-28", true},
		{"first day is the weekday", 2025, time.November, time.Saturday, 1, "2025-11-01", true},
		{"fifth thursday exists", 2025, time.January, time.Thursday, 5, "2025-01-30", true},
		{"fifth thursday missing", 2025, time.February, time.Thursday, 5, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			day, ok := opsschema.NthWeekday(tt.year, tt.month, tt.weekday, tt.week)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, generic.FormatDate(day))
			}
		})
	}
}

func TestHolidayOccurrences_Defaults(t *testing.T) {
	occ := opsschema.HolidayOccurrences(opsschema.DefaultHolidayRules(), dateRange(t, "2025-01-01", "2025-12-31"))

	require.Len(t, occ, 4)
	assert.Equal(t, opsschema.HolidayOccurrence{Date: "2025-04-20", Name: "Easter", Closure: opsschema.OverrideClosed, RuleID: "easter"}, occ[0])
	assert.Equal(t, "2025-11-27", occ[1].Date)
	assert.Equal(t, "Thanksgiving", occ[1].Name)
	assert.Equal(t, opsschema.HolidayOccurrence{
		Date: "2025-12-24", Name: "Christmas Eve", Closure: opsschema.OverrideCloseEarly,
		CloseTime: "17:00", RuleID: "christmas-eve",
	}, occ[2])
	assert.Equal(t, "2025-12-25", occ[3].Date)
}

func TestHolidayOccurrences_SpansYearsAndClipsToRange(t *testing.T) {
	occ := opsschema.HolidayOccurrences(opsschema.DefaultHolidayRules(), dateRange(t, "2024-12-20", "2025-01-05"))

	require.Len(t, occ, 2)
	assert.Equal(t, "2024-12-24", occ[0].Date)
	assert.Equal(t, "2024-12-25", occ[1].Date)
}

func TestHolidayRule_YearBoundsAndMissingDates(t *testing.T) {
	rules := []opsschema.HolidayRule{
		{ID: "anniv", Name: "Anniversary", RuleType: opsschema.HolidayFixedDate, Month: 6, Day: 1,
			Closure: opsschema.OverrideClosed, StartYear: 2026, EndYear: 2027},
		{ID: "leap", Name: "Leap Day", RuleType: opsschema.HolidayFixedDate, Month: 2, Day: 29,
			Closure: opsschema.OverrideClosed},
	}

	occ := opsschema.HolidayOccurrences(rules, dateRange(t, "2024-01-01", "2028-12-31"))

	var dates []string
	for _, o := range occ {
		dates = append(dates, o.Date)
	}
	assert.Equal(t, []string{"2024-02-29", "2026-06-01", "2027-06-01", "2028-02-29"}, dates)
}

func TestApplyHolidays(t *testing.T) {
	// GIVEN: a full-year calendar
	s := hallSchema()
	s.Calendar.Range = opsschema.DateSpan{Start: "2025-01-01", End: "2025-12-31"}

	// WHEN: the default rules are applied
	added, err := opsschema.ApplyHolidays(&s.Calendar, opsschema.DefaultHolidayRules())

	// THEN: one override per holiday, and the schema stays valid
	require.NoError(t, err)
	require.Len(t, added, 4)
	assert.Equal(t, "holiday-easter-2025-04-20", added[0].ID)
	assert.NoError(t, opsschema.ValidateSchema(s))

	thanksgiving := resolve(t, s, "2025-11-27")
	assert.False(t, thanksgiving.IsOpen())
	assert.Equal(t, "Thanksgiving", thanksgiving.ClosedReason)

	eve := resolve(t, s, "2025-12-24")
	assert.True(t, eve.IsOpen())
	assert.Equal(t, "17:00", eve.EarlyCloseTime)
	assert.Equal(t, "Christmas Eve", eve.EarlyCloseReason)

	// WHEN: applied again
	added, err = opsschema.ApplyHolidays(&s.Calendar, opsschema.DefaultHolidayRules())

	// THEN: nothing is duplicated
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Len(t, s.Calendar.Overrides["2025-12-25"], 1)
}

func TestApplyHolidays_RejectsBadRules(t *testing.T) {
	s := hallSchema()
	rules := []opsschema.HolidayRule{
		{ID: "x", Name: "Half Day", RuleType: opsschema.HolidayFixedDate, Month: 7, Day: 3, Closure: opsschema.OverrideCloseEarly},
		{ID: "x", Name: "Bad", RuleType: "LUNAR", Closure: "OPEN"},
	}

	_, err := opsschema.ApplyHolidays(&s.Calendar, rules)

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrValidation))
	var verr *generic.ValidationError
	require.True(t, errors.As(err, &verr))
	codes := map[string]int{}
	for _, i := range verr.Issues {
		codes[i.Code]++
	}
	assert.Equal(t, 1, codes[opsschema.CodeInvalidTime], "close_time missing")
	assert.Equal(t, 1, codes[opsschema.CodeDuplicateID])
	assert.Equal(t, 2, codes[opsschema.CodeInvalidEnum], "rule type and closure")
	assert.Empty(t, s.Calendar.Overrides)
}
