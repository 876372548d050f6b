package opsschema_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/opsschema"
)

func compile(t *testing.T, s *opsschema.Schema, opts opsschema.CompileOptions) (*opsschema.Compiled, []opsschema.ScheduleSession) {
	t.Helper()
	out, err := opsschema.Compile(s, opts)
	require.NoError(t, err)
	var sessions []opsschema.ScheduleSession
	require.NoError(t, json.Unmarshal(out.Schedule, &sessions))
	return out, sessions
}

func sessionByID(sessions []opsschema.ScheduleSession, id string) (opsschema.ScheduleSession, bool) {
	for _, s := range sessions {
		if s.ID == id {
			return s, true
		}
	}
	return opsschema.ScheduleSession{}, false
}

func TestCompile_RejectsInvalidSchema(t *testing.T) {
	s := hallSchema()
	s.Timeline.FlowSegments[0].RateCardID = "rc-9"

	_, err := opsschema.Compile(s, opsschema.CompileOptions{})

	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestCompile_Deterministic(t *testing.T) {
	s := hallSchema()
	s.Calendar.Assignments["2025-01-15"] = opsschema.Assignment{Status: opsschema.AssignmentOpen, ProfileID: "p-special"}
	opts := opsschema.CompileOptions{PreviousPricing: json.RawMessage(`{"faqs":[{"q":"Parking?"}]}`)}

	first, err := opsschema.Compile(s, opts)
	require.NoError(t, err)
	second, err := opsschema.Compile(s, opts)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.Equal(t, string(a), string(b))
}

func TestCompile_PricingSessions(t *testing.T) {
	out, _ := compile(t, hallSchema(), opsschema.CompileOptions{})

	sessions := out.Pricing.Daytime.Sessions
	require.Len(t, sessions, 3)
	assert.Equal(t, []string{"seg-morning", "seg-afternoon", "seg-evening"},
		[]string{sessions[0].ID, sessions[1].ID, sessions[2].ID})

	morning := sessions[0]
	assert.Equal(t, "Morning Session", morning.Name)
	assert.Equal(t, "9:00 AM – 12:00 PM", morning.TimeRange)
	assert.Equal(t, "clock", morning.Icon)
	assert.Equal(t, "Rate Card: Daytime", morning.Description)
	assert.Equal(t, []opsschema.Machine{{Description: "Value Pack", Price: "$20", Type: "bundle", Savings: "Save $5"}}, morning.Machines)
	assert.JSONEq(t, `{"minSpend":"$1","minPaperCards":1}`, string(morning.PaperRules))

	assert.Equal(t, "5:00 PM – 2:00 AM", sessions[2].TimeRange)
}

func TestCompile_EveningStartFallbacks(t *testing.T) {
	// GIVEN: an overlay at 22:00
	out, _ := compile(t, hallSchema(), opsschema.CompileOptions{})
	assert.Equal(t, "10:00 PM", out.Pricing.Evening.StartTime)

	// GIVEN: no overlays but a previous start time
	s := hallSchema()
	s.Timeline.OverlayEvents = nil
	s.LogicTriggers = s.LogicTriggers[:3]
	s.DayProfiles[1].OverlayEventIDs = nil
	out, _ = compile(t, s, opsschema.CompileOptions{
		PreviousPricing: json.RawMessage(`{"evening":{"startTime":"18:45","valueProposition":"Best value in town"}}`),
	})
	assert.Equal(t, "6:45 PM", out.Pricing.Evening.StartTime)
	assert.Equal(t, "Best value in town", out.Pricing.Evening.ValueProposition)

	// GIVEN: neither
	out, _ = compile(t, s, opsschema.CompileOptions{})
	assert.Equal(t, "7:30 PM", out.Pricing.Evening.StartTime)
}

func TestCompile_CarriesPreviousFields(t *testing.T) {
	prev := json.RawMessage(`{
		"daytime": {"paperRules": {"minSpend": "$3", "minPaperCards": 2}, "jackpots": [{"name": "Progressive"}]},
		"sunday": {"title": "Family Sunday"},
		"faqs": [{"q": "Parking?", "a": "Free"}]
	}`)

	out, _ := compile(t, hallSchema(), opsschema.CompileOptions{PreviousPricing: prev})

	assert.JSONEq(t, `{"minSpend":"$3","minPaperCards":2}`, string(out.Pricing.Daytime.Sessions[0].PaperRules))
	assert.JSONEq(t, `[{"name":"Progressive"}]`, string(out.Pricing.Daytime.Jackpots))
	assert.JSONEq(t, `{"title":"Family Sunday"}`, string(out.Pricing.Sunday))
	assert.JSONEq(t, `[{"q":"Parking?","a":"Free"}]`, string(out.Pricing.FAQs))
	assert.JSONEq(t, `{"minSpendAdvanced":"$2+","maxPaperCards":"Unlimited"}`, string(out.Pricing.Daytime.Sessions[0].PaperRulesAdvanced))
}

func TestCompile_UnreadablePreviousPricingIsLogged(t *testing.T) {
	// GIVEN: a previous document whose evening start is not a string
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	prev := json.RawMessage(`{"evening":{"startTime":1930},"faqs":[{"q":"Parking?"}]}`)

	out, _ := compile(t, hallSchema(), opsschema.CompileOptions{PreviousPricing: prev, Log: &log})

	// THEN: nothing is carried over and the problem is reported
	assert.JSONEq(t, `[]`, string(out.Pricing.FAQs))
	assert.Contains(t, buf.String(), "previous pricing document unreadable")
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestCompile_RecurringSchedule(t *testing.T) {
	_, sessions := compile(t, hallSchema(), opsschema.CompileOptions{})

	// Five weekdays of three segments plus Saturday's segment and overlay.
	require.Len(t, sessions, 17)

	mon, ok := sessionByID(sessions, "RECURRING-Mon-seg-morning")
	require.True(t, ok)
	assert.Equal(t, "Morning Session", mon.Name)
	assert.Equal(t, "Morning", mon.Category)
	assert.Equal(t, []string{"Mon"}, mon.AvailableDays)
	assert.Equal(t, "rc-day", mon.PricingSessionID)
	assert.Equal(t, "Upcoming", mon.Status)
	assert.Equal(t, 100, mon.TotalSeats)
	assert.Empty(t, mon.OverrideDate)

	late, ok := sessionByID(sessions, "RECURRING-Sat-ev-late")
	require.True(t, ok)
	assert.Equal(t, "Special", late.GameType)
	assert.Equal(t, "Evening", late.Category)

	// Sorted by position on the operating day.
	assert.Equal(t, "09:00", sessions[0].StartTime)
	assert.Equal(t, "22:00", sessions[len(sessions)-1].StartTime)
}

func TestCompile_OverlaysAreSpecialWithoutHardTicket(t *testing.T) {
	// GIVEN: the Saturday overlay is not a hard-ticket event
	s := hallSchema()
	s.Timeline.OverlayEvents[0].IsHardTicket = false

	_, sessions := compile(t, s, opsschema.CompileOptions{})

	// THEN: it is still tagged as a special game, segments stay regular
	late, ok := sessionByID(sessions, "RECURRING-Sat-ev-late")
	require.True(t, ok)
	assert.Equal(t, "Special", late.GameType)
	seg, ok := sessionByID(sessions, "RECURRING-Sat-seg-evening")
	require.True(t, ok)
	assert.Equal(t, "Regular", seg.GameType)
}

func TestCompile_DateSpecificEntries(t *testing.T) {
	s := hallSchema()
	s.Calendar.Assignments["2025-01-15"] = opsschema.Assignment{Status: opsschema.AssignmentOpen, ProfileID: "p-special"}
	s.Calendar.Overrides["2025-01-20"] = []opsschema.Override{
		{ID: "ovr-1", Kind: opsschema.OverrideProfileSwap, ProfileID: "p-special", Reason: "MLK Day"},
	}

	_, sessions := compile(t, s, opsschema.CompileOptions{})

	dated, ok := sessionByID(sessions, "2025-01-15-seg-evening")
	require.True(t, ok)
	assert.Equal(t, "Evening Session (Override)", dated.Name)
	assert.Equal(t, "2025-01-15", dated.OverrideDate)
	assert.Empty(t, dated.AvailableDays)

	swapped, ok := sessionByID(sessions, "2025-01-20-ev-late-ovr-1")
	require.True(t, ok)
	assert.Equal(t, "2025-01-20", swapped.OverrideDate)
	assert.Equal(t, "MLK Day", swapped.Note)
}

func TestCompile_EmptyScheduleFallsBack(t *testing.T) {
	// GIVEN: a schema where nothing is ever open
	s := hallSchema()
	for code := range s.Calendar.WeekdayDefaults {
		s.Calendar.WeekdayDefaults[code] = opsschema.Assignment{Status: opsschema.AssignmentClosed}
	}

	// THEN: the previous schedule is kept
	prev := json.RawMessage(`[{"id":"legacy-1","name":"Legacy Bingo"}]`)
	out, err := opsschema.Compile(s, opsschema.CompileOptions{PreviousSchedule: prev})
	require.NoError(t, err)
	assert.JSONEq(t, string(prev), string(out.Schedule))

	// THEN: without one the schedule is empty
	out, err = opsschema.Compile(s, opsschema.CompileOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out.Schedule))
}

func TestInferCategory(t *testing.T) {
	assert.Equal(t, "Morning", opsschema.InferCategory("Early Morning Bingo"))
	assert.Equal(t, "Afternoon", opsschema.InferCategory("AFTERNOON"))
	assert.Equal(t, "Evening", opsschema.InferCategory("Friday Night Lights"))
	assert.Equal(t, "Regular", opsschema.InferCategory("Matinee"))
}
