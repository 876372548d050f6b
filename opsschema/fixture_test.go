package opsschema_test

import (
	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/opsschema"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// hallSchema is a valid schema for January 2025: three daytime segments
// from 09:00 to 02:00, a late hard-ticket overlay on Saturdays, Sundays
// closed.
func hallSchema() *opsschema.Schema {
	standard := opsschema.Assignment{Status: opsschema.AssignmentOpen, ProfileID: "p-standard"}
	return &opsschema.Schema{
		SchemaVersion: "2.0",
		Meta: opsschema.Meta{
			Name:          "Main Hall",
			Status:        opsschema.StatusDraft,
			Currency:      "USD",
			Timezone:      "America/Chicago",
			SchemaVersion: "2.0",
		},
		Definitions: opsschema.Definitions{
			InventoryTiers: []opsschema.InventoryTier{{ID: "tier-paper", Name: "Paper Pack", Price: 5}},
			Bundles: []opsschema.Bundle{
				{ID: "b-value", Name: "Value Pack", Items: []string{"tier-paper"}, Price: 20, DiscountLabel: "Save $5"},
			},
			RateCards: []opsschema.RateCard{
				{ID: "rc-day", Name: "Daytime", Category: "standard", YieldConfiguration: opsschema.YieldConfiguration{
					Mode: opsschema.YieldFixedRate, ActiveBundles: []string{"b-value"},
				}},
				{ID: "rc-eve", Name: "Evening", YieldConfiguration: opsschema.YieldConfiguration{
					Mode: opsschema.YieldStandardRate, ActiveBundles: []string{"b-value"},
				}},
			},
		},
		Timeline: opsschema.Timeline{
			OperationalHours: opsschema.OperationalHours{Start: "09:00", End: "02:00", IsOpen: true},
			FlowSegments: []opsschema.FlowSegment{
				{ID: "seg-morning", Label: "Morning Session", TimeStart: "09:00", TimeEnd: "12:00", RateCardID: "rc-day"},
				{ID: "seg-afternoon", Label: "Afternoon Session", TimeStart: "12:00", TimeEnd: "17:00", RateCardID: "rc-day"},
				{ID: "seg-evening", Label: "Evening Session", TimeStart: "17:00", TimeEnd: "02:00", RateCardID: "rc-eve"},
			},
			OverlayEvents: []opsschema.OverlayEvent{
				{ID: "ev-late", Label: "Late Night Special", TimeStart: "22:00", TimeEnd: "01:00", IsHardTicket: true},
			},
		},
		LogicTriggers: []opsschema.Trigger{
			{ID: "t-doors", TriggerTime: "18:00", Type: opsschema.TriggerDoorsOpen},
			{ID: "t-close", TriggerTime: "18:30", Type: opsschema.TriggerSalesWindowClose},
			{ID: "t-start", TriggerTime: "19:00", Type: opsschema.TriggerSessionStart},
			{ID: "t-reset", TriggerTime: "01:00", Type: opsschema.TriggerHardReset, TargetEvent: "ev-late"},
		},
		DayProfiles: []opsschema.DayProfile{
			{ID: "p-standard", Name: "Standard Day", Category: opsschema.CategoryWeekday,
				SegmentIDs: []string{"seg-morning", "seg-afternoon", "seg-evening"}},
			{ID: "p-special", Name: "Special Night", Category: opsschema.CategorySpecial,
				SegmentIDs: []string{"seg-evening"}, OverlayEventIDs: []string{"ev-late"}},
		},
		Calendar: opsschema.Calendar{
			Range: opsschema.DateSpan{Start: "2025-01-01", End: "2025-01-31"},
			WeekdayDefaults: map[string]opsschema.Assignment{
				"Mon": standard, "Tue": standard, "Wed": standard, "Thu": standard, "Fri": standard,
				"Sat": {Status: opsschema.AssignmentOpen, ProfileID: "p-special"},
				"Sun": {Status: opsschema.AssignmentClosed},
			},
			Assignments: map[string]opsschema.Assignment{},
			Overrides:   map[string][]opsschema.Override{},
		},
	}
}

func issuesWithCode(issues []generic.Issue, code string) []generic.Issue {
	var out []generic.Issue
	for _, i := range issues {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}
