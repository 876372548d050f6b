package opsschema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/opsschema"
)

func trigger(s *opsschema.Schema, id string) *opsschema.Trigger {
	for i := range s.LogicTriggers {
		if s.LogicTriggers[i].ID == id {
			return &s.LogicTriggers[i]
		}
	}
	return nil
}

func TestCheckConstraints_CleanSchema(t *testing.T) {
	assert.Empty(t, opsschema.CheckConstraints(hallSchema()))
}

func TestCheckConstraints_SalesWindowTooLate(t *testing.T) {
	s := hallSchema()
	trigger(s, "t-close").TriggerTime = "18:50"

	v := opsschema.CheckConstraints(s)

	require.Len(t, v, 1)
	assert.Equal(t, "sales-window-before-session", v[0].ConstraintID)
	assert.Equal(t, opsschema.SeverityError, v[0].Severity)
	assert.Contains(t, v[0].Message, "10 minutes")
	assert.Equal(t, []string{"t-close", "t-start"}, v[0].AffectedIDs)
}

func TestCheckConstraints_DoorsAfterStart(t *testing.T) {
	s := hallSchema()
	trigger(s, "t-doors").TriggerTime = "19:30"

	v := opsschema.CheckConstraints(s)

	require.Len(t, v, 1)
	assert.Equal(t, "doors-before-session", v[0].ConstraintID)
}

func TestCheckConstraints_DoorsAtStart(t *testing.T) {
	// GIVEN: doors open the same minute the session starts
	s := hallSchema()
	trigger(s, "t-doors").TriggerTime = "19:00"

	v := opsschema.CheckConstraints(s)

	// THEN: doors must come strictly first
	require.Len(t, v, 1)
	assert.Equal(t, "doors-before-session", v[0].ConstraintID)
	assert.Equal(t, []string{"t-doors", "t-start"}, v[0].AffectedIDs)
}

func TestCheckConstraints_HardResetWithoutTarget(t *testing.T) {
	s := hallSchema()
	trigger(s, "t-reset").TargetEvent = ""

	v := opsschema.CheckConstraints(s)

	require.Len(t, v, 1)
	assert.Equal(t, "hard-reset-target-required", v[0].ConstraintID)
	assert.Equal(t, []string{"t-reset"}, v[0].AffectedIDs)
}

func TestCheckConstraints_Gaps(t *testing.T) {
	// GIVEN: no afternoon segment
	s := hallSchema()
	s.Timeline.FlowSegments = append(s.Timeline.FlowSegments[:1], s.Timeline.FlowSegments[2:]...)

	v := opsschema.CheckConstraints(s)

	require.Len(t, v, 1)
	assert.Equal(t, opsschema.SeverityWarning, v[0].Severity)
	assert.Equal(t, "Gap detected: 12:00 to 17:00", v[0].Message)

	// WHEN: the hall is marked closed, gaps are not checked
	s.Timeline.OperationalHours.IsOpen = false
	assert.Empty(t, opsschema.CheckConstraints(s))
}

func TestCompleteness(t *testing.T) {
	s := hallSchema()
	full := opsschema.Completeness(s, opsschema.CheckConstraints(s))
	assert.Equal(t, 100, full.Score)
	assert.Empty(t, full.Missing)

	// GIVEN: a five hour gap out of a seventeen hour day
	s.Timeline.FlowSegments = append(s.Timeline.FlowSegments[:1], s.Timeline.FlowSegments[2:]...)

	score := opsschema.Completeness(s, opsschema.CheckConstraints(s))

	assert.Equal(t, 71, score.Breakdown.Coverage)
	assert.Equal(t, 100, score.Breakdown.NoOverlaps)
	assert.Equal(t, 95, score.Breakdown.NoViolations)
	assert.Equal(t, 90, score.Score)
	assert.Equal(t, []string{"Complete operational coverage", "No constraint violations"}, score.Missing)
}

// =============================================================================
// AGENDA
// =============================================================================

func TestGenerateAgenda_OperatingDayOrder(t *testing.T) {
	entries := opsschema.GenerateAgenda(hallSchema())

	times := make([]string, len(entries))
	for i, e := range entries {
		times[i] = e.Time
	}
	assert.Equal(t, []string{"09:00", "12:00", "17:00", "18:00", "18:30", "19:00", "22:00", "01:00"}, times)

	last := entries[len(entries)-1]
	assert.Equal(t, opsschema.LaneTrigger, last.Lane)
	assert.Equal(t, "hard reset", last.Label)
	assert.Equal(t, "Target: Late Night Special", last.Context)

	assert.Equal(t, "Daytime (standard)", entries[0].Context)
	assert.Equal(t, "Evening (Standard)", entries[2].Context)
	assert.Equal(t, "Hard Ticket Event", entries[6].Context)
}

func TestFormatAgenda(t *testing.T) {
	entries := opsschema.GenerateAgenda(hallSchema())

	text := opsschema.FormatAgenda(entries, true)

	assert.Contains(t, text, "OPERATIONS AGENDA\n")
	assert.Contains(t, text, "09:00 [FLOW] Morning Session - Daytime (standard)\n       09:00 - 12:00\n")
	assert.Contains(t, text, "01:00 [TRIG] hard reset - Target: Late Night Special\n")

	plain := opsschema.FormatAgenda(entries, false)
	assert.NotContains(t, plain, "Target:")
}
