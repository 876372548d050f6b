package schedule_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/schedule"
)

var programs = []generic.Program{
	{Slug: "early-bird", Name: "Early Bird"},
	{Slug: "regular", Name: "Regular Session"},
}

func slot(day int, start string, minutes int, slug string) generic.Slot {
	return generic.Slot{DayOfWeek: day, StartTime: start, DurationMinutes: minutes, ProgramSlug: slug}
}

func problems(t *testing.T, err error) []schedule.SlotProblem {
	t.Helper()
	var perr *generic.PreconditionError
	require.True(t, errors.As(err, &perr))
	list, ok := perr.Context["slots"].([]schedule.SlotProblem)
	require.True(t, ok)
	return list
}

func TestValidateSlots_Valid(t *testing.T) {
	slots := []generic.Slot{
		slot(1, "18:00", 60, "early-bird"),
		slot(1, "19:00", 150, "regular"), // touches the early bird
		slot(2, "18:30", 60, "early-bird"),
	}

	assert.NoError(t, schedule.ValidateSlots(slots, programs))
}

func TestValidateSlots_OverlapSameWeekdayOnly(t *testing.T) {
	// GIVEN: two Monday slots colliding and a Tuesday slot at the same time
	slots := []generic.Slot{
		slot(1, "18:00", 90, "early-bird"),
		slot(1, "19:00", 60, "regular"),
		slot(2, "18:00", 90, "regular"),
	}

	err := schedule.ValidateSlots(slots, programs)

	// THEN: only the Monday pair is reported, on the later slot
	list := problems(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, schedule.ProblemOverlap, list[0].Problem)
	assert.Equal(t, 1, list[0].Index)
	assert.Contains(t, list[0].Detail, "Mon 18:00")
}

func TestValidateSlots_AllProblemsListed(t *testing.T) {
	slots := []generic.Slot{
		slot(1, "18:15", 60, "regular"),
		slot(3, "19:00", 60, "bingo-bonanza"),
		slot(7, "19:00", 60, "regular"),
		slot(4, "7pm", 0, "regular"),
	}

	err := schedule.ValidateSlots(slots, programs)

	assert.True(t, errors.Is(err, generic.ErrPrecondition))
	var got []string
	for _, p := range problems(t, err) {
		got = append(got, p.Problem)
	}
	assert.Equal(t, []string{
		schedule.ProblemMisaligned,
		schedule.ProblemUnknownProgram,
		schedule.ProblemInvalidDay,
		schedule.ProblemInvalidTime,
		schedule.ProblemInvalidLength,
	}, got)
}

func TestNextSession(t *testing.T) {
	// 2025-03-14 is a Friday
	now := time.Date(2025, 3, 14, 18, 20, 0, 0, time.UTC)
	slots := []generic.Slot{
		slot(5, "18:00", 60, "early-bird"),
		slot(5, "19:00", 120, "regular"),
		slot(1, "19:00", 120, "regular"),
	}

	// Same day, later slot
	next, ok := schedule.NextSession(slots, now)
	require.True(t, ok)
	assert.Equal(t, "regular", next.Slot.ProgramSlug)
	assert.Equal(t, 40, next.MinutesUntil)
	assert.Equal(t, time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC), next.StartAt)

	// After the last Friday slot, Monday is next
	next, ok = schedule.NextSession(slots, now.Add(3*time.Hour))
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 17, 19, 0, 0, 0, time.UTC), next.StartAt)

	// A slot starting right now still counts
	next, ok = schedule.NextSession(slots, time.Date(2025, 3, 14, 19, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, 0, next.MinutesUntil)
}

func TestNextSession_WrapsToSameWeekday(t *testing.T) {
	// GIVEN: only a Friday 18:00 slot and it is Friday 20:00
	now := time.Date(2025, 3, 14, 20, 0, 0, 0, time.UTC)
	slots := []generic.Slot{slot(5, "18:00", 60, "regular")}

	next, ok := schedule.NextSession(slots, now)

	// THEN: next week's Friday
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 21, 18, 0, 0, 0, time.UTC), next.StartAt)
	assert.Equal(t, 7*24*60-120, next.MinutesUntil)

	_, ok = schedule.NextSession(nil, now)
	assert.False(t, ok)
}
