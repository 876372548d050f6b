/*
slots.go - Weekly schedule slot checks and next-session lookup

PURPOSE:
  A schedule version is a list of recurring weekly slots (weekday, start
  time, duration, program). Before a draft is published every slot must
  reference a known program, start on a half hour, and not collide with
  another slot on the same weekday.

OVERLAP:
  Slots are compared per weekday bucket on [start, start+duration).
  Touching slots (one ends when the next starts) do not overlap. A slot
  running past midnight is only compared within its own weekday.

SEE ALSO:
  - generic/time.go: DetectIntervalOverlaps
  - workflow/versions.go: Runs ValidateSlots on publish
*/
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/warp/hallops/generic"
)

const opPublish = "publish_schedule"

// Problems found on a slot.
const (
	ProblemUnknownProgram = "unknown_program"
	ProblemMisaligned     = "misaligned_start"
	ProblemInvalidTime    = "invalid_start_time"
	ProblemInvalidDay     = "invalid_day_of_week"
	ProblemInvalidLength  = "invalid_duration"
	ProblemOverlap        = "overlap"
)

// SlotProblem names one offending slot.
type SlotProblem struct {
	Index       int    `json:"index"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	ProgramSlug string `json:"program_slug"`
	Problem     string `json:"problem"`
	Detail      string `json:"detail"`
}

// ValidateSlots returns nil when slots can be published. Otherwise it
// returns a *generic.PreconditionError whose "slots" context lists every
// SlotProblem.
func ValidateSlots(slots []generic.Slot, programs []generic.Program) error {
	known := make(map[string]bool, len(programs))
	for _, p := range programs {
		known[p.Slug] = true
	}

	var problems []SlotProblem
	report := func(i int, problem, format string, args ...any) {
		s := slots[i]
		problems = append(problems, SlotProblem{
			Index:       i,
			DayOfWeek:   s.DayOfWeek,
			StartTime:   s.StartTime,
			ProgramSlug: s.ProgramSlug,
			Problem:     problem,
			Detail:      fmt.Sprintf(format, args...),
		})
	}

	byDay := make(map[int][]generic.Interval)
	for i, s := range slots {
		ok := true
		if s.DayOfWeek < 0 || s.DayOfWeek > 6 {
			report(i, ProblemInvalidDay, "day_of_week %d is not in 0..6", s.DayOfWeek)
			ok = false
		}
		if !generic.IsValidHHMM(s.StartTime) {
			report(i, ProblemInvalidTime, "start_time %q is not HH:MM", s.StartTime)
			ok = false
		} else if generic.ToMinutes(s.StartTime)%30 != 0 {
			report(i, ProblemMisaligned, "start_time %s must be on :00 or :30", s.StartTime)
		}
		if s.DurationMinutes <= 0 {
			report(i, ProblemInvalidLength, "duration_minutes must be positive")
			ok = false
		}
		if !known[s.ProgramSlug] {
			report(i, ProblemUnknownProgram, "unknown program %q", s.ProgramSlug)
		}
		if ok {
			start := generic.ToMinutes(s.StartTime)
			byDay[s.DayOfWeek] = append(byDay[s.DayOfWeek], generic.Interval{
				ID:    strconv.Itoa(i),
				Start: start,
				End:   start + s.DurationMinutes,
			})
		}
	}

	for day := 0; day < 7; day++ {
		for _, o := range generic.DetectIntervalOverlaps(byDay[day]) {
			first, _ := strconv.Atoi(o.First.ID)
			second, _ := strconv.Atoi(o.Second.ID)
			report(second, ProblemOverlap, "overlaps slot %d (%s %s)",
				first, generic.WeekdayCodes[day], slots[first].StartTime)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	sort.SliceStable(problems, func(i, j int) bool { return problems[i].Index < problems[j].Index })
	return generic.Precondition(opPublish,
		fmt.Sprintf("%d schedule slot problem(s)", len(problems)),
		"slots", problems)
}

// =============================================================================
// NEXT SESSION
// =============================================================================

// Upcoming is the nearest slot that has not started yet.
type Upcoming struct {
	Slot         generic.Slot `json:"slot"`
	StartAt      time.Time    `json:"start_at"`
	MinutesUntil int          `json:"minutes_until"`
}

// NextSession finds the first slot starting at or after now, looking up to
// seven days ahead. Slot times are read in now's location.
func NextSession(slots []generic.Slot, now time.Time) (*Upcoming, bool) {
	var best *Upcoming
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for offset := 0; offset <= 7; offset++ {
		day := midnight.AddDate(0, 0, offset)
		for _, s := range slots {
			if s.DayOfWeek != int(day.Weekday()) || !generic.IsValidHHMM(s.StartTime) {
				continue
			}
			m := generic.ToMinutes(s.StartTime)
			startAt := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, now.Location())
			if startAt.Before(now) {
				continue
			}
			if best == nil || startAt.Before(best.StartAt) {
				best = &Upcoming{Slot: s, StartAt: startAt}
			}
		}
		if best != nil {
			break
		}
	}
	if best == nil {
		return nil, false
	}
	best.MinutesUntil = int(best.StartAt.Sub(now) / time.Minute)
	return best, true
}
