/*
calendar.go - Calendar resolution engine

PURPOSE:
  Answers, for one date: is the hall open, under which day profile, and
  with which overrides in effect.

LAYERING:
  1. calendar.assignments[date]          (date-specific decision)
  2. calendar.weekdayDefaults[Sun..Sat]  (recurring decision)
  3. nothing                             (source "none", closed)

  Then every entry of calendar.overrides[date] is applied in array order:

    LOCKED        lock flag, status unchanged
    CLOSED        status forced closed
    CLOSE_EARLY   early-close reason and until_time recorded
    DOORS_OPEN    doors_open_time set (later entries win)
    PROFILE_SWAP  profile replaced, status open

TOTALITY:
  ResolveDate never fails. Dates outside the calendar range still resolve
  through weekday defaults; the validator guarantees every in-range date
  has an assignment.

SEE ALSO:
  - doors.go: Doors-open quick edit
  - validate.go: Coverage guarantee
*/
package opsschema

import (
	"time"

	"github.com/warp/hallops/generic"
)

// Assignment sources.
const (
	SourceDate     = "date"
	SourceWeekday  = "weekday"
	SourceOverride = "override"
	SourceNone     = "none"
)

// EffectiveAssignment is the resolved state of one date.
type EffectiveAssignment struct {
	Date      string `json:"date"`
	Weekday   string `json:"weekday"`
	Status    string `json:"status"`
	ProfileID string `json:"profile_id,omitempty"`
	Source    string `json:"source"`

	IsLocked         bool       `json:"is_locked"`
	LockReason       string     `json:"lock_reason,omitempty"`
	ClosedReason     string     `json:"closed_reason,omitempty"`
	EarlyCloseReason string     `json:"early_close_reason,omitempty"`
	EarlyCloseTime   string     `json:"early_close_time,omitempty"`
	DoorsOpenTime    string     `json:"doors_open_time,omitempty"`
	Overrides        []Override `json:"overrides,omitempty"`
}

// IsOpen reports whether the hall runs sessions on this date.
func (e EffectiveAssignment) IsOpen() bool {
	return e.Status == AssignmentOpen
}

// Resolve parses date and resolves it.
func Resolve(cal *Calendar, date string) (EffectiveAssignment, error) {
	day, err := generic.ParseDate(date)
	if err != nil {
		return EffectiveAssignment{}, generic.Precondition("resolve_date", err.Error(), "date", date)
	}
	return ResolveDate(cal, day), nil
}

// ResolveDate layers weekday defaults, date assignments and overrides.
func ResolveDate(cal *Calendar, day time.Time) EffectiveAssignment {
	date := generic.FormatDate(day)
	code := generic.WeekdayCode(day)
	eff := EffectiveAssignment{Date: date, Weekday: code, Status: AssignmentClosed, Source: SourceNone}

	if a, ok := cal.Assignments[date]; ok {
		eff.Status, eff.ProfileID, eff.Source = a.Status, a.ProfileID, SourceDate
	} else if a, ok := cal.WeekdayDefaults[code]; ok {
		eff.Status, eff.ProfileID, eff.Source = a.Status, a.ProfileID, SourceWeekday
	}
	if eff.Status != AssignmentOpen {
		eff.Status = AssignmentClosed
	}

	for _, o := range cal.Overrides[date] {
		switch o.EffectiveKind() {
		case OverrideLocked:
			eff.IsLocked = true
			eff.LockReason = o.Reason
		case OverrideClosed:
			eff.Status = AssignmentClosed
			eff.ClosedReason = o.Reason
		case OverrideCloseEarly:
			eff.EarlyCloseReason = o.Reason
			eff.EarlyCloseTime = o.UntilTime
		case OverrideDoorsOpen:
			eff.DoorsOpenTime = o.DoorsOpenTime
		case OverrideProfileSwap:
			eff.Status = AssignmentOpen
			eff.ProfileID = o.ProfileID
			eff.Source = SourceOverride
		}
		eff.Overrides = append(eff.Overrides, o)
	}
	return eff
}

// ResolveRange resolves every date in [from, to].
func ResolveRange(cal *Calendar, from, to string) ([]EffectiveAssignment, error) {
	rng, err := generic.ParseDateRange(from, to)
	if err != nil {
		return nil, generic.Precondition("resolve_range", err.Error(), "from", from, "to", to)
	}
	if rng.Len() > MaxCalendarDays {
		return nil, generic.Precondition("resolve_range", "range too long", "days", rng.Len())
	}
	out := make([]EffectiveAssignment, 0, rng.Len())
	for _, day := range rng.Days() {
		out = append(out, ResolveDate(cal, day))
	}
	return out, nil
}

// =============================================================================
// OVERRIDE EDITS
// =============================================================================

// AddOverride appends an entry to a date's override list.
func AddOverride(cal *Calendar, date string, o Override) {
	if cal.Overrides == nil {
		cal.Overrides = make(map[string][]Override)
	}
	cal.Overrides[date] = append(cal.Overrides[date], o)
}

// RemoveOverride deletes the entry with id from date. It reports whether
// anything was removed. Empty lists are dropped from the map.
func RemoveOverride(cal *Calendar, date, id string) bool {
	list := cal.Overrides[date]
	for i, o := range list {
		if o.ID != id {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(cal.Overrides, date)
		} else {
			cal.Overrides[date] = list
		}
		return true
	}
	return false
}
