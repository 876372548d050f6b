/*
validate.go - Structural and cross-reference validation of an ops schema

PURPOSE:
  Turns a candidate document (often a half-finished draft) into a list of
  every problem it has, each tagged with the path of the offending field:

    ["timeline", "flowSegments", 2, "rate_card_id"]  unknown rate card "rc-9"

  Nothing fails fast. A form can highlight every broken field at once.

PASSES:
  1. Structure   - required fields, enums, HH:MM and YYYY-MM-DD strings
  2. References  - rate cards, overlay targets, profile members, calendar
                   profile ids
  3. Time        - segment overlaps, containment in operational hours,
                   zero-length operating day
  4. Calendar    - range order, assignment shape, full date coverage

  Both passes always run. Checks that depend on a malformed value are
  skipped once the structural pass has reported it, so one bad field
  yields one issue.

PURITY:
  Validate never mutates its input and has no side effects.

SEE ALSO:
  - generic/time.go: Overlap and containment math
  - compile.go: Refuses documents that fail validation
*/
package opsschema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warp/hallops/generic"
)

// MaxCalendarDays bounds the calendar range that coverage is checked over.
const MaxCalendarDays = 366 * 10

// Issue codes.
const (
	CodeRequired          = "required"
	CodeInvalidTime       = "invalid_time"
	CodeInvalidDate       = "invalid_date"
	CodeInvalidEnum       = "invalid_enum"
	CodeNegative          = "negative"
	CodeDuplicateID       = "duplicate_id"
	CodeVersionMismatch   = "version_mismatch"
	CodeInvalidRange      = "invalid_range"
	CodeRangeTooLong      = "range_too_long"
	CodeUnknownReference  = "unknown_reference"
	CodeOverlap           = "overlap"
	CodeOutsideHours      = "outside_operational_hours"
	CodeZeroDuration      = "zero_duration"
	CodeProfileRequired   = "profile_required"
	CodeProfileNotAllowed = "profile_not_allowed"
	CodeUncoveredDate     = "uncovered_date"
	CodeInvalidType       = "invalid_type"
)

// ValidateSchema returns nil when s is valid, otherwise a
// *generic.ValidationError carrying every issue.
func ValidateSchema(s *Schema) error {
	if issues := Validate(s); len(issues) > 0 {
		return &generic.ValidationError{Issues: issues}
	}
	return nil
}

// Validate runs every pass and returns all issues found.
func Validate(s *Schema) []generic.Issue {
	v := &validator{s: s, badTimes: make(map[string]bool)}
	v.structure()
	v.references()
	v.timeline()
	v.calendar()
	return v.issues
}

type validator struct {
	s        *Schema
	issues   []generic.Issue
	badTimes map[string]bool // path strings of malformed times
}

func (v *validator) add(p generic.Path, code, format string, args ...any) {
	v.issues = append(v.issues, generic.Issue{Path: p, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) required(p generic.Path, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(p, CodeRequired, "is required")
	}
}

func (v *validator) time(p generic.Path, value string) {
	if !generic.IsValidHHMM(value) {
		v.badTimes[p.String()] = true
		v.add(p, CodeInvalidTime, "%q is not a valid HH:MM time", value)
	}
}

func (v *validator) timeOK(p generic.Path) bool {
	return !v.badTimes[p.String()]
}

func (v *validator) enum(p generic.Path, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.add(p, CodeInvalidEnum, "%q must be one of %s", value, strings.Join(allowed, ", "))
}

func (v *validator) uniqueIDs(prefix generic.Path, ids []string) {
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		if id == "" {
			continue
		}
		if seen[id] {
			v.add(generic.NewPath(prefix, i, "id"), CodeDuplicateID, "duplicate id %q", id)
		}
		seen[id] = true
	}
}

// =============================================================================
// PASS 1: STRUCTURE
// =============================================================================

func (v *validator) structure() {
	s := v.s
	v.required(generic.Path{"schema_version"}, s.SchemaVersion)

	meta := generic.Path{"meta"}
	v.required(generic.NewPath(meta, "name"), s.Meta.Name)
	v.enum(generic.NewPath(meta, "status"), s.Meta.Status, StatusDraft, StatusLive)
	v.required(generic.NewPath(meta, "currency"), s.Meta.Currency)
	v.required(generic.NewPath(meta, "timezone"), s.Meta.Timezone)
	v.required(generic.NewPath(meta, "schema_version"), s.Meta.SchemaVersion)

	defs := generic.Path{"definitions"}
	var ids []string
	for i, t := range s.Definitions.InventoryTiers {
		p := generic.NewPath(defs, "inventoryTiers", i)
		v.required(generic.NewPath(p, "id"), t.ID)
		v.required(generic.NewPath(p, "name"), t.Name)
		if t.Price < 0 {
			v.add(generic.NewPath(p, "price"), CodeNegative, "must not be negative")
		}
		ids = append(ids, t.ID)
	}
	v.uniqueIDs(generic.NewPath(defs, "inventoryTiers"), ids)

	ids = ids[:0]
	for i, b := range s.Definitions.Bundles {
		p := generic.NewPath(defs, "bundles", i)
		v.required(generic.NewPath(p, "id"), b.ID)
		v.required(generic.NewPath(p, "name"), b.Name)
		if b.Price < 0 {
			v.add(generic.NewPath(p, "price"), CodeNegative, "must not be negative")
		}
		ids = append(ids, b.ID)
	}
	v.uniqueIDs(generic.NewPath(defs, "bundles"), ids)

	ids = ids[:0]
	for i, rc := range s.Definitions.RateCards {
		p := generic.NewPath(defs, "rateCards", i)
		v.required(generic.NewPath(p, "id"), rc.ID)
		v.required(generic.NewPath(p, "name"), rc.Name)
		v.enum(generic.NewPath(p, "yield_configuration", "mode"), rc.YieldConfiguration.Mode,
			YieldFixedRate, YieldStandardRate, YieldReducedRate)
		ids = append(ids, rc.ID)
	}
	v.uniqueIDs(generic.NewPath(defs, "rateCards"), ids)

	hours := generic.Path{"timeline", "operationalHours"}
	v.time(generic.NewPath(hours, "start"), s.Timeline.OperationalHours.Start)
	v.time(generic.NewPath(hours, "end"), s.Timeline.OperationalHours.End)

	ids = ids[:0]
	for i, seg := range s.Timeline.FlowSegments {
		p := generic.Path{"timeline", "flowSegments", i}
		v.required(generic.NewPath(p, "id"), seg.ID)
		v.required(generic.NewPath(p, "label"), seg.Label)
		v.time(generic.NewPath(p, "time_start"), seg.TimeStart)
		v.time(generic.NewPath(p, "time_end"), seg.TimeEnd)
		v.required(generic.NewPath(p, "rate_card_id"), seg.RateCardID)
		ids = append(ids, seg.ID)
	}
	v.uniqueIDs(generic.Path{"timeline", "flowSegments"}, ids)

	ids = ids[:0]
	for i, ev := range s.Timeline.OverlayEvents {
		p := generic.Path{"timeline", "overlayEvents", i}
		v.required(generic.NewPath(p, "id"), ev.ID)
		v.required(generic.NewPath(p, "label"), ev.Label)
		v.time(generic.NewPath(p, "time_start"), ev.TimeStart)
		v.time(generic.NewPath(p, "time_end"), ev.TimeEnd)
		ids = append(ids, ev.ID)
	}
	v.uniqueIDs(generic.Path{"timeline", "overlayEvents"}, ids)

	for i, t := range s.LogicTriggers {
		p := generic.Path{"logicTriggers", i}
		v.required(generic.NewPath(p, "id"), t.ID)
		v.time(generic.NewPath(p, "trigger_time"), t.TriggerTime)
		if !triggerTypes[t.Type] {
			v.add(generic.NewPath(p, "type"), CodeInvalidEnum, "%q is not a known trigger type", t.Type)
		}
	}

	ids = ids[:0]
	for i, dp := range s.DayProfiles {
		p := generic.Path{"dayProfiles", i}
		v.required(generic.NewPath(p, "id"), dp.ID)
		v.required(generic.NewPath(p, "name"), dp.Name)
		v.enum(generic.NewPath(p, "category"), dp.Category,
			CategoryWeekday, CategoryWeekend, CategorySpecial, CategoryClosed)
		ids = append(ids, dp.ID)
	}
	v.uniqueIDs(generic.Path{"dayProfiles"}, ids)

	v.calendarStructure()
}

func (v *validator) calendarStructure() {
	cal := v.s.Calendar
	rng := generic.Path{"calendar", "range"}
	if !generic.IsValidDate(cal.Range.Start) {
		v.add(generic.NewPath(rng, "start"), CodeInvalidDate, "%q is not a valid YYYY-MM-DD date", cal.Range.Start)
	}
	if !generic.IsValidDate(cal.Range.End) {
		v.add(generic.NewPath(rng, "end"), CodeInvalidDate, "%q is not a valid YYYY-MM-DD date", cal.Range.End)
	}

	for _, code := range sortedKeys(cal.WeekdayDefaults) {
		p := generic.Path{"calendar", "weekdayDefaults", code}
		if generic.WeekdayIndex(code) < 0 {
			v.add(p, CodeInvalidEnum, "%q is not a weekday code (Sun..Sat)", code)
		}
		v.enum(generic.NewPath(p, "status"), cal.WeekdayDefaults[code].Status, AssignmentOpen, AssignmentClosed)
	}
	for _, date := range sortedKeys(cal.Assignments) {
		p := generic.Path{"calendar", "assignments", date}
		if !generic.IsValidDate(date) {
			v.add(p, CodeInvalidDate, "%q is not a valid YYYY-MM-DD date", date)
		}
		v.enum(generic.NewPath(p, "status"), cal.Assignments[date].Status, AssignmentOpen, AssignmentClosed)
	}
	for _, date := range sortedKeys(cal.Overrides) {
		p := generic.Path{"calendar", "overrides", date}
		if !generic.IsValidDate(date) {
			v.add(p, CodeInvalidDate, "%q is not a valid YYYY-MM-DD date", date)
		}
		for i, o := range cal.Overrides[date] {
			op := generic.NewPath(p, i)
			v.required(generic.NewPath(op, "id"), o.ID)
			if o.Kind != "" && !overrideKinds[o.Kind] {
				v.add(generic.NewPath(op, "kind"), CodeInvalidEnum, "%q is not a known override kind", o.Kind)
			}
			if o.DoorsOpenTime != "" {
				v.time(generic.NewPath(op, "doors_open_time"), o.DoorsOpenTime)
			} else if o.Kind == OverrideDoorsOpen {
				v.add(generic.NewPath(op, "doors_open_time"), CodeRequired, "is required for %s", OverrideDoorsOpen)
			}
			if o.UntilTime != "" {
				v.time(generic.NewPath(op, "until_time"), o.UntilTime)
			}
		}
	}
}

// =============================================================================
// PASS 2: REFERENCES
// =============================================================================

func (v *validator) references() {
	s := v.s
	if s.SchemaVersion != "" && s.Meta.SchemaVersion != "" && s.SchemaVersion != s.Meta.SchemaVersion {
		v.add(generic.Path{"meta", "schema_version"}, CodeVersionMismatch,
			"meta.schema_version %q must equal schema_version %q", s.Meta.SchemaVersion, s.SchemaVersion)
	}

	for i, seg := range s.Timeline.FlowSegments {
		if seg.RateCardID == "" {
			continue
		}
		if _, ok := s.rateCard(seg.RateCardID); !ok {
			v.add(generic.Path{"timeline", "flowSegments", i, "rate_card_id"}, CodeUnknownReference,
				"unknown rate card %q", seg.RateCardID)
		}
	}

	for i, t := range s.LogicTriggers {
		if t.TargetEvent == "" {
			continue
		}
		if _, ok := s.overlay(t.TargetEvent); !ok {
			v.add(generic.Path{"logicTriggers", i, "target_event"}, CodeUnknownReference,
				"unknown overlay event %q", t.TargetEvent)
		}
	}

	for i, dp := range s.DayProfiles {
		for j, id := range dp.SegmentIDs {
			if _, ok := s.segment(id); !ok {
				v.add(generic.Path{"dayProfiles", i, "segment_ids", j}, CodeUnknownReference,
					"unknown flow segment %q", id)
			}
		}
		for j, id := range dp.OverlayEventIDs {
			if _, ok := s.overlay(id); !ok {
				v.add(generic.Path{"dayProfiles", i, "overlay_event_ids", j}, CodeUnknownReference,
					"unknown overlay event %q", id)
			}
		}
	}
}

// =============================================================================
// PASS 3: TIME
// =============================================================================

func (v *validator) timeline() {
	s := v.s
	hours := s.Timeline.OperationalHours
	hoursPath := generic.Path{"timeline", "operationalHours"}
	hoursOK := v.timeOK(generic.NewPath(hoursPath, "start")) && v.timeOK(generic.NewPath(hoursPath, "end"))

	if hoursOK && generic.ToMinutes(hours.Start) == generic.ToMinutes(hours.End) {
		v.add(generic.NewPath(hoursPath, "end"), CodeZeroDuration,
			"operational hours must not start and end at the same time (%s)", hours.Start)
	}

	// Segment overlaps, positioned on the operating day.
	var items []generic.TimedItem
	index := make(map[string]int)
	for i, seg := range s.Timeline.FlowSegments {
		p := generic.Path{"timeline", "flowSegments", i}
		if !v.timeOK(generic.NewPath(p, "time_start")) || !v.timeOK(generic.NewPath(p, "time_end")) {
			continue
		}
		key := fmt.Sprintf("%d", i)
		index[key] = i
		items = append(items, generic.TimedItem{ID: key, Start: seg.TimeStart, End: seg.TimeEnd, AllowOverlap: seg.AllowOverlap})
	}
	anchor := hours.Start
	if !hoursOK {
		anchor = "00:00"
	}
	for _, o := range generic.DetectOverlapsFrom(anchor, items) {
		first := s.Timeline.FlowSegments[index[o.First.ID]]
		second := index[o.Second.ID]
		v.add(generic.Path{"timeline", "flowSegments", second, "time_start"}, CodeOverlap,
			"segment %q overlaps segment %q", s.Timeline.FlowSegments[second].ID, first.ID)
	}

	if !hoursOK || generic.ToMinutes(hours.Start) == generic.ToMinutes(hours.End) {
		return
	}
	for i, seg := range s.Timeline.FlowSegments {
		v.contained(generic.Path{"timeline", "flowSegments", i}, seg.TimeStart, seg.TimeEnd)
	}
	for i, ev := range s.Timeline.OverlayEvents {
		v.contained(generic.Path{"timeline", "overlayEvents", i}, ev.TimeStart, ev.TimeEnd)
	}
}

func (v *validator) contained(p generic.Path, start, end string) {
	hours := v.s.Timeline.OperationalHours
	for _, f := range []struct{ field, value string }{{"time_start", start}, {"time_end", end}} {
		fp := generic.NewPath(p, f.field)
		if !v.timeOK(fp) {
			continue
		}
		if !generic.IsTimeWithinRange(f.value, hours.Start, hours.End) {
			v.add(fp, CodeOutsideHours, "%s is outside operational hours %s-%s", f.value, hours.Start, hours.End)
		}
	}
}

// =============================================================================
// PASS 4: CALENDAR
// =============================================================================

func (v *validator) calendar() {
	s := v.s
	cal := s.Calendar

	for _, code := range sortedKeys(cal.WeekdayDefaults) {
		v.assignment(generic.Path{"calendar", "weekdayDefaults", code}, cal.WeekdayDefaults[code])
	}
	for _, date := range sortedKeys(cal.Assignments) {
		v.assignment(generic.Path{"calendar", "assignments", date}, cal.Assignments[date])
	}

	for _, date := range sortedKeys(cal.Overrides) {
		for i, o := range cal.Overrides[date] {
			if o.ProfileID == "" {
				continue
			}
			if _, ok := s.Profile(o.ProfileID); !ok {
				v.add(generic.Path{"calendar", "overrides", date, i, "profile_id"}, CodeUnknownReference,
					"unknown day profile %q", o.ProfileID)
			}
		}
	}

	if !generic.IsValidDate(cal.Range.Start) || !generic.IsValidDate(cal.Range.End) {
		return
	}
	rng, err := generic.ParseDateRange(cal.Range.Start, cal.Range.End)
	if err != nil {
		v.add(generic.Path{"calendar", "range"}, CodeInvalidRange,
			"range start %s must not be after end %s", cal.Range.Start, cal.Range.End)
		return
	}
	if rng.Len() > MaxCalendarDays {
		v.add(generic.Path{"calendar", "range"}, CodeRangeTooLong,
			"range spans %d days; at most %d are supported", rng.Len(), MaxCalendarDays)
		return
	}
	for _, day := range rng.Days() {
		date := generic.FormatDate(day)
		if _, ok := cal.Assignments[date]; ok {
			continue
		}
		if _, ok := cal.WeekdayDefaults[generic.WeekdayCode(day)]; ok {
			continue
		}
		v.add(generic.Path{"calendar", "assignments", date}, CodeUncoveredDate,
			"%s (%s) has no assignment and no weekday default", date, generic.WeekdayCode(day))
	}
}

func (v *validator) assignment(p generic.Path, a Assignment) {
	switch a.Status {
	case AssignmentOpen:
		if a.ProfileID == "" {
			v.add(generic.NewPath(p, "profile_id"), CodeProfileRequired, "an open day needs a day profile")
			return
		}
		if _, ok := v.s.Profile(a.ProfileID); !ok {
			v.add(generic.NewPath(p, "profile_id"), CodeUnknownReference, "unknown day profile %q", a.ProfileID)
		}
	case AssignmentClosed:
		if a.ProfileID != "" {
			v.add(generic.NewPath(p, "profile_id"), CodeProfileNotAllowed, "a closed day must not carry a day profile")
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
