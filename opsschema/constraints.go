package opsschema

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/warp/hallops/generic"
)

// =============================================================================
// OPERATIONAL CONSTRAINTS - Advisory checks shown next to validation
// =============================================================================

// Severity of a constraint violation.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// MinSalesLeadMinutes is how long before session start sales must close.
const MinSalesLeadMinutes = 15

// Violation is one failed operational constraint.
type Violation struct {
	ConstraintID string       `json:"constraint_id"`
	Severity     string       `json:"severity"`
	Message      string       `json:"message"`
	AffectedIDs  []string     `json:"affected_ids"`
	Path         generic.Path `json:"path,omitempty"`
}

// CheckConstraints runs the built-in operational constraints.
func CheckConstraints(s *Schema) []Violation {
	var out []Violation
	out = append(out, salesWindowBeforeSession(s)...)
	out = append(out, doorsBeforeSession(s)...)
	out = append(out, hardResetTarget(s)...)
	out = append(out, operatingGaps(s)...)
	return out
}

func firstTrigger(s *Schema, kind string) (Trigger, bool) {
	for _, t := range s.LogicTriggers {
		if t.Type == kind {
			return t, true
		}
	}
	return Trigger{}, false
}

func salesWindowBeforeSession(s *Schema) []Violation {
	closeT, ok1 := firstTrigger(s, TriggerSalesWindowClose)
	start, ok2 := firstTrigger(s, TriggerSessionStart)
	if !ok1 || !ok2 {
		return nil
	}
	lead := generic.ToMinutes(start.TriggerTime) - generic.ToMinutes(closeT.TriggerTime)
	if lead >= MinSalesLeadMinutes {
		return nil
	}
	return []Violation{{
		ConstraintID: "sales-window-before-session",
		Severity:     SeverityError,
		Message:      fmt.Sprintf("Sales window closes %d minutes before session starts. Minimum %d minutes required.", lead, MinSalesLeadMinutes),
		AffectedIDs:  []string{closeT.ID, start.ID},
	}}
}

func doorsBeforeSession(s *Schema) []Violation {
	doors, ok1 := firstTrigger(s, TriggerDoorsOpen)
	start, ok2 := firstTrigger(s, TriggerSessionStart)
	if !ok1 || !ok2 || generic.ToMinutes(doors.TriggerTime) < generic.ToMinutes(start.TriggerTime) {
		return nil
	}
	return []Violation{{
		ConstraintID: "doors-before-session",
		Severity:     SeverityError,
		Message:      "Doors Open must be before Session Start",
		AffectedIDs:  []string{doors.ID, start.ID},
	}}
}

func hardResetTarget(s *Schema) []Violation {
	var out []Violation
	for i, t := range s.LogicTriggers {
		if t.Type != TriggerHardReset || t.TargetEvent != "" {
			continue
		}
		out = append(out, Violation{
			ConstraintID: "hard-reset-target-required",
			Severity:     SeverityError,
			Message:      "Hard Reset trigger requires a target event",
			AffectedIDs:  []string{t.ID},
			Path:         generic.Path{"logicTriggers", i, "target_event"},
		})
	}
	return out
}

func operatingGaps(s *Schema) []Violation {
	hours := s.Timeline.OperationalHours
	if !hours.IsOpen || !generic.IsValidHHMM(hours.Start) || !generic.IsValidHHMM(hours.End) {
		return nil
	}
	var out []Violation
	for _, g := range generic.DetectGaps(segmentItems(s), hours.Start, hours.End) {
		out = append(out, Violation{
			ConstraintID: "no-gaps-in-operations",
			Severity:     SeverityWarning,
			Message:      fmt.Sprintf("Gap detected: %s to %s", generic.FormatMinutes(g.Start), generic.FormatMinutes(g.End)),
			AffectedIDs:  []string{},
			Path:         generic.Path{"timeline", "flowSegments"},
		})
	}
	return out
}

func segmentItems(s *Schema) []generic.TimedItem {
	items := make([]generic.TimedItem, len(s.Timeline.FlowSegments))
	for i, seg := range s.Timeline.FlowSegments {
		items[i] = generic.TimedItem{ID: seg.ID, Start: seg.TimeStart, End: seg.TimeEnd, AllowOverlap: seg.AllowOverlap}
	}
	return items
}

// =============================================================================
// COMPLETENESS SCORE
// =============================================================================

// CompletenessScore summarises how ready a draft is to publish.
type CompletenessScore struct {
	Score     int                `json:"score"`
	Breakdown CompletenessDetail `json:"breakdown"`
	Missing   []string           `json:"missing"`
}

type CompletenessDetail struct {
	Coverage      int `json:"coverage"`
	NoOverlaps    int `json:"noOverlaps"`
	TriggersValid int `json:"triggersValid"`
	NoViolations  int `json:"noViolations"`
}

// Completeness weighs coverage (30%), overlaps (20%), trigger setup (25%)
// and constraint violations (25%) into a 0-100 score.
func Completeness(s *Schema, violations []Violation) CompletenessScore {
	hours := s.Timeline.OperationalHours
	window := generic.NormalizeTimeRange(hours.Start, hours.End)

	covered := 0
	ranges := make([]generic.TimeRange, 0, len(s.Timeline.FlowSegments))
	for _, seg := range s.Timeline.FlowSegments {
		ranges = append(ranges, generic.OperationalRange(seg.TimeStart, seg.TimeEnd, hours.Start))
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
	cursor := window.Start
	for _, r := range ranges {
		start, end := max(r.Start, cursor), min(r.End, window.End)
		if end > start {
			covered += end - start
		}
		cursor = max(cursor, r.End)
	}
	coverage := 0.0
	if total := window.Duration(); total > 0 {
		coverage = math.Min(100, float64(covered)/float64(total)*100)
	}

	overlaps := len(generic.DetectOverlapsFrom(hours.Start, segmentItems(s)))
	noOverlaps := math.Max(0, 100-float64(overlaps)*20)

	triggersValid := 100.0
	if n := len(s.LogicTriggers); n > 0 {
		invalid := 0
		for _, t := range s.LogicTriggers {
			if (t.Type == TriggerHardReset && t.TargetEvent == "") || (t.Type == TriggerCustom && t.CustomLabel == "") {
				invalid++
			}
		}
		triggersValid = float64(n-invalid) / float64(n) * 100
	}

	errorsN, warningsN := 0, 0
	for _, v := range violations {
		switch v.Severity {
		case SeverityError:
			errorsN++
		case SeverityWarning:
			warningsN++
		}
	}
	noViolations := math.Max(0, 100-float64(errorsN)*10-float64(warningsN)*5)

	score := coverage*0.3 + noOverlaps*0.2 + triggersValid*0.25 + noViolations*0.25

	missing := []string{}
	if coverage < 100 {
		missing = append(missing, "Complete operational coverage")
	}
	if noOverlaps < 100 {
		missing = append(missing, "No overlapping segments")
	}
	if triggersValid < 100 {
		missing = append(missing, "All triggers properly configured")
	}
	if noViolations < 100 {
		missing = append(missing, "No constraint violations")
	}

	return CompletenessScore{
		Score: int(math.Round(score)),
		Breakdown: CompletenessDetail{
			Coverage:      int(math.Round(coverage)),
			NoOverlaps:    int(math.Round(noOverlaps)),
			TriggersValid: int(math.Round(triggersValid)),
			NoViolations:  int(math.Round(noViolations)),
		},
		Missing: missing,
	}
}

// =============================================================================
// AGENDA - Printable run sheet
// =============================================================================

// Agenda lanes.
const (
	LaneFlow    = "flow"
	LaneOverlay = "overlay"
	LaneTrigger = "trigger"
)

// AgendaEntry is one line of the run sheet.
type AgendaEntry struct {
	Time     string `json:"time"`
	Lane     string `json:"lane"`
	Label    string `json:"label"`
	Duration string `json:"duration,omitempty"`
	Context  string `json:"context,omitempty"`
}

// GenerateAgenda lists segments, overlays and triggers in operating-day
// order.
func GenerateAgenda(s *Schema) []AgendaEntry {
	var entries []AgendaEntry
	for _, seg := range s.Timeline.FlowSegments {
		e := AgendaEntry{Time: seg.TimeStart, Lane: LaneFlow, Label: seg.Label, Duration: seg.TimeStart + " - " + seg.TimeEnd}
		if rc, ok := s.rateCard(seg.RateCardID); ok {
			category := rc.Category
			if category == "" {
				category = "Standard"
			}
			e.Context = rc.Name + " (" + category + ")"
		}
		entries = append(entries, e)
	}
	for _, ev := range s.Timeline.OverlayEvents {
		ctx := "Overlay Event"
		if ev.IsHardTicket {
			ctx = "Hard Ticket Event"
		}
		entries = append(entries, AgendaEntry{Time: ev.TimeStart, Lane: LaneOverlay, Label: ev.Label, Duration: ev.TimeStart + " - " + ev.TimeEnd, Context: ctx})
	}
	for _, t := range s.LogicTriggers {
		var parts []string
		if t.Type == TriggerHardReset && t.TargetEvent != "" {
			target := t.TargetEvent
			if ev, ok := s.overlay(t.TargetEvent); ok {
				target = ev.Label
			}
			parts = append(parts, "Target: "+target)
		}
		label := strings.ReplaceAll(t.Type, "_", " ")
		if t.CustomLabel != "" {
			label = t.CustomLabel
			parts = append(parts, "Custom: "+t.CustomLabel)
		}
		entries = append(entries, AgendaEntry{Time: t.TriggerTime, Lane: LaneTrigger, Label: label, Context: strings.Join(parts, " | ")})
	}

	anchor := s.Timeline.OperationalHours.Start
	sort.SliceStable(entries, func(i, j int) bool {
		return generic.OperationalMinutes(entries[i].Time, anchor) < generic.OperationalMinutes(entries[j].Time, anchor)
	})
	return entries
}

var lanePrefix = map[string]string{LaneFlow: "FLOW", LaneOverlay: "OVER", LaneTrigger: "TRIG"}

// FormatAgenda renders entries as plain text for printing or the clipboard.
func FormatAgenda(entries []AgendaEntry, includeContext bool) string {
	var b strings.Builder
	b.WriteString("OPERATIONS AGENDA\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	for _, e := range entries {
		line := fmt.Sprintf("%s [%s] %s", e.Time, lanePrefix[e.Lane], e.Label)
		if includeContext && e.Context != "" {
			line += " - " + e.Context
		}
		b.WriteString(line + "\n")
		if e.Duration != "" {
			b.WriteString("       " + e.Duration + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}
