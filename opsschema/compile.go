/*
compile.go - Ops schema to legacy pricing and schedule documents

PURPOSE:
  The public site still reads two flat documents: "pricing" and
  "schedule". Compile derives both from a validated ops schema so the
  site keeps working while admins author the richer document.

INPUTS:
  schema            validated, published ops schema
  previous pricing  the currently active pricing document (may be nil)
  previous schedule the currently active schedule document (may be nil)

FALLBACK ORDER (for fields the schema does not model):
  1. value derived from the schema
  2. value from the previous document
  3. hardcoded default

  evening.startTime: earliest overlay -> previous evening.startTime -> 19:30
  paperRules:        previous daytime.paperRules -> {$1, 1}
  schedule:          compiled sessions -> previous schedule (when nothing
                     is assigned anywhere) -> []

PURITY:
  No I/O apart from an optional warning logger for unreadable previous
  documents. The same inputs always produce byte-identical output. Callers
  persist the result and swap versions atomically (workflow/opsschema.go).

SEE ALSO:
  - validate.go: Compile refuses invalid documents
  - workflow/opsschema.go: Publish calls Compile
*/
package opsschema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/warp/hallops/generic"
)

// DefaultEveningStart is used when neither the schema nor the previous
// pricing names an evening start.
const DefaultEveningStart = "19:30"

// CompileOptions carries the previously active documents.
type CompileOptions struct {
	PreviousPricing  json.RawMessage
	PreviousSchedule json.RawMessage

	// Log receives warnings about unusable previous documents. Nil
	// discards them.
	Log *zerolog.Logger
}

// Compiled is the compiler output.
type Compiled struct {
	Pricing  PricingDocument `json:"pricing"`
	Schedule json.RawMessage `json:"schedule"`
}

// =============================================================================
// LEGACY DOCUMENT SHAPES
// =============================================================================

// PricingDocument is the legacy pricing shape read by the public site.
type PricingDocument struct {
	Daytime DaytimePricing  `json:"daytime"`
	Evening EveningPricing  `json:"evening"`
	Sunday  json.RawMessage `json:"sunday"`
	FAQs    json.RawMessage `json:"faqs"`
}

type DaytimePricing struct {
	Sessions []PricingSession `json:"sessions"`
	Jackpots json.RawMessage  `json:"jackpots"`
}

type PricingSession struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	TimeRange          string          `json:"timeRange"`
	Icon               string          `json:"icon"`
	Jackpot            string          `json:"jackpot"`
	Description        string          `json:"description"`
	Vibe               []string        `json:"vibe"`
	Machines           []Machine       `json:"machines"`
	PaperRules         json.RawMessage `json:"paperRules"`
	PaperRulesAdvanced json.RawMessage `json:"paperRulesAdvanced"`
}

type Machine struct {
	Description string `json:"description"`
	Price       string `json:"price"`
	Type        string `json:"type"`
	Savings     string `json:"savings"`
}

type EveningPricing struct {
	StartTime        string          `json:"startTime"`
	ValueProposition string          `json:"valueProposition"`
	ScheduleNote     string          `json:"scheduleNote"`
	Machines         json.RawMessage `json:"machines"`
	SpecialtyGames   json.RawMessage `json:"specialtyGames"`
}

// ScheduleSession is one entry of the legacy schedule document.
type ScheduleSession struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Category         string          `json:"category"`
	StartTime        string          `json:"startTime"`
	EndTime          string          `json:"endTime"`
	GameType         string          `json:"gameType"`
	Status           string          `json:"status"`
	OverrideDate     string          `json:"overrideDate,omitempty"`
	Note             string          `json:"note,omitempty"`
	AvailableDays    []string        `json:"availableDays"`
	Pricing          json.RawMessage `json:"pricing"`
	Specials         json.RawMessage `json:"specials"`
	IsDraft          bool            `json:"isDraft"`
	ProjectedRevenue int             `json:"projectedRevenue"`
	TicketsSold      int             `json:"ticketsSold"`
	TotalSeats       int             `json:"totalSeats"`
	ProgramSlug      string          `json:"programSlug"`
	PricingSessionID string          `json:"pricingSessionId"`
}

var (
	defaultPaperRules         = json.RawMessage(`{"minSpend":"$1","minPaperCards":1}`)
	defaultPaperRulesAdvanced = json.RawMessage(`{"minSpendAdvanced":"$2+","maxPaperCards":"Unlimited"}`)
	defaultSunday             = json.RawMessage(`{"title":"","note":"","specials":[]}`)
	emptyList                 = json.RawMessage(`[]`)
	emptyObject               = json.RawMessage(`{}`)
)

// previousPricing is the subset of an older pricing document the
// compiler may carry forward. Unknown shapes decode to zero values.
type previousPricing struct {
	Daytime struct {
		PaperRules         json.RawMessage `json:"paperRules"`
		PaperRulesAdvanced json.RawMessage `json:"paperRulesAdvanced"`
		Jackpots           json.RawMessage `json:"jackpots"`
	} `json:"daytime"`
	Evening struct {
		StartTime        *string         `json:"startTime"`
		ValueProposition *string         `json:"valueProposition"`
		ScheduleNote     *string         `json:"scheduleNote"`
		Machines         json.RawMessage `json:"machines"`
		SpecialtyGames   json.RawMessage `json:"specialtyGames"`
	} `json:"evening"`
	Sunday json.RawMessage `json:"sunday"`
	FAQs   json.RawMessage `json:"faqs"`
}

// =============================================================================
// ENTRY POINT
// =============================================================================

// Compile validates s and derives the legacy documents.
func Compile(s *Schema, opts CompileOptions) (*Compiled, error) {
	if err := ValidateSchema(s); err != nil {
		return nil, err
	}

	var prev previousPricing
	if present(opts.PreviousPricing) {
		// A previous document of an unexpected shape contributes nothing.
		if err := json.Unmarshal(opts.PreviousPricing, &prev); err != nil {
			prev = previousPricing{}
			if opts.Log != nil {
				opts.Log.Warn().Err(err).Msg("previous pricing document unreadable; using defaults")
			}
		}
	}

	sessions := compileSchedule(s)
	var schedule json.RawMessage
	if len(sessions) == 0 {
		schedule = emptyList
		if isJSONArray(opts.PreviousSchedule) {
			schedule = append(json.RawMessage(nil), opts.PreviousSchedule...)
		}
	} else {
		data, err := json.Marshal(sessions)
		if err != nil {
			return nil, fmt.Errorf("encode schedule: %w", err)
		}
		schedule = data
	}

	return &Compiled{Pricing: compilePricing(s, &prev), Schedule: schedule}, nil
}

// =============================================================================
// PRICING
// =============================================================================

func compilePricing(s *Schema, prev *previousPricing) PricingDocument {
	opStart := s.Timeline.OperationalHours.Start

	segments := append([]FlowSegment(nil), s.Timeline.FlowSegments...)
	sort.SliceStable(segments, func(i, j int) bool {
		return generic.OperationalMinutes(segments[i].TimeStart, opStart) < generic.OperationalMinutes(segments[j].TimeStart, opStart)
	})

	machines := bundleMachines(s.Definitions.Bundles)
	paperRules := firstPresent(prev.Daytime.PaperRules, defaultPaperRules)
	paperRulesAdvanced := firstPresent(prev.Daytime.PaperRulesAdvanced, defaultPaperRulesAdvanced)

	sessions := make([]PricingSession, 0, len(segments))
	for _, seg := range segments {
		description := ""
		if rc, ok := s.rateCard(seg.RateCardID); ok && rc.Name != "" {
			description = "Rate Card: " + rc.Name
		}
		sessions = append(sessions, PricingSession{
			ID:                 seg.ID,
			Name:               seg.Label,
			TimeRange:          generic.FormatClock(seg.TimeStart) + " – " + generic.FormatClock(seg.TimeEnd),
			Icon:               "clock",
			Description:        description,
			Vibe:               []string{},
			Machines:           machines,
			PaperRules:         paperRules,
			PaperRulesAdvanced: paperRulesAdvanced,
		})
	}

	overlays := append([]OverlayEvent(nil), s.Timeline.OverlayEvents...)
	sort.SliceStable(overlays, func(i, j int) bool {
		return generic.OperationalMinutes(overlays[i].TimeStart, opStart) < generic.OperationalMinutes(overlays[j].TimeStart, opStart)
	})
	eveningStart := DefaultEveningStart
	switch {
	case len(overlays) > 0:
		eveningStart = overlays[0].TimeStart
	case prev.Evening.StartTime != nil:
		eveningStart = *prev.Evening.StartTime
	}

	eveningMachines := prev.Evening.Machines
	if !present(eveningMachines) {
		eveningMachines, _ = json.Marshal(machines)
	}

	return PricingDocument{
		Daytime: DaytimePricing{
			Sessions: sessions,
			Jackpots: firstPresent(prev.Daytime.Jackpots, emptyList),
		},
		Evening: EveningPricing{
			StartTime:        generic.FormatClock(eveningStart),
			ValueProposition: deref(prev.Evening.ValueProposition),
			ScheduleNote:     deref(prev.Evening.ScheduleNote),
			Machines:         eveningMachines,
			SpecialtyGames:   firstPresent(prev.Evening.SpecialtyGames, emptyList),
		},
		Sunday: firstPresent(prev.Sunday, defaultSunday),
		FAQs:   firstPresent(prev.FAQs, emptyList),
	}
}

func bundleMachines(bundles []Bundle) []Machine {
	machines := make([]Machine, 0, len(bundles))
	for _, b := range bundles {
		price := ""
		if b.Price != 0 {
			price = "$" + strconv.FormatFloat(b.Price, 'f', -1, 64)
		}
		machines = append(machines, Machine{
			Description: b.Name,
			Price:       price,
			Type:        "bundle",
			Savings:     b.DiscountLabel,
		})
	}
	return machines
}

// =============================================================================
// SCHEDULE
// =============================================================================

// compileOrder is the weekday order of recurring entries.
var compileOrder = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

type entrySource struct {
	idPrefix   string
	date       string // set for date-specific entries
	days       []string
	overrideID string
	note       string
}

func compileSchedule(s *Schema) []ScheduleSession {
	var sessions []ScheduleSession
	cal := s.Calendar

	for _, day := range compileOrder {
		a, ok := cal.WeekdayDefaults[day]
		if !ok || a.Status != AssignmentOpen || a.ProfileID == "" {
			continue
		}
		if p, ok := s.Profile(a.ProfileID); ok {
			sessions = append(sessions, profileEntries(s, p, entrySource{idPrefix: "RECURRING-" + day, days: []string{day}})...)
		}
	}

	for _, date := range sortedKeys(cal.Assignments) {
		a := cal.Assignments[date]
		if a.Status != AssignmentOpen || a.ProfileID == "" {
			continue
		}
		if p, ok := s.Profile(a.ProfileID); ok {
			sessions = append(sessions, profileEntries(s, p, entrySource{idPrefix: date, date: date})...)
		}
	}

	for _, date := range sortedKeys(cal.Overrides) {
		for _, o := range cal.Overrides[date] {
			if o.EffectiveKind() != OverrideProfileSwap || o.ProfileID == "" {
				continue
			}
			if p, ok := s.Profile(o.ProfileID); ok {
				sessions = append(sessions, profileEntries(s, p, entrySource{idPrefix: date, date: date, overrideID: o.ID, note: o.Reason})...)
			}
		}
	}

	opStart := s.Timeline.OperationalHours.Start
	sort.SliceStable(sessions, func(i, j int) bool {
		return generic.OperationalMinutes(sessions[i].StartTime, opStart) < generic.OperationalMinutes(sessions[j].StartTime, opStart)
	})
	return sessions
}

func profileEntries(s *Schema, p DayProfile, src entrySource) []ScheduleSession {
	var out []ScheduleSession
	for _, id := range p.SegmentIDs {
		seg, ok := s.segment(id)
		if !ok {
			continue
		}
		e := newEntry(src, seg.ID, seg.Label, seg.TimeStart, seg.TimeEnd)
		e.GameType = "Regular"
		e.PricingSessionID = seg.RateCardID
		out = append(out, e)
	}
	for _, id := range p.OverlayEventIDs {
		ev, ok := s.overlay(id)
		if !ok {
			continue
		}
		e := newEntry(src, ev.ID, ev.Label, ev.TimeStart, ev.TimeEnd)
		e.GameType = "Special"
		if present(ev.PricingOverride) {
			e.Pricing = append(json.RawMessage(nil), ev.PricingOverride...)
		}
		e.PricingSessionID = ev.ID
		out = append(out, e)
	}
	return out
}

func newEntry(src entrySource, itemID, label, start, end string) ScheduleSession {
	e := ScheduleSession{
		ID:            src.idPrefix + "-" + itemID,
		Name:          label,
		Category:      InferCategory(label),
		StartTime:     start,
		EndTime:       end,
		Status:        "Upcoming",
		AvailableDays: src.days,
		Pricing:       emptyObject,
		Specials:      emptyObject,
		TotalSeats:    100,
	}
	if src.date != "" {
		e.Name = label + " (Override)"
		e.OverrideDate = src.date
		e.AvailableDays = []string{}
		e.Note = src.note
	}
	if src.overrideID != "" {
		e.ID += "-" + src.overrideID
	}
	return e
}

// InferCategory maps a label to a display category by substring.
func InferCategory(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "morning"):
		return "Morning"
	case strings.Contains(l, "afternoon"):
		return "Afternoon"
	case strings.Contains(l, "evening"), strings.Contains(l, "night"):
		return "Evening"
	default:
		return "Regular"
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func firstPresent(raw, fallback json.RawMessage) json.RawMessage {
	if present(raw) {
		return raw
	}
	return fallback
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
