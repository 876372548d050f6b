package opsschema

import "encoding/json"

// =============================================================================
// OPS SCHEMA DOCUMENT
// =============================================================================

// Schema is the authorable operations document: what is sold, when the
// hall runs, what a day looks like and which days are which.
type Schema struct {
	SchemaVersion string       `json:"schema_version"`
	Meta          Meta         `json:"meta"`
	Definitions   Definitions  `json:"definitions"`
	Timeline      Timeline     `json:"timeline"`
	LogicTriggers []Trigger    `json:"logicTriggers"`
	DayProfiles   []DayProfile `json:"dayProfiles"`
	Calendar      Calendar     `json:"calendar"`
}

// Meta statuses.
const (
	StatusDraft = "draft"
	StatusLive  = "live"
)

type Meta struct {
	Name          string `json:"name"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Timezone      string `json:"timezone"`
	SchemaVersion string `json:"schema_version"`
}

type Definitions struct {
	InventoryTiers []InventoryTier `json:"inventoryTiers"`
	Bundles        []Bundle        `json:"bundles"`
	RateCards      []RateCard      `json:"rateCards"`
}

type InventoryTier struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type Bundle struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Items         []string `json:"items"`
	Price         float64  `json:"price"`
	DiscountLabel string   `json:"discount_label,omitempty"`
	Savings       *float64 `json:"savings,omitempty"`
}

// Yield modes for a rate card.
const (
	YieldFixedRate    = "fixed_rate"
	YieldStandardRate = "standard_rate"
	YieldReducedRate  = "reduced_rate"
)

type RateCard struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Category           string             `json:"category,omitempty"`
	YieldConfiguration YieldConfiguration `json:"yield_configuration"`
}

type YieldConfiguration struct {
	Mode          string         `json:"mode"`
	ActiveBundles []string       `json:"active_bundles"`
	Rules         map[string]any `json:"rules,omitempty"`
}

// =============================================================================
// TIMELINE
// =============================================================================

type Timeline struct {
	OperationalHours OperationalHours `json:"operationalHours"`
	FlowSegments     []FlowSegment    `json:"flowSegments"`
	OverlayEvents    []OverlayEvent   `json:"overlayEvents"`
}

type OperationalHours struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	IsOpen bool   `json:"isOpen"`
}

// FlowSegment is a named slice of the operating day tied to a rate card.
type FlowSegment struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	TimeStart    string `json:"time_start"`
	TimeEnd      string `json:"time_end"`
	RateCardID   string `json:"rate_card_id"`
	ColorCode    string `json:"color_code,omitempty"`
	AllowOverlap bool   `json:"allow_overlap,omitempty"`
}

// OverlayEvent is a special event layered over the flow segments.
type OverlayEvent struct {
	ID              string          `json:"id"`
	Label           string          `json:"label"`
	TimeStart       string          `json:"time_start"`
	TimeEnd         string          `json:"time_end"`
	IsHardTicket    bool            `json:"is_hard_ticket"`
	PricingOverride json.RawMessage `json:"pricing_override,omitempty"`
}

// Trigger types.
const (
	TriggerHardReset        = "hard_reset"
	TriggerSalesWindowOpen  = "sales_window_open"
	TriggerSalesWindowClose = "sales_window_close"
	TriggerDoorsOpen        = "doors_open"
	TriggerDoorsClose       = "doors_close"
	TriggerSessionStart     = "session_start"
	TriggerSessionEnd       = "session_end"
	TriggerJackpotReset     = "jackpot_reset"
	TriggerCustom           = "custom"
)

var triggerTypes = map[string]bool{
	TriggerHardReset: true, TriggerSalesWindowOpen: true, TriggerSalesWindowClose: true,
	TriggerDoorsOpen: true, TriggerDoorsClose: true, TriggerSessionStart: true,
	TriggerSessionEnd: true, TriggerJackpotReset: true, TriggerCustom: true,
}

// Trigger is a timed action, optionally aimed at an overlay event.
type Trigger struct {
	ID          string `json:"id"`
	TriggerTime string `json:"trigger_time"`
	Type        string `json:"type"`
	TargetEvent string `json:"target_event,omitempty"`
	Description string `json:"description,omitempty"`
	CustomLabel string `json:"customLabel,omitempty"`
}

// =============================================================================
// DAY PROFILES
// =============================================================================

// Day profile categories.
const (
	CategoryWeekday = "weekday"
	CategoryWeekend = "weekend"
	CategorySpecial = "special"
	CategoryClosed  = "closed"
)

// DayProfile bundles segment and overlay references into "a kind of day".
type DayProfile struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	SegmentIDs      []string `json:"segment_ids"`
	OverlayEventIDs []string `json:"overlay_event_ids"`
	Description     string   `json:"description,omitempty"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// Assignment statuses.
const (
	AssignmentOpen   = "open"
	AssignmentClosed = "closed"
)

// Override kinds.
const (
	OverrideLocked      = "LOCKED"
	OverrideClosed      = "CLOSED"
	OverrideCloseEarly  = "CLOSE_EARLY"
	OverrideDoorsOpen   = "DOORS_OPEN"
	OverrideProfileSwap = "PROFILE_SWAP"
)

var overrideKinds = map[string]bool{
	OverrideLocked: true, OverrideClosed: true, OverrideCloseEarly: true,
	OverrideDoorsOpen: true, OverrideProfileSwap: true,
}

type Calendar struct {
	Range           DateSpan              `json:"range"`
	WeekdayDefaults map[string]Assignment `json:"weekdayDefaults"`
	Assignments     map[string]Assignment `json:"assignments"`
	Overrides       map[string][]Override `json:"overrides"`
}

type DateSpan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Assignment is the open/closed + profile decision for a weekday or date.
type Assignment struct {
	Status    string `json:"status"`
	ProfileID string `json:"profile_id,omitempty"`
}

// Override is a date-specific exception.
type Override struct {
	ID            string `json:"id"`
	Kind          string `json:"kind,omitempty"`
	ProfileID     string `json:"profile_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
	UntilTime     string `json:"until_time,omitempty"`
	DoorsOpenTime string `json:"doors_open_time,omitempty"`
}

// EffectiveKind resolves an entry without an explicit kind: a bare
// profile_id is a profile swap.
func (o Override) EffectiveKind() string {
	if o.Kind != "" {
		return o.Kind
	}
	if o.ProfileID != "" {
		return OverrideProfileSwap
	}
	return ""
}

// =============================================================================
// LOOKUPS
// =============================================================================

func (s *Schema) rateCard(id string) (RateCard, bool) {
	for _, rc := range s.Definitions.RateCards {
		if rc.ID == id {
			return rc, true
		}
	}
	return RateCard{}, false
}

func (s *Schema) segment(id string) (FlowSegment, bool) {
	for _, seg := range s.Timeline.FlowSegments {
		if seg.ID == id {
			return seg, true
		}
	}
	return FlowSegment{}, false
}

func (s *Schema) overlay(id string) (OverlayEvent, bool) {
	for _, ev := range s.Timeline.OverlayEvents {
		if ev.ID == id {
			return ev, true
		}
	}
	return OverlayEvent{}, false
}

// Profile returns the day profile with id.
func (s *Schema) Profile(id string) (DayProfile, bool) {
	for _, p := range s.DayProfiles {
		if p.ID == id {
			return p, true
		}
	}
	return DayProfile{}, false
}

// Clone returns a deep copy through JSON.
func (s *Schema) Clone() *Schema {
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var c Schema
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	return &c
}
