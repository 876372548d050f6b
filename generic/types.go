package generic

import (
	"encoding/json"
	"time"
)

// =============================================================================
// VERSIONED DOCUMENTS
// =============================================================================

// DocumentKind identifies a family of versioned documents. At most one
// ACTIVE and one DRAFT exist per kind.
type DocumentKind string

const (
	KindSchedule DocumentKind = "schedule"
	KindPricing  DocumentKind = "pricing"
)

// VersionStatus is the lifecycle state of a version.
//
//	DRAFT --publish--> (copy) ACTIVE --superseded--> ARCHIVED
type VersionStatus string

const (
	StatusDraft    VersionStatus = "DRAFT"
	StatusActive   VersionStatus = "ACTIVE"
	StatusArchived VersionStatus = "ARCHIVED"
)

// Version is one record in a document kind's history chain.
type Version struct {
	ID     string
	Kind   DocumentKind
	Status VersionStatus

	// Schedule versions carry a week anchor and slots; pricing versions
	// carry an opaque JSON content blob.
	WeekStart string
	Slots     []Slot
	Content   json.RawMessage

	Comment         string
	SourceVersionID string // set on records produced by rollback

	CreatedBy   string
	CreatedAt   time.Time
	PublishedBy string
	PublishedAt *time.Time
}

// Slot is one recurring weekly gaming session on a schedule version.
type Slot struct {
	ID              string          `json:"id,omitempty"`
	DayOfWeek       int             `json:"day_of_week"`
	StartTime       string          `json:"start_time"`
	DurationMinutes int             `json:"duration_minutes"`
	ProgramSlug     string          `json:"program_slug"`
	Overrides       json.RawMessage `json:"overrides,omitempty"`
}

// Program is a bingo program that slots refer to by slug.
type Program struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// =============================================================================
// SETTINGS
// =============================================================================

// Setting is one key-value pair in the settings store.
type Setting struct {
	Key       string
	Value     json.RawMessage
	UpdatedAt time.Time
}
