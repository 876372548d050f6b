/*
dto.go - Request and response bodies of the HTTP API

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *Response: Response wrappers

  Domain types (opsschema.Schema, generic.Version, shift.Record, ...) are
  already JSON-tagged and are returned directly.

VALIDATION:
  Validation is done by the domain packages, not in DTOs. DTOs are pure
  data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/opsschema"
	"github.com/warp/hallops/schedule"
	"github.com/warp/hallops/shift"
)

// =============================================================================
// OPS SCHEMA
// =============================================================================

// SaveOpsDraftResponse is returned by PUT /api/admin/ops-schema/draft.
type SaveOpsDraftResponse struct {
	Schema   *opsschema.Schema `json:"schema"`
	Warnings []generic.Issue   `json:"warnings"`
}

// ValidateResponse is returned by POST /api/admin/ops-schema/validate.
type ValidateResponse struct {
	Valid        bool                        `json:"valid"`
	Issues       []generic.Issue             `json:"issues"`
	Violations   []opsschema.Violation       `json:"violations"`
	Completeness opsschema.CompletenessScore `json:"completeness"`
}

// DoorsOpenRequest sets the doors-open time of one date.
type DoorsOpenRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason,omitempty"`
}

// ApplyHolidaysResponse lists the overrides added to the draft.
type ApplyHolidaysResponse struct {
	Added []opsschema.Override `json:"added"`
}

// =============================================================================
// VERSIONS AND SETTINGS
// =============================================================================

// VersionDTO represents a schedule or pricing version in API responses.
type VersionDTO struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	Status          string          `json:"status"`
	WeekStart       string          `json:"week_start,omitempty"`
	Slots           []generic.Slot  `json:"slots,omitempty"`
	Content         json.RawMessage `json:"content,omitempty"`
	Comment         string          `json:"comment,omitempty"`
	SourceVersionID string          `json:"source_version_id,omitempty"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	PublishedBy     string          `json:"published_by,omitempty"`
	PublishedAt     *time.Time      `json:"published_at,omitempty"`
}

func toVersionDTO(v *generic.Version) VersionDTO {
	return VersionDTO{
		ID:              v.ID,
		Kind:            string(v.Kind),
		Status:          string(v.Status),
		WeekStart:       v.WeekStart,
		Slots:           v.Slots,
		Content:         v.Content,
		Comment:         v.Comment,
		SourceVersionID: v.SourceVersionID,
		CreatedBy:       v.CreatedBy,
		CreatedAt:       v.CreatedAt,
		PublishedBy:     v.PublishedBy,
		PublishedAt:     v.PublishedAt,
	}
}

// DraftRequest is the body of PUT /api/admin/{schedule,pricing}/draft.
type DraftRequest struct {
	WeekStart string          `json:"week_start,omitempty"`
	Slots     []generic.Slot  `json:"slots,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Comment   string          `json:"comment,omitempty"`
}

// PublishRequest is the optional body of every publish endpoint.
type PublishRequest struct {
	Comment string `json:"comment,omitempty"`
}

// RollbackVersionRequest targets a schedule or pricing version.
type RollbackVersionRequest struct {
	VersionID string `json:"version_id"`
	Comment   string `json:"comment,omitempty"`
}

// RollbackSettingRequest targets a numbered settings version.
type RollbackSettingRequest struct {
	Version int    `json:"version"`
	Comment string `json:"comment,omitempty"`
}

// PublishedSettingResponse is the live value of a settings key.
type PublishedSettingResponse struct {
	Key     string `json:"key"`
	Version int    `json:"version"`
	Value   any    `json:"value"`
}

// =============================================================================
// SHIFTS
// =============================================================================

// ReconcilePreviewRequest reconciles a shift without storing it.
type ReconcilePreviewRequest struct {
	SalesBingo    decimal.Decimal     `json:"sales_bingo"`
	SalesPulltabs decimal.Decimal     `json:"sales_pulltabs"`
	Denominations shift.Denominations `json:"denominations"`
	CheckLogs     []shift.CheckEntry  `json:"check_logs"`
}

// RestrictedPlayerRequest adds a restricted player.
type RestrictedPlayerRequest struct {
	Name  string `json:"name"`
	Notes string `json:"notes,omitempty"`
}

// =============================================================================
// PUBLIC
// =============================================================================

// NextSessionResponse wraps the next scheduled session. Session is null
// when the active schedule has no slots.
type NextSessionResponse struct {
	Now     time.Time          `json:"now"`
	Session *schedule.Upcoming `json:"session"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// =============================================================================
// ERRORS
// =============================================================================

// Error codes.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation_failed"
	CodePrecondition = "precondition_failed"
	CodeIntegrity    = "integrity_violation"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInternal     = "internal_error"
)

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
