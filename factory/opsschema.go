/*
Package factory turns ops schema documents into Go structs.

PURPOSE:
  Admins author the ops schema as JSON (the admin UI) or YAML (hand-edited
  files checked into a repo). Both are decoded into opsschema.Schema. YAML
  is first converted to the JSON shape so the json tags on the schema types
  are the single source of field names.

ERRORS:
  Malformed documents and type mismatches come back as a
  *generic.ValidationError so callers treat them like any other schema
  issue:

    timeline.operationalHours.isOpen  expected bool, got string

USAGE:
  s, err := factory.ParseOpsSchema(data)
  if err != nil { ... }
  issues := opsschema.Validate(s)

  draft := factory.NewDraftSchema(2025)

SEE ALSO:
  - opsschema/types.go: Schema definition
  - workflow/opsschema.go: Uses NewDraftSchema for the doors-open quick edit
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/opsschema"
)

// Issue codes produced while decoding.
const (
	CodeMalformed = "malformed_document"
)

// DraftSchemaVersion is stamped on drafts created from scratch.
const DraftSchemaVersion = "v2"

// =============================================================================
// PARSING
// =============================================================================

// ParseOpsSchema decodes a JSON or YAML ops schema document.
func ParseOpsSchema(data []byte) (*opsschema.Schema, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, malformed("document is empty")
	}

	raw := trimmed
	if trimmed[0] != '{' {
		converted, err := yamlToJSON(trimmed)
		if err != nil {
			return nil, err
		}
		raw = converted
	}

	var s opsschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, decodeError(err)
	}
	return &s, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, malformed("invalid YAML: %v", err)
	}
	root, ok := normalize(doc).(map[string]any)
	if !ok {
		return nil, malformed("document must be a mapping")
	}
	out, err := json.Marshal(root)
	if err != nil {
		return nil, malformed("cannot convert YAML: %v", err)
	}
	return out, nil
}

// normalize rewrites YAML decoder output into values encoding/json accepts.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case time.Time:
		return t.Format(generic.DateLayout)
	default:
		return v
	}
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		var path generic.Path
		if typeErr.Field != "" {
			for _, part := range strings.Split(typeErr.Field, ".") {
				path = append(path, part)
			}
		}
		return &generic.ValidationError{Issues: []generic.Issue{{
			Path:    path,
			Code:    opsschema.CodeInvalidType,
			Message: fmt.Sprintf("expected %s, got %s", typeErr.Type.String(), typeErr.Value),
		}}}
	}
	return malformed("invalid JSON: %v", err)
}

func malformed(format string, args ...any) error {
	return &generic.ValidationError{Issues: []generic.Issue{{
		Path:    generic.Path{},
		Code:    CodeMalformed,
		Message: fmt.Sprintf(format, args...),
	}}}
}

// =============================================================================
// EMPTY DRAFT
// =============================================================================

// NewDraftSchema returns an empty draft covering the calendar year. Every
// weekday is closed until a profile is assigned.
func NewDraftSchema(year int) *opsschema.Schema {
	defaults := make(map[string]opsschema.Assignment, len(generic.WeekdayCodes))
	for _, code := range generic.WeekdayCodes {
		defaults[code] = opsschema.Assignment{Status: opsschema.AssignmentClosed}
	}
	return &opsschema.Schema{
		SchemaVersion: DraftSchemaVersion,
		Meta: opsschema.Meta{
			Name:          "Draft",
			Status:        opsschema.StatusDraft,
			Currency:      "USD",
			Timezone:      "America/Chicago",
			SchemaVersion: DraftSchemaVersion,
		},
		Definitions: opsschema.Definitions{
			InventoryTiers: []opsschema.InventoryTier{},
			Bundles:        []opsschema.Bundle{},
			RateCards:      []opsschema.RateCard{},
		},
		Timeline: opsschema.Timeline{
			OperationalHours: opsschema.OperationalHours{Start: "09:00", End: "03:00", IsOpen: true},
			FlowSegments:     []opsschema.FlowSegment{},
			OverlayEvents:    []opsschema.OverlayEvent{},
		},
		LogicTriggers: []opsschema.Trigger{},
		DayProfiles:   []opsschema.DayProfile{},
		Calendar: opsschema.Calendar{
			Range: opsschema.DateSpan{
				Start: fmt.Sprintf("%04d-01-01", year),
				End:   fmt.Sprintf("%04d-12-31", year),
			},
			WeekdayDefaults: defaults,
			Assignments:     map[string]opsschema.Assignment{},
			Overrides:       map[string][]opsschema.Override{},
		},
	}
}
