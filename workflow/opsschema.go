/*
opsschema.go - Ops schema draft, publish, rollback and doors-open edit

PURPOSE:
  The ops schema lives in five settings keys:

    ops_schema_draft    what admins edit
    ops_schema_live     last published schema (meta.status = live)
    ops_schema_history  newest-first list of {id, published_at, schema}
    pricing, schedule   legacy documents compiled from the live schema

  Publish compiles the draft against the current pricing and schedule and
  writes live, history, pricing and schedule in one settings transaction.
  Rollback never touches live: it copies the live schema (or the newest
  history entry) back into the draft for review and republish.

SEE ALSO:
  - opsschema/compile.go: Compile
  - opsschema/doors.go: SetDoorsOpen
  - factory/opsschema.go: ParseOpsSchema, NewDraftSchema
*/
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hallops/factory"
	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
	"github.com/warp/hallops/opsschema"
)

// Settings keys used by the ops schema workflow.
const (
	KeyOpsSchemaDraft   = "ops_schema_draft"
	KeyOpsSchemaLive    = "ops_schema_live"
	KeyOpsSchemaHistory = "ops_schema_history"
	KeyPricing          = "pricing"
	KeySchedule         = "schedule"
)

// OpsHistoryEntry is one published ops schema.
type OpsHistoryEntry struct {
	ID          string          `json:"id"`
	PublishedAt time.Time       `json:"published_at"`
	PublishedBy string          `json:"published_by,omitempty"`
	Schema      json.RawMessage `json:"schema"`
}

// OpsHistoryMeta summarises a history entry without its schema.
type OpsHistoryMeta struct {
	ID          string    `json:"id"`
	ProfileName string    `json:"profile_name"`
	PublishedAt time.Time `json:"published_at"`
}

// PublishResult is returned by a successful publish.
type PublishResult struct {
	HistoryID string              `json:"history_id"`
	Schema    *opsschema.Schema   `json:"schema"`
	Compiled  *opsschema.Compiled `json:"compiled"`
}

// OpsSchema runs the ops schema lifecycle over a settings store.
type OpsSchema struct {
	store generic.TxSettingsStore
	log   zerolog.Logger
	deps
}

// NewOpsSchema creates the ops schema workflow.
func NewOpsSchema(store generic.TxSettingsStore, log zerolog.Logger, opts ...Option) *OpsSchema {
	return &OpsSchema{
		store: store,
		log:   log.With().Str("component", "ops_schema").Logger(),
		deps:  newDeps(opts),
	}
}

// =============================================================================
// READ
// =============================================================================

// GetDraft returns the draft, else the live schema, else an empty draft
// for the current year.
func (w *OpsSchema) GetDraft(ctx context.Context) (*opsschema.Schema, error) {
	s, err := loadSchema(ctx, w.store, KeyOpsSchemaDraft)
	if err != nil || s != nil {
		return s, err
	}
	if s, err = loadSchema(ctx, w.store, KeyOpsSchemaLive); err != nil || s != nil {
		return s, err
	}
	return factory.NewDraftSchema(w.now().Year()), nil
}

// GetLive returns the published schema, or ErrNotFound.
func (w *OpsSchema) GetLive(ctx context.Context) (*opsschema.Schema, error) {
	s, err := loadSchema(ctx, w.store, KeyOpsSchemaLive)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, generic.ErrNotFound
	}
	return s, nil
}

// History lists published schemas, newest first.
func (w *OpsSchema) History(ctx context.Context) ([]OpsHistoryMeta, error) {
	entries, err := w.loadHistory(ctx, w.store)
	if err != nil {
		return nil, err
	}
	out := make([]OpsHistoryMeta, 0, len(entries))
	for _, e := range entries {
		var head struct {
			Meta opsschema.Meta `json:"meta"`
		}
		_ = json.Unmarshal(e.Schema, &head)
		out = append(out, OpsHistoryMeta{ID: e.ID, ProfileName: head.Meta.Name, PublishedAt: e.PublishedAt})
	}
	return out, nil
}

// =============================================================================
// WRITE
// =============================================================================

// SaveDraft stores s as the draft. Drafts may be incomplete, so issues
// found by the validator are returned as warnings instead of rejecting
// the save.
func (w *OpsSchema) SaveDraft(ctx context.Context, s *opsschema.Schema, actor string) ([]generic.Issue, error) {
	if s == nil {
		return nil, generic.Precondition("save_ops_schema_draft", "schema is required")
	}
	warnings := opsschema.Validate(s)
	if err := storeJSON(ctx, w.store, KeyOpsSchemaDraft, s); err != nil {
		return nil, err
	}
	metrics.IncVersionTransition("ops_schema", "save_draft")
	w.log.Info().Str("actor", actor).Int("warnings", len(warnings)).Msg("ops schema draft saved")
	return warnings, nil
}

// Publish compiles the draft and makes it live.
func (w *OpsSchema) Publish(ctx context.Context, actor string) (*PublishResult, error) {
	const op = "publish_ops_schema"
	var result *PublishResult
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		s, err := loadSchema(ctx, tx, KeyOpsSchemaDraft)
		if err != nil {
			return err
		}
		if s == nil {
			return generic.Precondition(op, "no ops schema draft found to publish")
		}
		s.Meta.Status = opsschema.StatusLive

		prevPricing, err := tx.GetSetting(ctx, KeyPricing)
		if err != nil {
			return err
		}
		prevSchedule, err := tx.GetSetting(ctx, KeySchedule)
		if err != nil {
			return err
		}
		compiled, err := opsschema.Compile(s, opsschema.CompileOptions{
			PreviousPricing:  prevPricing,
			PreviousSchedule: prevSchedule,
			Log:              &w.log,
		})
		if err != nil {
			return err
		}

		history, err := w.loadHistory(ctx, tx)
		if err != nil {
			return err
		}
		schemaJSON, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode schema: %w", err)
		}
		entry := OpsHistoryEntry{
			ID:          w.newID(),
			PublishedAt: w.now().UTC(),
			PublishedBy: actor,
			Schema:      schemaJSON,
		}
		history = append([]OpsHistoryEntry{entry}, history...)

		if err := tx.SetSetting(ctx, KeyOpsSchemaLive, schemaJSON); err != nil {
			return err
		}
		if err := storeJSON(ctx, tx, KeyOpsSchemaHistory, history); err != nil {
			return err
		}
		if err := storeJSON(ctx, tx, KeyPricing, compiled.Pricing); err != nil {
			return err
		}
		if err := tx.SetSetting(ctx, KeySchedule, compiled.Schedule); err != nil {
			return err
		}
		result = &PublishResult{HistoryID: entry.ID, Schema: s, Compiled: compiled}
		return nil
	})
	if err != nil {
		if generic.IsClientError(err) {
			w.log.Warn().Err(err).Msg("ops schema publish rejected")
		} else {
			w.log.Error().Err(err).Msg("ops schema publish failed")
		}
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition("ops_schema", "publish")
	w.log.Info().Str("history_id", result.HistoryID).Str("actor", actor).Msg("ops schema published")
	return result, nil
}

// Rollback copies the live schema, or the newest history entry when
// nothing is live, into the draft.
func (w *OpsSchema) Rollback(ctx context.Context, actor string) (*opsschema.Schema, error) {
	const op = "rollback_ops_schema"
	var restored *opsschema.Schema
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		raw, err := tx.GetSetting(ctx, KeyOpsSchemaLive)
		if err != nil {
			return err
		}
		if raw == nil {
			history, err := w.loadHistory(ctx, tx)
			if err != nil {
				return err
			}
			if len(history) > 0 {
				raw = history[0].Schema
			}
		}
		if raw == nil {
			return generic.Precondition(op, "no live schema available to roll back to")
		}
		if restored, err = factory.ParseOpsSchema(raw); err != nil {
			return err
		}
		return tx.SetSetting(ctx, KeyOpsSchemaDraft, raw)
	})
	if err != nil {
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition("ops_schema", "rollback")
	w.log.Info().Str("actor", actor).Msg("ops schema draft reset from live")
	return restored, nil
}

// SetDoorsOpen records a doors-open time for date on the draft, creating
// an empty draft when none exists.
func (w *OpsSchema) SetDoorsOpen(ctx context.Context, date, doorsTime, reason, actor string) (opsschema.Override, error) {
	const op = "set_doors_open"
	var saved opsschema.Override
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		s, err := loadSchema(ctx, tx, KeyOpsSchemaDraft)
		if err != nil {
			return err
		}
		if s == nil {
			s = factory.NewDraftSchema(w.now().Year())
		}
		ensureCalendar(s, w.now().Year())
		if saved, err = opsschema.SetDoorsOpen(&s.Calendar, date, doorsTime, reason, w.newID); err != nil {
			return err
		}
		return storeJSON(ctx, tx, KeyOpsSchemaDraft, s)
	})
	if err != nil {
		return opsschema.Override{}, txError(op, err)
	}
	metrics.IncVersionTransition("ops_schema", "doors_open")
	w.log.Info().Str("date", date).Str("time", doorsTime).Str("actor", actor).Msg("doors-open time set on draft")
	return saved, nil
}

// ensureCalendar fills calendar parts a hand-written draft may lack.
func ensureCalendar(s *opsschema.Schema, year int) {
	empty := factory.NewDraftSchema(year).Calendar
	cal := &s.Calendar
	if cal.Range.Start == "" || cal.Range.End == "" {
		cal.Range = empty.Range
	}
	if cal.WeekdayDefaults == nil {
		cal.WeekdayDefaults = empty.WeekdayDefaults
	}
	if cal.Assignments == nil {
		cal.Assignments = empty.Assignments
	}
	if cal.Overrides == nil {
		cal.Overrides = empty.Overrides
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func loadSchema(ctx context.Context, s generic.SettingsStore, key string) (*opsschema.Schema, error) {
	raw, err := s.GetSetting(ctx, key)
	if err != nil || raw == nil {
		return nil, err
	}
	return factory.ParseOpsSchema(raw)
}

// loadHistory reads the publish history. A value of another shape is
// logged and treated as empty, so the next publish replaces it.
func (w *OpsSchema) loadHistory(ctx context.Context, s generic.SettingsStore) ([]OpsHistoryEntry, error) {
	raw, err := s.GetSetting(ctx, KeyOpsSchemaHistory)
	if err != nil || raw == nil {
		return nil, err
	}
	var entries []OpsHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		w.log.Warn().Err(err).Str("key", KeyOpsSchemaHistory).Int("bytes", len(raw)).
			Msg("ops schema history unreadable; treating as empty")
		return nil, nil
	}
	return entries, nil
}

func storeJSON(ctx context.Context, s generic.SettingsStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.SetSetting(ctx, key, data)
}
