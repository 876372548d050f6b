/*
versions.go - Draft / publish / rollback for schedule and pricing versions

PURPOSE:
  Each document kind keeps a chain of versions:

    DRAFT (0..1, mutable)
      --publish-->  new ACTIVE copy  (previous ACTIVE -> ARCHIVED)
    ARCHIVED version
      --rollback--> new ACTIVE copy  (previous ACTIVE -> ARCHIVED)

  History is never edited or deleted. Publishing leaves the draft in place
  so the next edit starts from what was just published.

ATOMICITY:
  Archive-old and create-new run in one WithVersionTx call. If either
  fails nothing is written, so a kind never ends up with two ACTIVE
  versions or loses its ACTIVE version.

PRECONDITIONS:
  - publish with no draft
  - schedule publish with overlapping, misaligned or unknown-program slots
  - rollback to an unknown version, or a version of another kind

SEE ALSO:
  - schedule/slots.go: Schedule publish checks
  - generic/store.go: TxVersionStore
*/
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
	"github.com/warp/hallops/pricing"
	"github.com/warp/hallops/schedule"
)

// DraftInput is the editable content of a draft.
type DraftInput struct {
	WeekStart string          `json:"week_start,omitempty"`
	Slots     []generic.Slot  `json:"slots,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Comment   string          `json:"comment,omitempty"`
}

// Versions manages schedule and pricing version chains.
type Versions struct {
	store    generic.TxVersionStore
	programs generic.ProgramCatalog
	log      zerolog.Logger
	deps
}

// NewVersions creates the version workflow.
func NewVersions(store generic.TxVersionStore, programs generic.ProgramCatalog, log zerolog.Logger, opts ...Option) *Versions {
	return &Versions{
		store:    store,
		programs: programs,
		log:      log.With().Str("component", "versions").Logger(),
		deps:     newDeps(opts),
	}
}

func checkKind(op string, kind generic.DocumentKind) error {
	if kind != generic.KindSchedule && kind != generic.KindPricing {
		return generic.Precondition(op, "unknown document kind", "kind", string(kind))
	}
	return nil
}

// =============================================================================
// DRAFT
// =============================================================================

// SaveDraft creates or replaces the single draft of kind.
func (w *Versions) SaveDraft(ctx context.Context, kind generic.DocumentKind, in DraftInput, actor string) (*generic.Version, error) {
	op := "save_" + string(kind) + "_draft"
	if err := checkKind(op, kind); err != nil {
		return nil, err
	}
	if in.WeekStart != "" && !generic.IsValidDate(in.WeekStart) {
		return nil, generic.Precondition(op, "week_start must be YYYY-MM-DD", "week_start", in.WeekStart)
	}
	if kind == generic.KindPricing && !json.Valid(in.Content) {
		return nil, generic.Precondition(op, "pricing content must be a JSON document")
	}

	var saved *generic.Version
	err := w.store.WithVersionTx(ctx, func(tx generic.VersionStore) error {
		draft, err := tx.FindVersionByStatus(ctx, kind, generic.StatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			draft = &generic.Version{
				ID:        w.newID(),
				Kind:      kind,
				Status:    generic.StatusDraft,
				CreatedBy: actor,
				CreatedAt: w.now().UTC(),
			}
			applyDraft(draft, in)
			saved = draft
			return tx.CreateVersion(ctx, draft)
		}
		applyDraft(draft, in)
		saved = draft
		return tx.UpdateVersion(ctx, draft)
	})
	if err != nil {
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition(string(kind), "save_draft")
	w.log.Info().Str("kind", string(kind)).Str("version_id", saved.ID).Msg("draft saved")
	return saved, nil
}

func applyDraft(v *generic.Version, in DraftInput) {
	v.WeekStart = in.WeekStart
	v.Slots = append([]generic.Slot(nil), in.Slots...)
	v.Content = append(json.RawMessage(nil), in.Content...)
	v.Comment = in.Comment
}

// Draft returns the draft of kind, or ErrNotFound.
func (w *Versions) Draft(ctx context.Context, kind generic.DocumentKind) (*generic.Version, error) {
	return w.byStatus(ctx, kind, generic.StatusDraft)
}

// Active returns the published version of kind, or ErrNotFound.
func (w *Versions) Active(ctx context.Context, kind generic.DocumentKind) (*generic.Version, error) {
	return w.byStatus(ctx, kind, generic.StatusActive)
}

func (w *Versions) byStatus(ctx context.Context, kind generic.DocumentKind, status generic.VersionStatus) (*generic.Version, error) {
	v, err := w.store.FindVersionByStatus(ctx, kind, status)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, generic.ErrNotFound
	}
	return v, nil
}

// List returns the history of kind, newest first.
func (w *Versions) List(ctx context.Context, kind generic.DocumentKind) ([]generic.Version, error) {
	if err := checkKind("list_versions", kind); err != nil {
		return nil, err
	}
	return w.store.ListVersions(ctx, kind)
}

// =============================================================================
// PUBLISH / ROLLBACK
// =============================================================================

// Publish copies the draft of kind into a new ACTIVE version.
func (w *Versions) Publish(ctx context.Context, kind generic.DocumentKind, actor, comment string) (*generic.Version, error) {
	op := "publish_" + string(kind)
	if err := checkKind(op, kind); err != nil {
		return nil, err
	}

	var programs []generic.Program
	if kind == generic.KindSchedule {
		var err error
		if programs, err = w.programs.ListPrograms(ctx); err != nil {
			return nil, fmt.Errorf("list programs: %w", err)
		}
	}

	var published *generic.Version
	err := w.store.WithVersionTx(ctx, func(tx generic.VersionStore) error {
		draft, err := tx.FindVersionByStatus(ctx, kind, generic.StatusDraft)
		if err != nil {
			return err
		}
		if draft == nil {
			return generic.Precondition(op, "no draft to publish", "kind", string(kind))
		}
		switch kind {
		case generic.KindSchedule:
			if err := schedule.ValidateSlots(draft.Slots, programs); err != nil {
				return err
			}
		case generic.KindPricing:
			if err := pricing.Validate(draft.Content); err != nil {
				return err
			}
		}
		if comment == "" {
			comment = draft.Comment
		}
		published, err = w.activate(ctx, tx, draft, actor, comment, "")
		return err
	})
	if err != nil {
		if generic.IsClientError(err) {
			w.log.Warn().Err(err).Str("kind", string(kind)).Msg("publish rejected")
		}
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition(string(kind), "publish")
	w.log.Info().Str("kind", string(kind)).Str("version_id", published.ID).Str("actor", actor).Msg("version published")
	return published, nil
}

// Rollback re-activates the content of a historical version as a new
// ACTIVE version. The target keeps its own status and content.
func (w *Versions) Rollback(ctx context.Context, kind generic.DocumentKind, versionID, actor, comment string) (*generic.Version, error) {
	op := "rollback_" + string(kind)
	if err := checkKind(op, kind); err != nil {
		return nil, err
	}

	var restored *generic.Version
	err := w.store.WithVersionTx(ctx, func(tx generic.VersionStore) error {
		target, err := tx.GetVersion(ctx, versionID)
		if generic.IsNotFound(err) {
			return generic.Precondition(op, "version not found", "version_id", versionID)
		}
		if err != nil {
			return err
		}
		if target.Kind != kind {
			return generic.Precondition(op, "version belongs to another document kind",
				"version_id", versionID, "kind", string(target.Kind))
		}
		if comment == "" {
			comment = "Rollback to " + versionID
		}
		restored, err = w.activate(ctx, tx, target, actor, comment, target.ID)
		return err
	})
	if err != nil {
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition(string(kind), "rollback")
	w.log.Info().
		Str("kind", string(kind)).
		Str("version_id", restored.ID).
		Str("source_version_id", versionID).
		Str("actor", actor).
		Msg("version rolled back")
	return restored, nil
}

// activate archives the current ACTIVE version of src.Kind and inserts a
// copy of src as the new ACTIVE version.
func (w *Versions) activate(ctx context.Context, tx generic.VersionStore, src *generic.Version, actor, comment, sourceID string) (*generic.Version, error) {
	current, err := tx.FindVersionByStatus(ctx, src.Kind, generic.StatusActive)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if err := tx.SetVersionStatus(ctx, current.ID, generic.StatusArchived); err != nil {
			return nil, err
		}
	}

	now := w.now().UTC()
	next := &generic.Version{
		ID:              w.newID(),
		Kind:            src.Kind,
		Status:          generic.StatusActive,
		WeekStart:       src.WeekStart,
		Content:         append(json.RawMessage(nil), src.Content...),
		Comment:         comment,
		SourceVersionID: sourceID,
		CreatedBy:       actor,
		CreatedAt:       now,
		PublishedBy:     actor,
		PublishedAt:     &now,
	}
	for _, s := range src.Slots {
		s.ID = ""
		next.Slots = append(next.Slots, s)
	}
	if err := tx.CreateVersion(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}
