package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/generic/store"
	"github.com/warp/hallops/workflow"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testOptions() []workflow.Option {
	n := 0
	return []workflow.Option{
		workflow.WithIDs(func() string { n++; return fmt.Sprintf("id-%d", n) }),
		workflow.WithClock(func() time.Time { return fixedNow }),
	}
}

func newVersions(t *testing.T) (*workflow.Versions, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.AddProgram(generic.Program{Slug: "early-bird", Name: "Early Bird"})
	mem.AddProgram(generic.Program{Slug: "regular", Name: "Regular"})
	return workflow.NewVersions(mem, mem, zerolog.New(io.Discard), testOptions()...), mem
}

func weekDraft(slots ...generic.Slot) workflow.DraftInput {
	return workflow.DraftInput{WeekStart: "2025-03-10", Slots: slots}
}

func activeCount(t *testing.T, mem *store.Memory, kind generic.DocumentKind) int {
	t.Helper()
	list, err := mem.ListVersions(context.Background(), kind)
	require.NoError(t, err)
	n := 0
	for _, v := range list {
		if v.Status == generic.StatusActive {
			n++
		}
	}
	return n
}

// =============================================================================
// DRAFT
// =============================================================================

func TestVersions_SaveDraftUpserts(t *testing.T) {
	w, mem := newVersions(t)
	ctx := context.Background()

	first, err := w.SaveDraft(ctx, generic.KindSchedule, weekDraft(
		generic.Slot{DayOfWeek: 1, StartTime: "18:00", DurationMinutes: 60, ProgramSlug: "early-bird"},
	), "owner")
	require.NoError(t, err)

	second, err := w.SaveDraft(ctx, generic.KindSchedule, weekDraft(), "owner")
	require.NoError(t, err)

	// THEN: one draft, rewritten in place
	assert.Equal(t, first.ID, second.ID)
	list, _ := mem.ListVersions(ctx, generic.KindSchedule)
	assert.Len(t, list, 1)
	draft, err := w.Draft(ctx, generic.KindSchedule)
	require.NoError(t, err)
	assert.Empty(t, draft.Slots)
}

func TestVersions_SaveDraftRejectsBadInput(t *testing.T) {
	w, _ := newVersions(t)
	ctx := context.Background()

	_, err := w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(`{"daytime":`)}, "owner")
	assert.True(t, errors.Is(err, generic.ErrPrecondition))

	_, err = w.SaveDraft(ctx, generic.KindSchedule, workflow.DraftInput{WeekStart: "March 10"}, "owner")
	assert.True(t, errors.Is(err, generic.ErrPrecondition))

	_, err = w.SaveDraft(ctx, "menu", workflow.DraftInput{}, "owner")
	assert.True(t, errors.Is(err, generic.ErrPrecondition))
}

// =============================================================================
// PUBLISH
// =============================================================================

func TestVersions_PublishWithoutDraft(t *testing.T) {
	w, _ := newVersions(t)

	_, err := w.Publish(context.Background(), generic.KindPricing, "owner", "")

	var perr *generic.PreconditionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "no draft to publish", perr.Reason)
}

func TestVersions_PublishRejectsBrokenPricingTemplates(t *testing.T) {
	w, _ := newVersions(t)
	ctx := context.Background()
	_, err := w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(
		`{"schemaVersion":2,"templates":[{"id":"standard","name":"Standard","config":{}}],"defaultTemplateId":"missing"}`,
	)}, "owner")
	require.NoError(t, err)

	_, err = w.Publish(ctx, generic.KindPricing, "owner", "")

	assert.True(t, errors.Is(err, generic.ErrValidation))
	active, err := w.Active(ctx, generic.KindPricing)
	assert.Nil(t, active)
	assert.Error(t, err)
}

func TestVersions_PublishArchivesPrevious(t *testing.T) {
	w, mem := newVersions(t)
	ctx := context.Background()

	// GIVEN: two successive pricing publishes
	_, err := w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(`{"v":1}`)}, "owner")
	require.NoError(t, err)
	v1, err := w.Publish(ctx, generic.KindPricing, "owner", "first")
	require.NoError(t, err)

	_, err = w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(`{"v":2}`)}, "owner")
	require.NoError(t, err)
	v2, err := w.Publish(ctx, generic.KindPricing, "manager", "second")
	require.NoError(t, err)

	// THEN: the first is archived, the second active, the draft kept
	old, err := mem.GetVersion(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusArchived, old.Status)

	active, err := w.Active(ctx, generic.KindPricing)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, active.ID)
	assert.JSONEq(t, `{"v":2}`, string(active.Content))
	assert.Equal(t, "manager", active.PublishedBy)
	require.NotNil(t, active.PublishedAt)
	assert.Equal(t, fixedNow, *active.PublishedAt)

	_, err = w.Draft(ctx, generic.KindPricing)
	assert.NoError(t, err)
	assert.Equal(t, 1, activeCount(t, mem, generic.KindPricing))
}

func TestVersions_PublishScheduleChecksSlots(t *testing.T) {
	w, mem := newVersions(t)
	ctx := context.Background()

	// GIVEN: a draft with two overlapping Monday slots
	_, err := w.SaveDraft(ctx, generic.KindSchedule, weekDraft(
		generic.Slot{DayOfWeek: 1, StartTime: "18:00", DurationMinutes: 90, ProgramSlug: "early-bird"},
		generic.Slot{DayOfWeek: 1, StartTime: "19:00", DurationMinutes: 120, ProgramSlug: "regular"},
	), "owner")
	require.NoError(t, err)

	_, err = w.Publish(ctx, generic.KindSchedule, "owner", "")

	assert.True(t, errors.Is(err, generic.ErrPrecondition))
	assert.Equal(t, 0, activeCount(t, mem, generic.KindSchedule))
}

func TestVersions_PublishIsAtomic(t *testing.T) {
	w, mem := newVersions(t)
	ctx := context.Background()

	// GIVEN: an active version and a new draft
	_, err := w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(`{"v":1}`)}, "owner")
	require.NoError(t, err)
	v1, err := w.Publish(ctx, generic.KindPricing, "owner", "")
	require.NoError(t, err)
	_, err = w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(`{"v":2}`)}, "owner")
	require.NoError(t, err)

	// WHEN: creating the new ACTIVE fails after the old one was archived
	mem.FailOn = map[string]error{"CreateVersion": errors.New("disk full")}
	_, err = w.Publish(ctx, generic.KindPricing, "owner", "")

	// THEN: the failure surfaces and the old version is still active
	assert.True(t, errors.Is(err, generic.ErrTransactionFailed))
	mem.FailOn = nil
	active, err := w.Active(ctx, generic.KindPricing)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.ID)
	assert.Equal(t, 1, activeCount(t, mem, generic.KindPricing))
}

// =============================================================================
// ROLLBACK
// =============================================================================

func TestVersions_PublishThenRollback(t *testing.T) {
	w, mem := newVersions(t)
	ctx := context.Background()
	mon := generic.Slot{DayOfWeek: 1, StartTime: "18:00", DurationMinutes: 60, ProgramSlug: "early-bird"}
	tue := generic.Slot{DayOfWeek: 2, StartTime: "19:00", DurationMinutes: 120, ProgramSlug: "regular"}

	_, err := w.SaveDraft(ctx, generic.KindSchedule, weekDraft(mon), "owner")
	require.NoError(t, err)
	v1, err := w.Publish(ctx, generic.KindSchedule, "owner", "")
	require.NoError(t, err)
	_, err = w.SaveDraft(ctx, generic.KindSchedule, workflow.DraftInput{WeekStart: "2025-03-17", Slots: []generic.Slot{tue}}, "owner")
	require.NoError(t, err)
	v2, err := w.Publish(ctx, generic.KindSchedule, "owner", "")
	require.NoError(t, err)

	// WHEN: rolling back to v1
	v3, err := w.Rollback(ctx, generic.KindSchedule, v1.ID, "manager", "")

	// THEN: a fresh ACTIVE copy of v1; v1 and v2 stay archived
	require.NoError(t, err)
	assert.NotEqual(t, v1.ID, v3.ID)
	assert.Equal(t, v1.ID, v3.SourceVersionID)
	assert.Equal(t, "2025-03-10", v3.WeekStart)
	require.Len(t, v3.Slots, 1)
	assert.Equal(t, "early-bird", v3.Slots[0].ProgramSlug)
	assert.Equal(t, "manager", v3.PublishedBy)

	for _, id := range []string{v1.ID, v2.ID} {
		v, err := mem.GetVersion(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, generic.StatusArchived, v.Status, id)
	}
	assert.Equal(t, 1, activeCount(t, mem, generic.KindSchedule))

	history, err := w.List(ctx, generic.KindSchedule)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, history[0].ID)
}

func TestVersions_RollbackPreconditions(t *testing.T) {
	w, _ := newVersions(t)
	ctx := context.Background()

	_, err := w.Rollback(ctx, generic.KindPricing, "missing", "owner", "")
	var perr *generic.PreconditionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "missing", perr.Context["version_id"])

	// A pricing version cannot be rolled back as a schedule.
	_, err = w.SaveDraft(ctx, generic.KindPricing, workflow.DraftInput{Content: json.RawMessage(`{}`)}, "owner")
	require.NoError(t, err)
	v, err := w.Publish(ctx, generic.KindPricing, "owner", "")
	require.NoError(t, err)
	_, err = w.Rollback(ctx, generic.KindSchedule, v.ID, "owner", "")
	assert.True(t, errors.Is(err, generic.ErrPrecondition))
}
