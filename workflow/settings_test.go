package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/generic/store"
	"github.com/warp/hallops/workflow"
)

func newSettings(t *testing.T) (*workflow.Settings, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return workflow.NewSettings(mem, zerolog.New(io.Discard), testOptions()...), mem
}

func publishValue(t *testing.T, w *workflow.Settings, value string) *workflow.HistoryEntry {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.SaveDraft(ctx, "faqs", json.RawMessage(value)))
	entry, err := w.Publish(ctx, "faqs", "owner", "")
	require.NoError(t, err)
	return entry
}

func TestSettings_DraftFallsBackToPublished(t *testing.T) {
	w, mem := newSettings(t)
	ctx := context.Background()

	got, err := w.GetDraft(ctx, "faqs")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, mem.SetSetting(ctx, "faqs", json.RawMessage(`["legacy"]`)))
	got, err = w.GetDraft(ctx, "faqs")
	require.NoError(t, err)
	assert.JSONEq(t, `["legacy"]`, string(got))
}

func TestSettings_PublishIncrementsVersion(t *testing.T) {
	w, _ := newSettings(t)
	ctx := context.Background()

	first := publishValue(t, w, `["a"]`)
	second := publishValue(t, w, `["a","b"]`)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)
	value, version, err := w.GetPublished(ctx, "faqs")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.JSONEq(t, `["a","b"]`, string(value))

	history, err := w.History(ctx, "faqs", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.Equal(t, "owner", history[0].PublishedBy)
}

func TestSettings_PublishWithoutDraft(t *testing.T) {
	w, _ := newSettings(t)

	_, err := w.Publish(context.Background(), "faqs", "owner", "")

	assert.True(t, errors.Is(err, generic.ErrPrecondition))
}

func TestSettings_RollbackCreatesNewVersion(t *testing.T) {
	w, _ := newSettings(t)
	ctx := context.Background()
	publishValue(t, w, `["a"]`)
	publishValue(t, w, `["a","b"]`)

	// WHEN: rolling back to version 1
	entry, err := w.Rollback(ctx, "faqs", 1, "manager", "typo in b")

	// THEN: version 3 carries version 1's data and the draft follows
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Version)
	assert.Equal(t, "Rollback to version 1: typo in b", entry.Comment)
	value, version, err := w.GetPublished(ctx, "faqs")
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.JSONEq(t, `["a"]`, string(value))
	draft, err := w.GetDraft(ctx, "faqs")
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(draft))

	history, err := w.History(ctx, "faqs", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, []int{3, 2}, []int{history[0].Version, history[1].Version})
}

func TestSettings_RollbackUnknownVersion(t *testing.T) {
	w, _ := newSettings(t)
	publishValue(t, w, `["a"]`)

	_, err := w.Rollback(context.Background(), "faqs", 9, "owner", "")

	var perr *generic.PreconditionError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 9, perr.Context["version"])
}

func TestSettings_PublishIsAtomic(t *testing.T) {
	w, mem := newSettings(t)
	ctx := context.Background()
	publishValue(t, w, `["a"]`)
	require.NoError(t, w.SaveDraft(ctx, "faqs", json.RawMessage(`["b"]`)))

	mem.FailOn = map[string]error{"SetSetting": errors.New("locked")}
	_, err := w.Publish(ctx, "faqs", "owner", "")
	mem.FailOn = nil

	assert.True(t, errors.Is(err, generic.ErrTransactionFailed))
	value, version, err := w.GetPublished(ctx, "faqs")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.JSONEq(t, `["a"]`, string(value))
}

func TestSettings_KeyChecks(t *testing.T) {
	w, _ := newSettings(t)
	ctx := context.Background()

	assert.True(t, errors.Is(w.SaveDraft(ctx, "faqs:draft", json.RawMessage(`1`)), generic.ErrPrecondition))
	assert.True(t, errors.Is(w.SaveDraft(ctx, "faqs", json.RawMessage(`{oops`)), generic.ErrPrecondition))
}

func TestSettings_DiscardDraftRevertsToPublished(t *testing.T) {
	w, _ := newSettings(t)
	ctx := context.Background()

	// GIVEN: a published value and an unpublished edit
	publishValue(t, w, `["a"]`)
	require.NoError(t, w.SaveDraft(ctx, "faqs", json.RawMessage(`["a","scratch"]`)))

	// WHEN: the edit is discarded
	require.NoError(t, w.DiscardDraft(ctx, "faqs"))

	// THEN: the draft is the published value and no version was added
	got, err := w.GetDraft(ctx, "faqs")
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(got))
	_, version, err := w.GetPublished(ctx, "faqs")
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestSettings_DiscardDraftWithoutPublished(t *testing.T) {
	w, mem := newSettings(t)
	ctx := context.Background()
	require.NoError(t, w.SaveDraft(ctx, "faqs", json.RawMessage(`["scratch"]`)))

	require.NoError(t, w.DiscardDraft(ctx, "faqs"))

	// THEN: the draft key is gone
	raw, err := mem.GetSetting(ctx, "faqs:draft")
	require.NoError(t, err)
	assert.Nil(t, raw)
	got, err := w.GetDraft(ctx, "faqs")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.True(t, errors.Is(w.DiscardDraft(ctx, "faqs:draft"), generic.ErrPrecondition))
}
