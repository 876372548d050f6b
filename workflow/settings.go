/*
settings.go - Version history for plain settings keys

PURPOSE:
  Any settings key can be managed with a draft, a published value and a
  numbered history. Four kinds of keys are used per managed key:

    <key>:draft          editable draft
    <key>                published value read by the site
    <key>:version        published version number
    <key>:history:<n>    snapshot of version n

  Publishing version n writes the value, the counter and history entry n
  together. Rollback restores an entry as a new version n+1, so the
  counter only ever grows and history is never rewritten.

SEE ALSO:
  - versions.go: Record-based versions for schedule and pricing
*/
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
)

// DefaultHistoryLimit is used when History is called with limit <= 0.
const DefaultHistoryLimit = 10

// HistoryEntry is one published version of a settings key.
type HistoryEntry struct {
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
	PublishedAt time.Time       `json:"published_at"`
	PublishedBy string          `json:"published_by"`
	Comment     string          `json:"comment,omitempty"`
}

// Settings manages versioned settings keys.
type Settings struct {
	store generic.TxSettingsStore
	log   zerolog.Logger
	deps
}

// NewSettings creates the settings history workflow.
func NewSettings(store generic.TxSettingsStore, log zerolog.Logger, opts ...Option) *Settings {
	return &Settings{
		store: store,
		log:   log.With().Str("component", "settings").Logger(),
		deps:  newDeps(opts),
	}
}

func draftKey(key string) string          { return key + ":draft" }
func versionKey(key string) string        { return key + ":version" }
func historyPrefix(key string) string     { return key + ":history:" }
func historyKey(key string, n int) string { return historyPrefix(key) + strconv.Itoa(n) }

func checkKey(op, key string) error {
	if key == "" || strings.Contains(key, ":") {
		return generic.Precondition(op, "settings key must be non-empty and must not contain ':'", "key", key)
	}
	return nil
}

// SaveDraft stores value as the draft of key.
func (w *Settings) SaveDraft(ctx context.Context, key string, value json.RawMessage) error {
	if err := checkKey("save_settings_draft", key); err != nil {
		return err
	}
	if !json.Valid(value) {
		return generic.Precondition("save_settings_draft", "value must be a JSON document", "key", key)
	}
	if err := w.store.SetSetting(ctx, draftKey(key), value); err != nil {
		return fmt.Errorf("save draft %s: %w", key, err)
	}
	w.log.Info().Str("key", key).Msg("settings draft saved")
	return nil
}

// GetDraft returns the draft of key, falling back to the published value.
// Both absent yields nil.
func (w *Settings) GetDraft(ctx context.Context, key string) (json.RawMessage, error) {
	draft, err := w.store.GetSetting(ctx, draftKey(key))
	if err != nil || draft != nil {
		return draft, err
	}
	return w.store.GetSetting(ctx, key)
}

// DiscardDraft drops unpublished edits to key. The draft is reset to the
// published value, or removed when nothing has been published.
func (w *Settings) DiscardDraft(ctx context.Context, key string) error {
	const op = "discard_settings_draft"
	if err := checkKey(op, key); err != nil {
		return err
	}
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		published, err := tx.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if published == nil {
			return tx.DeleteSetting(ctx, draftKey(key))
		}
		return tx.SetSetting(ctx, draftKey(key), published)
	})
	if err != nil {
		return txError(op, err)
	}
	metrics.IncVersionTransition("setting", "discard_draft")
	w.log.Info().Str("key", key).Msg("settings draft discarded")
	return nil
}

// GetPublished returns the published value and its version number.
func (w *Settings) GetPublished(ctx context.Context, key string) (json.RawMessage, int, error) {
	value, err := w.store.GetSetting(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	version, err := readVersion(ctx, w.store, key)
	if err != nil {
		return nil, 0, err
	}
	return value, version, nil
}

// Publish promotes the draft of key to a new version.
func (w *Settings) Publish(ctx context.Context, key, actor, comment string) (*HistoryEntry, error) {
	const op = "publish_setting"
	if err := checkKey(op, key); err != nil {
		return nil, err
	}
	var entry *HistoryEntry
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		draft, err := tx.GetSetting(ctx, draftKey(key))
		if err != nil {
			return err
		}
		if draft == nil {
			return generic.Precondition(op, "no draft to publish", "key", key)
		}
		entry, err = w.commit(ctx, tx, key, draft, actor, comment)
		return err
	})
	if err != nil {
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition("setting", "publish")
	w.log.Info().Str("key", key).Int("version", entry.Version).Str("actor", actor).Msg("setting published")
	return entry, nil
}

// Rollback republishes history entry version as a new version and resets
// the draft to it.
func (w *Settings) Rollback(ctx context.Context, key string, version int, actor, comment string) (*HistoryEntry, error) {
	const op = "rollback_setting"
	if err := checkKey(op, key); err != nil {
		return nil, err
	}
	var entry *HistoryEntry
	err := w.store.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		target, err := readEntry(ctx, tx, key, version)
		if err != nil {
			return err
		}
		if target == nil {
			return generic.Precondition(op, "version not found", "key", key, "version", version)
		}

		// Values published before history was kept get a snapshot first.
		current, err := readVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		published, err := tx.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if published != nil && current > 0 {
			existing, err := readEntry(ctx, tx, key, current)
			if err != nil {
				return err
			}
			if existing == nil {
				snap := HistoryEntry{Version: current, Data: published, PublishedAt: w.now().UTC(), PublishedBy: actor,
					Comment: "Snapshot before rollback"}
				if err := storeJSON(ctx, tx, historyKey(key, current), snap); err != nil {
					return err
				}
			}
		}

		note := fmt.Sprintf("Rollback to version %d", version)
		if comment != "" {
			note += ": " + comment
		}
		entry, err = w.commit(ctx, tx, key, target.Data, actor, note)
		if err != nil {
			return err
		}
		return tx.SetSetting(ctx, draftKey(key), target.Data)
	})
	if err != nil {
		return nil, txError(op, err)
	}
	metrics.IncVersionTransition("setting", "rollback")
	w.log.Info().Str("key", key).Int("version", entry.Version).Int("restored", version).Msg("setting rolled back")
	return entry, nil
}

// History returns up to limit entries, newest version first.
func (w *Settings) History(ctx context.Context, key string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := w.store.ListSettings(ctx, historyPrefix(key))
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		var e HistoryEntry
		if err := json.Unmarshal(row.Value, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", row.Key, err)
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version > entries[j].Version })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (w *Settings) commit(ctx context.Context, tx generic.SettingsStore, key string, value json.RawMessage, actor, comment string) (*HistoryEntry, error) {
	current, err := readVersion(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	entry := &HistoryEntry{
		Version:     current + 1,
		Data:        value,
		PublishedAt: w.now().UTC(),
		PublishedBy: actor,
		Comment:     comment,
	}
	if err := tx.SetSetting(ctx, key, value); err != nil {
		return nil, err
	}
	if err := storeJSON(ctx, tx, versionKey(key), entry.Version); err != nil {
		return nil, err
	}
	if err := storeJSON(ctx, tx, historyKey(key, entry.Version), entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func readVersion(ctx context.Context, s generic.SettingsStore, key string) (int, error) {
	raw, err := s.GetSetting(ctx, versionKey(key))
	if err != nil || raw == nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode %s: %w", versionKey(key), err)
	}
	return n, nil
}

func readEntry(ctx context.Context, s generic.SettingsStore, key string, version int) (*HistoryEntry, error) {
	raw, err := s.GetSetting(ctx, historyKey(key, version))
	if err != nil || raw == nil {
		return nil, err
	}
	var e HistoryEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", historyKey(key, version), err)
	}
	return &e, nil
}
