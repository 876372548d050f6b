/*
store.go - Persistence interfaces consumed by the workflows

PURPOSE:
  Defines the boundary between the publish/rollback workflows and the
  database. The core never talks SQL; it talks to these interfaces.

KEY INTERFACES:
  SettingsStore:    Key-value JSON blobs (ops schema draft/live/history,
                    legacy pricing and schedule documents)
  TxSettingsStore:  Atomic multi-key writes
  VersionStore:     Versioned schedule/pricing records and their slots
  TxVersionStore:   Atomic archive-old + activate-new
  ProgramCatalog:   Known program slugs

ATOMICITY:
  Publish and rollback always run inside WithSettingsTx / WithVersionTx.
  If fn returns an error nothing is written, so a failure can never leave
  two ACTIVE records or zero ACTIVE records behind.

IMPLEMENTATIONS:
  - store/sqlite: SQLite (default) or PostgreSQL
  - store/redis:  Read-through cache in front of a SettingsStore
  - generic/store: In-memory for tests and the CLI

SEE ALSO:
  - workflow/versions.go: Uses TxVersionStore
  - workflow/opsschema.go: Uses TxSettingsStore
*/
package generic

import (
	"context"
	"encoding/json"
)

// =============================================================================
// SETTINGS STORE
// =============================================================================

// SettingsStore reads and writes JSON values by key.
type SettingsStore interface {
	// GetSetting returns the stored value, or nil when the key is absent.
	GetSetting(ctx context.Context, key string) (json.RawMessage, error)

	// SetSetting upserts a value.
	SetSetting(ctx context.Context, key string, value json.RawMessage) error

	// DeleteSetting removes key. Deleting an absent key is not an error.
	DeleteSetting(ctx context.Context, key string) error

	// ListSettings returns every setting whose key starts with prefix.
	ListSettings(ctx context.Context, prefix string) ([]Setting, error)
}

// TxSettingsStore adds transactions to SettingsStore.
type TxSettingsStore interface {
	SettingsStore

	// WithSettingsTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithSettingsTx(ctx context.Context, fn func(SettingsStore) error) error
}

// =============================================================================
// VERSION STORE
// =============================================================================

// VersionStore persists versioned documents.
type VersionStore interface {
	// FindVersionByStatus returns the single version of kind in status,
	// or nil when there is none.
	FindVersionByStatus(ctx context.Context, kind DocumentKind, status VersionStatus) (*Version, error)

	// GetVersion loads a version with its slots. Returns ErrNotFound.
	GetVersion(ctx context.Context, id string) (*Version, error)

	// ListVersions returns versions of kind, newest first, without slots.
	ListVersions(ctx context.Context, kind DocumentKind) ([]Version, error)

	// CreateVersion inserts v and its slots.
	CreateVersion(ctx context.Context, v *Version) error

	// UpdateVersion rewrites content, week start, comment and slots.
	UpdateVersion(ctx context.Context, v *Version) error

	// SetVersionStatus moves a version to status.
	SetVersionStatus(ctx context.Context, id string, status VersionStatus) error
}

// TxVersionStore adds transactions to VersionStore.
type TxVersionStore interface {
	VersionStore

	// WithVersionTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithVersionTx(ctx context.Context, fn func(VersionStore) error) error
}

// ProgramCatalog lists the programs schedule slots may reference.
type ProgramCatalog interface {
	ListPrograms(ctx context.Context) ([]Program, error)
}
