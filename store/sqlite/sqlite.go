/*
Package sqlite provides the SQL implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface the workflows and the shift
  service consume. SQLite is the default; the same queries run on
  PostgreSQL because they are built with squirrel and the placeholder
  format is picked per driver.

INTERFACES IMPLEMENTED:
  generic.TxSettingsStore: Settings key-value blobs
  generic.TxVersionStore:  Schedule and pricing versions with their slots
  generic.ProgramCatalog:  Program slugs
  shift.Store:             Shift records, cash counts, check logs,
                           restricted players

KEY TABLES:
  settings:           key -> JSON value
  versions:           one row per version, seq gives insertion order
  version_slots:      slots of schedule versions
  programs:           known program slugs
  shift_records:      one row per shift, soft-deleted only
  cash_counts:        denomination counts of a submitted shift
  check_logs:         checks of a submitted shift
  restricted_players: players whose checks are refused

INVARIANTS IN THE SCHEMA:
  - idx_versions_one_active / idx_versions_one_draft: at most one ACTIVE
    and one DRAFT version per kind. A publish that would break this fails
    with generic.ErrConflict and its transaction rolls back.

MONEY:
  Stored as decimal strings (shopspring/decimal implements sql.Scanner and
  driver.Valuer), never as floats.

CONCURRENCY:
  Transactions hold mu so SQLite sees a single writer. With PostgreSQL the
  database serialises conflicting publishes through the unique indexes.

USAGE:
  store, err := sqlite.New("./data/hallops.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/warp/hallops/generic"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs statements against a database or an open transaction.
type queries struct {
	db execer
	sb sq.StatementBuilderType
}

// Store implements all storage interfaces over database/sql.
type Store struct {
	queries
	conn   *sql.DB
	driver string
	mu     sync.Mutex
}

// New opens a SQLite database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects with driver ("sqlite3" or "postgres") and migrates.
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite && strings.HasPrefix(dsn, ":memory:") {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	s := Wrap(db, driver)
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Wrap builds a Store over an already open connection without migrating.
func Wrap(db *sql.DB, driver string) *Store {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == DriverPostgres {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Store{queries: queries{db: db, sb: sb}, conn: db, driver: driver}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Migrate creates the schema. Statements are idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	setting_key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS versions (
	id TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	week_start TEXT,
	content TEXT,
	comment TEXT,
	source_version_id TEXT,
	created_by TEXT,
	created_at TEXT NOT NULL,
	published_by TEXT,
	published_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_versions_kind_seq ON versions(kind, seq);
CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_one_active ON versions(kind) WHERE status = 'ACTIVE';
CREATE UNIQUE INDEX IF NOT EXISTS idx_versions_one_draft ON versions(kind) WHERE status = 'DRAFT';

CREATE TABLE IF NOT EXISTS version_slots (
	id TEXT PRIMARY KEY,
	version_id TEXT NOT NULL REFERENCES versions(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	day_of_week INTEGER NOT NULL,
	start_time TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	program_slug TEXT NOT NULL,
	overrides TEXT
);

CREATE INDEX IF NOT EXISTS idx_version_slots_version ON version_slots(version_id, position);

CREATE TABLE IF NOT EXISTS programs (
	slug TEXT PRIMARY KEY,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shift_records (
	id TEXT PRIMARY KEY,
	date TEXT NOT NULL,
	shift TEXT NOT NULL,
	workflow_type TEXT NOT NULL,
	status TEXT NOT NULL,
	pulltabs_total TEXT NOT NULL,
	deposit_total TEXT NOT NULL,
	bingo_total TEXT NOT NULL,
	beginning_box TEXT,
	ending_box TEXT,
	bingo_actual TEXT,
	deposit_actual TEXT,
	players INTEGER,
	notes TEXT,
	prev_shift_id TEXT,
	sales_json TEXT,
	variance_note TEXT,
	negative_bingo_reason_code TEXT,
	created_by TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_shift_records_date ON shift_records(date, shift);

CREATE TABLE IF NOT EXISTS cash_counts (
	shift_id TEXT PRIMARY KEY REFERENCES shift_records(id),
	denom_100_count INTEGER NOT NULL,
	denom_50_count INTEGER NOT NULL,
	denom_20_count INTEGER NOT NULL,
	denom_10_count INTEGER NOT NULL,
	denom_5_count INTEGER NOT NULL,
	denom_1_count INTEGER NOT NULL,
	denom_quarters INTEGER NOT NULL,
	denom_dimes INTEGER NOT NULL,
	denom_nickels INTEGER NOT NULL,
	denom_pennies INTEGER NOT NULL,
	total_value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS check_logs (
	shift_id TEXT NOT NULL REFERENCES shift_records(id),
	position INTEGER NOT NULL,
	player_name TEXT NOT NULL,
	check_number TEXT NOT NULL,
	amount TEXT NOT NULL,
	stamped_on_back INTEGER NOT NULL,
	phone_dl_written INTEGER NOT NULL,
	PRIMARY KEY (shift_id, position)
);

CREATE TABLE IF NOT EXISTS restricted_players (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	notes TEXT,
	active INTEGER NOT NULL,
	created_at TEXT NOT NULL
)
`

// =============================================================================
// TRANSACTIONS
// =============================================================================

// withTx runs fn inside a database transaction. If fn returns an error
// the transaction is rolled back.
func (s *Store) withTx(ctx context.Context, fn func(q *queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx, sb: s.sb}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", generic.ErrTransactionFailed, err)
	}
	return nil
}

// WithSettingsTx executes fn within a database transaction.
func (s *Store) WithSettingsTx(ctx context.Context, fn func(generic.SettingsStore) error) error {
	return s.withTx(ctx, func(q *queries) error { return fn(q) })
}

// WithVersionTx executes fn within a database transaction.
func (s *Store) WithVersionTx(ctx context.Context, fn func(generic.VersionStore) error) error {
	return s.withTx(ctx, func(q *queries) error { return fn(q) })
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError reports a unique or primary key violation from
// either driver.
func isUniqueConstraintError(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// writeErr maps constraint violations to generic.ErrConflict.
func writeErr(op string, err error) error {
	if isUniqueConstraintError(err) {
		return fmt.Errorf("%s: %w", op, generic.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
