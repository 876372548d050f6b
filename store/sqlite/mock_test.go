package sqlite_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/shift"
	"github.com/warp/hallops/store/sqlite"
)

func newMock(t *testing.T, driver string) (*sqlite.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.Wrap(db, driver), mock
}

func TestVersionTx_RollsBackWhenActivationFails(t *testing.T) {
	s, mock := newMock(t, sqlite.DriverSQLite)
	ctx := context.Background()

	// GIVEN: archiving succeeds but the insert of the new ACTIVE row hits
	// the one-active index
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE versions SET status").
		WithArgs(string(generic.StatusArchived), "v-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO versions").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique})
	mock.ExpectRollback()

	// WHEN
	err := s.WithVersionTx(ctx, func(tx generic.VersionStore) error {
		if err := tx.SetVersionStatus(ctx, "v-1", generic.StatusArchived); err != nil {
			return err
		}
		return tx.CreateVersion(ctx, &generic.Version{
			ID: "v-2", Kind: generic.KindPricing, Status: generic.StatusActive, Content: json.RawMessage(`{}`),
		})
	})

	// THEN: conflict, and the archive was never committed
	assert.True(t, errors.Is(err, generic.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersionTx_CommitFailure(t *testing.T) {
	s, mock := newMock(t, sqlite.DriverSQLite)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE versions SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err := s.WithVersionTx(ctx, func(tx generic.VersionStore) error {
		return tx.SetVersionStatus(ctx, "v-1", generic.StatusArchived)
	})

	assert.True(t, errors.Is(err, generic.ErrTransactionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UsesDollarPlaceholders(t *testing.T) {
	s, mock := newMock(t, sqlite.DriverPostgres)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT value FROM settings WHERE setting_key = \$1`).
		WithArgs("faqs").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`["a"]`))

	got, err := s.GetSetting(ctx, "faqs")

	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UniqueViolationIsConflict(t *testing.T) {
	s, mock := newMock(t, sqlite.DriverPostgres)
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO restricted_players").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.CreateRestrictedPlayer(ctx, shift.RestrictedPlayer{ID: "rp-1", Name: "Pat Smith", Active: true})

	assert.True(t, errors.Is(err, generic.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetVersionStatus_NoRowsIsNotFound(t *testing.T) {
	s, mock := newMock(t, sqlite.DriverSQLite)

	mock.ExpectExec("UPDATE versions SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetVersionStatus(context.Background(), "ghost", generic.StatusArchived)

	assert.True(t, errors.Is(err, generic.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
