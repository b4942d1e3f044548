package resettoken

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopcore/internal/auth/models"
	"shopcore/pkg/platform/sentinel"
	txcontext "shopcore/pkg/platform/tx"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newRecord() *models.PasswordResetToken {
	return &models.PasswordResetToken{
		ID:          "01HZX0000000000000000000AA",
		PrincipalID: "U1",
		TenantID:    "shop-a",
		TokenHash:   "abc123",
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestPostgresStore_ReplaceRunsInOneTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := newRecord()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WithArgs("U1", "shop-a").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_tokens")).
		WithArgs("U1", "shop-a").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_reset_tokens")).
		WithArgs(r.ID, "U1", "shop-a", r.TokenHash, r.CreatedAt, r.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewPostgres(db).Replace(context.Background(), r))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_tokens")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_reset_tokens")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewPostgres(db).Replace(context.Background(), newRecord())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceJoinsCallerTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_tokens")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO password_reset_tokens")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), tx)
	require.NoError(t, NewPostgres(db).Replace(ctx, newRecord()))
	// The store must not commit a transaction it does not own.
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkUsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens")).
		WithArgs("U1", "shop-a", "abc123", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := store.MarkUsed(context.Background(), "U1", "shop-a", "abc123", now)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens")).
		WithArgs("U1", "shop-a", "abc123", now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = store.MarkUsed(context.Background(), "U1", "shop-a", "abc123", now)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewPostgres(db)
	cols := []string{"id", "principal_id", "tenant_id", "token_hash", "created_at", "expires_at", "used_at"}

	mock.ExpectQuery(regexp.QuoteMeta("used_at IS NULL AND expires_at > $4")).
		WithArgs("U1", "shop-a", "abc123", now).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("r1", "U1", "shop-a", "abc123", now, now.Add(time.Hour), nil))
	record, err := store.FindActive(context.Background(), "U1", "shop-a", "abc123", now)
	require.NoError(t, err)
	assert.Equal(t, "r1", record.ID)
	assert.Nil(t, record.UsedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM password_reset_tokens")).
		WillReturnError(sql.ErrNoRows)
	_, err = store.FindActive(context.Background(), "U1", "shop-a", "missing", now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpired(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_tokens WHERE expires_at < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := NewPostgres(db).DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryStore_ReplaceKeepsOneActivePerPair(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	first := newRecord()
	require.NoError(t, store.Replace(ctx, first))
	second := newRecord()
	second.ID = "second"
	second.TokenHash = "def456"
	require.NoError(t, store.Replace(ctx, second))

	_, err := store.FindActive(ctx, "U1", "shop-a", "abc123", now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	found, err := store.FindActive(ctx, "U1", "shop-a", "def456", now)
	require.NoError(t, err)
	assert.Equal(t, "second", found.ID)
}
