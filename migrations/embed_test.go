package migrations

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesAreOrdered(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"000001_tenants.up.sql",
		"000002_principals.up.sql",
		"000003_password_reset_tokens.up.sql",
		"000004_token_revocations.up.sql",
		"000005_service_orders_rls.up.sql",
	}, files)
}

func TestUpExecutesEveryMigration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"tenants", "principals", "password_reset_tokens", "token_revocations", "service_orders"} {
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS " + table)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Up(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
