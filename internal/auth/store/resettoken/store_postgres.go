package resettoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopcore/internal/auth/models"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/sentinel"
	txcontext "shopcore/pkg/platform/tx"
)

var errNotFound = fmt.Errorf("reset token not found: %w", sentinel.ErrNotFound)

// PostgresStore persists reset tokens in password_reset_tokens. Methods join
// the transaction in ctx when present, so MarkUsed commits together with the
// caller's password update.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Replace removes every unused token for the record's (principal, tenant)
// pair and inserts record, in one transaction. A transaction-scoped advisory
// lock on the pair serialises concurrent requests for the same pair.
func (s *PostgresStore) Replace(ctx context.Context, record *models.PasswordResetToken) error {
	if record == nil {
		return fmt.Errorf("reset token is required")
	}
	return s.inTx(ctx, func(q txcontext.Querier) error {
		principalID, tenantID := record.PrincipalID.String(), record.TenantID.String()

		if _, err := q.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, principalID, tenantID,
		); err != nil {
			return fmt.Errorf("lock reset token pair: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			DELETE FROM password_reset_tokens
			WHERE principal_id = $1 AND tenant_id = $2 AND used_at IS NULL
		`, principalID, tenantID); err != nil {
			return fmt.Errorf("delete previous reset tokens: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO password_reset_tokens (id, principal_id, tenant_id, token_hash, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, record.ID, principalID, tenantID, record.TokenHash, record.CreatedAt, record.ExpiresAt); err != nil {
			return fmt.Errorf("insert reset token: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) FindActive(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, principal_id, tenant_id, token_hash, created_at, expires_at, used_at
		FROM password_reset_tokens
		WHERE principal_id = $1 AND tenant_id = $2 AND token_hash = $3
		  AND used_at IS NULL AND expires_at > $4
	`
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query,
		principalID.String(), tenantID.String(), tokenHash, now)
	record, err := scanResetToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return record, nil
}

// MarkUsed claims the token with one conditional UPDATE. Under concurrent
// calls the row lock lets exactly one of them see used_at IS NULL.
func (s *PostgresStore) MarkUsed(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID, tokenHash string, now time.Time) (bool, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE password_reset_tokens
		SET used_at = $4
		WHERE principal_id = $1 AND tenant_id = $2 AND token_hash = $3
		  AND used_at IS NULL AND expires_at > $4
	`, principalID.String(), tenantID.String(), tokenHash, now)
	if err != nil {
		return false, fmt.Errorf("mark reset token used: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reset token used rows: %w", err)
	}
	return rows == 1, nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens rows: %w", err)
	}
	return int(rows), nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(q txcontext.Querier) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset token tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is a no-op
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset token tx: %w", err)
	}
	return nil
}

type resetTokenRow interface {
	Scan(dest ...any) error
}

func scanResetToken(row resetTokenRow) (*models.PasswordResetToken, error) {
	var (
		record                models.PasswordResetToken
		principalID, tenantID string
		usedAt                sql.NullTime
	)
	if err := row.Scan(&record.ID, &principalID, &tenantID, &record.TokenHash,
		&record.CreatedAt, &record.ExpiresAt, &usedAt); err != nil {
		return nil, err
	}
	record.PrincipalID = id.PrincipalID(principalID)
	record.TenantID = id.TenantID(tenantID)
	if usedAt.Valid {
		record.UsedAt = &usedAt.Time
	}
	return &record, nil
}
