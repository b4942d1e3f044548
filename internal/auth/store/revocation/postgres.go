package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shopcore/pkg/requestcontext"
)

// PostgresList persists spent rotation ids in token_revocations.
type PostgresList struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresList {
	return &PostgresList{db: db}
}

// Consume relies on the jti primary key: only one concurrent insert wins.
// An expired leftover row is replaced, since the token it guarded can no
// longer verify.
func (l *PostgresList) Consume(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET expires_at = EXCLUDED.expires_at
		WHERE token_revocations.expires_at <= $3
	`, jti, expiresAt, requestcontext.Now(ctx))
	if err != nil {
		return false, fmt.Errorf("consume rotation id: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume rotation id rows: %w", err)
	}
	return rows == 1, nil
}

func (l *PostgresList) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET
			expires_at = GREATEST(token_revocations.expires_at, EXCLUDED.expires_at)
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke rotation id: %w", err)
	}
	return nil
}

func (l *PostgresList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var expiresAt time.Time
	err := l.db.QueryRowContext(ctx, `SELECT expires_at FROM token_revocations WHERE jti = $1`, jti).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check rotation id: %w", err)
	}
	return requestcontext.Now(ctx).Before(expiresAt), nil
}

func (l *PostgresList) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge rotation ids: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rotation ids rows: %w", err)
	}
	return int(rows), nil
}
