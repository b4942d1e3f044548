package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"shopcore/internal/auth/models"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/sentinel"
	txcontext "shopcore/pkg/platform/tx"
)

// PostgresStore persists principals in PostgreSQL. Every method joins the
// transaction carried in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const principalColumns = `id, email, kind, role, tenant_id, password_hash, status, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, p *models.Principal) error {
	if p == nil {
		return fmt.Errorf("principal is required")
	}
	query := `
		INSERT INTO principals (` + principalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		p.ID.String(),
		nullString(p.Email),
		string(p.Kind),
		string(p.Role),
		nullString(p.Binding.String()),
		p.PasswordHash,
		string(p.Status),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("principal email already registered: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("save principal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, principalID id.PrincipalID) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	p, err := scanPrincipal(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, principalID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find principal by id: %w", err)
	}
	return p, nil
}

// FindByEmailInTenant resolves an email inside one tenant: staff bound to the
// tenant win over customers holding a membership in it.
func (s *PostgresStore) FindByEmailInTenant(ctx context.Context, email string, tenantID id.TenantID) (*models.Principal, error) {
	query := `
		SELECT ` + principalColumns + `
		FROM principals p
		WHERE lower(p.email) = lower($1)
		  AND (
			p.tenant_id = $2
			OR (p.tenant_id IS NULL AND EXISTS (
				SELECT 1 FROM tenant_memberships m
				WHERE m.principal_id = p.id AND m.tenant_id = $2
			))
		  )
		ORDER BY p.tenant_id NULLS LAST
		LIMIT 1
	`
	p, err := scanPrincipal(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, email, tenantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find principal by email: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, principalID id.PrincipalID, hash string, at time.Time) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx,
		`UPDATE principals SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		principalID.String(), hash, at,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("principal not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type principalRow interface {
	Scan(dest ...any) error
}

func scanPrincipal(row principalRow) (*models.Principal, error) {
	var (
		p                                      models.Principal
		principalID, kind, role, hash, status string
		email, binding                         sql.NullString
	)
	if err := row.Scan(&principalID, &email, &kind, &role, &binding, &hash, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = id.PrincipalID(principalID)
	p.Email = email.String
	p.Kind = models.PrincipalKind(kind)
	p.Role = models.Role(role)
	p.Binding = id.TenantID(binding.String)
	p.PasswordHash = hash
	p.Status = models.PrincipalStatus(status)
	return &p, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
