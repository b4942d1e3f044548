package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shopcore/internal/tenant/models"
	id "shopcore/pkg/domain"
	"shopcore/pkg/platform/sentinel"
	txcontext "shopcore/pkg/platform/tx"
)

// PostgresStore reads tenants from PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts a tenant. Used by seeding; provisioning owns tenants otherwise.
func (s *PostgresStore) Save(ctx context.Context, t *models.Tenant) error {
	if t == nil {
		return fmt.Errorf("tenant is required")
	}
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenants (id, name, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, t.ID.String(), t.Name, string(t.Status), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save tenant: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	query := `
		SELECT id, name, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`
	t, err := scanTenant(txcontext.Executor(ctx, s.db).QueryRowContext(ctx, query, tenantID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %q: %w", tenantID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find tenant by id: %w", err)
	}
	return t, nil
}

type tenantRow interface {
	Scan(dest ...any) error
}

func scanTenant(row tenantRow) (*models.Tenant, error) {
	var t models.Tenant
	var tenantID, status string
	if err := row.Scan(&tenantID, &t.Name, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = id.TenantID(tenantID)
	t.Status = models.TenantStatus(status)
	return &t, nil
}
