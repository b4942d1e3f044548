package membership

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "shopcore/pkg/domain"
	txcontext "shopcore/pkg/platform/tx"
)

// PostgresStore reads customer memberships from tenant_memberships.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Add(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID, at time.Time) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO tenant_memberships (principal_id, tenant_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (principal_id, tenant_id) DO NOTHING
	`, principalID.String(), tenantID.String(), at)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

// ListTenantIDs returns the active tenants the principal belongs
// to, ordered by id. An empty slice is a valid answer.
func (s *PostgresStore) ListTenantIDs(ctx context.Context, principalID id.PrincipalID) ([]id.TenantID, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT m.tenant_id
		FROM tenant_memberships m
		JOIN tenants t ON t.id = m.tenant_id
		WHERE m.principal_id = $1 AND t.status = 'active'
		ORDER BY m.tenant_id
	`, principalID.String())
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []id.TenantID
	for rows.Next() {
		var tenantID string
		if err := rows.Scan(&tenantID); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		out = append(out, id.TenantID(tenantID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return out, nil
}
