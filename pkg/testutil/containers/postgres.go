//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"shopcore/migrations"
	id "shopcore/pkg/domain"
)

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container with migrations applied.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("shopcore_test"),
		postgres.WithUsername("shopcore"),
		postgres.WithPassword("shopcore_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to connect to postgres: %v", err)
	}

	pc := &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}

	if err := pc.runMigrations(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Shared through Manager; Ryuk removes the container when the process exits.

	return pc
}

func (p *PostgresContainer) runMigrations(ctx context.Context) error {
	return migrations.Up(ctx, p.DB)
}

// TruncateTables clears the given tables.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := p.DB.ExecContext(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		if err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}

// TruncateModuleTables clears every shopcore table between tests.
func (p *PostgresContainer) TruncateModuleTables(ctx context.Context) error {
	return p.TruncateTables(ctx,
		"service_orders",
		"token_revocations",
		"password_reset_tokens",
		"tenant_memberships",
		"principals",
		"tenants",
	)
}

// Exec runs a SQL statement and returns the result.
func (p *PostgresContainer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return p.DB.ExecContext(ctx, query, args...)
}

// CreateTestTenant inserts an active tenant with the given id.
func (p *PostgresContainer) CreateTestTenant(ctx context.Context, t testing.TB, tenantID id.TenantID) {
	t.Helper()
	_, err := p.Exec(ctx, `
		INSERT INTO tenants (id, name, status, created_at, updated_at)
		VALUES ($1, $2, 'active', NOW(), NOW())
	`, tenantID.String(), "Test Tenant "+tenantID.String())
	if err != nil {
		t.Fatalf("CreateTestTenant: %v", err)
	}
}

// CreateTestCustomer inserts an active customer and returns its id.
func (p *PostgresContainer) CreateTestCustomer(ctx context.Context, t testing.TB, passwordHash string) id.PrincipalID {
	t.Helper()
	principalID := id.PrincipalID("c-" + uuid.NewString())
	_, err := p.Exec(ctx, `
		INSERT INTO principals (id, email, kind, role, password_hash, status)
		VALUES ($1, $2, 'customer', 'customer', $3, 'active')
	`, principalID.String(), "test-"+uuid.NewString()+"@example.com", passwordHash)
	if err != nil {
		t.Fatalf("CreateTestCustomer: %v", err)
	}
	return principalID
}
