package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	authmodels "shopcore/internal/auth/models"
	tenantmodels "shopcore/internal/tenant/models"
	id "shopcore/pkg/domain"
)

// DemoPassword is shared by every seeded principal.
const DemoPassword = "demo-password-123"

// TenantStore defines methods for seeding tenants
type TenantStore interface {
	Save(ctx context.Context, t *tenantmodels.Tenant) error
}

// MembershipStore defines methods for seeding customer memberships
type MembershipStore interface {
	Add(ctx context.Context, principalID id.PrincipalID, tenantID id.TenantID, at time.Time) error
}

// PrincipalStore defines methods for seeding principals
type PrincipalStore interface {
	Save(ctx context.Context, p *authmodels.Principal) error
}

type Hasher interface {
	Hash(password string) (string, error)
}

// DemoPrincipal describes one seeded account.
type DemoPrincipal struct {
	ID      id.PrincipalID
	Email   string
	Kind    authmodels.PrincipalKind
	Role    authmodels.Role
	Binding id.TenantID
	Tenants []id.TenantID
}

var DemoTenants = []struct {
	ID   id.TenantID
	Name string
}{
	{"shop-a", "Alder Street Garage"},
	{"shop-b", "Birch Lane Motors"},
}

// DemoPrincipals: U1 is the shop-a admin, S2 runs shop-b, C1 is a customer
// of both shops and C2 only of shop-b.
var DemoPrincipals = []DemoPrincipal{
	{ID: "U1", Email: "admin@shop-a.test", Kind: authmodels.PrincipalKindStaff, Role: authmodels.RoleAdmin, Binding: "shop-a"},
	{ID: "S2", Email: "staff@shop-b.test", Kind: authmodels.PrincipalKindStaff, Role: authmodels.RoleStaff, Binding: "shop-b"},
	{ID: "C1", Email: "casey@example.test", Kind: authmodels.PrincipalKindCustomer, Role: authmodels.RoleCustomer, Tenants: []id.TenantID{"shop-a", "shop-b"}},
	{ID: "C2", Email: "devon@example.test", Kind: authmodels.PrincipalKindCustomer, Role: authmodels.RoleCustomer, Tenants: []id.TenantID{"shop-b"}},
}

// Seeder populates the stores with demo tenants and principals
type Seeder struct {
	tenants     TenantStore
	memberships MembershipStore
	principals  PrincipalStore
	hasher      Hasher
	logger      *slog.Logger
}

// New creates a new seeder
func New(tenants TenantStore, memberships MembershipStore, principals PrincipalStore, hasher Hasher, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		tenants:     tenants,
		memberships: memberships,
		principals:  principals,
		hasher:      hasher,
		logger:      logger,
	}
}

// SeedAll populates all stores with demo data
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data...")
	now := time.Now().UTC()

	for _, t := range DemoTenants {
		tenant, err := tenantmodels.NewTenant(t.ID, t.Name, now)
		if err != nil {
			return fmt.Errorf("failed to build tenant %s: %w", t.ID, err)
		}
		if err := s.tenants.Save(ctx, tenant); err != nil {
			return fmt.Errorf("failed to seed tenant %s: %w", t.ID, err)
		}
	}

	// One hash for everyone keeps startup fast at production bcrypt cost.
	hash, err := s.hasher.Hash(DemoPassword)
	if err != nil {
		return fmt.Errorf("failed to hash demo password: %w", err)
	}

	for _, d := range DemoPrincipals {
		p := &authmodels.Principal{
			ID:           d.ID,
			Email:        d.Email,
			Kind:         d.Kind,
			Role:         d.Role,
			Binding:      d.Binding,
			PasswordHash: hash,
			Status:       authmodels.PrincipalStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if !p.Validate() {
			return fmt.Errorf("demo principal %s violates the binding rule", d.ID)
		}
		if err := s.principals.Save(ctx, p); err != nil {
			return fmt.Errorf("failed to seed principal %s: %w", d.ID, err)
		}
		for _, tenantID := range d.Tenants {
			if err := s.memberships.Add(ctx, d.ID, tenantID, now); err != nil {
				return fmt.Errorf("failed to seed membership %s/%s: %w", d.ID, tenantID, err)
			}
		}
	}

	s.logger.Info("demo data seeded successfully",
		"tenants", len(DemoTenants),
		"principals", len(DemoPrincipals),
	)
	return nil
}
