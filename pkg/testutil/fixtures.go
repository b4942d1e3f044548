package testutil

import (
	"time"

	authmodels "shopcore/internal/auth/models"
	tenantmodels "shopcore/internal/tenant/models"
	id "shopcore/pkg/domain"
)

// TestIDs are fixed identifiers shared by tests.
var TestIDs = struct {
	TenantA  id.TenantID
	TenantB  id.TenantID
	Admin    id.PrincipalID
	Customer id.PrincipalID
	Orphan   id.PrincipalID
	FixedNow time.Time
}{
	TenantA:  "shop-a",
	TenantB:  "shop-b",
	Admin:    "U1",
	Customer: "C1",
	Orphan:   "C9",
	FixedNow: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
}

// PrincipalBuilder builds principals with active, customer defaults.
type PrincipalBuilder struct {
	p *authmodels.Principal
}

func NewPrincipalBuilder() *PrincipalBuilder {
	return &PrincipalBuilder{p: &authmodels.Principal{
		ID:        TestIDs.Customer,
		Email:     "customer@example.test",
		Kind:      authmodels.PrincipalKindCustomer,
		Role:      authmodels.RoleCustomer,
		Status:    authmodels.PrincipalStatusActive,
		CreatedAt: TestIDs.FixedNow,
		UpdatedAt: TestIDs.FixedNow,
	}}
}

func (b *PrincipalBuilder) WithID(principalID id.PrincipalID) *PrincipalBuilder {
	b.p.ID = principalID
	return b
}

func (b *PrincipalBuilder) WithEmail(email string) *PrincipalBuilder {
	b.p.Email = email
	return b
}

func (b *PrincipalBuilder) WithPasswordHash(hash string) *PrincipalBuilder {
	b.p.PasswordHash = hash
	return b
}

// BoundAdmin turns the principal into staff/admin bound to tenantID.
func (b *PrincipalBuilder) BoundAdmin(tenantID id.TenantID) *PrincipalBuilder {
	b.p.Kind = authmodels.PrincipalKindStaff
	b.p.Role = authmodels.RoleAdmin
	b.p.Binding = tenantID
	return b
}

func (b *PrincipalBuilder) Disabled() *PrincipalBuilder {
	b.p.Status = authmodels.PrincipalStatusDisabled
	return b
}

func (b *PrincipalBuilder) Build() *authmodels.Principal {
	p := *b.p
	return &p
}

// NewActiveTenant returns an active tenant with a readable name.
func NewActiveTenant(tenantID id.TenantID) *tenantmodels.Tenant {
	return &tenantmodels.Tenant{
		ID:        tenantID,
		Name:      "Tenant " + tenantID.String(),
		Status:    tenantmodels.TenantStatusActive,
		CreatedAt: TestIDs.FixedNow,
		UpdatedAt: TestIDs.FixedNow,
	}
}

func NewInactiveTenant(tenantID id.TenantID) *tenantmodels.Tenant {
	t := NewActiveTenant(tenantID)
	t.Status = tenantmodels.TenantStatusInactive
	return t
}
