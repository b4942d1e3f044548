package models

import (
	"time"

	id "shopcore/pkg/domain"
)

// This file contains pure domain models for authentication: entities
// that should not depend on transport or HTTP-specific concerns.

// PrincipalKind distinguishes end customers from shop staff.
type PrincipalKind string

const (
	PrincipalKindCustomer PrincipalKind = "customer"
	PrincipalKindStaff    PrincipalKind = "staff"
)

// Role is carried in access tokens for downstream authorization.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
	RoleAdmin    Role = "admin"
)

type PrincipalStatus string

const (
	PrincipalStatusActive   PrincipalStatus = "active"
	PrincipalStatusDisabled PrincipalStatus = "disabled"
)

// Principal is an authenticated actor. Staff principals are bound to exactly
// one tenant (Binding); customers are unbound and their tenants come from
// membership rows at resolution time.
type Principal struct {
	ID           id.PrincipalID
	Email        string
	Kind         PrincipalKind
	Role         Role
	Binding      id.TenantID
	PasswordHash string
	Status       PrincipalStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Principal) IsActive() bool {
	return p.Status == PrincipalStatusActive
}

// IsBound reports whether the principal carries a fixed tenant binding.
func (p *Principal) IsBound() bool {
	return !p.Binding.IsNil()
}

// Validate checks the binding rule: staff need exactly one binding,
// customers must not carry one.
func (p *Principal) Validate() bool {
	switch p.Kind {
	case PrincipalKindStaff:
		return p.IsBound()
	case PrincipalKindCustomer:
		return !p.IsBound()
	default:
		return false
	}
}

// PasswordResetToken is the persisted, hashed form of a reset secret.
// At most one unused, unexpired record exists per (principal, tenant).
type PasswordResetToken struct {
	ID          string
	PrincipalID id.PrincipalID
	TenantID    id.TenantID
	TokenHash   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	UsedAt      *time.Time
}

// IsActive reports whether the token can still be redeemed at now.
func (t *PasswordResetToken) IsActive(now time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(now)
}
