package models

import (
	"time"

	id "shopcore/pkg/domain"
)

// LoginResult is returned by login and refresh. Tokens are delivered as
// cookies by the handler; the JSON body carries only non-secret metadata.
type LoginResult struct {
	PrincipalID      id.PrincipalID
	TenantID         id.TenantID
	Role             Role
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

type SessionResponse struct {
	PrincipalID string    `json:"principal_id"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// MeResponse describes the caller as seen inside the resolved tenant.
type MeResponse struct {
	PrincipalID string `json:"principal_id"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
	TenantName  string `json:"tenant_name"`
}

// AcceptedResponse is the fixed body for the reset request endpoint.
type AcceptedResponse struct {
	Status string `json:"status"`
}
