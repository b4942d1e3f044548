package audit

import (
	"context"
	"time"
)

// Event is emitted from the auth and tenant paths to record security-relevant
// actions. It carries the specific denial reason that callers never see.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	PrincipalID string    `json:"principal_id,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	Device      string    `json:"device,omitempty"`
}

type AuditEvent string

const (
	EventLoginSucceeded         AuditEvent = "login_succeeded"
	EventAuthFailed             AuditEvent = "auth_failed"
	EventTokenRefreshed         AuditEvent = "token_refreshed"
	EventRefreshReused          AuditEvent = "refresh_token_reused"
	EventLoggedOut              AuditEvent = "logged_out"
	EventLegacyHashMigrated     AuditEvent = "legacy_hash_migrated"
	EventPasswordResetRequested AuditEvent = "password_reset_requested"
	EventPasswordResetCompleted AuditEvent = "password_reset_completed"
	EventTenantDenied           AuditEvent = "tenant_access_denied"
)

const (
	DecisionGranted = "granted"
	DecisionDenied  = "denied"
)

// Emitter accepts audit events. Satisfied by publisher.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
