// Package email hands password reset tokens to the delivery channel. Actual
// mail and SMS dispatch lives outside this service; LogNotifier records the
// delivery so operators and local environments can follow the flow.
package email

import (
	"context"
	"log/slog"
	"sync"

	"shopcore/internal/auth/service"
	"shopcore/pkg/platform/privacy"
	"shopcore/pkg/requestcontext"
)

type LogNotifier struct {
	logger      *slog.Logger
	revealToken bool
}

// NewLogNotifier logs each reset notice. The plaintext token is only written
// when revealToken is set, which config allows outside production.
func NewLogNotifier(logger *slog.Logger, revealToken bool) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger, revealToken: revealToken}
}

func (n *LogNotifier) NotifyPasswordReset(ctx context.Context, notice service.ResetNotice) error {
	attrs := []any{
		"principal_id", notice.PrincipalID.String(),
		"tenant_id", notice.TenantID.String(),
		"to", privacy.MaskEmail(notice.Email),
		"expires_at", notice.ExpiresAt,
		"request_id", requestcontext.RequestID(ctx),
	}
	if n.revealToken {
		attrs = append(attrs, "reset_token", notice.Token)
	}
	n.logger.InfoContext(ctx, "password reset notice dispatched", attrs...)
	return nil
}

// Outbox keeps the last notice per email. The e2e suite and local tooling
// read tokens from it instead of a mailbox.
type Outbox struct {
	mu      sync.Mutex
	next    service.ResetNotifier
	notices map[string]service.ResetNotice
}

func NewOutbox(next service.ResetNotifier) *Outbox {
	return &Outbox{next: next, notices: make(map[string]service.ResetNotice)}
}

func (o *Outbox) NotifyPasswordReset(ctx context.Context, notice service.ResetNotice) error {
	o.mu.Lock()
	o.notices[notice.Email] = notice
	o.mu.Unlock()
	if o.next == nil {
		return nil
	}
	return o.next.NotifyPasswordReset(ctx, notice)
}

// Last returns the most recent notice sent to email.
func (o *Outbox) Last(email string) (service.ResetNotice, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, ok := o.notices[email]
	return n, ok
}
