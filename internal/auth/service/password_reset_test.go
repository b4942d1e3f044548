package service_test

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"shopcore/internal/auth/models"
	"shopcore/internal/auth/service"
	"shopcore/internal/auth/service/mocks"
	"shopcore/internal/tenant/resolver"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/requestcontext"
	fixtures "shopcore/pkg/testutil"
)

const newPassword = "a much better passphrase"

const deliveryTimeout = 2 * time.Second

// requestToken runs a reset request for email in hint and returns the notice
// the reset worker hands to the notifier.
func (s *ServiceSuite) requestToken(email, hint string) service.ResetNotice {
	delivered := make(chan service.ResetNotice, 1)
	s.notifier.EXPECT().
		NotifyPasswordReset(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n service.ResetNotice) error {
			delivered <- n
			return nil
		})
	s.Require().NoError(s.service.RequestPasswordReset(s.ctx, email, hint))

	select {
	case notice := <-delivered:
		s.Require().NotEmpty(notice.Token)
		return notice
	case <-time.After(deliveryTimeout):
		s.FailNow("reset notice was not delivered")
		return service.ResetNotice{}
	}
}

// blockingNotifier holds every delivery until release is closed.
type blockingNotifier struct {
	release   chan struct{}
	delivered chan service.ResetNotice
}

func (n *blockingNotifier) NotifyPasswordReset(_ context.Context, notice service.ResetNotice) error {
	<-n.release
	n.delivered <- notice
	return nil
}

func (s *ServiceSuite) confirm(principalID, token, hint string) error {
	return s.service.ConfirmPasswordReset(s.ctx, &models.PasswordResetConfirm{
		PrincipalID: principalID,
		Token:       token,
		NewPassword: newPassword,
	}, hint)
}

func (s *ServiceSuite) TestRequestPasswordResetNotifiesKnownPrincipal() {
	notice := s.requestToken(customerEmail, "shop-a")

	s.Equal(fixtures.TestIDs.Customer, notice.PrincipalID)
	s.Equal(fixtures.TestIDs.TenantA, notice.TenantID)
	s.Equal(customerEmail, notice.Email)
	s.Equal(fixtures.TestIDs.FixedNow.Add(time.Hour), notice.ExpiresAt)
	s.True(s.resets.Validate(s.ctx, notice.PrincipalID, notice.Token, notice.TenantID))
}

func (s *ServiceSuite) TestRequestPasswordResetUnknownLooksTheSame() {
	cases := []struct {
		name  string
		email string
		hint  string
	}{
		{name: "unknown email", email: "nobody@example.test", hint: "shop-a"},
		{name: "not a member of the tenant", email: customerEmail, hint: "shop-b"},
		{name: "unknown tenant", email: customerEmail, hint: "shop-z"},
		{name: "no tenant", email: customerEmail, hint: ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.NoError(s.service.RequestPasswordReset(s.ctx, tc.email, tc.hint))
		})
	}
	// The notifier mock has no expectation, so a delivery while draining
	// fails the test.
	s.service.Close()
}

func (s *ServiceSuite) TestRequestPasswordResetDoesNotWaitForDelivery() {
	notifier := &blockingNotifier{
		release:   make(chan struct{}),
		delivered: make(chan service.ResetNotice, 1),
	}
	svc := service.New(s.principals, s.tenants, resolver.New(s.memberships, s.tenants), s.tokens, s.hasher, s.resets,
		service.WithResetNotifier(notifier))
	defer svc.Close()

	for _, email := range []string{customerEmail, "nobody@example.test"} {
		returned := make(chan error, 1)
		go func() { returned <- svc.RequestPasswordReset(s.ctx, email, "shop-a") }()

		select {
		case err := <-returned:
			s.NoError(err, email)
		case <-time.After(deliveryTimeout):
			s.FailNow("request waited on a blocked notifier", email)
		}
	}

	close(notifier.release)
	select {
	case notice := <-notifier.delivered:
		s.Equal(fixtures.TestIDs.Customer, notice.PrincipalID)
	case <-time.After(deliveryTimeout):
		s.FailNow("known principal never reached the notifier")
	}
}

func (s *ServiceSuite) TestRequestPasswordResetAfterCloseIsDropped() {
	s.service.Close()
	s.NoError(s.service.RequestPasswordReset(s.ctx, customerEmail, "shop-a"))
	s.Contains(s.logs.String(), "password reset dropped")
}

func (s *ServiceSuite) TestRequestPasswordResetEmptyEmail() {
	err := s.service.RequestPasswordReset(s.ctx, "   ", "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeEmptyInput))
}

func (s *ServiceSuite) TestRequestPasswordResetNotifierFailureIsHidden() {
	s.notifier.EXPECT().
		NotifyPasswordReset(gomock.Any(), gomock.Any()).
		Return(errors.New("smtp unavailable"))

	s.NoError(s.service.RequestPasswordReset(s.ctx, customerEmail, "shop-a"))
	s.service.Close()
	s.Contains(s.logs.String(), "failed to deliver password reset")
}

func (s *ServiceSuite) TestConfirmPasswordResetChangesPassword() {
	notice := s.requestToken(customerEmail, "shop-a")

	s.Require().NoError(s.confirm(notice.PrincipalID.String(), notice.Token, "shop-a"))

	_, err := s.login(customerEmail, goodPassword, "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials), "old password no longer works")
	_, err = s.login(customerEmail, newPassword, "shop-a")
	s.NoError(err)

	var completed bool
	for _, e := range s.emitter.events {
		completed = completed || e.Action == string(audit.EventPasswordResetCompleted)
	}
	s.True(completed)
}

func (s *ServiceSuite) TestConfirmPasswordResetIsSingleUse() {
	notice := s.requestToken(customerEmail, "shop-a")

	s.Require().NoError(s.confirm(notice.PrincipalID.String(), notice.Token, "shop-a"))
	err := s.confirm(notice.PrincipalID.String(), notice.Token, "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeResetTokenInvalid))
}

func (s *ServiceSuite) TestConfirmPasswordResetNewRequestInvalidatesOld() {
	first := s.requestToken(customerEmail, "shop-a")
	second := s.requestToken(customerEmail, "shop-a")

	err := s.confirm(first.PrincipalID.String(), first.Token, "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeResetTokenInvalid))
	s.NoError(s.confirm(second.PrincipalID.String(), second.Token, "shop-a"))
}

func (s *ServiceSuite) TestConfirmPasswordResetRejections() {
	notice := s.requestToken(customerEmail, "shop-a")
	pid := notice.PrincipalID.String()

	cases := []struct {
		name        string
		principalID string
		token       string
		hint        string
		at          time.Time
	}{
		{name: "other tenant", principalID: pid, token: notice.Token, hint: "shop-b"},
		{name: "unknown tenant", principalID: pid, token: notice.Token, hint: "shop-z"},
		{name: "missing tenant", principalID: pid, token: notice.Token, hint: ""},
		{name: "other principal", principalID: fixtures.TestIDs.Admin.String(), token: notice.Token, hint: "shop-a"},
		{name: "malformed principal", principalID: "", token: notice.Token, hint: "shop-a"},
		{name: "wrong token", principalID: pid, token: "forged", hint: "shop-a"},
		{name: "expired", principalID: pid, token: notice.Token, hint: "shop-a", at: fixtures.TestIDs.FixedNow.Add(2 * time.Hour)},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			ctx := s.ctx
			if !tc.at.IsZero() {
				ctx = requestcontext.WithTime(ctx, tc.at)
			}
			err := s.service.ConfirmPasswordReset(ctx, &models.PasswordResetConfirm{
				PrincipalID: tc.principalID,
				Token:       tc.token,
				NewPassword: newPassword,
			}, tc.hint)
			s.True(dErrors.HasCode(err, dErrors.CodeResetTokenInvalid), "got %v", err)
		})
	}

	// None of the rejections consumed the token.
	s.NoError(s.confirm(pid, notice.Token, "shop-a"))
}

func (s *ServiceSuite) TestConfirmPasswordResetUpdateFailureFailsTheTransaction() {
	notice := s.requestToken(customerEmail, "shop-a")
	customer, err := s.principals.FindByID(s.ctx, notice.PrincipalID)
	s.Require().NoError(err)

	principals := mocks.NewMockPrincipalStore(s.ctrl)
	principals.EXPECT().FindByID(gomock.Any(), notice.PrincipalID).Return(customer, nil)
	principals.EXPECT().
		UpdatePasswordHash(gomock.Any(), notice.PrincipalID, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ id.PrincipalID, _ string, _ time.Time) error {
			s.True(inTx(ctx), "password update must join the transaction")
			return errors.New("disk full")
		})

	tx := &recordingTx{}
	svc := service.New(principals, s.tenants, resolver.New(s.memberships, s.tenants), s.tokens, s.hasher, s.resets,
		service.WithTxRunner(tx))

	err = svc.ConfirmPasswordReset(s.ctx, &models.PasswordResetConfirm{
		PrincipalID: notice.PrincipalID.String(),
		Token:       notice.Token,
		NewPassword: newPassword,
	}, "shop-a")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Equal(1, tx.calls)
	s.True(tx.failed)
}

type txMarker struct{}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

// recordingTx stands in for a database transaction and records whether the
// unit of work failed, which a real runner turns into a rollback.
type recordingTx struct {
	calls  int
	failed bool
}

func (t *recordingTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		t.failed = true
		return err
	}
	return nil
}
