package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

// Reset tokens are delivered by a background worker after the 202.
const (
	deliveryWait = 2 * time.Second
	deliveryPoll = 20 * time.Millisecond
	quietPeriod  = 250 * time.Millisecond
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
	tenantHeader  = "X-Tenant-Id"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any, headers map[string]string) error
	GET(path string, headers map[string]string) error
	ResponseCookie(name string) (*http.Cookie, bool)
	GetAccessToken() string
	SetAccessToken(token string)
	GetRefreshToken() string
	SetRefreshToken(token string)
	GetPreviousRefreshToken() string
	LastResetToken(email string) (principalID, token string, ok bool)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers authentication-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &authSteps{tc: tc}

	// Session steps
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)" in tenant "([^"]*)"$`, steps.logIn)
	ctx.Step(`^I log in as "([^"]*)" with password "([^"]*)" without a tenant$`, steps.logInWithoutTenant)
	ctx.Step(`^I save the session tokens$`, steps.saveSessionTokens)
	ctx.Step(`^I refresh the session$`, steps.refreshSession)
	ctx.Step(`^I refresh with the previous refresh token$`, steps.refreshWithPreviousToken)
	ctx.Step(`^I log out$`, steps.logOut)

	// Profile steps
	ctx.Step(`^I request my profile$`, steps.requestProfile)
	ctx.Step(`^I request my profile in tenant "([^"]*)"$`, steps.requestProfileInTenant)
	ctx.Step(`^I request my profile with the refresh token$`, steps.requestProfileWithRefreshToken)
	ctx.Step(`^I request my profile with token "([^"]*)"$`, steps.requestProfileWithToken)

	// Password reset steps
	ctx.Step(`^I request a password reset for "([^"]*)" in tenant "([^"]*)"$`, steps.requestPasswordReset)
	ctx.Step(`^a reset token should have been sent to "([^"]*)"$`, steps.resetTokenShouldHaveBeenSent)
	ctx.Step(`^no reset token should have been sent to "([^"]*)"$`, steps.noResetTokenShouldHaveBeenSent)
	ctx.Step(`^I confirm the password reset for "([^"]*)" in tenant "([^"]*)" with new password "([^"]*)"$`, steps.confirmPasswordReset)
}

type authSteps struct {
	tc TestContext
}

func (s *authSteps) logIn(ctx context.Context, email, password, tenant string) error {
	return s.tc.POST("/auth/login",
		map[string]string{"email": email, "password": password},
		map[string]string{tenantHeader: tenant},
	)
}

func (s *authSteps) logInWithoutTenant(ctx context.Context, email, password string) error {
	return s.tc.POST("/auth/login", map[string]string{"email": email, "password": password}, nil)
}

func (s *authSteps) saveSessionTokens(ctx context.Context) error {
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return fmt.Errorf("cannot save tokens from a %d response: %s", status, string(s.tc.GetLastResponseBody()))
	}
	access, ok := s.tc.ResponseCookie(accessCookie)
	if !ok || access.Value == "" {
		return fmt.Errorf("response did not set %s", accessCookie)
	}
	refresh, ok := s.tc.ResponseCookie(refreshCookie)
	if !ok || refresh.Value == "" {
		return fmt.Errorf("response did not set %s", refreshCookie)
	}
	s.tc.SetAccessToken(access.Value)
	s.tc.SetRefreshToken(refresh.Value)
	return nil
}

func (s *authSteps) refreshSession(ctx context.Context) error {
	return s.tc.POST("/auth/refresh", map[string]string{"refresh_token": s.tc.GetRefreshToken()}, nil)
}

func (s *authSteps) refreshWithPreviousToken(ctx context.Context) error {
	prev := s.tc.GetPreviousRefreshToken()
	if prev == "" {
		return fmt.Errorf("no previous refresh token saved")
	}
	return s.tc.POST("/auth/refresh", map[string]string{"refresh_token": prev}, nil)
}

func (s *authSteps) logOut(ctx context.Context) error {
	return s.tc.POST("/auth/logout", map[string]string{}, map[string]string{
		"Cookie": refreshCookie + "=" + s.tc.GetRefreshToken(),
	})
}

func (s *authSteps) requestProfile(ctx context.Context) error {
	return s.requestProfileWithToken(ctx, s.tc.GetAccessToken())
}

func (s *authSteps) requestProfileInTenant(ctx context.Context, tenant string) error {
	return s.tc.GET("/auth/me", map[string]string{
		"Authorization": "Bearer " + s.tc.GetAccessToken(),
		tenantHeader:    tenant,
	})
}

func (s *authSteps) requestProfileWithRefreshToken(ctx context.Context) error {
	return s.requestProfileWithToken(ctx, s.tc.GetRefreshToken())
}

func (s *authSteps) requestProfileWithToken(ctx context.Context, token string) error {
	return s.tc.GET("/auth/me", map[string]string{"Authorization": "Bearer " + token})
}

func (s *authSteps) requestPasswordReset(ctx context.Context, email, tenant string) error {
	return s.tc.POST("/auth/password-reset/request",
		map[string]string{"email": email},
		map[string]string{tenantHeader: tenant},
	)
}

// awaitResetToken polls the inbox until a notice for email arrives or wait
// elapses.
func (s *authSteps) awaitResetToken(email string, wait time.Duration) (string, string, bool) {
	deadline := time.Now().Add(wait)
	for {
		if principalID, token, ok := s.tc.LastResetToken(email); ok {
			return principalID, token, true
		}
		if time.Now().After(deadline) {
			return "", "", false
		}
		time.Sleep(deliveryPoll)
	}
}

func (s *authSteps) resetTokenShouldHaveBeenSent(ctx context.Context, email string) error {
	if _, _, ok := s.awaitResetToken(email, deliveryWait); !ok {
		return fmt.Errorf("no reset notice for %s", email)
	}
	return nil
}

func (s *authSteps) noResetTokenShouldHaveBeenSent(ctx context.Context, email string) error {
	if _, _, ok := s.awaitResetToken(email, quietPeriod); ok {
		return fmt.Errorf("unexpected reset notice for %s", email)
	}
	return nil
}

func (s *authSteps) confirmPasswordReset(ctx context.Context, email, tenant, newPassword string) error {
	principalID, token, ok := s.awaitResetToken(email, deliveryWait)
	if !ok {
		return fmt.Errorf("no reset notice for %s", email)
	}
	return s.tc.POST("/auth/password-reset/confirm",
		map[string]string{
			"principal_id": principalID,
			"token":        token,
			"new_password": newPassword,
		},
		map[string]string{tenantHeader: tenant},
	)
}
