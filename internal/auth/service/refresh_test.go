package service_test

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"shopcore/internal/auth/models"
	jwttoken "shopcore/internal/jwt_token"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/audit"
	"shopcore/pkg/requestcontext"
	fixtures "shopcore/pkg/testutil"
)

func (s *ServiceSuite) TestRefreshRotates() {
	first, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)

	second, err := s.service.Refresh(s.ctx, first.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(first.RefreshToken, second.RefreshToken)
	s.Equal(fixtures.TestIDs.TenantA, second.TenantID)
	s.Equal(models.RoleAdmin, second.Role)

	third, err := s.service.Refresh(s.ctx, second.RefreshToken)
	s.Require().NoError(err, "the rotated token is redeemable once")
	s.NotEmpty(third.AccessToken)
	s.Equal(2.0, testutil.ToFloat64(s.metrics.Refreshes.WithLabelValues("rotated")))
}

func (s *ServiceSuite) TestRefreshReplayIsRejectedAndAudited() {
	first, err := s.login(customerEmail, goodPassword, "shop-a")
	s.Require().NoError(err)

	_, err = s.service.Refresh(s.ctx, first.RefreshToken)
	s.Require().NoError(err)

	_, err = s.service.Refresh(s.ctx, first.RefreshToken)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))
	s.Contains(s.emitter.reasons(), "rotation_id_reused")
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RotationReuse))

	var reused bool
	for _, e := range s.emitter.events {
		if e.Action == string(audit.EventRefreshReused) {
			reused = true
			s.Equal(fixtures.TestIDs.Customer.String(), e.PrincipalID)
			s.Equal(audit.DecisionDenied, e.Decision)
		}
	}
	s.True(reused)
}

func (s *ServiceSuite) TestRefreshConcurrentReplayHasOneWinner() {
	first, err := s.login(customerEmail, goodPassword, "shop-a")
	s.Require().NoError(err)

	const attempts = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.service.Refresh(s.ctx, first.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, wins)
}

func (s *ServiceSuite) TestRefreshRejectsAccessToken() {
	first, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)

	_, err = s.service.Refresh(s.ctx, first.AccessToken)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))
}

func (s *ServiceSuite) TestRefreshRejectsGarbageAndExpired() {
	_, err := s.service.Refresh(s.ctx, "not-a-token")
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))

	first, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)
	later := requestcontext.WithTime(s.ctx, fixtures.TestIDs.FixedNow.Add(s.tokens.RefreshTTL()+time.Minute))
	_, err = s.service.Refresh(later, first.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))
}

func (s *ServiceSuite) TestRefreshRejectsDisabledPrincipal() {
	first, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)

	s.save(fixtures.NewPrincipalBuilder().WithID(fixtures.TestIDs.Admin).WithEmail(adminEmail).
		WithPasswordHash(s.hash(goodPassword)).BoundAdmin(fixtures.TestIDs.TenantA).Disabled().Build())

	_, err = s.service.Refresh(s.ctx, first.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))
}

func (s *ServiceSuite) TestLogoutRevokesRefreshToken() {
	first, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)

	s.Require().NoError(s.service.Logout(s.ctx, first.RefreshToken))

	_, err = s.service.Refresh(s.ctx, first.RefreshToken)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))

	claims, err := s.tokens.Verify(s.ctx, first.RefreshToken, jwttoken.TokenTypeRefresh)
	s.Require().NoError(err)
	revoked, err := s.denylist.IsRevoked(s.ctx, claims.ID)
	s.Require().NoError(err)
	s.True(revoked)
}

func (s *ServiceSuite) TestLogoutIsIdempotent() {
	s.NoError(s.service.Logout(s.ctx, ""))
	s.NoError(s.service.Logout(s.ctx, "garbage"))

	first, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)
	s.NoError(s.service.Logout(s.ctx, first.RefreshToken))
	s.NoError(s.service.Logout(s.ctx, first.RefreshToken))
}
