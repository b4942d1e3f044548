package service_test

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"shopcore/internal/auth/models"
	"shopcore/internal/auth/password"
	"shopcore/internal/auth/service"
	"shopcore/internal/auth/service/mocks"
	jwttoken "shopcore/internal/jwt_token"
	"shopcore/internal/tenant/resolver"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/sentinel"
	fixtures "shopcore/pkg/testutil"
)

func (s *ServiceSuite) TestLoginBoundAdmin() {
	result, err := s.login(adminEmail, goodPassword, "shop-a")
	s.Require().NoError(err)
	s.Equal(fixtures.TestIDs.Admin, result.PrincipalID)
	s.Equal(fixtures.TestIDs.TenantA, result.TenantID)
	s.Equal(models.RoleAdmin, result.Role)

	claims, err := s.tokens.Verify(s.ctx, result.AccessToken, jwttoken.TokenTypeAccess)
	s.Require().NoError(err)
	s.Equal(fixtures.TestIDs.TenantA, claims.Binding())
	s.Equal("admin", claims.Role)

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Logins.WithLabelValues("succeeded")))
}

func (s *ServiceSuite) TestLoginCustomerTokenCarriesNoTenant() {
	result, err := s.login(customerEmail, goodPassword, "shop-a")
	s.Require().NoError(err)
	s.Equal(fixtures.TestIDs.TenantA, result.TenantID)

	claims, err := s.tokens.Verify(s.ctx, result.AccessToken, jwttoken.TokenTypeAccess)
	s.Require().NoError(err)
	s.True(claims.Binding().IsNil(), "customers choose a tenant per request")
}

func (s *ServiceSuite) TestLoginFailuresLookAlike() {
	cases := []struct {
		name  string
		email string
		pw    string
		hint  string
	}{
		{name: "wrong password", email: adminEmail, pw: "wrong password", hint: "shop-a"},
		{name: "unknown email", email: "nobody@example.test", pw: goodPassword, hint: "shop-a"},
		{name: "admin in another tenant", email: adminEmail, pw: goodPassword, hint: "shop-b"},
		{name: "customer without membership there", email: customerEmail, pw: goodPassword, hint: "shop-b"},
		{name: "unknown tenant", email: adminEmail, pw: goodPassword, hint: "shop-z"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			result, err := s.login(tc.email, tc.pw, tc.hint)
			s.Nil(result)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials), "got %v", err)
			s.Equal("invalid credentials", err.Error())
		})
	}
}

func (s *ServiceSuite) TestLoginDisabledPrincipal() {
	s.save(fixtures.NewPrincipalBuilder().WithID("C2").WithEmail("gone@example.test").
		WithPasswordHash(s.hash(goodPassword)).Disabled().Build())
	s.Require().NoError(s.memberships.Add(s.ctx, "C2", "shop-a", fixtures.TestIDs.FixedNow))

	_, err := s.login("gone@example.test", goodPassword, "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func (s *ServiceSuite) TestLoginRejectsUnboundStaff() {
	_, err := s.login("staff@shop-a.test", goodPassword, "shop-a")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidPrincipal))
}

func (s *ServiceSuite) TestLoginRequiresTenantHint() {
	_, err := s.login(adminEmail, goodPassword, "  ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTenantRequired))
	s.True(dErrors.IsSecurityDenial(err))
}

func (s *ServiceSuite) TestLoginEmptyInput() {
	_, err := s.login("", goodPassword, "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeEmptyInput))

	_, err = s.login(adminEmail, "", "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeEmptyInput))
}

func (s *ServiceSuite) TestLoginMigratesLegacyHash() {
	sum := sha256.Sum256([]byte("old-password"))
	legacy := hex.EncodeToString(sum[:])
	s.save(fixtures.NewPrincipalBuilder().WithID("C3").WithEmail("legacy@example.test").WithPasswordHash(legacy).Build())
	s.Require().NoError(s.memberships.Add(s.ctx, "C3", "shop-a", fixtures.TestIDs.FixedNow))

	_, err := s.login("legacy@example.test", "old-password", "shop-a")
	s.Require().NoError(err)

	stored, err := s.principals.FindByID(s.ctx, "C3")
	s.Require().NoError(err)
	s.False(password.IsLegacyHash(stored.PasswordHash))
	s.True(s.hasher.Verify("old-password", stored.PasswordHash))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.LegacyHashMigrations))

	_, err = s.login("legacy@example.test", "old-password", "shop-a")
	s.Require().NoError(err, "the upgraded hash keeps working")
}

func (s *ServiceSuite) TestLoginLegacyHashWrongPassword() {
	sum := sha256.Sum256([]byte("old-password"))
	legacy := "sha256$" + hex.EncodeToString(sum[:])
	s.save(fixtures.NewPrincipalBuilder().WithID("C4").WithEmail("legacy2@example.test").WithPasswordHash(legacy).Build())
	s.Require().NoError(s.memberships.Add(s.ctx, "C4", "shop-a", fixtures.TestIDs.FixedNow))

	_, err := s.login("legacy2@example.test", "guess", "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))

	stored, err := s.principals.FindByID(s.ctx, "C4")
	s.Require().NoError(err)
	s.Equal(legacy, stored.PasswordHash)
}

func (s *ServiceSuite) TestLoginRehashesWeakerScheme() {
	bcryptHasher := password.New()
	weak, err := bcryptHasher.Hash(goodPassword)
	s.Require().NoError(err)
	s.save(fixtures.NewPrincipalBuilder().WithID("C5").WithEmail("bcrypt@example.test").WithPasswordHash(weak).Build())
	s.Require().NoError(s.memberships.Add(s.ctx, "C5", "shop-a", fixtures.TestIDs.FixedNow))

	_, err = s.login("bcrypt@example.test", goodPassword, "shop-a")
	s.Require().NoError(err)

	stored, err := s.principals.FindByID(s.ctx, "C5")
	s.Require().NoError(err)
	s.True(strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
}

func (s *ServiceSuite) TestLoginStoreFailureIsInternal() {
	principals := mocks.NewMockPrincipalStore(s.ctrl)
	principals.EXPECT().
		FindByEmailInTenant(gomock.Any(), adminEmail, fixtures.TestIDs.TenantA).
		Return(nil, errors.New("connection refused"))

	svc := service.New(principals, s.tenants, resolver.New(s.memberships, s.tenants), s.tokens, s.hasher, s.resets)
	_, err := svc.Login(s.ctx, &models.LoginRequest{Email: adminEmail, Password: goodPassword}, "shop-a")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestLoginNotFoundFromStoreIsInvalidCredentials() {
	principals := mocks.NewMockPrincipalStore(s.ctrl)
	principals.EXPECT().
		FindByEmailInTenant(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, sentinel.ErrNotFound)

	svc := service.New(principals, s.tenants, resolver.New(s.memberships, s.tenants), s.tokens, s.hasher, s.resets)
	_, err := svc.Login(s.ctx, &models.LoginRequest{Email: adminEmail, Password: goodPassword}, "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
}

func (s *ServiceSuite) TestLoginFailureAuditsSpecificReason() {
	_, _ = s.login(adminEmail, goodPassword, "shop-z")
	s.Contains(s.emitter.reasons(), string(dErrors.CodeUnknownTenant))
	s.Contains(s.logs.String(), string(dErrors.CodeUnknownTenant))
}
