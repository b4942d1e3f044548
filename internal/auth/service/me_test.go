package service_test

import (
	"io"
	"log/slog"
	"regexp"

	"github.com/DATA-DOG/go-sqlmock"

	"shopcore/internal/auth/service"
	"shopcore/internal/tenant/resolver"
	"shopcore/internal/tenant/scope"
	dErrors "shopcore/pkg/domain-errors"
	fixtures "shopcore/pkg/testutil"
)

func (s *ServiceSuite) TestMeDescribesCallerInTenant() {
	me, err := s.service.Me(s.ctx, fixtures.TestIDs.Customer, fixtures.TestIDs.TenantA)
	s.Require().NoError(err)
	s.Equal("C1", me.PrincipalID)
	s.Equal(customerEmail, me.Email)
	s.Equal("customer", me.Role)
	s.Equal("shop-a", me.TenantID)
	s.Equal("Tenant shop-a", me.TenantName)
}

func (s *ServiceSuite) TestMeWithoutTenantFailsClosed() {
	_, err := s.service.Me(s.ctx, fixtures.TestIDs.Customer, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNoTenantContext))
}

func (s *ServiceSuite) TestMeUnknownPrincipal() {
	_, err := s.service.Me(s.ctx, fixtures.TestIDs.Orphan, fixtures.TestIDs.TenantA)
	s.True(dErrors.HasCode(err, dErrors.CodeTokenRejected))
}

func (s *ServiceSuite) TestMeReadsThroughTenantBoundTransaction() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT set_config($1, $2, true)`)).
		WithArgs(scope.TenantSetting, "shop-a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT current_setting($1, true)`)).
		WithArgs(scope.TenantSetting).
		WillReturnRows(sqlmock.NewRows([]string{"current_setting"}).AddRow("shop-a"))
	mock.ExpectCommit()

	svc := service.New(s.principals, s.tenants, resolver.New(s.memberships, s.tenants), s.tokens, s.hasher, s.resets,
		service.WithTenantScope(scope.New(db, scope.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))))

	me, err := svc.Me(s.ctx, fixtures.TestIDs.Admin, fixtures.TestIDs.TenantA)
	s.Require().NoError(err)
	s.Equal("admin", me.Role)
	s.NoError(mock.ExpectationsWereMet())
}

func (s *ServiceSuite) TestMeRollsBackWhenBindingIsMissing() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`SELECT set_config($1, $2, true)`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT current_setting($1, true)`)).
		WillReturnRows(sqlmock.NewRows([]string{"current_setting"}).AddRow(""))
	mock.ExpectRollback()

	svc := service.New(s.principals, s.tenants, resolver.New(s.memberships, s.tenants), s.tokens, s.hasher, s.resets,
		service.WithTenantScope(scope.New(db)))

	_, err = svc.Me(s.ctx, fixtures.TestIDs.Admin, fixtures.TestIDs.TenantA)
	s.True(dErrors.HasCode(err, dErrors.CodeNoTenantContext))
	s.NoError(mock.ExpectationsWereMet())
}
