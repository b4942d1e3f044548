package reset

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shopcore/internal/auth/store/principal"
	"shopcore/internal/auth/store/resettoken"
	"shopcore/internal/tenant/store/membership"
	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/platform/sentinel"
	"shopcore/pkg/requestcontext"
	"shopcore/pkg/testutil"
)

type ManagerSuite struct {
	suite.Suite
	store   *resettoken.InMemoryStore
	manager *Manager
	now     time.Time
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	ctx := context.Background()
	memberships := membership.NewInMemory()
	principals := principal.NewInMemory(memberships)
	s.Require().NoError(principals.Save(ctx, testutil.NewPrincipalBuilder().
		WithID(testutil.TestIDs.Admin).WithEmail("owner@shop-a.test").
		BoundAdmin(testutil.TestIDs.TenantA).Build()))

	s.store = resettoken.NewInMemory()
	s.manager = New(s.store, principals, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.now = testutil.TestIDs.FixedNow
}

func (s *ManagerSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *ManagerSuite) create(principalID id.PrincipalID, tenantID id.TenantID) string {
	token, err := s.manager.CreateResetRequest(s.at(0), principalID, tenantID)
	s.Require().NoError(err)
	s.Require().NotEmpty(token)
	return token
}

func (s *ManagerSuite) TestCreateReturnsHighEntropyToken() {
	token := s.create("U1", "shop-a")
	// 32 random bytes, unpadded base64url.
	s.Len(token, 43)
	s.NotEqual(token, s.create("U1", "shop-a"))
}

func (s *ManagerSuite) TestCreateRequiresPrincipalAndTenant() {
	_, err := s.manager.CreateResetRequest(s.at(0), "", "shop-a")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidPrincipal))

	_, err = s.manager.CreateResetRequest(s.at(0), "U1", "")
	s.True(dErrors.HasCode(err, dErrors.CodeTenantRequired))
}

func (s *ManagerSuite) TestPlaintextIsNeverStored() {
	token := s.create("U1", "shop-a")
	_, err := s.store.FindActive(s.at(0), "U1", "shop-a", token, s.now)
	s.Error(err, "lookup by plaintext must miss")

	record, err := s.store.FindActive(s.at(0), "U1", "shop-a", Digest(token), s.now)
	s.Require().NoError(err)
	s.Equal(s.now.Add(60*time.Minute), record.ExpiresAt)
}

func (s *ManagerSuite) TestValidateMarkValidateSequence() {
	token := s.create("U1", "shop-a")

	s.True(s.manager.Validate(s.at(time.Minute), "U1", token, "shop-a"))
	s.True(s.manager.MarkUsed(s.at(2*time.Minute), "U1", token, "shop-a"))
	s.False(s.manager.Validate(s.at(3*time.Minute), "U1", token, "shop-a"))
	s.False(s.manager.MarkUsed(s.at(3*time.Minute), "U1", token, "shop-a"))
}

func (s *ManagerSuite) TestSecondRequestInvalidatesFirst() {
	first := s.create("U1", "shop-a")
	second := s.create("U1", "shop-a")

	s.False(s.manager.Validate(s.at(time.Minute), "U1", first, "shop-a"))
	s.True(s.manager.Validate(s.at(time.Minute), "U1", second, "shop-a"))
}

func (s *ManagerSuite) TestPairsAreIndependent() {
	tokenA := s.create("U1", "shop-a")
	tokenB := s.create("U1", "shop-b")

	s.True(s.manager.Validate(s.at(0), "U1", tokenA, "shop-a"))
	s.True(s.manager.Validate(s.at(0), "U1", tokenB, "shop-b"))
	s.False(s.manager.Validate(s.at(0), "U1", tokenA, "shop-b"))
	s.False(s.manager.Validate(s.at(0), "U2", tokenA, "shop-a"))
}

func (s *ManagerSuite) TestExpiredTokenFailsValidation() {
	token := s.create("U1", "shop-a")
	s.True(s.manager.Validate(s.at(59*time.Minute), "U1", token, "shop-a"))
	s.False(s.manager.Validate(s.at(61*time.Minute), "U1", token, "shop-a"))
	s.False(s.manager.MarkUsed(s.at(61*time.Minute), "U1", token, "shop-a"))
}

func (s *ManagerSuite) TestValidateRejectsEmptyInputs() {
	token := s.create("U1", "shop-a")
	s.False(s.manager.Validate(s.at(0), "", token, "shop-a"))
	s.False(s.manager.Validate(s.at(0), "U1", "", "shop-a"))
	s.False(s.manager.Validate(s.at(0), "U1", token, ""))
}

func (s *ManagerSuite) TestSweepExpiredOnlyRemovesExpired() {
	expiring := s.create("U1", "shop-a")
	used := s.create("U1", "shop-b")
	s.True(s.manager.MarkUsed(s.at(time.Minute), "U1", used, "shop-b"))

	fresh, err := s.manager.CreateResetRequest(s.at(30*time.Minute), "U2", "shop-a")
	s.Require().NoError(err)

	n, err := s.manager.SweepExpired(s.at(61 * time.Minute))
	s.Require().NoError(err)
	s.Equal(2, n, "both rows created at t0 expired, used or not")

	n, err = s.manager.SweepExpired(s.at(61 * time.Minute))
	s.Require().NoError(err)
	s.Zero(n)

	s.False(s.manager.Validate(s.at(61*time.Minute), "U1", expiring, "shop-a"))
	s.True(s.manager.Validate(s.at(61*time.Minute), "U2", fresh, "shop-a"))
}

func (s *ManagerSuite) TestConcurrentMarkUsedClaimsOnce() {
	token := s.create("U1", "shop-a")

	result := testutil.RunConcurrent(16, func(int) error {
		if s.manager.MarkUsed(s.at(time.Minute), "U1", token, "shop-a") {
			return nil
		}
		return sentinel.ErrAlreadyUsed
	})
	s.Equal(int32(1), result.Successes)
	s.Equal(int32(15), result.AlreadyUsed)
}

func (s *ManagerSuite) TestLookupPrincipalByIdentifier() {
	p, ok := s.manager.LookupPrincipalByIdentifier(s.at(0), " owner@shop-a.test ", "shop-a")
	s.Require().True(ok)
	s.Equal(testutil.TestIDs.Admin, p.ID)

	_, ok = s.manager.LookupPrincipalByIdentifier(s.at(0), "owner@shop-a.test", "shop-b")
	s.False(ok)
	_, ok = s.manager.LookupPrincipalByIdentifier(s.at(0), "nobody@shop-a.test", "shop-a")
	s.False(ok)
	_, ok = s.manager.LookupPrincipalByIdentifier(s.at(0), "", "shop-a")
	s.False(ok)
}
