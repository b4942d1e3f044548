package password

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	dErrors "shopcore/pkg/domain-errors"
)

// Cheap argon2 parameters keep the suite fast; bcrypt always runs at MinCost.
var testArgon = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type HasherSuite struct {
	suite.Suite
	hasher *Hasher
}

func TestHasherSuite(t *testing.T) {
	suite.Run(t, new(HasherSuite))
}

func (s *HasherSuite) SetupSuite() {
	s.hasher = New()
}

func (s *HasherSuite) TestHashRoundTrip() {
	first, err := s.hasher.Hash("correct horse")
	s.Require().NoError(err)
	second, err := s.hasher.Hash("correct horse")
	s.Require().NoError(err)

	s.NotEqual(first, second, "salt must differ per call")
	s.True(s.hasher.Verify("correct horse", first))
	s.True(s.hasher.Verify("correct horse", second))
	s.False(s.hasher.Verify("battery staple", first))

	cost, err := bcrypt.Cost([]byte(first))
	s.Require().NoError(err)
	s.GreaterOrEqual(cost, MinCost)
}

func (s *HasherSuite) TestHashRejectsEmptyPassword() {
	_, err := s.hasher.Hash("")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeEmptyInput))
}

func (s *HasherSuite) TestHashRejectsOverlongPassword() {
	_, err := s.hasher.Hash(strings.Repeat("p", 73))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *HasherSuite) TestVerifyNeverPanicsOnBadInput() {
	valid, err := s.hasher.Hash("secret")
	s.Require().NoError(err)

	s.False(s.hasher.Verify("", valid))
	s.False(s.hasher.Verify("secret", ""))
	s.False(s.hasher.Verify("secret", "$2b$12$short"))
	s.False(s.hasher.Verify("secret", "not-a-hash"))
	s.False(s.hasher.Verify("secret", "$argon2id$v=19$m=abc$$"))
	s.False(s.hasher.Verify("secret", "$argon2id$v=19$m=99999999,t=1,p=1$c2FsdA$a2V5"))
}

func (s *HasherSuite) TestWithCostFloorsAtMinimum() {
	h := New(WithCost(4))
	s.Equal(MinCost, h.cost)
}

func (s *HasherSuite) TestArgon2id() {
	h := New(WithAlgorithm(AlgorithmArgon2id), WithArgon2Params(testArgon))

	hashed, err := h.Hash("pa55word")
	s.Require().NoError(err)
	s.True(strings.HasPrefix(hashed, argon2idPrefix))
	s.True(h.Verify("pa55word", hashed))
	s.False(h.Verify("pa55w0rd", hashed))

	// A bcrypt-configured hasher still verifies argon2id hashes.
	s.True(s.hasher.Verify("pa55word", hashed))
	s.True(s.hasher.NeedsRehash(hashed))
	s.False(h.NeedsRehash(hashed))
}

func (s *HasherSuite) TestIsLegacyHash() {
	digest := sha256.Sum256([]byte("legacy"))
	hexDigest := hex.EncodeToString(digest[:])

	s.True(IsLegacyHash(hexDigest))
	s.True(IsLegacyHash(strings.ToUpper(hexDigest)))
	s.True(IsLegacyHash(legacyPrefix + hexDigest))

	s.False(IsLegacyHash(hexDigest[:63]))
	s.False(IsLegacyHash(hexDigest[:63] + "z"))
	s.False(IsLegacyHash(""))

	current, err := s.hasher.Hash("legacy")
	s.Require().NoError(err)
	s.False(IsLegacyHash(current))
}

func (s *HasherSuite) TestMigrateLegacy() {
	digest := sha256.Sum256([]byte("old-password"))
	legacy := hex.EncodeToString(digest[:])

	s.Run("matching password yields a current hash", func() {
		upgraded, ok := s.hasher.MigrateLegacy("old-password", legacy)
		s.Require().True(ok)
		s.False(IsLegacyHash(upgraded))
		s.True(s.hasher.Verify("old-password", upgraded))
	})

	s.Run("wrong password yields nothing", func() {
		upgraded, ok := s.hasher.MigrateLegacy("guess", legacy)
		s.False(ok)
		s.Empty(upgraded)
	})

	s.Run("non-legacy input yields nothing", func() {
		upgraded, ok := s.hasher.MigrateLegacy("old-password", "$2b$12$abc")
		s.False(ok)
		s.Empty(upgraded)
	})

	s.Run("legacy hashes never pass Verify", func() {
		s.False(s.hasher.Verify("old-password", legacy))
		s.True(s.hasher.NeedsRehash(legacy))
	})
}
