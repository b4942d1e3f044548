// Package password hashes and verifies principal credentials.
//
// New hashes use bcrypt (or argon2id when configured). Hashes from the
// deprecated unsalted SHA-256 scheme are recognised by format and can be
// upgraded on the next successful login via MigrateLegacy.
package password

import (
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	dErrors "shopcore/pkg/domain-errors"
)

// Algorithm selects the scheme used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// MinCost is the lowest bcrypt cost accepted for new hashes.
const MinCost = 12

// Hasher is safe for concurrent use.
type Hasher struct {
	algorithm Algorithm
	cost      int
	argon     Argon2Params

	dummyOnce sync.Once
	dummy     string
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithCost sets the bcrypt cost. Values below MinCost are raised to MinCost.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost < MinCost {
			cost = MinCost
		}
		if cost > bcrypt.MaxCost {
			cost = bcrypt.MaxCost
		}
		h.cost = cost
	}
}

// WithAlgorithm selects the scheme for new hashes. Unknown values keep bcrypt.
func WithAlgorithm(alg Algorithm) Option {
	return func(h *Hasher) {
		if alg == AlgorithmArgon2id {
			h.algorithm = alg
		}
	}
}

// WithArgon2Params overrides the argon2id parameters.
func WithArgon2Params(p Argon2Params) Option {
	return func(h *Hasher) {
		h.argon = p
	}
}

func New(opts ...Option) *Hasher {
	h := &Hasher{
		algorithm: AlgorithmBcrypt,
		cost:      MinCost,
		argon:     DefaultArgon2Params(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns a salted one-way hash of password in the configured scheme.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", dErrors.New(dErrors.CodeEmptyInput, "password cannot be empty")
	}
	if h.algorithm == AlgorithmArgon2id {
		return hashArgon2id(password, h.argon)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "password is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash password")
	}
	return string(hashed), nil
}

// Verify reports whether password matches hash. Empty inputs, malformed
// hashes and legacy hashes all yield false; comparison is left to the
// primitive.
func (h *Hasher) Verify(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	switch {
	case isBcrypt(hash):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case strings.HasPrefix(hash, argon2idPrefix):
		return verifyArgon2id(password, hash)
	default:
		return false
	}
}

// VerifyDummy spends the same work as a real Verify against a throwaway
// hash. Used when no principal matched so response time does not reveal it.
func (h *Hasher) VerifyDummy(password string) {
	h.dummyOnce.Do(func() {
		hashed, err := h.Hash("dummy-password-for-timing")
		if err == nil {
			h.dummy = hashed
		}
	})
	if password == "" {
		password = "x"
	}
	_ = h.Verify(password, h.dummy)
}

// NeedsRehash reports whether hash should be replaced after a successful
// login: legacy digests, weaker bcrypt costs, or a different configured scheme.
func (h *Hasher) NeedsRehash(hash string) bool {
	if IsLegacyHash(hash) {
		return true
	}
	if isBcrypt(hash) {
		if h.algorithm != AlgorithmBcrypt {
			return true
		}
		cost, err := bcrypt.Cost([]byte(hash))
		return err != nil || cost < h.cost
	}
	if strings.HasPrefix(hash, argon2idPrefix) {
		return h.algorithm != AlgorithmArgon2id
	}
	return true
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}
