package jwttoken

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "shopcore/pkg/domain"
	dErrors "shopcore/pkg/domain-errors"
	"shopcore/pkg/requestcontext"
)

// TokenType discriminates access from refresh tokens. It is checked on every
// verification, so a validly signed token of the wrong kind is rejected.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	MinRefreshTTL     = 7 * 24 * time.Hour
	MaxRefreshTTL     = 14 * 24 * time.Hour
)

// Claims is the payload of both token kinds. Only the principal id, the
// tenant binding, the role and the token metadata belong here: the payload
// is signed, not encrypted.
type Claims struct {
	Type     TokenType `json:"typ"`
	TenantID string    `json:"tenant_id,omitempty"`
	Role     string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// PrincipalID returns the subject as a typed id.
func (c *Claims) PrincipalID() id.PrincipalID {
	return id.PrincipalID(c.Subject)
}

// Binding returns the fixed tenant binding, or "" for unbound principals.
func (c *Claims) Binding() id.TenantID {
	return id.TenantID(c.TenantID)
}

// TenantClaims is what the issuer embeds besides the principal id.
type TenantClaims struct {
	Binding id.TenantID
	Role    string
}

// TokenPair is the result of IssuePair. RotationID is the refresh token's jti.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	RotationID       string
}

// JWTService issues and verifies HS256 tokens with an injected key.
// It holds no mutable state after construction and is safe for concurrent use.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

// Option configures a JWTService.
type Option func(*JWTService)

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *JWTService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL sets the refresh lifetime, clamped to [MinRefreshTTL, MaxRefreshTTL].
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *JWTService) {
		s.refreshTTL = min(max(ttl, MinRefreshTTL), MaxRefreshTTL)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *JWTService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewJWTService(signingKey, issuer, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *JWTService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *JWTService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssuePair signs a fresh access token and a fresh refresh token for the
// principal. Every call generates a new rotation id. The principal id must
// pass the same parsing Verify applies to the subject, so no pair is issued
// that could never verify.
func (s *JWTService) IssuePair(ctx context.Context, principalID id.PrincipalID, tc TenantClaims) (*TokenPair, error) {
	principalID, err := id.ParsePrincipalID(principalID.String())
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidPrincipal, "invalid principal id")
	}
	now := requestcontext.Now(ctx).Truncate(time.Second)

	accessExp := now.Add(s.accessTTL)
	access, err := s.sign(Claims{
		Type:             TokenTypeAccess,
		TenantID:         tc.Binding.String(),
		Role:             tc.Role,
		RegisteredClaims: s.registered(principalID, uuid.NewString(), now, accessExp),
	})
	if err != nil {
		return nil, err
	}

	rotationID := uuid.NewString()
	refreshExp := now.Add(s.refreshTTL)
	refresh, err := s.sign(Claims{
		Type:             TokenTypeRefresh,
		RegisteredClaims: s.registered(principalID, rotationID, now, refreshExp),
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		RotationID:       rotationID,
	}, nil
}

func (s *JWTService) registered(principalID id.PrincipalID, jti string, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   principalID.String(),
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        jti,
	}
}

func (s *JWTService) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, nil
}

// Verify parses token and checks signature, algorithm, issuer, audience,
// expiry, required claims and that its type equals expected. Every failure
// returns the same CodeTokenRejected error; the reason is only logged.
func (s *JWTService) Verify(ctx context.Context, token string, expected TokenType) (*Claims, error) {
	claims, reason := s.parse(ctx, token, expected)
	if reason != "" {
		tokenRejections.WithLabelValues(string(expected), reason).Inc()
		s.logger.DebugContext(ctx, "token rejected",
			"reason", reason,
			"expected_type", expected,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, errTokenRejected()
	}
	return claims, nil
}

func errTokenRejected() error {
	return dErrors.New(dErrors.CodeTokenRejected, "token rejected")
}

func (s *JWTService) parse(ctx context.Context, token string, expected TokenType) (*Claims, string) {
	if token == "" {
		return nil, "empty"
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		return nil, rejectionReason(err)
	}
	if !parsed.Valid {
		return nil, "invalid"
	}

	if claims.Type != expected {
		return nil, "type_mismatch"
	}
	if claims.Subject == "" || claims.IssuedAt == nil {
		return nil, "missing_claim"
	}
	if _, err := id.ParsePrincipalID(claims.Subject); err != nil {
		return nil, "missing_claim"
	}
	if expected == TokenTypeRefresh && claims.ID == "" {
		return nil, "missing_claim"
	}
	return claims, ""
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "algorithm"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "issuer_audience"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not_yet_valid"
	default:
		return "invalid"
	}
}

// VerifyAccess verifies an access token and returns the caller it describes.
func (s *JWTService) VerifyAccess(ctx context.Context, token string) (requestcontext.Principal, error) {
	claims, err := s.Verify(ctx, token, TokenTypeAccess)
	if err != nil {
		return requestcontext.Principal{}, err
	}
	return requestcontext.Principal{
		ID:      claims.PrincipalID(),
		Role:    claims.Role,
		Binding: claims.Binding(),
		TokenID: claims.ID,
	}, nil
}
