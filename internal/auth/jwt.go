// Package auth issues and verifies the short-lived bearer tokens that ops
// staff use for pricing administration endpoints.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued ops token is valid.
const DefaultTokenTTL = 15 * time.Minute

// ScopePricingAdmin allows reloading and seeding the pricing table.
const ScopePricingAdmin = "pricing:admin"

// Token errors.
var (
	ErrInvalidToken      = errors.New("invalid ops token")
	ErrTokenExpired      = errors.New("ops token has expired")
	ErrInsufficientScope = errors.New("ops token lacks required scope")
	ErrNoSigningKey      = errors.New("no signing key configured")
)

// OpsClaims are the claims carried by an ops token.
type OpsClaims struct {
	jwt.RegisteredClaims

	Scopes []string `json:"scp"`
}

// HasScope reports whether the token grants scope.
func (c *OpsClaims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// TokenConfig holds configuration for the token service.
type TokenConfig struct {
	// SigningKey is the HS256 secret.
	SigningKey string

	// Issuer is the iss claim (default: "fareengine").
	Issuer string

	// Audience is the aud claim (default: "fareengine-ops").
	Audience string

	// TTL is the lifetime of issued tokens (default: 15 minutes).
	TTL time.Duration

	// RequiredScope is checked on validation (default: ScopePricingAdmin).
	RequiredScope string
}

// TokenService issues and validates ops tokens.
type TokenService struct {
	signingKey    []byte
	issuer        string
	audience      string
	ttl           time.Duration
	requiredScope string
	now           func() time.Time
}

// NewTokenService creates a token service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrNoSigningKey
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "fareengine"
	}
	if cfg.Audience == "" {
		cfg.Audience = "fareengine-ops"
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.RequiredScope == "" {
		cfg.RequiredScope = ScopePricingAdmin
	}

	return &TokenService{
		signingKey:    []byte(cfg.SigningKey),
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		ttl:           cfg.TTL,
		requiredScope: cfg.RequiredScope,
		now:           time.Now,
	}, nil
}

// Issue signs a token for subject with the given scopes.
func (s *TokenService) Issue(subject string, scopes ...string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := OpsClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID(),
		},
		Scopes: scopes,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing ops token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateOpsToken verifies signature, issuer, audience, expiry and the required scope.
func (s *TokenService) ValidateOpsToken(tokenString string) (*OpsClaims, error) {
	claims := &OpsClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if !claims.HasScope(s.requiredScope) {
		return nil, fmt.Errorf("%w: %s", ErrInsufficientScope, s.requiredScope)
	}
	return claims, nil
}

func tokenID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
