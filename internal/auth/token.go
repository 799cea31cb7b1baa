package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/task-service/internal/domain"
)

// Token errors. Decode wraps one of these so callers can use errors.Is.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenInvalid   = errors.New("token signature invalid")
	ErrTokenExpired   = errors.New("token expired")
)

const defaultTokenTTL = 24 * time.Hour

// TokenConfig is the signing configuration, fixed for the process lifetime.
// Changing the secret invalidates every outstanding token.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Token is an issued credential together with the claims it carries.
type Token struct {
	Value          string
	CredentialName string
	Role           domain.Role
	IssuedAt       time.Time
	ExpiresAt      time.Time
}

// Claims describes the JWT payload. The subject is the credential name.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenDecoder validates token text at a given instant.
type TokenDecoder interface {
	Decode(tokenText string, now time.Time) (PrincipalContext, error)
}

// TokenCodec issues and decodes HS256 signed tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenCodec builds a codec from an immutable config value.
func NewTokenCodec(cfg TokenConfig) *TokenCodec {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenCodec{
		secret: secret,
		ttl:    ttl,
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// TTL returns the lifetime applied to issued tokens.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Issue signs a token for the principal. Output is deterministic for equal
// inputs and key.
func (tc *TokenCodec) Issue(credentialName string, role domain.Role, now time.Time) (Token, error) {
	if credentialName == "" {
		return Token{}, errors.New("credential name required")
	}
	if !role.Valid() {
		return Token{}, fmt.Errorf("invalid role %q", role)
	}

	issuedAt := jwt.NewNumericDate(now)
	// NumericDate has second precision; round expiry up so a token is never
	// shorter lived than the configured TTL.
	expiresAt := jwt.NewNumericDate(ceilSecond(now.Add(tc.ttl)))

	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   credentialName,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value:          signed,
		CredentialName: credentialName,
		Role:           role,
		IssuedAt:       issuedAt.Time,
		ExpiresAt:      expiresAt.Time,
	}, nil
}

// Decode validates tokenText at instant now. Structure is checked first, then
// expiry, then the signature, so an expired token reports ErrTokenExpired
// whatever the state of its signature.
func (tc *TokenCodec) Decode(tokenText string, now time.Time) (PrincipalContext, error) {
	unverified := &Claims{}
	if _, _, err := tc.parser.ParseUnverified(tokenText, unverified); err != nil {
		if errors.Is(err, jwt.ErrTokenUnverifiable) {
			return PrincipalContext{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
		return PrincipalContext{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if unverified.Subject == "" || !unverified.Role.Valid() || unverified.ExpiresAt == nil {
		return PrincipalContext{}, fmt.Errorf("%w: missing required claim", ErrTokenMalformed)
	}
	if !now.Before(unverified.ExpiresAt.Time) {
		return PrincipalContext{}, ErrTokenExpired
	}

	verified := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	parsed, err := parser.ParseWithClaims(tokenText, verified, tc.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return PrincipalContext{}, ErrTokenExpired
		}
		// Header and claims already parsed, so anything left is the signature.
		return PrincipalContext{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return PrincipalContext{}, ErrTokenInvalid
	}

	return PrincipalContext{CredentialName: verified.Subject, Role: verified.Role}, nil
}

func (tc *TokenCodec) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method != jwt.SigningMethodHS256 {
		return nil, errors.New("unexpected signing method")
	}
	return tc.secret, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Before(t) {
		return truncated.Add(time.Second)
	}
	return truncated
}
