package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenCodec signs and verifies bearer tokens for a single token class under
// a single secret key. It has no side effects; session bookkeeping belongs to
// the orchestrator.
type TokenCodec struct {
	class      TokenClass
	signingKey []byte
	ttl        time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

type TokenCodecOption func(*TokenCodec)

// WithCodecClock overrides the clock used for issuance and expiry checks.
func WithCodecClock(now func() time.Time) TokenCodecOption {
	return func(tc *TokenCodec) {
		if now != nil {
			tc.now = now
		}
	}
}

// WithCodecIssuer sets the issuer claim stamped on signed tokens.
func WithCodecIssuer(issuer string) TokenCodecOption {
	return func(tc *TokenCodec) {
		tc.issuer = issuer
	}
}

// WithCodecLogger overrides the logger.
func WithCodecLogger(logger Logger) TokenCodecOption {
	return func(tc *TokenCodec) {
		if logger != nil {
			tc.logger = logger
		}
	}
}

// NewTokenCodec creates a codec for the given class and signing key.
func NewTokenCodec(class TokenClass, signingKey []byte, ttl time.Duration, opts ...TokenCodecOption) *TokenCodec {
	tc := &TokenCodec{
		class:      class,
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		opt(tc)
	}

	return tc
}

// Class returns the token class this codec signs and verifies.
func (tc *TokenCodec) Class() TokenClass {
	return tc.class
}

// TTL returns the configured token lifetime.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// SignClaims stamps the codec's class, issuer, and lifetime onto the claims
// and signs them with HS256.
func (tc *TokenCodec) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	now := tc.now()
	claims.Class = tc.class
	if claims.RegisteredClaims.Issuer == "" {
		claims.RegisteredClaims.Issuer = tc.issuer
	}
	if claims.RegisteredClaims.IssuedAt == nil {
		claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.RegisteredClaims.ExpiresAt == nil {
		claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(tc.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(tc.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and verifies a token string, returning structured claims.
// Signature is checked before expiry; a structurally valid but expired token
// reports ErrTokenExpired, never ErrTokenBadSignature.
func (tc *TokenCodec) Validate(tokenString string) (AuthClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrTokenEmpty
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			tc.logger.Error("TokenCodec validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.signingKey, nil
	}, jwt.WithTimeFunc(tc.now))

	if err != nil {
		return nil, tc.mapParseError(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		tc.logger.Error("TokenCodec validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	if claims.Class != tc.class {
		tc.logger.Warn("TokenCodec validate rejected token of class %q, codec expects %q", claims.Class, tc.class)
		return nil, ErrTokenUnsupported
	}

	return claims, nil
}

func (tc *TokenCodec) mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenUnsupported
	default:
		return errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode)
	}
}
