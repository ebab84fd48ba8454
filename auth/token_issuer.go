package auth

import (
	"time"

	"github.com/goliatone/go-errors"
)

// TokenIssuer builds the claim set for each token class and signs it with the
// class's codec. Claim construction is pure; the orchestrator persists the
// resulting refresh and reset tokens into the session columns.
type TokenIssuer struct {
	access  *TokenCodec
	refresh *TokenCodec
	reset   *TokenCodec
}

type TokenIssuerOption func(*TokenIssuer)

// WithIssuerClock sets a shared clock on all three codecs.
func WithIssuerClock(now func() time.Time) TokenIssuerOption {
	return func(ti *TokenIssuer) {
		if now == nil {
			return
		}
		ti.access.now = now
		ti.refresh.now = now
		ti.reset.now = now
	}
}

// NewTokenIssuer creates an issuer with one independently keyed codec per
// token class.
func NewTokenIssuer(cfg Config, opts ...TokenIssuerOption) *TokenIssuer {
	ti := &TokenIssuer{
		access: NewTokenCodec(
			TokenClassAccess,
			[]byte(cfg.GetAccessSigningKey()),
			cfg.GetAccessTokenTTL(),
			WithCodecIssuer(cfg.GetIssuer()),
		),
		refresh: NewTokenCodec(
			TokenClassRefresh,
			[]byte(cfg.GetRefreshSigningKey()),
			cfg.GetRefreshTokenTTL(),
			WithCodecIssuer(cfg.GetIssuer()),
		),
		reset: NewTokenCodec(
			TokenClassReset,
			[]byte(cfg.GetResetSigningKey()),
			cfg.GetResetTokenTTL(),
			WithCodecIssuer(cfg.GetIssuer()),
		),
	}

	for _, opt := range opts {
		opt(ti)
	}

	return ti
}

// IssueAccess mints a short-lived access token: subject is the username, with
// user id and role claims for stateless authorization.
func (ti *TokenIssuer) IssueAccess(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity is required", errors.CategoryBadInput)
	}

	return ti.access.SignClaims(&JWTClaims{
		RegisteredClaims: registeredSubject(identity.Username()),
		UID:              identity.ID(),
		UserRole:         identity.Role(),
	})
}

// IssueRefresh mints a long-lived refresh token: subject only, no authority
// claim. It is exchangeable, never presentable as proof of authorization.
func (ti *TokenIssuer) IssueRefresh(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity is required", errors.CategoryBadInput)
	}

	return ti.refresh.SignClaims(&JWTClaims{
		RegisteredClaims: registeredSubject(identity.Username()),
	})
}

// IssueReset mints a reset token addressed by email, with no authority claim.
func (ti *TokenIssuer) IssueReset(identity Identity) (string, error) {
	if identity == nil {
		return "", errors.New("identity is required", errors.CategoryBadInput)
	}

	return ti.reset.SignClaims(&JWTClaims{
		RegisteredClaims: registeredSubject(identity.Email()),
	})
}

// AccessCodec exposes the access verifier, e.g. for the cross-service gate.
func (ti *TokenIssuer) AccessCodec() *TokenCodec {
	return ti.access
}

// RefreshCodec exposes the refresh verifier.
func (ti *TokenIssuer) RefreshCodec() *TokenCodec {
	return ti.refresh
}

// ResetCodec exposes the reset verifier.
func (ti *TokenIssuer) ResetCodec() *TokenCodec {
	return ti.reset
}
