package auth

import (
	"github.com/ksbk/notehub/middleware/jwtware"
)

// GateValidator adapts an access TokenCodec to the middleware's validator
// interface. Only the access codec belongs here; the gate must never accept
// refresh or reset tokens.
type GateValidator struct {
	codec *TokenCodec
}

var _ jwtware.TokenValidator = GateValidator{}

// NewGateValidator wraps the issuer's access codec for the trust gate.
func NewGateValidator(tokens *TokenIssuer) GateValidator {
	return GateValidator{codec: tokens.AccessCodec()}
}

// NewGateValidatorFromConfig builds a gate validator straight from config,
// for services that verify tokens without issuing them.
func NewGateValidatorFromConfig(cfg Config) GateValidator {
	return GateValidator{
		codec: NewTokenCodec(
			TokenClassAccess,
			[]byte(cfg.GetAccessSigningKey()),
			cfg.GetAccessTokenTTL(),
			WithCodecIssuer(cfg.GetIssuer()),
		),
	}
}

// Validate verifies the raw token under the access key.
func (v GateValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.codec.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
