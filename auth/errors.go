package auth

import "github.com/goliatone/go-errors"

const (
	TextCodeDuplicateUsername    = "auth_duplicate_username"
	TextCodeDuplicateEmail       = "auth_duplicate_email"
	TextCodeInvalidCredentials   = "auth_invalid_credentials"
	TextCodeUserNotFound         = "auth_user_not_found"
	TextCodeInvalidRefreshToken  = "auth_invalid_refresh_token"
	TextCodeRefreshTokenMismatch = "auth_refresh_token_mismatch"
	TextCodeRefreshTokenExpired  = "auth_refresh_token_expired"
	TextCodeInvalidResetToken    = "auth_invalid_reset_token"
	TextCodeResetTokenMismatch   = "auth_reset_token_mismatch"
	TextCodeResetTokenExpired    = "auth_reset_token_expired"
	TextCodeNotificationFailed   = "auth_notification_failed"
	TextCodeTokenExpired         = "auth_token_expired"
	TextCodeTokenMalformed       = "auth_token_malformed"
	TextCodeTokenBadSignature    = "auth_token_bad_signature"
	TextCodeTokenUnsupported     = "auth_token_unsupported"
	TextCodeTokenEmpty           = "auth_token_empty"
)

// ErrDuplicateUsername is returned when the username is already registered.
var ErrDuplicateUsername = errors.New("user with this name already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateUsername).
	WithCode(errors.CodeConflict)

// ErrDuplicateEmail is returned when the email is already registered.
var ErrDuplicateEmail = errors.New("user with this email already exists", errors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrInvalidCredentials covers both unknown identifiers and wrong passwords,
// so login responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrUserNotFound is returned when an identity lookup comes up empty.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidRefreshToken is returned when a refresh token fails signature or
// expiry verification under the refresh key.
var ErrInvalidRefreshToken = errors.New("invalid refresh token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenMismatch is returned when a verified refresh token does not
// match the persisted session value, including tokens rotated away by a newer
// login or a lost concurrent exchange.
var ErrRefreshTokenMismatch = errors.New("refresh token mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshTokenExpired is returned when the persisted refresh session has
// lapsed.
var ErrRefreshTokenExpired = errors.New("refresh token expired", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidResetToken is returned when a reset token fails signature or
// expiry verification under the reset key.
var ErrInvalidResetToken = errors.New("invalid reset token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidResetToken).
	WithCode(errors.CodeUnauthorized)

// ErrResetTokenMismatch is returned when a verified reset token does not match
// the persisted reset request, including already-used tokens.
var ErrResetTokenMismatch = errors.New("reset token mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeResetTokenMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrResetTokenExpired is returned when the persisted reset request has lapsed.
var ErrResetTokenExpired = errors.New("reset token expired", errors.CategoryAuth).
	WithTextCode(TextCodeResetTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrNotificationFailed is returned when the recovery mail could not be
// delivered. The reset token is persisted before the send attempt, so the
// request can be retried or completed if the mail went out anyway.
var ErrNotificationFailed = errors.New("failed to deliver notification", errors.CategoryOperation).
	WithTextCode(TextCodeNotificationFailed)

// ErrTokenExpired is the codec-level expiry failure.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is the codec-level structural failure.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenBadSignature is the codec-level signature failure.
var ErrTokenBadSignature = errors.New("token signature is invalid", errors.CategoryAuth).
	WithTextCode(TextCodeTokenBadSignature).
	WithCode(errors.CodeUnauthorized)

// ErrTokenUnsupported is returned for unexpected signing methods and for
// tokens presented to a codec of a different class.
var ErrTokenUnsupported = errors.New("token is unsupported", errors.CategoryAuth).
	WithTextCode(TextCodeTokenUnsupported).
	WithCode(errors.CodeUnauthorized)

// ErrTokenEmpty is returned for empty or blank token input.
var ErrTokenEmpty = errors.New("token is empty or invalid", errors.CategoryBadInput).
	WithTextCode(TextCodeTokenEmpty).
	WithCode(errors.CodeBadRequest)
