package auth

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// TokenPair is the response to a successful login or refresh exchange.
type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Roles        []string `json:"roles"`
}

// RegisterUserMessage carries the registration payload.
type RegisterUserMessage struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	UseHashid bool   `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Auther orchestrates credential checks, session rotation, and the password
// recovery flow for a single identity store.
type Auther struct {
	repo          RepositoryManager
	tokens        *TokenIssuer
	hasher        PasswordAuthenticator
	mailer        Mailer
	logger        Logger
	now           func() time.Time
	resetLinkBase string
}

// NewAuthenticator returns a new Auther wired with bcrypt hashing and a
// stdout mailer; production callers override both via the With* builders.
func NewAuthenticator(repo RepositoryManager, cfg Config) *Auther {
	return &Auther{
		repo:   repo,
		tokens: NewTokenIssuer(cfg),
		hasher: BcryptHasher{},
		mailer: printMailer{},
		logger: defLogger{},
		now:    time.Now,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMailer sets the mail-delivery collaborator used for recovery mail.
func (s *Auther) WithMailer(mailer Mailer) *Auther {
	if mailer != nil {
		s.mailer = mailer
	}
	return s
}

// WithPasswordAuthenticator overrides the credential hashing collaborator.
func (s *Auther) WithPasswordAuthenticator(hasher PasswordAuthenticator) *Auther {
	if hasher != nil {
		s.hasher = hasher
	}
	return s
}

// WithClock overrides the clock, propagating it to the token codecs.
func (s *Auther) WithClock(now func() time.Time) *Auther {
	if now != nil {
		s.now = now
		WithIssuerClock(now)(s.tokens)
	}
	return s
}

// WithResetLinkBase sets the frontend URL embedded in recovery mail.
func (s *Auther) WithResetLinkBase(base string) *Auther {
	s.resetLinkBase = base
	return s
}

// TokenIssuer returns the issuer used by this authenticator.
func (s *Auther) TokenIssuer() *TokenIssuer {
	return s.tokens
}

// Register creates a new identity with a hashed credential and the default
// role. Duplicate checks run before any write; the plaintext credential is
// never stored or logged.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	hash, err := s.hasher.HashPassword(msg.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
	}

	role := RoleUser
	if parsed, ok := ParseRole(msg.Role); ok {
		role = parsed
	}

	user := &User{
		Username:     msg.Username,
		Email:        msg.Email,
		Phone:        msg.Phone,
		PasswordHash: hash,
		Role:         role,
	}

	if msg.UseHashid {
		if id, err := hashid.NewUUID(msg.Email); err == nil {
			user.ID = id
		}
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Users().GetByUsernameTx(ctx, tx, msg.Username); err == nil {
			return ErrDuplicateUsername
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}

		if _, err := s.repo.Users().GetByEmailTx(ctx, tx, msg.Email); err == nil {
			return ErrDuplicateEmail
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}

		created, err := s.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		user = created
		return nil
	})

	if err != nil {
		s.logger.Warn("Register failed for %q: %v", msg.Username, err)
		return nil, err
	}

	s.logger.Info("user registered", "username", user.Username)
	return user, nil
}

// Login verifies the credential and, on success, issues a fresh access and
// refresh pair, overwriting any previously live refresh session. Logging in
// elsewhere invalidates the earlier session's refresh token on purpose.
// Unknown identifiers and wrong passwords are indistinguishable to callers.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := s.repo.Users().GetByUsername(ctx, identifier)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("Login attempt for unknown identifier")
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}

	if err := s.hasher.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Warn("Login credential mismatch", "username", user.Username)
		return nil, ErrInvalidCredentials
	}

	pair, refreshExpiry, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().StoreRefreshSessionTx(ctx, tx, user.ID, pair.RefreshToken, refreshExpiry)
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh session")
	}

	s.logger.Info("user authenticated", "username", user.Username)
	return pair, nil
}

// Refresh exchanges a refresh token for a new access and refresh pair. The
// presented token must verify under the refresh key AND byte-match the
// persisted session; rotation is a conditional overwrite, so replaying the
// same token a second time fails with ErrRefreshTokenMismatch.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.RefreshCodec().Validate(refreshToken)
	if err != nil {
		s.logger.Warn("Refresh token failed verification: %v", err)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.repo.Users().GetByUsername(ctx, claims.Subject())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		s.logger.Warn("Refresh token mismatch", "username", user.Username)
		return nil, ErrRefreshTokenMismatch
	}

	if user.RefreshTokenExpiry == nil || user.RefreshTokenExpiry.Before(s.now()) {
		s.logger.Warn("Refresh session expired", "username", user.Username)
		return nil, ErrRefreshTokenExpired
	}

	pair, refreshExpiry, err := s.mintPair(user)
	if err != nil {
		return nil, err
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rotated, err := s.repo.Users().RotateRefreshSessionTx(ctx, tx, user.ID, refreshToken, pair.RefreshToken, refreshExpiry)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate refresh session")
		}
		if !rotated {
			// lost the race against a concurrent exchange or a newer login
			return ErrRefreshTokenMismatch
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tokens refreshed", "username", user.Username)
	return pair, nil
}

// RequestPasswordReset issues a reset token, persists it with its expiry, and
// mails recovery instructions. The token is durable before the send attempt;
// a delivery failure surfaces as ErrNotificationFailed without rolling the
// request back.
func (s *Auther) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.logger.Warn("password reset requested for unknown email")
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}

	resetToken, err := s.tokens.IssueReset(NewIdentityFromUser(user))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue reset token")
	}

	expiry := s.now().Add(s.tokens.ResetCodec().TTL())

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Users().StoreResetRequestTx(ctx, tx, user.ID, resetToken, expiry)
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset request")
	}

	subject, body := resetMailContent(s.resetLinkBase, resetToken, s.tokens.ResetCodec().TTL())
	if err := s.mailer.Send(ctx, user.Email, subject, body); err != nil {
		s.logger.Error("reset mail delivery failed", "email", user.Email, "error", err)
		return ErrNotificationFailed
	}

	s.logger.Info("reset token issued and mailed", "email", user.Email)
	return nil
}

// CompletePasswordReset consumes a reset token and replaces the credential
// hash. Success clears the reset request AND the refresh session: a completed
// reset forcibly ends any outstanding session, requiring re-login everywhere.
func (s *Auther) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	claims, err := s.tokens.ResetCodec().Validate(resetToken)
	if err != nil {
		s.logger.Warn("Reset token failed verification: %v", err)
		return ErrInvalidResetToken
	}

	user, err := s.repo.Users().GetByEmail(ctx, claims.Subject())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUserNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load identity")
	}

	if user.ResetToken == nil || *user.ResetToken != resetToken {
		s.logger.Warn("Reset token mismatch", "email", user.Email)
		return ErrResetTokenMismatch
	}

	if user.ResetTokenExpiry == nil || user.ResetTokenExpiry.Before(s.now()) {
		s.logger.Warn("Reset token expired", "email", user.Email)
		return ErrResetTokenExpired
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		done, err := s.repo.Users().FinalizePasswordResetTx(ctx, tx, user.ID, resetToken, hash)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
		}
		if !done {
			return ErrResetTokenMismatch
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("password reset completed", "email", user.Email)
	return nil
}

func (s *Auther) mintPair(user *User) (*TokenPair, time.Time, error) {
	identity := NewIdentityFromUser(user)

	accessToken, err := s.tokens.IssueAccess(identity)
	if err != nil {
		return nil, time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue access token")
	}

	refreshToken, err := s.tokens.IssueRefresh(identity)
	if err != nil {
		return nil, time.Time{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue refresh token")
	}

	pair := &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     user.Username,
		Email:        user.Email,
		Roles:        []string{string(user.Role)},
	}

	return pair, s.now().Add(s.tokens.RefreshCodec().TTL()), nil
}

func resetMailContent(linkBase, token string, ttl time.Duration) (string, string) {
	if linkBase == "" {
		linkBase = "https://localhost/reset-password"
	}

	subject := "Password Reset Request for Your Account"
	body := fmt.Sprintf(`Password Reset Request
----------------------

We received a request to reset the password for your account.

To reset your password, please visit:
%s?token=%s

Important:
- This link will expire in %s
- Never share this token with anyone
- If you didn't request this, please ignore this email
`, linkBase, token, formatTTL(ttl))

	return subject, body
}

func formatTTL(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		h := int(d / time.Hour)
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	}
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return d.String()
}
