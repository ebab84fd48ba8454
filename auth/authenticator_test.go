package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    phone TEXT,
    password_hash TEXT NOT NULL,
    user_role TEXT NOT NULL DEFAULT 'user',
    avatar_url TEXT,
    refresh_token TEXT,
    refresh_token_expiry TIMESTAMP NULL,
    reset_token TEXT,
    reset_token_expiry TIMESTAMP NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// plainHasher keeps orchestration tests fast; bcrypt has its own coverage.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}
	return "plain:" + password, nil
}

func (plainHasher) ComparePasswordAndHash(password, hash string) error {
	if hash != "plain:"+password {
		return ErrMismatchedHashAndPassword
	}
	return nil
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type captureMailer struct {
	sent []sentMail
	fail bool
}

func (m *captureMailer) Send(_ context.Context, to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type autherHarness struct {
	auther *Auther
	repo   RepositoryManager
	mailer *captureMailer
	db     *bun.DB
	now    *time.Time
}

func setupAuther(t *testing.T) *autherHarness {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = db.Close()
	})

	now := time.Now()
	mailer := &captureMailer{}
	repo := NewRepositoryManager(bunDB)

	auther := NewAuthenticator(repo, issuerTestConfig{}).
		WithPasswordAuthenticator(plainHasher{}).
		WithMailer(mailer).
		WithClock(func() time.Time { return now })

	return &autherHarness{
		auther: auther,
		repo:   repo,
		mailer: mailer,
		db:     bunDB,
		now:    &now,
	}
}

func (h *autherHarness) register(t *testing.T, username, email string) *User {
	t.Helper()
	user, err := h.auther.Register(context.Background(), RegisterUserMessage{
		Username: username,
		Email:    email,
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)
	return user
}

func (h *autherHarness) reload(t *testing.T, username string) *User {
	t.Helper()
	user, err := h.repo.Users().GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return user
}

func TestRegisterPersistsUser(t *testing.T) {
	h := setupAuther(t)

	user := h.register(t, "peperone", "peperone@example.com")

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "plain:correct horse battery staple", user.PasswordHash)
	assert.Nil(t, user.RefreshToken)
	assert.Nil(t, user.ResetToken)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	_, err := h.auther.Register(ctx, RegisterUserMessage{
		Username: "peperone",
		Email:    "other@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = h.auther.Register(ctx, RegisterUserMessage{
		Username: "other",
		Email:    "peperone@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestLoginIssuesPairAndStoresSession(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "peperone", pair.Username)
	assert.Equal(t, []string{"user"}, pair.Roles)

	stored := h.reload(t, "peperone")
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, pair.RefreshToken, *stored.RefreshToken)
	require.NotNil(t, stored.RefreshTokenExpiry)
	assert.WithinDuration(t, h.now.Add(168*time.Hour), *stored.RefreshTokenExpiry, time.Minute)
}

func TestLoginCollapsesFailureModes(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	_, err := h.auther.Login(ctx, "peperone", "wrong password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.auther.Login(ctx, "nobody", "correct horse battery staple")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInvalidatesPreviousSession(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	first, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	// the codec stamps second-granularity timestamps; move the clock so the
	// second login mints a distinct token
	*h.now = h.now.Add(2 * time.Second)

	second, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = h.auther.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)

	_, err = h.auther.Refresh(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRotatesSession(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	*h.now = h.now.Add(2 * time.Second)

	next, err := h.auther.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	stored := h.reload(t, "peperone")
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, next.RefreshToken, *stored.RefreshToken)

	// replaying the consumed token must fail
	_, err = h.auther.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)
}

func TestRefreshRejectsGarbage(t *testing.T) {
	h := setupAuther(t)

	_, err := h.auther.Refresh(context.Background(), "not a token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = h.auther.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	_, err = h.auther.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshExpiredSession(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	user := h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	// the token itself is still verifiable; only the persisted session expiry
	// has passed
	past := h.now.Add(-time.Minute)
	_, err = h.db.NewRaw(
		`UPDATE users SET refresh_token_expiry = ? WHERE id = ?;`,
		past, user.ID,
	).Exec(ctx)
	require.NoError(t, err)

	_, err = h.auther.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenExpired)
}

func TestRequestPasswordResetPersistsAndMails(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	err := h.auther.RequestPasswordReset(ctx, "peperone@example.com")
	require.NoError(t, err)

	stored := h.reload(t, "peperone")
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiry)
	assert.WithinDuration(t, h.now.Add(time.Hour), *stored.ResetTokenExpiry, time.Minute)

	require.Len(t, h.mailer.sent, 1)
	assert.Equal(t, "peperone@example.com", h.mailer.sent[0].to)
	assert.True(t, strings.Contains(h.mailer.sent[0].body, *stored.ResetToken),
		"reset mail must carry the token")
	assert.Contains(t, h.mailer.sent[0].body, "expire in 1 hour")
}

func TestRequestPasswordResetUnknownEmail(t *testing.T) {
	h := setupAuther(t)

	err := h.auther.RequestPasswordReset(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, h.mailer.sent)
}

func TestRequestPasswordResetMailFailureKeepsToken(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")
	h.mailer.fail = true

	err := h.auther.RequestPasswordReset(ctx, "peperone@example.com")
	assert.ErrorIs(t, err, ErrNotificationFailed)

	// the reset request must survive the delivery failure
	stored := h.reload(t, "peperone")
	require.NotNil(t, stored.ResetToken)
	require.NotNil(t, stored.ResetTokenExpiry)
}

func TestCompletePasswordReset(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	// live session that the reset must forcibly end
	_, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	require.NoError(t, h.auther.RequestPasswordReset(ctx, "peperone@example.com"))
	stored := h.reload(t, "peperone")
	resetToken := *stored.ResetToken

	err = h.auther.CompletePasswordReset(ctx, resetToken, "brand new password")
	require.NoError(t, err)

	after := h.reload(t, "peperone")
	assert.Nil(t, after.ResetToken)
	assert.Nil(t, after.ResetTokenExpiry)
	assert.Nil(t, after.RefreshToken)
	assert.Nil(t, after.RefreshTokenExpiry)

	_, err = h.auther.Login(ctx, "peperone", "correct horse battery staple")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = h.auther.Login(ctx, "peperone", "brand new password")
	assert.NoError(t, err)
}

func TestCompletePasswordResetSingleUse(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")
	require.NoError(t, h.auther.RequestPasswordReset(ctx, "peperone@example.com"))

	stored := h.reload(t, "peperone")
	resetToken := *stored.ResetToken

	require.NoError(t, h.auther.CompletePasswordReset(ctx, resetToken, "new password one"))

	err := h.auther.CompletePasswordReset(ctx, resetToken, "new password two")
	assert.ErrorIs(t, err, ErrResetTokenMismatch)
}

func TestCompletePasswordResetRejectsGarbage(t *testing.T) {
	h := setupAuther(t)

	err := h.auther.CompletePasswordReset(context.Background(), "junk", "whatever password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestCompletePasswordResetExpiredRequest(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	user := h.register(t, "peperone", "peperone@example.com")
	require.NoError(t, h.auther.RequestPasswordReset(ctx, "peperone@example.com"))

	stored := h.reload(t, "peperone")
	resetToken := *stored.ResetToken

	// backdate the persisted expiry while the token itself still verifies
	past := h.now.Add(-time.Minute)
	_, err := h.db.NewRaw(
		`UPDATE users SET reset_token_expiry = ? WHERE id = ?;`,
		past, user.ID,
	).Exec(ctx)
	require.NoError(t, err)

	err = h.auther.CompletePasswordReset(ctx, resetToken, "whatever password")
	assert.ErrorIs(t, err, ErrResetTokenExpired)
}

func TestCompletePasswordResetRejectsOtherTokenClasses(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	err = h.auther.CompletePasswordReset(ctx, pair.RefreshToken, "whatever password")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestMintedTokensDifferPerClass(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	// access token must not be accepted as proof by the refresh exchange even
	// though both were minted in the same call
	_, err = h.auther.Refresh(ctx, pair.AccessToken)
	assert.Error(t, err)
}

func TestRegisterStoresPhone(t *testing.T) {
	h := setupAuther(t)

	_, err := h.auther.Register(context.Background(), RegisterUserMessage{
		Username: "peperone",
		Email:    "peperone@example.com",
		Phone:    "+14155552671",
		Password: "correct horse battery staple",
	})
	require.NoError(t, err)

	stored := h.reload(t, "peperone")
	assert.Equal(t, "+14155552671", stored.Phone)
}

func TestRotateRefreshSessionConditional(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	user := h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	expiry := h.now.Add(time.Hour)

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rotated, err := h.repo.Users().RotateRefreshSessionTx(ctx, tx, user.ID, pair.RefreshToken, "winner-token", expiry)
		require.NoError(t, err)
		require.True(t, rotated)
		return nil
	})
	require.NoError(t, err)

	// the stale holder presents the pre-rotation token; the conditional
	// update must not apply and must leave the winner's session in place
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rotated, err := h.repo.Users().RotateRefreshSessionTx(ctx, tx, user.ID, pair.RefreshToken, "loser-token", expiry)
		require.NoError(t, err)
		assert.False(t, rotated)
		return nil
	})
	require.NoError(t, err)

	stored := h.reload(t, "peperone")
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "winner-token", *stored.RefreshToken)
}

// racingUsers makes the session move underneath an in-flight refresh: the
// read returns a snapshot, then a concurrent login overwrites the session
// before the exchange reaches its conditional rotate.
type racingUsers struct {
	Users
	db     *bun.DB
	hijack bool
}

func (r *racingUsers) GetByUsername(ctx context.Context, username string) (*User, error) {
	user, err := r.Users.GetByUsername(ctx, username)
	if err != nil || !r.hijack {
		return user, err
	}
	r.hijack = false

	if err := r.Users.StoreRefreshSessionTx(ctx, r.db, user.ID, "concurrent-login-token", time.Now().Add(time.Hour)); err != nil {
		return nil, err
	}
	return user, nil
}

type racingManager struct {
	RepositoryManager
	users Users
}

func (m *racingManager) Users() Users { return m.users }

func TestRefreshLosesRotationRace(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	pair, err := h.auther.Login(ctx, "peperone", "correct horse battery staple")
	require.NoError(t, err)

	racer := &racingUsers{Users: h.repo.Users(), db: h.db, hijack: true}
	auther := NewAuthenticator(&racingManager{RepositoryManager: h.repo, users: racer}, issuerTestConfig{}).
		WithPasswordAuthenticator(plainHasher{})

	// the byte-compare passes against the snapshot, so the failure must come
	// from the conditional rotate itself
	_, err = auther.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenMismatch)

	stored := h.reload(t, "peperone")
	require.NotNil(t, stored.RefreshToken)
	assert.Equal(t, "concurrent-login-token", *stored.RefreshToken,
		"the concurrent writer's session must survive the lost exchange")
}

type shortResetConfig struct{ issuerTestConfig }

func (shortResetConfig) GetResetTokenTTL() time.Duration { return 30 * time.Minute }

func TestResetMailMentionsConfiguredExpiry(t *testing.T) {
	h := setupAuther(t)
	ctx := context.Background()

	h.register(t, "peperone", "peperone@example.com")

	mailer := &captureMailer{}
	auther := NewAuthenticator(h.repo, shortResetConfig{}).
		WithPasswordAuthenticator(plainHasher{}).
		WithMailer(mailer)

	require.NoError(t, auther.RequestPasswordReset(ctx, "peperone@example.com"))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0].body, "expire in 30 minutes")
}

func TestFormatTTL(t *testing.T) {
	assert.Equal(t, "1 hour", formatTTL(time.Hour))
	assert.Equal(t, "24 hours", formatTTL(24*time.Hour))
	assert.Equal(t, "1 minute", formatTTL(time.Minute))
	assert.Equal(t, "90 minutes", formatTTL(90*time.Minute))
	assert.Equal(t, "45s", formatTTL(45*time.Second))
}
