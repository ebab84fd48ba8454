package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Users interface {
	repository.Repository[*User]

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)

	// StoreRefreshSessionTx unconditionally overwrites the refresh session,
	// invalidating whatever token was live before. Used at login.
	StoreRefreshSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiry time.Time) error
	// RotateRefreshSessionTx swaps the refresh session only if the persisted
	// token still equals previous. Returns false when a concurrent rotation
	// or a newer login won the race.
	RotateRefreshSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, previous, next string, expiry time.Time) (bool, error)

	// StoreResetRequestTx overwrites the live reset request.
	StoreResetRequestTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiry time.Time) error
	// FinalizePasswordResetTx replaces the credential hash and clears both the
	// reset request and the refresh session, conditional on the persisted
	// reset token still equalling token. Returns false if it was already
	// consumed.
	FinalizePasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string) (bool, error)

	UpdateProfile(ctx context.Context, record *User) (*User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	ListAll(ctx context.Context) ([]*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *users) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "username", username)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getByColumnTx(ctx, tx, "email", email)
}

func (a *users) getByColumnTx(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func (a *users) StoreRefreshSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiry time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"refresh_token" = ?,
			"refresh_token_expiry" = ?,
			"updated_at" = ?
		WHERE ("usr"."id" = ?);
	`, token, expiry, time.Now(), id).Exec(ctx)

	return err
}

func (a *users) RotateRefreshSessionTx(ctx context.Context, tx bun.IDB, id uuid.UUID, previous, next string, expiry time.Time) (bool, error) {
	res, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"refresh_token" = ?,
			"refresh_token_expiry" = ?,
			"updated_at" = ?
		WHERE
			("usr"."id" = ?)
			AND "usr"."refresh_token" = ?;
	`, next, expiry, time.Now(), id, previous).Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (a *users) StoreResetRequestTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string, expiry time.Time) error {
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"reset_token" = ?,
			"reset_token_expiry" = ?,
			"updated_at" = ?
		WHERE ("usr"."id" = ?);
	`, token, expiry, time.Now(), id).Exec(ctx)

	return err
}

func (a *users) FinalizePasswordResetTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token, passwordHash string) (bool, error) {
	res, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"password_hash" = ?,
			"reset_token" = NULL,
			"reset_token_expiry" = NULL,
			"refresh_token" = NULL,
			"refresh_token_expiry" = NULL,
			"updated_at" = ?
		WHERE
			("usr"."id" = ?)
			AND "usr"."reset_token" = ?;
	`, passwordHash, time.Now(), id, token).Exec(ctx)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (a *users) UpdateProfile(ctx context.Context, record *User) (*User, error) {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(record.ID.String()),
	}
	return a.Repository.Update(ctx, record, criteria...)
}

func (a *users) UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"avatar_url" = ?,
			"updated_at" = ?
		WHERE ("usr"."id" = ?);
	`, avatarURL, time.Now(), id).Exec(ctx)

	return err
}

func (a *users) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	return err
}

func (a *users) ListAll(ctx context.Context) ([]*User, error) {
	var records []*User

	err := a.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}
