package auth

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// UpdateProfileMessage carries the mutable profile fields. Empty fields are
// left untouched.
type UpdateProfileMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

// ProfileService manages account profiles and their avatar blobs.
type ProfileService struct {
	repo   RepositoryManager
	blobs  BlobStore
	logger Logger
}

// NewProfileService returns a ProfileService backed by the given repository
// manager and blob store. The blob store may be nil when avatar support is
// disabled.
func NewProfileService(repo RepositoryManager, blobs BlobStore) *ProfileService {
	return &ProfileService{
		repo:   repo,
		blobs:  blobs,
		logger: defLogger{},
	}
}

func (s *ProfileService) WithLogger(logger Logger) *ProfileService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// GetByUsername loads a profile by username.
func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*User, error) {
	user, err := s.repo.Users().GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load profile")
	}
	return user, nil
}

// List returns all accounts ordered by creation time. Admin only; callers
// enforce the role.
func (s *ProfileService) List(ctx context.Context) ([]*User, error) {
	users, err := s.repo.Users().ListAll(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}
	return users, nil
}

// Update applies the non-empty fields of msg to the profile. Username and
// email changes re-run the duplicate checks.
func (s *ProfileService) Update(ctx context.Context, username string, msg UpdateProfileMessage) (*User, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if msg.Username != "" && msg.Username != user.Username {
		if _, err := s.repo.Users().GetByUsername(ctx, msg.Username); err == nil {
			return nil, ErrDuplicateUsername
		} else if !repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		}
		user.Username = msg.Username
	}

	if msg.Email != "" && msg.Email != user.Email {
		if _, err := s.repo.Users().GetByEmail(ctx, msg.Email); err == nil {
			return nil, ErrDuplicateEmail
		} else if !repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		}
		user.Email = msg.Email
	}

	if msg.Phone != "" {
		user.Phone = msg.Phone
	}

	updated, err := s.repo.Users().UpdateProfile(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
	}

	s.logger.Info("profile updated", "username", updated.Username)
	return updated, nil
}

// UploadAvatar stores the avatar blob under a key derived from the account ID
// and records the key on the profile.
func (s *ProfileService) UploadAvatar(ctx context.Context, username, filename, contentType string, body io.Reader) (string, error) {
	if s.blobs == nil {
		return "", goerrors.New("avatar storage is not configured", goerrors.CategoryOperation)
	}

	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	key := avatarKey(user.ID, filename)
	if err := s.blobs.Upload(ctx, key, contentType, body); err != nil {
		s.logger.Error("avatar upload failed", "username", username, "error", err)
		return "", goerrors.Wrap(err, goerrors.CategoryOperation, "failed to store avatar")
	}

	if err := s.repo.Users().UpdateAvatar(ctx, user.ID, key); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record avatar")
	}

	s.logger.Info("avatar stored", "username", username, "key", key)
	return key, nil
}

// FetchAvatar streams the avatar blob for the given account.
func (s *ProfileService) FetchAvatar(ctx context.Context, username string) (io.ReadCloser, error) {
	if s.blobs == nil {
		return nil, goerrors.New("avatar storage is not configured", goerrors.CategoryOperation)
	}

	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if user.AvatarURL == "" {
		return nil, repository.NewRecordNotFound().WithMetadata(map[string]any{
			"avatar": username,
		})
	}

	rc, err := s.blobs.Fetch(ctx, user.AvatarURL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to fetch avatar")
	}
	return rc, nil
}

// Delete removes the account and best-effort releases its avatar blob.
func (s *ProfileService) Delete(ctx context.Context, username string) error {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	if s.blobs != nil && user.AvatarURL != "" {
		if err := s.blobs.Delete(ctx, user.AvatarURL); err != nil {
			s.logger.Warn("avatar release failed", "username", username, "error", err)
		}
	}

	if err := s.repo.Users().DeleteAccount(ctx, user.ID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}

	s.logger.Info("account deleted", "username", username)
	return nil
}

func avatarKey(id uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("avatars/%s%s", id, ext)
}
