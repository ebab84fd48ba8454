package auth

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memBlobStore struct {
	objects map[string][]byte
	deleted []string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: map[string][]byte{}}
}

func (s *memBlobStore) Upload(_ context.Context, key, _ string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.objects[key] = data
	return nil
}

func (s *memBlobStore) Fetch(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func setupProfiles(t *testing.T) (*autherHarness, *ProfileService, *memBlobStore) {
	t.Helper()
	h := setupAuther(t)
	blobs := newMemBlobStore()
	return h, NewProfileService(h.repo, blobs), blobs
}

func TestProfileGetByUsername(t *testing.T) {
	h, svc, _ := setupProfiles(t)
	h.register(t, "peperone", "peperone@example.com")

	user, err := svc.GetByUsername(context.Background(), "peperone")
	require.NoError(t, err)
	assert.Equal(t, "peperone@example.com", user.Email)

	_, err = svc.GetByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProfileUpdateFields(t *testing.T) {
	h, svc, _ := setupProfiles(t)
	ctx := context.Background()
	h.register(t, "peperone", "peperone@example.com")

	updated, err := svc.Update(ctx, "peperone", UpdateProfileMessage{
		Email: "new@example.com",
		Phone: "+14155552671",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "+14155552671", updated.Phone)
	// username untouched
	assert.Equal(t, "peperone", updated.Username)

	reloaded := h.reload(t, "peperone")
	assert.Equal(t, "new@example.com", reloaded.Email)
}

func TestProfileUpdateRejectsTakenIdentifiers(t *testing.T) {
	h, svc, _ := setupProfiles(t)
	ctx := context.Background()
	h.register(t, "peperone", "peperone@example.com")
	h.register(t, "other", "other@example.com")

	_, err := svc.Update(ctx, "peperone", UpdateProfileMessage{Username: "other"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = svc.Update(ctx, "peperone", UpdateProfileMessage{Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestProfileAvatarRoundTrip(t *testing.T) {
	h, svc, _ := setupProfiles(t)
	ctx := context.Background()
	user := h.register(t, "peperone", "peperone@example.com")

	key, err := svc.UploadAvatar(ctx, "peperone", "face.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	require.NoError(t, err)
	assert.Equal(t, "avatars/"+user.ID.String()+".png", key)

	reloaded := h.reload(t, "peperone")
	assert.Equal(t, key, reloaded.AvatarURL)

	rc, err := svc.FetchAvatar(ctx, "peperone")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)

	_, err = svc.FetchAvatar(ctx, "other")
	assert.Error(t, err)

	// no key recorded yet on a fresh account
	h.register(t, "bare", "bare@example.com")
	_, err = svc.FetchAvatar(ctx, "bare")
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestProfileDeleteReleasesAvatar(t *testing.T) {
	h, svc, blobs := setupProfiles(t)
	ctx := context.Background()
	h.register(t, "peperone", "peperone@example.com")

	key, err := svc.UploadAvatar(ctx, "peperone", "face.jpg", "image/jpeg", bytes.NewReader([]byte("jpg")))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "peperone"))

	assert.Contains(t, blobs.deleted, key)
	_, err = svc.GetByUsername(ctx, "peperone")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestProfileAvatarDisabled(t *testing.T) {
	h := setupAuther(t)
	svc := NewProfileService(h.repo, nil)
	h.register(t, "peperone", "peperone@example.com")

	_, err := svc.UploadAvatar(context.Background(), "peperone", "face.png", "image/png", bytes.NewReader(nil))
	assert.Error(t, err)

	_, err = svc.FetchAvatar(context.Background(), "peperone")
	assert.Error(t, err)
}
