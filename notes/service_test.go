package notes

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const sqliteCreateNotes = `
CREATE TABLE notes (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

func setupNotes(t *testing.T) (*Service, Notes) {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.ExecContext(context.Background(), sqliteCreateNotes)
	require.NoError(t, err)

	repo := NewNotesRepository(db)
	return NewService(repo), repo
}

func TestCreatePersistsNote(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, CreateNoteMessage{
		Title:   "Grocery list",
		Content: "milk, eggs, flour",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, owner, created.OwnerID)

	loaded, err := svc.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grocery list", loaded.Title)
	assert.Equal(t, "milk, eggs, flour", loaded.Content)
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestGetUnknownNote(t *testing.T) {
	svc, _ := setupNotes(t)

	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestGetRejectsForeignOwner(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := svc.Create(ctx, alice, CreateNoteMessage{Title: "private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, bob, created.ID)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestListScopedToOwnerNewestFirst(t *testing.T) {
	svc, repo := setupNotes(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	base := time.Now().Add(-time.Hour)

	// seed with explicit timestamps so the ordering is deterministic
	for i, title := range []string{"oldest", "middle", "newest"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		_, err := repo.Create(ctx, &Note{
			OwnerID:   alice,
			Title:     title,
			CreatedAt: ts,
			UpdatedAt: ts,
		})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &Note{OwnerID: bob, Title: "not hers"})
	require.NoError(t, err)

	records, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "newest", records[0].Title)
	assert.Equal(t, "middle", records[1].Title)
	assert.Equal(t, "oldest", records[2].Title)

	others, err := svc.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "not hers", others[0].Title)
}

func TestSearchMatchesTitleAndContent(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	_, err := svc.Create(ctx, alice, CreateNoteMessage{Title: "Grocery list", Content: "milk, eggs"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, alice, CreateNoteMessage{Title: "Meeting", Content: "budget review for Q3"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, bob, CreateNoteMessage{Title: "Grocery run", Content: "budget cuts"})
	require.NoError(t, err)

	byTitle, err := svc.Search(ctx, alice, "Grocery")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Grocery list", byTitle[0].Title)

	byContent, err := svc.Search(ctx, alice, "budget")
	require.NoError(t, err)
	require.Len(t, byContent, 1)
	assert.Equal(t, "Meeting", byContent[0].Title)

	none, err := svc.Search(ctx, alice, "nothing like this")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchEmptyQueryListsAll(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, CreateNoteMessage{Title: "one"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, owner, CreateNoteMessage{Title: "two"})
	require.NoError(t, err)

	records, err := svc.Search(ctx, owner, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestUpdateOverwrites(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, CreateNoteMessage{Title: "draft", Content: "v1"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, owner, created.ID, UpdateNoteMessage{Title: "final", Content: "v2"})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, "v2", updated.Content)

	loaded, err := svc.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", loaded.Title)
	assert.Equal(t, "v2", loaded.Content)
	assert.WithinDuration(t, time.Now(), loaded.UpdatedAt, time.Minute)
}

func TestUpdateRejectsForeignOwner(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := svc.Create(ctx, alice, CreateNoteMessage{Title: "hers", Content: "original"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, bob, created.ID, UpdateNoteMessage{Title: "his now"})
	assert.ErrorIs(t, err, ErrNotOwner)

	loaded, err := svc.Get(ctx, alice, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "hers", loaded.Title)
	assert.Equal(t, "original", loaded.Content)
}

func TestDeleteRemovesNote(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, CreateNoteMessage{Title: "temp"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, created.ID))

	_, err = svc.Get(ctx, owner, created.ID)
	assert.ErrorIs(t, err, ErrNoteNotFound)
}

func TestDeleteRejectsForeignOwner(t *testing.T) {
	svc, _ := setupNotes(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := svc.Create(ctx, alice, CreateNoteMessage{Title: "keep"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, bob, created.ID), ErrNotOwner)

	_, err = svc.Get(ctx, alice, created.ID)
	assert.NoError(t, err, "note must survive a foreign delete attempt")
}
