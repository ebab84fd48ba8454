package notes

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Notes interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	Create(ctx context.Context, note *Note) (*Note, error)
	Save(ctx context.Context, note *Note) (*Note, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Note, error)
	SearchByOwner(ctx context.Context, owner uuid.UUID, query string) ([]*Note, error)
}

type notesRepo struct {
	repository.Repository[*Note]
	db *bun.DB
}

var _ Notes = (*notesRepo)(nil)

func NewNotesRepository(db *bun.DB) Notes {
	repo := repository.NewRepository[*Note](db, repository.ModelHandlers[*Note]{
		NewRecord: func() *Note { return &Note{} },
		GetID: func(n *Note) uuid.UUID {
			if n == nil {
				return uuid.Nil
			}
			return n.ID
		},
		SetID: func(n *Note, id uuid.UUID) {
			if n != nil {
				n.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &notesRepo{
		Repository: repo,
		db:         db,
	}
}

func (r *notesRepo) GetByID(ctx context.Context, id uuid.UUID) (*Note, error) {
	record := &Note{}

	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *notesRepo) Create(ctx context.Context, note *Note) (*Note, error) {
	prepareNoteDefaults(note)
	return r.Repository.Create(ctx, note)
}

func (r *notesRepo) Save(ctx context.Context, note *Note) (*Note, error) {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(note.ID.String()),
	}
	return r.Repository.Update(ctx, note, criteria...)
}

func (r *notesRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*Note)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	return err
}

func (r *notesRepo) ListByOwner(ctx context.Context, owner uuid.UUID) ([]*Note, error) {
	var records []*Note

	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", owner).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *notesRepo) SearchByOwner(ctx context.Context, owner uuid.UUID, query string) ([]*Note, error) {
	var records []*Note

	pattern := "%" + query + "%"

	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_id = ?", owner).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.title LIKE ?", pattern).
				WhereOr("?TableAlias.content LIKE ?", pattern)
		}).
		Order("updated_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	return records, nil
}
