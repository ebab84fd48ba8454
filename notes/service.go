package notes

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// CreateNoteMessage carries the payload for a new note.
type CreateNoteMessage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateNoteMessage carries the mutable note fields.
type UpdateNoteMessage struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Service owns all note operations. Every operation is scoped to the owner
// resolved from the verified access token; a note belonging to another owner
// behaves exactly like a missing one.
type Service struct {
	repo   Notes
	logger Logger
	now    func() time.Time
}

func NewService(repo Notes) *Service {
	return &Service{
		repo:   repo,
		logger: nopLogger{},
		now:    time.Now,
	}
}

func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Create stores a new note for the owner.
func (s *Service) Create(ctx context.Context, owner uuid.UUID, msg CreateNoteMessage) (*Note, error) {
	note := &Note{
		OwnerID: owner,
		Title:   msg.Title,
		Content: msg.Content,
	}

	created, err := s.repo.Create(ctx, note)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not create note")
	}

	s.logger.Info("note created", "id", created.ID, "owner", owner)
	return created, nil
}

// Get loads a single note owned by owner.
func (s *Service) Get(ctx context.Context, owner, id uuid.UUID) (*Note, error) {
	note, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNoteNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load note")
	}

	if note.OwnerID != owner {
		s.logger.Warn("cross-owner note access denied", "id", id, "owner", owner)
		return nil, ErrNotOwner
	}

	return note, nil
}

// List returns all notes owned by owner, newest first.
func (s *Service) List(ctx context.Context, owner uuid.UUID) ([]*Note, error) {
	records, err := s.repo.ListByOwner(ctx, owner)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list notes")
	}
	return records, nil
}

// Search returns the owner's notes whose title or content match the query.
// An empty query behaves like List.
func (s *Service) Search(ctx context.Context, owner uuid.UUID, query string) ([]*Note, error) {
	if query == "" {
		return s.List(ctx, owner)
	}

	records, err := s.repo.SearchByOwner(ctx, owner, query)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to search notes")
	}
	return records, nil
}

// Update overwrites the note's title and content.
func (s *Service) Update(ctx context.Context, owner, id uuid.UUID, msg UpdateNoteMessage) (*Note, error) {
	note, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	note.Title = msg.Title
	note.Content = msg.Content
	note.UpdatedAt = s.now()

	updated, err := s.repo.Save(ctx, note)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update note")
	}

	s.logger.Info("note updated", "id", id, "owner", owner)
	return updated, nil
}

// Delete removes the note.
func (s *Service) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete note")
	}

	s.logger.Info("note deleted", "id", id, "owner", owner)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
