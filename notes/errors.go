package notes

import "github.com/goliatone/go-errors"

const (
	TextCodeNoteNotFound = "notes_not_found"
	TextCodeNotOwner     = "notes_not_owner"
	TextCodeInvalidID    = "notes_invalid_id"
)

// ErrNoteNotFound is returned when the note does not exist.
var ErrNoteNotFound = errors.New("note not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNoteNotFound).
	WithCode(errors.CodeNotFound)

// ErrNotOwner is returned when the note belongs to someone else. It is
// indistinguishable from a missing note on the wire.
var ErrNotOwner = errors.New("note not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotOwner).
	WithCode(errors.CodeNotFound)

// ErrInvalidID is returned for malformed note identifiers.
var ErrInvalidID = errors.New("invalid note id", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidID).
	WithCode(errors.CodeBadRequest)
