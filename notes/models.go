// Package notes implements the content service: per-owner notes with search,
// protected by the access token trust gate.
package notes

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Note belongs to exactly one owner. Owners are referenced by the user ID
// carried in the verified access token; the content service never consults
// the identity store.
type Note struct {
	bun.BaseModel `bun:"table:notes,alias:nt"`

	ID        uuid.UUID `bun:"id,pk,notnull" json:"id"`
	OwnerID   uuid.UUID `bun:"owner_id,notnull" json:"owner_id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Content   string    `bun:"content" json:"content"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func prepareNoteDefaults(n *Note) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
}
