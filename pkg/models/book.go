package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID          int        `bun:",pk,autoincrement" json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	UserID      int        `bun:",notnull" json:"user_id"`
	Title       string     `bun:",notnull" json:"title"`
	Description *string    `json:"description"`
	Chapters    []*Chapter `bun:"rel:has-many,join:id=book_id" json:"chapters,omitempty"`
}

// IsOwnedBy reports whether the book belongs to the given user.
func (b *Book) IsOwnedBy(userID int) bool {
	return b.UserID == userID
}
