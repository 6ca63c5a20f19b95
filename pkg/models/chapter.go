package models

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

type Chapter struct {
	bun.BaseModel `bun:"table:chapters,alias:ch"`

	ID          int       `bun:",pk,autoincrement" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	BookID      int       `bun:",notnull" json:"book_id"`
	ParentID    *int      `json:"parent_id"`
	SortOrder   int       `bun:",notnull" json:"sort_order"`
	Title       string    `bun:",notnull" json:"title"`
	Description *string   `json:"description"`

	// Derived from the parent chain; only the chapters service writes these.
	Level int    `bun:",notnull" json:"level"`
	Path  string `bun:",notnull" json:"path"`

	// Relations
	Book     *Book      `bun:"rel:belongs-to,join:book_id=id" json:"-"`
	Parent   *Chapter   `bun:"rel:belongs-to,join:parent_id=id" json:"-"`
	Children []*Chapter `bun:"rel:has-many,join:id=parent_id" json:"children,omitempty"`
}

func (c *Chapter) IsRoot() bool {
	return c.ParentID == nil
}

// ChildPath returns the path a direct child with the given ID would have.
func (c *Chapter) ChildPath(childID int) string {
	return c.Path + "/" + strconv.Itoa(childID)
}

// RootPath is the path of a chapter without a parent.
func RootPath(id int) string {
	return strconv.Itoa(id)
}
