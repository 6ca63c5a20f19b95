package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		statements := []string{
			`ALTER TABLE chapters ADD COLUMN parent_id INTEGER REFERENCES chapters(id) ON DELETE CASCADE`,
			`ALTER TABLE chapters ADD COLUMN level INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE chapters ADD COLUMN path TEXT NOT NULL DEFAULT ''`,
			// Every chapter that predates nesting is a root.
			`UPDATE chapters SET level = 0, path = CAST(id AS TEXT)`,
			`CREATE INDEX ix_chapters_book_id ON chapters(book_id)`,
			`CREATE INDEX ix_chapters_parent_id ON chapters(parent_id)`,
			// Subtree lookups are prefix matches on path.
			`CREATE INDEX ix_chapters_path ON chapters(path)`,
			`CREATE INDEX ix_chapters_sibling_order ON chapters(book_id, parent_id, sort_order)`,
		}
		for _, stmt := range statements {
			if _, err := db.Exec(stmt); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		// SQLite won't drop a column that carries a foreign key, so the table
		// is rebuilt with its pre-nesting shape.
		statements := []string{
			`DROP INDEX IF EXISTS ix_chapters_sibling_order`,
			`DROP INDEX IF EXISTS ix_chapters_path`,
			`DROP INDEX IF EXISTS ix_chapters_parent_id`,
			`DROP INDEX IF EXISTS ix_chapters_book_id`,
			`CREATE TABLE chapters_flat (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
				sort_order INTEGER NOT NULL,
				title TEXT NOT NULL,
				description TEXT
			)`,
			`INSERT INTO chapters_flat (id, created_at, updated_at, book_id, sort_order, title, description)
				SELECT id, created_at, updated_at, book_id, sort_order, title, description FROM chapters`,
			`DROP TABLE chapters`,
			`ALTER TABLE chapters_flat RENAME TO chapters`,
		}
		for _, stmt := range statements {
			if _, err := db.Exec(stmt); err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
