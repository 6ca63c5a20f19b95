package chapters

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/models"
	"github.com/uptrace/bun"
)

// siblingOrder is the total order within a sibling group. sort_order values
// may tie, so creation time and then id break ties.
var siblingOrder = []string{"ch.sort_order ASC", "ch.created_at ASC", "ch.id ASC"}

// inGroup restricts a select to the sibling group (bookID, parentID).
func inGroup(bookID int, parentID *int) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("ch.book_id = ?", bookID)
		if parentID == nil {
			return q.Where("ch.parent_id IS NULL")
		}
		return q.Where("ch.parent_id = ?", *parentID)
	}
}

// inSubtree restricts a select to the chapter with the given path and every
// chapter below it.
func inSubtree(path string) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("ch.path = ?", path).
				WhereOr("ch.path LIKE ?", path+"/%")
		})
	}
}

func loadChapter(ctx context.Context, db bun.IDB, id int) (*models.Chapter, error) {
	chapter := &models.Chapter{}
	err := db.NewSelect().
		Model(chapter).
		Where("ch.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Chapter")
		}
		return nil, errors.WithStack(err)
	}
	return chapter, nil
}

// loadParent loads the chapter that is about to become a parent inside
// bookID.
func loadParent(ctx context.Context, db bun.IDB, bookID, parentID int) (*models.Chapter, error) {
	parent, err := loadChapter(ctx, db, parentID)
	if err != nil {
		if errors.Is(err, errcodes.NotFound("Chapter")) {
			return nil, errcodes.NotFound("Parent chapter")
		}
		return nil, err
	}
	if parent.BookID != bookID {
		return nil, errcodes.ScopeMismatch("Parent chapter belongs to a different book.")
	}
	return parent, nil
}

func loadGroup(ctx context.Context, db bun.IDB, bookID int, parentID *int) ([]*models.Chapter, error) {
	var chapters []*models.Chapter
	err := db.NewSelect().
		Model(&chapters).
		Apply(inGroup(bookID, parentID)).
		Order(siblingOrder...).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return chapters, nil
}

func loadBookChapters(ctx context.Context, db bun.IDB, bookID int) ([]*models.Chapter, error) {
	var chapters []*models.Chapter
	err := db.NewSelect().
		Model(&chapters).
		Where("ch.book_id = ?", bookID).
		Order(siblingOrder...).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return chapters, nil
}

// countChildren returns the number of direct children of each of ids.
func countChildren(ctx context.Context, db bun.IDB, ids []int) (map[int]int, error) {
	counts := make(map[int]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	var rows []struct {
		ParentID int `bun:"parent_id"`
		Count    int `bun:"count"`
	}
	err := db.NewSelect().
		Model((*models.Chapter)(nil)).
		ColumnExpr("ch.parent_id").
		ColumnExpr("COUNT(*) AS count").
		Where("ch.parent_id IN (?)", bun.In(ids)).
		Group("ch.parent_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, row := range rows {
		counts[row.ParentID] = row.Count
	}
	return counts, nil
}

func sameParent(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
