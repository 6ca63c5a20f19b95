package chapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/models"
	"github.com/uptrace/bun"
)

type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// nextSortOrder returns one past the highest sort_order in the sibling group,
// or 1 when the group is empty.
func nextSortOrder(ctx context.Context, db bun.IDB, bookID int, parentID *int) (int, error) {
	var maxOrder int
	err := db.NewSelect().
		Model((*models.Chapter)(nil)).
		ColumnExpr("COALESCE(MAX(ch.sort_order), 0)").
		Apply(inGroup(bookID, parentID)).
		Scan(ctx, &maxOrder)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return maxOrder + 1, nil
}

// swapWithNeighbor exchanges the sort_order of chapter with the closest
// sibling in the given direction. It reports false without writing anything
// when chapter is already first (Up) or last (Down) in its group. The
// comparison is strict: a sibling sharing chapter's sort_order is never a
// neighbor, so tied chapters stay put until ReorderAll renumbers them.
func swapWithNeighbor(ctx context.Context, tx bun.IDB, chapter *models.Chapter, dir Direction) (bool, error) {
	neighbor := &models.Chapter{}
	q := tx.NewSelect().
		Model(neighbor).
		Apply(inGroup(chapter.BookID, chapter.ParentID)).
		Where("ch.id != ?", chapter.ID).
		Limit(1)
	if dir == Up {
		q = q.Where("ch.sort_order < ?", chapter.SortOrder).
			Order("ch.sort_order DESC", "ch.created_at DESC", "ch.id DESC")
	} else {
		q = q.Where("ch.sort_order > ?", chapter.SortOrder).
			Order(siblingOrder...)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.WithStack(err)
	}

	now := time.Now()
	chapter.SortOrder, neighbor.SortOrder = neighbor.SortOrder, chapter.SortOrder
	chapter.UpdatedAt = now
	neighbor.UpdatedAt = now

	for _, ch := range []*models.Chapter{chapter, neighbor} {
		_, err := tx.NewUpdate().
			Model(ch).
			Column("sort_order", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return false, errors.WithStack(err)
		}
	}

	return true, nil
}

// reorderAll assigns sort_order 1..N following ids, which must name every
// chapter of the sibling group (bookID, parentID) exactly once.
func reorderAll(ctx context.Context, tx bun.IDB, bookID int, parentID *int, ids []int) error {
	group, err := loadGroup(ctx, tx, bookID, parentID)
	if err != nil {
		return err
	}

	members := make(map[int]*models.Chapter, len(group))
	for _, ch := range group {
		members[ch.ID] = ch
	}

	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return errcodes.ValidationError(fmt.Sprintf("Chapter %d is listed more than once.", id))
		}
		seen[id] = struct{}{}

		if _, ok := members[id]; ok {
			continue
		}
		other, err := loadChapter(ctx, tx, id)
		if err != nil {
			return err
		}
		if other.BookID != bookID {
			return errcodes.ScopeMismatch(fmt.Sprintf("Chapter %d belongs to a different book.", id))
		}
		return errcodes.ScopeMismatch(fmt.Sprintf("Chapter %d belongs to a different parent.", id))
	}

	if len(ids) != len(group) {
		return errcodes.ValidationError(fmt.Sprintf("Expected all %d chapters of the group, got %d.", len(group), len(ids)))
	}

	now := time.Now()
	for i, id := range ids {
		ch := members[id]
		ch.SortOrder = i + 1
		ch.UpdatedAt = now
		_, err := tx.NewUpdate().
			Model(ch).
			Column("sort_order", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}
