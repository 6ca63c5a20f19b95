package chapters

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/models"
	"github.com/uptrace/bun"
)

// recompute derives level and path for chapter from parent (nil for a root)
// and rewrites every descendant to match. Descendants are visited one tree
// level at a time so depth never grows the Go stack. It returns the number of
// chapters written.
//
// Seeing the same chapter twice means the stored parent chain already loops,
// and the walk stops with CycleDetected. Any chapter that would land at or
// below maxDepth stops it with DepthExceeded.
func recompute(ctx context.Context, tx bun.IDB, chapter, parent *models.Chapter, maxDepth int) (int, error) {
	now := time.Now()

	if parent == nil {
		chapter.Level = 0
		chapter.Path = models.RootPath(chapter.ID)
	} else {
		chapter.Level = parent.Level + 1
		chapter.Path = parent.ChildPath(chapter.ID)
	}
	if chapter.Level >= maxDepth {
		return 0, errcodes.DepthExceeded(maxDepth)
	}
	chapter.UpdatedAt = now
	if err := writeDerived(ctx, tx, chapter); err != nil {
		return 0, err
	}

	written := 1
	visited := map[int]struct{}{chapter.ID: {}}
	frontier := map[int]*models.Chapter{chapter.ID: chapter}

	for len(frontier) > 0 {
		parentIDs := make([]int, 0, len(frontier))
		for id := range frontier {
			parentIDs = append(parentIDs, id)
		}

		var children []*models.Chapter
		err := tx.NewSelect().
			Model(&children).
			Where("ch.parent_id IN (?)", bun.In(parentIDs)).
			Order("ch.id ASC").
			Scan(ctx)
		if err != nil {
			return 0, errors.WithStack(err)
		}

		next := make(map[int]*models.Chapter, len(children))
		for _, child := range children {
			if _, ok := visited[child.ID]; ok {
				return 0, errcodes.CycleDetected()
			}
			visited[child.ID] = struct{}{}

			p := frontier[*child.ParentID]
			child.Level = p.Level + 1
			child.Path = p.ChildPath(child.ID)
			if child.Level >= maxDepth {
				return 0, errcodes.DepthExceeded(maxDepth)
			}
			child.UpdatedAt = now
			if err := writeDerived(ctx, tx, child); err != nil {
				return 0, err
			}
			written++
			next[child.ID] = child
		}
		frontier = next
	}

	return written, nil
}

func writeDerived(ctx context.Context, tx bun.IDB, chapter *models.Chapter) error {
	_, err := tx.NewUpdate().
		Model(chapter).
		Column("level", "path", "updated_at").
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}
