package chapters

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// wouldCreateCycle walks up from candidateParentID and reports whether
// chapterID is on the way, i.e. whether making candidateParentID the parent of
// chapterID would make chapterID its own ancestor. A root or a missing chapter
// ends the walk with false. So does running out of hops: the walk gives up
// after maxHops and reports no cycle.
func wouldCreateCycle(ctx context.Context, db bun.IDB, chapterID, candidateParentID, maxHops int) (bool, error) {
	current := candidateParentID
	for hops := 0; hops < maxHops; hops++ {
		if current == chapterID {
			return true, nil
		}

		var parentID sql.NullInt64
		err := db.NewSelect().
			Model((*models.Chapter)(nil)).
			Column("parent_id").
			Where("ch.id = ?", current).
			Scan(ctx, &parentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return false, nil
			}
			return false, errors.WithStack(err)
		}
		if !parentID.Valid {
			return false, nil
		}
		current = int(parentID.Int64)
	}

	logger.FromContext(ctx).Warn("cycle check gave up at depth bound", logger.Data{
		"chapter_id":          chapterID,
		"candidate_parent_id": candidateParentID,
		"max_hops":            maxHops,
	})
	return false, nil
}
