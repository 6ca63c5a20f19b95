package chapters

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/metrics"
	"github.com/qcast/qcast/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

const (
	opCreate   = "create"
	opUpdate   = "update"
	opMove     = "move"
	opReorder  = "reorder"
	opDelete   = "delete"
	opRepair   = "repair"
	opMoveUp   = "move_up"
	opMoveDown = "move_down"
)

// metadataColumns are the only columns UpdateChapter writes. Everything
// structural goes through MoveChapter.
var metadataColumns = map[string]struct{}{
	"title":       {},
	"description": {},
	"sort_order":  {},
}

type Service struct {
	db       *bun.DB
	maxDepth int
}

// NewService returns a chapter service that refuses to nest chapters
// maxDepth or more levels deep. maxDepth also bounds the cycle check.
func NewService(db *bun.DB, maxDepth int) *Service {
	return &Service{db: db, maxDepth: maxDepth}
}

type CreateChapterOptions struct {
	BookID      int
	ParentID    *int
	Title       string
	Description *string
	SortOrder   *int
}

func (svc *Service) CreateChapter(ctx context.Context, opts CreateChapterOptions) (chapter *models.Chapter, err error) {
	defer func() { metrics.RecordChapterMutation(opCreate, err) }()

	var written int
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var parent *models.Chapter
		if opts.ParentID != nil {
			p, err := loadParent(ctx, tx, opts.BookID, *opts.ParentID)
			if err != nil {
				return err
			}
			if p.Level+1 >= svc.maxDepth {
				return errcodes.DepthExceeded(svc.maxDepth)
			}
			parent = p
		}

		sortOrder := 0
		if opts.SortOrder != nil {
			sortOrder = *opts.SortOrder
		} else {
			next, err := nextSortOrder(ctx, tx, opts.BookID, opts.ParentID)
			if err != nil {
				return err
			}
			sortOrder = next
		}

		now := time.Now()
		chapter = &models.Chapter{
			CreatedAt:   now,
			UpdatedAt:   now,
			BookID:      opts.BookID,
			ParentID:    opts.ParentID,
			SortOrder:   sortOrder,
			Title:       opts.Title,
			Description: opts.Description,
		}
		_, err := tx.NewInsert().
			Model(chapter).
			Returning("*").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		// The path includes the chapter's own id, so it can only be derived
		// once the insert has assigned one.
		written, err = recompute(ctx, tx, chapter, parent, svc.maxDepth)
		return err
	})
	if err != nil {
		return nil, txError(err)
	}

	metrics.RecordRecomputed(written)
	logger.FromContext(ctx).Info("chapter created", logger.Data{
		"chapter_id": chapter.ID,
		"book_id":    chapter.BookID,
		"level":      chapter.Level,
	})

	return chapter, nil
}

type RetrieveChapterOptions struct {
	ID     int
	BookID *int
}

// RetrieveChapter loads a chapter. With BookID set, a chapter from another
// book is reported as not found.
func (svc *Service) RetrieveChapter(ctx context.Context, opts RetrieveChapterOptions) (*models.Chapter, error) {
	chapter, err := loadChapter(ctx, svc.db, opts.ID)
	if err != nil {
		return nil, err
	}
	if opts.BookID != nil && chapter.BookID != *opts.BookID {
		return nil, errcodes.NotFound("Chapter")
	}
	return chapter, nil
}

type UpdateChapterOptions struct {
	Columns []string
}

// UpdateChapter writes metadata columns of chapter. Tree shape is untouched,
// so neither the cycle check nor recomputation runs.
func (svc *Service) UpdateChapter(ctx context.Context, chapter *models.Chapter, opts UpdateChapterOptions) (err error) {
	if len(opts.Columns) == 0 {
		return nil
	}
	defer func() { metrics.RecordChapterMutation(opUpdate, err) }()

	for _, col := range opts.Columns {
		if _, ok := metadataColumns[col]; !ok {
			return errors.Errorf("column %q can't be updated directly", col)
		}
	}

	chapter.UpdatedAt = time.Now()
	columns := append(append([]string{}, opts.Columns...), "updated_at")

	res, err := svc.db.NewUpdate().
		Model(chapter).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return txError(errors.WithStack(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errcodes.NotFound("Chapter")
	}

	return nil
}

type MoveChapterOptions struct {
	// NewParentID nil moves the chapter to the root of its book.
	NewParentID  *int
	NewSortOrder *int
}

// MoveChapter re-parents a chapter and rewrites level and path for it and its
// whole subtree. Without NewSortOrder the chapter is appended to its new
// sibling group, or keeps its position if the group does not change.
func (svc *Service) MoveChapter(ctx context.Context, chapterID int, opts MoveChapterOptions) (chapter *models.Chapter, err error) {
	defer func() { metrics.RecordChapterMutation(opMove, err) }()

	log := logger.FromContext(ctx)
	var written int
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		chapter, err = loadChapter(ctx, tx, chapterID)
		if err != nil {
			return err
		}

		var parent *models.Chapter
		var newParentID *int
		if opts.NewParentID != nil {
			id := *opts.NewParentID
			newParentID = &id

			parent, err = loadParent(ctx, tx, chapter.BookID, id)
			if err != nil {
				return err
			}
			cycle, err := wouldCreateCycle(ctx, tx, chapter.ID, id, svc.maxDepth)
			if err != nil {
				return err
			}
			if cycle {
				log.Warn("rejected move that would create a cycle", logger.Data{
					"chapter_id":    chapter.ID,
					"new_parent_id": id,
					"book_id":       chapter.BookID,
				})
				return errcodes.CycleDetected()
			}
		}

		sortOrder := chapter.SortOrder
		switch {
		case opts.NewSortOrder != nil:
			sortOrder = *opts.NewSortOrder
		case !sameParent(chapter.ParentID, newParentID):
			sortOrder, err = nextSortOrder(ctx, tx, chapter.BookID, newParentID)
			if err != nil {
				return err
			}
		}

		chapter.ParentID = newParentID
		chapter.SortOrder = sortOrder
		chapter.UpdatedAt = time.Now()
		_, err = tx.NewUpdate().
			Model(chapter).
			Column("parent_id", "sort_order", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		written, err = recompute(ctx, tx, chapter, parent, svc.maxDepth)
		return err
	})
	if err != nil {
		return nil, txError(err)
	}

	metrics.RecordRecomputed(written)
	log.Info("chapter moved", logger.Data{
		"chapter_id": chapter.ID,
		"book_id":    chapter.BookID,
		"parent_id":  chapter.ParentID,
		"recomputed": written,
	})

	return chapter, nil
}

// MoveUp swaps a chapter with the sibling right before it. It reports false
// if the chapter is already first.
func (svc *Service) MoveUp(ctx context.Context, chapterID int) (bool, error) {
	return svc.swap(ctx, chapterID, Up)
}

// MoveDown swaps a chapter with the sibling right after it. It reports false
// if the chapter is already last.
func (svc *Service) MoveDown(ctx context.Context, chapterID int) (bool, error) {
	return svc.swap(ctx, chapterID, Down)
}

func (svc *Service) swap(ctx context.Context, chapterID int, dir Direction) (moved bool, err error) {
	op := opMoveDown
	if dir == Up {
		op = opMoveUp
	}
	defer func() { metrics.RecordChapterMutation(op, err) }()

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		chapter, err := loadChapter(ctx, tx, chapterID)
		if err != nil {
			return err
		}
		moved, err = swapWithNeighbor(ctx, tx, chapter, dir)
		return err
	})
	if err != nil {
		return false, txError(err)
	}

	if moved {
		logger.FromContext(ctx).Info("chapter swapped with sibling", logger.Data{
			"chapter_id": chapterID,
			"direction":  dir.String(),
		})
	}
	return moved, nil
}

// ReorderAll assigns sort orders 1..N to the sibling group (bookID, parentID)
// in the order of ids.
func (svc *Service) ReorderAll(ctx context.Context, bookID int, parentID *int, ids []int) (err error) {
	defer func() { metrics.RecordChapterMutation(opReorder, err) }()

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if parentID != nil {
			if _, err := loadParent(ctx, tx, bookID, *parentID); err != nil {
				return err
			}
		}
		return reorderAll(ctx, tx, bookID, parentID, ids)
	})
	if err != nil {
		return txError(err)
	}

	logger.FromContext(ctx).Info("chapters reordered", logger.Data{
		"book_id":   bookID,
		"parent_id": parentID,
		"count":     len(ids),
	})
	return nil
}

// DeleteChapter removes a chapter together with its whole subtree and returns
// how many chapters were removed. Remaining siblings keep their sort orders.
func (svc *Service) DeleteChapter(ctx context.Context, chapterID int) (deleted int, err error) {
	defer func() { metrics.RecordChapterMutation(opDelete, err) }()

	var bookID int
	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		chapter, err := loadChapter(ctx, tx, chapterID)
		if err != nil {
			return err
		}
		bookID = chapter.BookID

		var ids []int
		err = tx.NewSelect().
			Model((*models.Chapter)(nil)).
			Column("id").
			Where("ch.book_id = ?", chapter.BookID).
			Apply(inSubtree(chapter.Path)).
			Scan(ctx, &ids)
		if err != nil {
			return errors.WithStack(err)
		}
		// A stale path must never leave the chapter itself behind.
		ids = appendMissing(ids, chapter.ID)

		res, err := tx.NewDelete().
			Model((*models.Chapter)(nil)).
			Where("id IN (?)", bun.In(ids)).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.WithStack(err)
		}
		deleted = int(n)
		return nil
	})
	if err != nil {
		return 0, txError(err)
	}

	logger.FromContext(ctx).Info("chapter deleted", logger.Data{
		"chapter_id": chapterID,
		"book_id":    bookID,
		"deleted":    deleted,
	})
	return deleted, nil
}

type ListChaptersOptions struct {
	BookID int
	// ParentID and ChildrenOnly together select one sibling group. A nil
	// ParentID with ChildrenOnly lists the roots.
	ParentID     *int
	ChildrenOnly bool
}

// ListChapters returns chapters in sibling order without nesting, each with
// its direct child count.
func (svc *Service) ListChapters(ctx context.Context, opts ListChaptersOptions) ([]*FlatChapter, error) {
	var chapters []*models.Chapter
	var err error
	if opts.ChildrenOnly {
		chapters, err = loadGroup(ctx, svc.db, opts.BookID, opts.ParentID)
	} else {
		chapters, err = loadBookChapters(ctx, svc.db, opts.BookID)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(chapters))
	for _, ch := range chapters {
		ids = append(ids, ch.ID)
	}
	counts, err := countChildren(ctx, svc.db, ids)
	if err != nil {
		return nil, err
	}

	list := make([]*FlatChapter, 0, len(chapters))
	for _, ch := range chapters {
		list = append(list, &FlatChapter{Chapter: ch, ChildCount: counts[ch.ID]})
	}
	return list, nil
}

// GetTree returns the roots of a book with their descendants nested below
// them, siblings in order.
func (svc *Service) GetTree(ctx context.Context, bookID int) ([]*models.Chapter, error) {
	chapters, err := loadBookChapters(ctx, svc.db, bookID)
	if err != nil {
		return nil, err
	}
	return buildChapterTree(chapters), nil
}

// GetFlatList returns every chapter of a book in pre-order: each chapter is
// followed by its subtree before its next sibling.
func (svc *Service) GetFlatList(ctx context.Context, bookID int) ([]*FlatChapter, error) {
	chapters, err := loadBookChapters(ctx, svc.db, bookID)
	if err != nil {
		return nil, err
	}
	return flattenPreOrder(chapters), nil
}

// SearchWithParents finds chapters of a book whose title or description
// contains query, ignoring case, and returns them along with all of their
// ancestors, shallowest first.
func (svc *Service) SearchWithParents(ctx context.Context, bookID int, query string) ([]*models.Chapter, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	var matches []*models.Chapter
	err := svc.db.NewSelect().
		Model(&matches).
		Column("id", "path").
		Where("ch.book_id = ?", bookID).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where(`LOWER(ch.title) LIKE ? ESCAPE '\'`, pattern).
				WhereOr(`LOWER(ch.description) LIKE ? ESCAPE '\'`, pattern)
		}).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(matches) == 0 {
		return []*models.Chapter{}, nil
	}

	seen := make(map[int]struct{})
	ids := make([]int, 0, len(matches))
	for _, m := range matches {
		for _, id := range append(ancestorIDs(m.Path), m.ID) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	var chapters []*models.Chapter
	err = svc.db.NewSelect().
		Model(&chapters).
		Where("ch.book_id = ?", bookID).
		Where("ch.id IN (?)", bun.In(ids)).
		Order("ch.level ASC").
		Order(siblingOrder...).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return chapters, nil
}

// RepairTree recomputes level and path for every chapter reachable from the
// roots of a book, in one transaction. It returns how many chapters were
// rewritten.
func (svc *Service) RepairTree(ctx context.Context, bookID int) (written int, err error) {
	defer func() { metrics.RecordChapterMutation(opRepair, err) }()

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		roots, err := loadGroup(ctx, tx, bookID, nil)
		if err != nil {
			return err
		}
		for _, root := range roots {
			n, err := recompute(ctx, tx, root, nil, svc.maxDepth)
			if err != nil {
				return err
			}
			written += n
		}
		return nil
	})
	if err != nil {
		return 0, txError(err)
	}

	metrics.RecordRecomputed(written)
	logger.FromContext(ctx).Info("chapter tree repaired", logger.Data{
		"book_id":    bookID,
		"recomputed": written,
	})
	return written, nil
}

// txError passes typed errors through and reports anything else that aborted
// a transaction as a TransactionFailure.
func txError(err error) error {
	var e *errcodes.Error
	if errors.As(err, &e) {
		return err
	}
	return errcodes.TransactionFailure(err)
}

func appendMissing(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
