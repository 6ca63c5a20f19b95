package chapters

import (
	"context"

	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/models"
)

// Violation is one chapter whose stored level or path does not agree with its
// parent chain.
type Violation struct {
	ChapterID     int    `json:"chapter_id"`
	BookID        int    `json:"book_id"`
	Problem       string `json:"problem"`
	Level         int    `json:"level"`
	ExpectedLevel *int   `json:"expected_level,omitempty"`
	Path          string `json:"path"`
	ExpectedPath  string `json:"expected_path,omitempty"`
}

const (
	ProblemMissingParent = "missing_parent"
	ProblemForeignParent = "foreign_parent"
	ProblemLevel         = "level_mismatch"
	ProblemPath          = "path_mismatch"
	ProblemCycle         = "cycle"
)

// VerifyTree checks every chapter of bookID, or of every book when bookID is
// nil, against its parent. It only reads.
func (svc *Service) VerifyTree(ctx context.Context, bookID *int) ([]Violation, error) {
	var chapters []*models.Chapter
	q := svc.db.NewSelect().
		Model(&chapters).
		Order("ch.book_id ASC", "ch.id ASC")
	if bookID != nil {
		q = q.Where("ch.book_id = ?", *bookID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	byID := make(map[int]*models.Chapter, len(chapters))
	for _, ch := range chapters {
		byID[ch.ID] = ch
	}

	// Parents outside the selected book still need to be known to tell a
	// foreign parent apart from a missing one.
	var outside []int
	for _, ch := range chapters {
		if ch.ParentID == nil {
			continue
		}
		if _, ok := byID[*ch.ParentID]; !ok {
			outside = append(outside, *ch.ParentID)
		}
	}
	for _, id := range outside {
		if _, ok := byID[id]; ok {
			continue
		}
		parent, err := loadChapter(ctx, svc.db, id)
		if err != nil {
			continue
		}
		byID[parent.ID] = parent
	}

	violations := make([]Violation, 0)
	for _, ch := range chapters {
		if v, ok := svc.check(ch, byID); ok {
			violations = append(violations, v)
		}
	}
	return violations, nil
}

func (svc *Service) check(ch *models.Chapter, byID map[int]*models.Chapter) (Violation, bool) {
	v := Violation{ChapterID: ch.ID, BookID: ch.BookID, Level: ch.Level, Path: ch.Path}

	if inCycle(ch, byID, svc.maxDepth) {
		v.Problem = ProblemCycle
		return v, true
	}

	wantLevel := 0
	wantPath := models.RootPath(ch.ID)
	if !ch.IsRoot() {
		parent, ok := byID[*ch.ParentID]
		if !ok {
			v.Problem = ProblemMissingParent
			return v, true
		}
		if parent.BookID != ch.BookID {
			v.Problem = ProblemForeignParent
			return v, true
		}
		wantLevel = parent.Level + 1
		wantPath = parent.ChildPath(ch.ID)
	}

	if ch.Level != wantLevel {
		v.Problem = ProblemLevel
		v.ExpectedLevel = &wantLevel
		v.ExpectedPath = wantPath
		return v, true
	}
	if ch.Path != wantPath {
		v.Problem = ProblemPath
		v.ExpectedPath = wantPath
		return v, true
	}
	return v, false
}

// inCycle walks up from ch at most maxHops times and reports whether it comes
// back to ch.
func inCycle(ch *models.Chapter, byID map[int]*models.Chapter, maxHops int) bool {
	current := ch
	for hops := 0; hops < maxHops; hops++ {
		if current.ParentID == nil {
			return false
		}
		parent, ok := byID[*current.ParentID]
		if !ok {
			return false
		}
		if parent.ID == ch.ID {
			return true
		}
		current = parent
	}
	return false
}
