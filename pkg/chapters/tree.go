package chapters

import (
	"strconv"
	"strings"

	"github.com/qcast/qcast/pkg/models"
)

// FlatChapter is a chapter without nested children, annotated with how many
// direct children it has.
type FlatChapter struct {
	*models.Chapter
	ChildCount int `json:"child_count"`
}

// buildChapterTree converts chapters, already in sibling order, into nested
// roots. Chapters whose parent is not in the input are dropped.
func buildChapterTree(chapters []*models.Chapter) []*models.Chapter {
	byID := make(map[int]*models.Chapter, len(chapters))
	for _, ch := range chapters {
		ch.Children = []*models.Chapter{}
		byID[ch.ID] = ch
	}

	roots := make([]*models.Chapter, 0)
	for _, ch := range chapters {
		if ch.IsRoot() {
			roots = append(roots, ch)
		} else if parent, ok := byID[*ch.ParentID]; ok {
			parent.Children = append(parent.Children, ch)
		}
	}

	return roots
}

// flattenPreOrder lists chapters, already in sibling order, parent first and
// then each child subtree in turn. An explicit stack keeps deep trees off the
// Go stack, and a chapter is never emitted twice.
func flattenPreOrder(chapters []*models.Chapter) []*FlatChapter {
	children := make(map[int][]*models.Chapter, len(chapters))
	roots := make([]*models.Chapter, 0)
	for _, ch := range chapters {
		if ch.ParentID == nil {
			roots = append(roots, ch)
		} else {
			children[*ch.ParentID] = append(children[*ch.ParentID], ch)
		}
	}

	flat := make([]*FlatChapter, 0, len(chapters))
	emitted := make(map[int]struct{}, len(chapters))

	stack := make([]*models.Chapter, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	for len(stack) > 0 {
		ch := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := emitted[ch.ID]; ok {
			continue
		}
		emitted[ch.ID] = struct{}{}

		kids := children[ch.ID]
		ch.Children = nil
		flat = append(flat, &FlatChapter{Chapter: ch, ChildCount: len(kids)})

		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}

	return flat
}

// ancestorIDs parses a materialized path and returns every id on it except
// the last one, root first.
func ancestorIDs(path string) []int {
	parts := strings.Split(path, "/")
	ids := make([]int, 0, len(parts))
	for _, part := range parts[:len(parts)-1] {
		id, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
