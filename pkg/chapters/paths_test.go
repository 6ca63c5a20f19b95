package chapters

import (
	"context"
	"strings"
	"testing"

	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecompute_DeepSubtree(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, 1000)
	ctx := context.Background()
	book := newTestBook(t, db, 1)

	const depth = 300
	top := mustCreate(t, svc, book.ID, nil, "top")
	prev := top
	for i := 1; i < depth; i++ {
		prev = mustCreate(t, svc, book.ID, prev, "n")
	}
	parent := mustCreate(t, svc, book.ID, nil, "new parent")

	moved, err := svc.MoveChapter(ctx, top.ID, MoveChapterOptions{NewParentID: &parent.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, moved.Level)

	bottom := mustLoad(t, db, prev.ID)
	assert.Equal(t, depth, bottom.Level)
	assert.True(t, strings.HasPrefix(bottom.Path, parent.Path+"/"+models.RootPath(top.ID)+"/"))
	assertConsistent(t, svc, book.ID)
}

func TestRecompute_CountsWrites(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, 100)
	ctx := context.Background()
	book := newTestBook(t, db, 1)

	root := mustCreate(t, svc, book.ID, nil, "root")
	a := mustCreate(t, svc, book.ID, root, "a")
	mustCreate(t, svc, book.ID, root, "b")
	mustCreate(t, svc, book.ID, a, "a.1")

	written, err := recompute(ctx, db, root, nil, 100)
	require.NoError(t, err)
	assert.Equal(t, 4, written)
}

func TestRecompute_StoredCycle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, 100)
	ctx := context.Background()
	book := newTestBook(t, db, 1)

	a := mustCreate(t, svc, book.ID, nil, "A")
	b := mustCreate(t, svc, book.ID, a, "B")
	c := mustCreate(t, svc, book.ID, b, "C")

	_, err := db.NewUpdate().Model((*models.Chapter)(nil)).
		Set("parent_id = ?", c.ID).
		Where("id = ?", a.ID).
		Exec(ctx)
	require.NoError(t, err)

	_, err = recompute(ctx, db, a, nil, 100)
	assert.ErrorIs(t, err, errcodes.CycleDetected())
}

func TestRecompute_DepthExceeded(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, 100)
	ctx := context.Background()
	book := newTestBook(t, db, 1)

	root := mustCreate(t, svc, book.ID, nil, "root")
	child := mustCreate(t, svc, book.ID, root, "child")
	mustCreate(t, svc, book.ID, child, "grandchild")

	_, err := recompute(ctx, db, root, nil, 2)
	assert.ErrorIs(t, err, errcodes.DepthExceeded(2))
}
