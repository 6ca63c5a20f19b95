package chapters

import (
	"context"
	"testing"

	"github.com/qcast/qcast/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWouldCreateCycle(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, 100)
	ctx := context.Background()
	book := newTestBook(t, db, 1)

	a := mustCreate(t, svc, book.ID, nil, "A")
	b := mustCreate(t, svc, book.ID, a, "B")
	c := mustCreate(t, svc, book.ID, b, "C")
	other := mustCreate(t, svc, book.ID, nil, "Other")

	tests := []struct {
		name      string
		chapterID int
		parentID  int
		want      bool
	}{
		{"onto itself", a.ID, a.ID, true},
		{"onto grandchild", a.ID, c.ID, true},
		{"onto child", b.ID, c.ID, true},
		{"onto unrelated root", a.ID, other.ID, false},
		{"onto ancestor", c.ID, a.ID, false},
		{"onto missing chapter", a.ID, 9999, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := wouldCreateCycle(ctx, db, tt.chapterID, tt.parentID, 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWouldCreateCycle_GivesUpAtBound(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := NewService(db, 100)
	ctx := context.Background()
	book := newTestBook(t, db, 1)

	chain := []*models.Chapter{mustCreate(t, svc, book.ID, nil, "0")}
	for i := 1; i < 6; i++ {
		chain = append(chain, mustCreate(t, svc, book.ID, chain[i-1], "n"))
	}
	top, bottom := chain[0], chain[len(chain)-1]

	got, err := wouldCreateCycle(ctx, db, top.ID, bottom.ID, 100)
	require.NoError(t, err)
	assert.True(t, got)

	// Five hops are needed to reach the top; three are not enough.
	got, err = wouldCreateCycle(ctx, db, top.ID, bottom.ID, 3)
	require.NoError(t, err)
	assert.False(t, got)
}
