package main

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/qcast/qcast/pkg/auth"
	"github.com/qcast/qcast/pkg/chapters"
	"github.com/qcast/qcast/pkg/migrations"
	"github.com/qcast/qcast/pkg/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		db.Close()
	})

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)
	return db
}

func TestVerifyAndRepair(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	svc := chapters.NewService(db, 100)
	ctx := context.Background()

	now := time.Now()
	book := &models.Book{CreatedAt: now, UpdatedAt: now, UserID: 1, Title: "Book"}
	_, err := db.NewInsert().Model(book).Returning("*").Exec(ctx)
	require.NoError(t, err)

	root, err := svc.CreateChapter(ctx, chapters.CreateChapterOptions{BookID: book.ID, Title: "Root"})
	require.NoError(t, err)
	child, err := svc.CreateChapter(ctx, chapters.CreateChapterOptions{BookID: book.ID, ParentID: &root.ID, Title: "Child"})
	require.NoError(t, err)

	var out bytes.Buffer
	n, err := verify(ctx, &out, svc, &book.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.JSONEq(t, `{"book_id":`+jsonInt(book.ID)+`,"violations":[]}`, out.String())

	_, err = db.NewUpdate().Model((*models.Chapter)(nil)).
		Set("path = ?", "broken").
		Where("id = ?", child.ID).
		Exec(ctx)
	require.NoError(t, err)

	out.Reset()
	n, err = verify(ctx, &out, svc, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	var report verifyReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Violations, 1)
	assert.Equal(t, child.ID, report.Violations[0].ChapterID)
	assert.Equal(t, chapters.ProblemPath, report.Violations[0].Problem)

	out.Reset()
	require.NoError(t, repair(ctx, &out, svc, book.ID))
	assert.Contains(t, out.String(), "recomputed 2 chapters")

	out.Reset()
	n, err = verify(ctx, &out, svc, &book.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIssueToken(t *testing.T) {
	t.Parallel()

	authService := auth.NewService("secret", time.Hour)

	var out bytes.Buffer
	require.NoError(t, issueToken(&out, authService, 12))

	claims, err := authService.ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, 12, claims.UserID)

	require.Error(t, issueToken(&out, authService, 0))
}

func jsonInt(i int) string {
	b, _ := json.Marshal(i)
	return string(b)
}
