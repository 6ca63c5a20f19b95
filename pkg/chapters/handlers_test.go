package chapters

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/qcast/qcast/pkg/auth"
	"github.com/qcast/qcast/pkg/binder"
	"github.com/qcast/qcast/pkg/books"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/models"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testServer struct {
	e     *echo.Echo
	db    *bun.DB
	token string
}

func newTestServer(t *testing.T, userID int) *testServer {
	t.Helper()

	db := newTestDB(t)

	e := echo.New()
	b, err := binder.New()
	require.NoError(t, err)
	e.Binder = b
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	authService := auth.NewService("test-secret", time.Hour)
	authMiddleware := auth.NewMiddleware(authService)
	token, err := authService.GenerateToken(userID)
	require.NoError(t, err)

	g := e.Group("/books", authMiddleware.Authenticate)
	bookService := books.RegisterRoutesWithGroup(g, db)
	RegisterRoutesWithGroup(g, db, bookService, 100)

	return &testServer{e: e, db: db, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type chaptersBody struct {
	Chapters []struct {
		ID         int    `json:"id"`
		Title      string `json:"title"`
		SortOrder  int    `json:"sort_order"`
		ChildCount int    `json:"child_count"`
	} `json:"chapters"`
}

func (s *testServer) createChapter(t *testing.T, bookID int, parentID *int, title string) *models.Chapter {
	t.Helper()

	payload := map[string]any{"title": title}
	if parentID != nil {
		payload["parent_id"] = *parentID
	}
	rec := s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters", bookID), payload)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*models.Chapter](t, rec)
}

func TestHandlers_CreateAndRead(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	book := newTestBook(t, s.db, 1)

	root := s.createChapter(t, book.ID, nil, "  Part One  ")
	assert.Equal(t, "Part One", root.Title)
	assert.Equal(t, 0, root.Level)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/children", book.ID, root.ID), map[string]any{"title": "Chapter 1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	child := decode[*models.Chapter](t, rec)
	assert.Equal(t, root.ID, *child.ParentID)
	assert.Equal(t, 1, child.Level)
	assert.Equal(t, root.Path+"/"+models.RootPath(child.ID), child.Path)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/%d", book.ID, child.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Chapter 1", decode[*models.Chapter](t, rec).Title)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/%d/children", book.ID, root.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	children := decode[chaptersBody](t, rec).Chapters
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters", book.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[chaptersBody](t, rec).Chapters
	require.Len(t, all, 2)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/tree", book.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tree := decode[struct {
		Chapters []*models.Chapter `json:"chapters"`
	}](t, rec).Chapters
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Chapter 1", tree[0].Children[0].Title)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/flat", book.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	flat := decode[chaptersBody](t, rec).Chapters
	require.Len(t, flat, 2)
	assert.Equal(t, root.ID, flat[0].ID)
	assert.Equal(t, 1, flat[0].ChildCount)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/search?q=chapter", book.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	found := decode[struct {
		Chapters []*models.Chapter `json:"chapters"`
	}](t, rec).Chapters
	require.Len(t, found, 2)
	assert.Equal(t, root.ID, found[0].ID)
	assert.Equal(t, child.ID, found[1].ID)
}

func TestHandlers_Validation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	book := newTestBook(t, s.db, 1)

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters", book.ID), map[string]any{"title": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_error", decode[errorBody](t, rec).Error.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/search", book.ID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/batch-reorder", book.ID), map[string]any{"chapter_ids": []int{}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlers_Ownership(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	mine := newTestBook(t, s.db, 1)
	theirs := newTestBook(t, s.db, 2)

	svc := NewService(s.db, 100)
	theirChapter := mustCreate(t, svc, theirs.ID, nil, "Theirs")

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters", theirs.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A chapter is only reachable through its own book.
	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/%d", mine.ID, theirChapter.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters", mine.ID), map[string]any{"title": "X", "parent_id": theirChapter.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "scope_mismatch", decode[errorBody](t, rec).Error.Code)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/books/%d/chapters", mine.ID), nil)
	unauthenticated := httptest.NewRecorder()
	s.e.ServeHTTP(unauthenticated, req)
	assert.Equal(t, http.StatusUnauthorized, unauthenticated.Code)
}

func TestHandlers_Move(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	book := newTestBook(t, s.db, 1)

	a := s.createChapter(t, book.ID, nil, "A")
	b := s.createChapter(t, book.ID, &a.ID, "B")
	c := s.createChapter(t, book.ID, &b.ID, "C")
	d := s.createChapter(t, book.ID, nil, "D")

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/move", book.ID, a.ID), map[string]any{"new_parent_id": c.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cycle_detected", decode[errorBody](t, rec).Error.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/move", book.ID, b.ID), map[string]any{"new_parent_id": d.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[*models.Chapter](t, rec)
	assert.Equal(t, d.ID, *moved.ParentID)
	assert.Equal(t, d.Path+"/"+models.RootPath(b.ID), moved.Path)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/move", book.ID, c.ID), map[string]any{"new_parent_id": nil})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved = decode[*models.Chapter](t, rec)
	assert.Nil(t, moved.ParentID)
	assert.Equal(t, 0, moved.Level)
	assert.Equal(t, 3, moved.SortOrder)
}

func TestHandlers_Ordering(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	book := newTestBook(t, s.db, 1)

	first := s.createChapter(t, book.ID, nil, "1")
	second := s.createChapter(t, book.ID, nil, "2")
	third := s.createChapter(t, book.ID, nil, "3")

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/move-down", book.ID, first.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[moveResponse](t, rec)
	assert.True(t, resp.Moved)
	assert.Equal(t, 2, resp.Chapter.SortOrder)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/move-down", book.ID, third.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[moveResponse](t, rec)
	assert.False(t, resp.Moved)
	assert.Equal(t, 3, resp.Chapter.SortOrder)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/move-up", book.ID, third.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[moveResponse](t, rec).Moved)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/batch-reorder", book.ID), map[string]any{
		"chapter_ids": []int{third.ID, first.ID, second.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ordered := decode[chaptersBody](t, rec).Chapters
	require.Len(t, ordered, 3)
	assert.Equal(t, []int{third.ID, first.ID, second.ID}, []int{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	assert.Equal(t, []int{1, 2, 3}, []int{ordered[0].SortOrder, ordered[1].SortOrder, ordered[2].SortOrder})

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/batch-reorder", book.ID), map[string]any{
		"chapter_ids": []int{third.ID, first.ID},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/books/%d/chapters/%d/reorder", book.ID, second.ID), map[string]any{"sort_order": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, decode[*models.Chapter](t, rec).SortOrder)
}

func TestHandlers_UpdateAndDelete(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, 1)
	book := newTestBook(t, s.db, 1)

	root := s.createChapter(t, book.ID, nil, "Root")
	s.createChapter(t, book.ID, &root.ID, "Child")

	rec := s.do(t, http.MethodPatch, fmt.Sprintf("/books/%d/chapters/%d", book.ID, root.ID), map[string]any{
		"title":       "Renamed",
		"description": "Now with words",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[*models.Chapter](t, rec)
	assert.Equal(t, "Renamed", updated.Title)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "Now with words", *updated.Description)

	rec = s.do(t, http.MethodPatch, fmt.Sprintf("/books/%d/chapters/%d", book.ID, root.ID), map[string]any{"parent_id": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unknown_parameter", decode[errorBody](t, rec).Error.Code)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/books/%d/chapters/%d", book.ID, root.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[struct {
		Deleted int `json:"deleted"`
	}](t, rec).Deleted)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/books/%d/chapters/%d", book.ID, root.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
