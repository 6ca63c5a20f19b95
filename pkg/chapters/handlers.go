package chapters

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/auth"
	"github.com/qcast/qcast/pkg/books"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/qcast/qcast/pkg/models"
)

type handler struct {
	chapterService *Service
	bookService    *books.Service
}

type moveResponse struct {
	Moved   bool            `json:"moved"`
	Chapter *models.Chapter `json:"chapter"`
}

func (h *handler) list(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return err
	}

	chapters, err := h.chapterService.ListChapters(c.Request().Context(), ListChaptersOptions{BookID: book.ID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": chapters,
	}))
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateChapterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.book(c)
	if err != nil {
		return err
	}

	chapter, err := h.chapterService.CreateChapter(ctx, CreateChapterOptions{
		BookID:      book.ID,
		ParentID:    params.ParentID,
		Title:       params.Title,
		Description: params.Description,
		SortOrder:   params.SortOrder,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, chapter))
}

func (h *handler) tree(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return err
	}

	roots, err := h.chapterService.GetTree(c.Request().Context(), book.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": roots,
	}))
}

func (h *handler) flat(c echo.Context) error {
	book, err := h.book(c)
	if err != nil {
		return err
	}

	chapters, err := h.chapterService.GetFlatList(c.Request().Context(), book.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": chapters,
	}))
}

func (h *handler) search(c echo.Context) error {
	params := SearchChaptersQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.book(c)
	if err != nil {
		return err
	}

	chapters, err := h.chapterService.SearchWithParents(c.Request().Context(), book.ID, params.Q)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": chapters,
	}))
}

func (h *handler) batchReorder(c echo.Context) error {
	ctx := c.Request().Context()

	params := BatchReorderPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.book(c)
	if err != nil {
		return err
	}

	if err := h.chapterService.ReorderAll(ctx, book.ID, params.ParentID, params.ChapterIDs); err != nil {
		return errors.WithStack(err)
	}

	chapters, err := h.chapterService.ListChapters(ctx, ListChaptersOptions{
		BookID:       book.ID,
		ParentID:     params.ParentID,
		ChildrenOnly: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": chapters,
	}))
}

func (h *handler) retrieve(c echo.Context) error {
	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, chapter))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	params := UpdateChapterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	opts := UpdateChapterOptions{Columns: []string{}}
	if params.Title != nil && *params.Title != chapter.Title {
		chapter.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Description != nil {
		chapter.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.SortOrder != nil && *params.SortOrder != chapter.SortOrder {
		chapter.SortOrder = *params.SortOrder
		opts.Columns = append(opts.Columns, "sort_order")
	}

	if err := h.chapterService.UpdateChapter(ctx, chapter, opts); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, chapter))
}

func (h *handler) delete(c echo.Context) error {
	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	deleted, err := h.chapterService.DeleteChapter(c.Request().Context(), chapter.ID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"deleted": deleted,
	}))
}

func (h *handler) setSortOrder(c echo.Context) error {
	ctx := c.Request().Context()

	params := SetSortOrderPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	chapter.SortOrder = *params.SortOrder
	err = h.chapterService.UpdateChapter(ctx, chapter, UpdateChapterOptions{Columns: []string{"sort_order"}})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, chapter))
}

func (h *handler) moveUp(c echo.Context) error {
	return h.swap(c, Up)
}

func (h *handler) moveDown(c echo.Context) error {
	return h.swap(c, Down)
}

func (h *handler) swap(c echo.Context, dir Direction) error {
	ctx := c.Request().Context()

	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	var moved bool
	if dir == Up {
		moved, err = h.chapterService.MoveUp(ctx, chapter.ID)
	} else {
		moved, err = h.chapterService.MoveDown(ctx, chapter.ID)
	}
	if err != nil {
		return errors.WithStack(err)
	}

	chapter, err = h.chapterService.RetrieveChapter(ctx, RetrieveChapterOptions{ID: chapter.ID})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, moveResponse{Moved: moved, Chapter: chapter}))
}

func (h *handler) move(c echo.Context) error {
	ctx := c.Request().Context()

	params := MoveChapterPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	chapter, err = h.chapterService.MoveChapter(ctx, chapter.ID, MoveChapterOptions{
		NewParentID:  params.NewParentID,
		NewSortOrder: params.NewSortOrder,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, chapter))
}

func (h *handler) listChildren(c echo.Context) error {
	chapter, err := h.chapter(c)
	if err != nil {
		return err
	}

	children, err := h.chapterService.ListChapters(c.Request().Context(), ListChaptersOptions{
		BookID:       chapter.BookID,
		ParentID:     &chapter.ID,
		ChildrenOnly: true,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]any{
		"chapters": children,
	}))
}

func (h *handler) createChild(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateChildPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	parent, err := h.chapter(c)
	if err != nil {
		return err
	}

	chapter, err := h.chapterService.CreateChapter(ctx, CreateChapterOptions{
		BookID:      parent.BookID,
		ParentID:    &parent.ID,
		Title:       params.Title,
		Description: params.Description,
		SortOrder:   params.SortOrder,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusCreated, chapter))
}

// book resolves :id to a book owned by the caller.
func (h *handler) book(c echo.Context) (*models.Book, error) {
	userID, ok := auth.UserID(c)
	if !ok {
		return nil, errcodes.Unauthorized("Authentication required")
	}

	bookID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveOwnedBook(c.Request().Context(), bookID, userID)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return book, nil
}

// chapter resolves :chapterId to a chapter of the caller's book :id.
func (h *handler) chapter(c echo.Context) (*models.Chapter, error) {
	book, err := h.book(c)
	if err != nil {
		return nil, err
	}

	chapterID, err := strconv.Atoi(c.Param("chapterId"))
	if err != nil {
		return nil, errcodes.NotFound("Chapter")
	}

	chapter, err := h.chapterService.RetrieveChapter(c.Request().Context(), RetrieveChapterOptions{
		ID:     chapterID,
		BookID: &book.ID,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return chapter, nil
}
