package chapters

import (
	"github.com/labstack/echo/v4"
	"github.com/qcast/qcast/pkg/books"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers chapter routes under a book group that has
// already been authenticated. Every route resolves the caller's book first.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, bookService *books.Service, maxDepth int) {
	h := &handler{
		chapterService: NewService(db, maxDepth),
		bookService:    bookService,
	}

	c := g.Group("/:id/chapters")
	c.GET("", h.list)
	c.POST("", h.create)
	c.GET("/tree", h.tree)
	c.GET("/flat", h.flat)
	c.GET("/search", h.search)
	c.POST("/batch-reorder", h.batchReorder)

	c.GET("/:chapterId", h.retrieve)
	c.PATCH("/:chapterId", h.update)
	c.DELETE("/:chapterId", h.delete)
	c.POST("/:chapterId/reorder", h.setSortOrder)
	c.POST("/:chapterId/move-up", h.moveUp)
	c.POST("/:chapterId/move-down", h.moveDown)
	c.POST("/:chapterId/move", h.move)
	c.GET("/:chapterId/children", h.listChildren)
	c.POST("/:chapterId/children", h.createChild)
}
