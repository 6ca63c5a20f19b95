package books

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a group that has already
// been authenticated.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB) *Service {
	bookService := NewService(db)
	h := &handler{bookService: bookService}

	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.retrieve)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)

	return bookService
}
