package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qcast/qcast/pkg/auth"
	"github.com/qcast/qcast/pkg/binder"
	"github.com/qcast/qcast/pkg/books"
	"github.com/qcast/qcast/pkg/chapters"
	"github.com/qcast/qcast/pkg/config"
	"github.com/qcast/qcast/pkg/errcodes"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB) (*http.Server, error) {
	e, err := newEcho(cfg, db)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authService := auth.NewService(cfg.JWTSecret, cfg.TokenExpiry)
	authMiddleware := auth.RegisterRoutes(e, authService)

	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	bookService := books.RegisterRoutesWithGroup(booksGroup, db)
	chapters.RegisterRoutesWithGroup(booksGroup, db, bookService, cfg.ChapterMaxDepth)

	configGroup := e.Group("/config")
	configGroup.Use(authMiddleware.Authenticate)
	config.RegisterRoutes(configGroup, cfg)

	e.RouteNotFound("/*", notFoundHandler)
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
