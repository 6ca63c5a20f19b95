package config

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// PublicSettings is the subset of Config that clients need to know about.
type PublicSettings struct {
	ChapterMaxDepth int    `json:"chapter_max_depth"`
	TokenExpiry     string `json:"token_expiry"`
}

type handler struct {
	config *Config
}

func (h *handler) retrieve(c echo.Context) error {
	settings := PublicSettings{
		ChapterMaxDepth: h.config.ChapterMaxDepth,
		TokenExpiry:     h.config.TokenExpiry.String(),
	}

	return errors.WithStack(c.JSON(http.StatusOK, settings))
}
