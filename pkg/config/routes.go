package config

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the read-only settings route on a /config group.
// The caller decides which middleware guards it.
func RegisterRoutes(g *echo.Group, cfg *Config) {
	h := &handler{config: cfg}

	g.GET("", h.retrieve)
}
