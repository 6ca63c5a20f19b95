package auth

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers auth routes and returns the middleware that guards
// the rest of the API.
func RegisterRoutes(e *echo.Echo, authService *Service) *Middleware {
	h := &handler{}
	authMiddleware := NewMiddleware(authService)

	g := e.Group("/auth")
	g.GET("/me", h.me, authMiddleware.Authenticate)

	return authMiddleware
}
