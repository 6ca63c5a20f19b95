package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/qcast/qcast/pkg/errcodes"
)

const contextKeyUserID = "user_id"

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate accepts a JWT from the Authorization bearer header or, failing
// that, the auth cookie, and stores the caller's user id in the context. It
// returns 401 otherwise.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := bearerToken(c)
		if token == "" {
			cookie, err := c.Cookie(CookieName)
			if err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			return errcodes.Unauthorized("Authentication required")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token")
		}

		c.Set(contextKeyUserID, claims.UserID)

		return next(c)
	}
}

// UserID returns the id stored by Authenticate.
func UserID(c echo.Context) (int, bool) {
	id, ok := c.Get(contextKeyUserID).(int)
	return id, ok
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
