package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/qcast/qcast/pkg/errcodes"
)

type handler struct{}

type meResponse struct {
	UserID int `json:"user_id"`
}

func (h *handler) me(c echo.Context) error {
	userID, ok := UserID(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required")
	}

	return errors.WithStack(c.JSON(http.StatusOK, meResponse{UserID: userID}))
}
