package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/anonto42/stackit/backend/internal/chat"
	"github.com/anonto42/stackit/backend/internal/middleware"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

func getUserIDFromContext(c echo.Context) uint {
	return middleware.UserID(c)
}

func parseIDParam(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// bindAndValidate binds the request body and runs the struct validator
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func success(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// toHTTPError maps domain errors to HTTP responses without leaking whether
// a resource the caller may not see exists.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, chat.ErrInvalidData):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid data")
	case errors.Is(err, chat.ErrSelfConversation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotParticipant):
		return echo.NewHTTPError(http.StatusForbidden, "not a participant")
	case errors.Is(err, chat.ErrConversationNotFound),
		errors.Is(err, chat.ErrUserNotFound),
		errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}
