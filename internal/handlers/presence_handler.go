package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// PresenceChecker reports whether a user has at least one live connection
type PresenceChecker interface {
	IsOnline(userID uint) bool
}

// PresenceHandler answers online/offline queries
type PresenceHandler struct {
	presence PresenceChecker
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(presence PresenceChecker) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

// RegisterPresenceRoutes registers presence routes
func (h *PresenceHandler) RegisterPresenceRoutes(g *echo.Group) {
	g.GET("/presence/:id", h.GetPresence)
}

// GetPresence reports whether the user is currently connected
func (h *PresenceHandler) GetPresence(c echo.Context) error {
	userID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}
	return success(c, http.StatusOK, echo.Map{
		"user_id": userID,
		"online":  h.presence.IsOnline(userID),
	})
}
