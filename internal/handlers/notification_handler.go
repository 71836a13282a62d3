package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications  *notifications.Service
	userRepository repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(svc *notifications.Service, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		notifications:  svc,
		userRepository: userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor *models.UserCompact `json:"actor,omitempty"`
}

func (h *NotificationHandler) enrichNotifications(c echo.Context, notifications []models.Notification) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(notifications))

	var actorIDs []uint
	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if n.ActorID != nil {
			actorIDs = append(actorIDs, *n.ActorID)
		}
	}
	if len(actorIDs) == 0 {
		return enriched
	}

	actors, err := h.userRepository.GetUsersByIDs(c.Request().Context(), actorIDs)
	if err != nil {
		return enriched
	}
	byID := make(map[uint]models.UserCompact, len(actors))
	for i := range actors {
		byID[actors[i].ID] = actors[i].ToCompact()
	}
	for i := range enriched {
		if id := enriched[i].ActorID; id != nil {
			if actor, ok := byID[*id]; ok {
				enriched[i].Actor = &actor
			}
		}
	}
	return enriched
}

// GetNotifications returns paginated notifications, newest first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	list, total, err := h.notifications.List(c.Request().Context(), currentUserID, page, limit)
	if err != nil {
		return toHTTPError(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": h.enrichNotifications(c, list),
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	ctx := c.Request().Context()

	today, yesterday, thisWeek, older, err := h.notifications.Grouped(ctx, currentUserID)
	if err != nil {
		return toHTTPError(err)
	}

	unreadCount, _ := h.notifications.UnreadCount(ctx, currentUserID)

	return success(c, http.StatusOK, echo.Map{
		"notifications": echo.Map{
			"today":     h.enrichNotifications(c, today),
			"yesterday": h.enrichNotifications(c, yesterday),
			"thisWeek":  h.enrichNotifications(c, thisWeek),
			"older":     h.enrichNotifications(c, older),
		},
		"unreadCount": unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	notifID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := h.notifications.MarkRead(c.Request().Context(), notifID, getUserIDFromContext(c)); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"success": true})
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	if err := h.notifications.MarkAllRead(c.Request().Context(), getUserIDFromContext(c)); err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, echo.Map{"success": true})
}

// DeleteNotification deletes one of the caller's notifications
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	notifID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	}

	if err := h.notifications.Delete(c.Request().Context(), notifID, getUserIDFromContext(c)); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
