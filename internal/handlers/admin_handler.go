package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// AdminHandler handles moderation. Routes must sit behind RequireAdmin.
type AdminHandler struct {
	userRepository    repositories.UserRepository
	commentRepository repositories.CommentRepository
	postRepository    repositories.PostRepository
	notifications     *notifications.Service
	sessions          SessionCloser
	logger            *slog.Logger
}

// SessionCloser drops a user's live connections
type SessionCloser interface {
	Disconnect(userID uint) int
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(userRepo repositories.UserRepository, commentRepo repositories.CommentRepository, postRepo repositories.PostRepository,
	svc *notifications.Service, sessions SessionCloser, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		userRepository:    userRepo,
		commentRepository: commentRepo,
		postRepository:    postRepo,
		notifications:     svc,
		sessions:          sessions,
		logger:            logger,
	}
}

// RegisterAdminRoutes registers moderation routes
func (h *AdminHandler) RegisterAdminRoutes(g *echo.Group) {
	g.POST("/users/:id/ban", h.ModerateUser(models.AdminActionBan))
	g.POST("/users/:id/unban", h.ModerateUser(models.AdminActionUnban))
	g.POST("/users/:id/promote", h.ModerateUser(models.AdminActionPromote))
	g.POST("/users/:id/demote", h.ModerateUser(models.AdminActionDemote))
	g.DELETE("/comments/:id", h.RemoveComment)
}

var adminNotices = map[string]struct{ title, message string }{
	models.AdminActionBan:     {"Account suspended", "Your account has been suspended by a moderator"},
	models.AdminActionUnban:   {"Account restored", "Your account has been restored"},
	models.AdminActionPromote: {"Role changed", "You have been granted administrator access"},
	models.AdminActionDemote:  {"Role changed", "Your administrator access has been removed"},
}

// ModerateUser applies a moderation action to a user and tells them about it
func (h *AdminHandler) ModerateUser(action string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		adminID := getUserIDFromContext(c)

		targetID, err := parseIDParam(c, "id")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
		}
		if targetID == adminID {
			return echo.NewHTTPError(http.StatusBadRequest, "Cannot moderate yourself")
		}

		var req models.AdminActionRequest
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}

		user, err := h.userRepository.GetUserByID(ctx, targetID)
		if err != nil {
			return toHTTPError(err)
		}

		switch action {
		case models.AdminActionBan:
			user.Banned = true
		case models.AdminActionUnban:
			user.Banned = false
		case models.AdminActionPromote:
			user.Role = models.RoleAdmin
		case models.AdminActionDemote:
			user.Role = models.RoleUser
		}
		if err := h.userRepository.UpdateUser(ctx, user); err != nil {
			return toHTTPError(err)
		}

		h.logger.Info("admin action", "action", action, "admin", adminID, "user", targetID)

		notice := adminNotices[action]
		h.notifyUser(ctx, user.ID, adminID, notice.title, withReason(notice.message, req.Reason),
			strconv.FormatUint(uint64(user.ID), 10), models.RelatedUser)

		if action == models.AdminActionBan && h.sessions != nil {
			closed := h.sessions.Disconnect(user.ID)
			h.logger.Info("closed sessions of banned user", "user", user.ID, "connections", closed)
		}

		return success(c, http.StatusOK, user.ToCompact())
	}
}

// RemoveComment deletes any comment and notifies its author
func (h *AdminHandler) RemoveComment(c echo.Context) error {
	ctx := c.Request().Context()
	adminID := getUserIDFromContext(c)

	commentID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}

	var req models.AdminActionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	comment, err := h.commentRepository.GetCommentByID(ctx, commentID)
	if err != nil {
		return toHTTPError(err)
	}
	if err := removeComment(ctx, h.commentRepository, h.notifications, comment); err != nil {
		return toHTTPError(err)
	}

	go func() {
		if err := h.postRepository.IncrementCommentsCount(context.Background(), comment.PostID, -1); err != nil {
			h.logger.Warn("comments count not updated", "post_id", comment.PostID, "error", err)
		}
	}()

	h.logger.Info("admin action", "action", "remove_comment", "admin", adminID, "comment", comment.ID)

	if comment.UserID != adminID {
		h.notifyUser(ctx, comment.UserID, adminID, "Comment removed",
			withReason("Your comment was removed by a moderator", req.Reason), comment.PostID, models.RelatedPost)
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) notifyUser(ctx context.Context, recipient, adminID uint, title, message, relatedID, relatedType string) {
	actor := adminID
	h.notifications.Notify(ctx, models.NotificationInput{
		UserID:      recipient,
		ActorID:     &actor,
		Type:        models.NotificationAdmin,
		Title:       title,
		Message:     message,
		RelatedID:   relatedID,
		RelatedType: relatedType,
	})
}

func withReason(message, reason string) string {
	if reason == "" {
		return message
	}
	return fmt.Sprintf("%s: %s", message, reason)
}
