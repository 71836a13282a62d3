package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/anonto42/stackit/backend/internal/mentions"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles HTTP requests related to comments
type CommentHandler struct {
	commentRepository repositories.CommentRepository
	postRepository    repositories.PostRepository // To update comment counts in posts
	userRepository    repositories.UserRepository
	mentions          *mentions.Processor
	notifications     *notifications.Service
	logger            *slog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(commentRepo repositories.CommentRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository,
	processor *mentions.Processor, svc *notifications.Service, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{
		commentRepository: commentRepo,
		postRepository:    postRepo,
		userRepository:    userRepo,
		mentions:          processor,
		notifications:     svc,
		logger:            logger,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/questions/:post_id/comments", h.CreateComment)
	g.GET("/questions/:post_id/comments", h.GetCommentsByPostID)
	g.DELETE("/comments/:id", h.DeleteComment)
}

// CreateComment creates a comment on a question, records the mentions it
// contains and notifies the question author.
func (h *CommentHandler) CreateComment(c echo.Context) error {
	userID := getUserIDFromContext(c)
	postID := c.Param("post_id")
	ctx := c.Request().Context()

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	author, err := h.userRepository.GetUserByID(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authenticated user not found in database")
	}

	// A failed lookup only costs the mentions, never the comment.
	mentioned, err := h.mentions.Resolve(ctx, req.Content)
	if err != nil {
		h.logger.Warn("mention resolution failed", "post_id", postID, "error", err)
		mentioned = nil
	}

	comment := &models.Comment{
		PostID:  postID,
		UserID:  author.ID,
		Content: req.Content,
	}

	var recorded []models.Mention
	err = h.commentRepository.CreateComment(ctx, comment, func(store repositories.MentionRepository) error {
		var err error
		recorded, err = h.mentions.Record(ctx, store, commentRef(comment), author.ID, mentioned)
		return err
	})
	if err != nil {
		return toHTTPError(err)
	}

	h.mentions.Announce(ctx, author, commentRef(comment), recorded)

	if post.UserID != author.ID {
		actor := author.ID
		h.notifications.Notify(ctx, models.NotificationInput{
			UserID:      post.UserID,
			ActorID:     &actor,
			Type:        models.NotificationComment,
			Title:       "New comment",
			Message:     fmt.Sprintf("%s commented on your question", author.Name()),
			RelatedID:   strconv.FormatUint(uint64(comment.ID), 10),
			RelatedType: models.RelatedComment,
		})
	}

	go h.adjustCommentsCount(postID, 1)

	return success(c, http.StatusCreated, comment)
}

// GetCommentsByPostID retrieves all comments for a specific question
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	postID := c.Param("post_id")

	if _, err := h.postRepository.GetPostByID(c.Request().Context(), postID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	comments, err := h.commentRepository.GetCommentsByPostID(c.Request().Context(), postID)
	if err != nil {
		return toHTTPError(err)
	}

	return success(c, http.StatusOK, comments)
}

// DeleteComment deletes one of the caller's comments
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	userID := getUserIDFromContext(c)
	commentID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid comment ID")
	}

	comment, err := h.commentRepository.GetCommentByID(c.Request().Context(), commentID)
	if err != nil {
		return toHTTPError(err)
	}

	// Ensure the user deleting the comment is the owner
	if comment.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
	}

	if err := removeComment(c.Request().Context(), h.commentRepository, h.notifications, comment); err != nil {
		return toHTTPError(err)
	}
	go h.adjustCommentsCount(comment.PostID, -1)

	return c.NoContent(http.StatusNoContent)
}

func (h *CommentHandler) adjustCommentsCount(postID string, delta int) {
	if err := h.postRepository.IncrementCommentsCount(context.Background(), postID, delta); err != nil {
		h.logger.Warn("comments count not updated", "post_id", postID, "error", err)
	}
}

func commentRef(comment *models.Comment) models.MentionContext {
	id := comment.ID
	return models.MentionContext{PostID: comment.PostID, CommentID: &id}
}

// removeComment deletes the comment with its mentions, then drops the
// notifications that deep-link to it.
func removeComment(ctx context.Context, comments repositories.CommentRepository, svc *notifications.Service, comment *models.Comment) error {
	if err := comments.DeleteComment(ctx, comment.ID); err != nil {
		return err
	}
	svc.DeleteForRelated(ctx, models.RelatedComment, strconv.FormatUint(uint64(comment.ID), 10))
	return nil
}
