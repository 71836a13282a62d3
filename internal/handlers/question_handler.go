package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/anonto42/stackit/backend/internal/mentions"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// QuestionHandler handles asking and reading questions
type QuestionHandler struct {
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	mentions       *mentions.Processor
	logger         *slog.Logger
}

// NewQuestionHandler creates a new QuestionHandler
func NewQuestionHandler(postRepo repositories.PostRepository, userRepo repositories.UserRepository, processor *mentions.Processor, logger *slog.Logger) *QuestionHandler {
	return &QuestionHandler{
		postRepository: postRepo,
		userRepository: userRepo,
		mentions:       processor,
		logger:         logger,
	}
}

// RegisterQuestionRoutes registers question routes
func (h *QuestionHandler) RegisterQuestionRoutes(g *echo.Group) {
	g.POST("/questions", h.CreateQuestion)
	g.GET("/questions/:post_id", h.GetQuestion)
}

// CreateQuestion stores a question and notifies everyone mentioned in it
func (h *QuestionHandler) CreateQuestion(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	author, err := h.userRepository.GetUserByID(ctx, getUserIDFromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authenticated user not found in database")
	}

	post := &models.Post{
		UserID:  author.ID,
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	}
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return toHTTPError(err)
	}

	ref := models.MentionContext{PostID: post.ID.Hex()}
	if _, err := h.mentions.ProcessMentions(ctx, ref, author, strings.Join([]string{post.Title, post.Content}, "\n")); err != nil {
		h.logger.Warn("question mentions not processed", "post_id", ref.PostID, "error", err)
	}

	return success(c, http.StatusCreated, post)
}

// GetQuestion returns a single question
func (h *QuestionHandler) GetQuestion(c echo.Context) error {
	post, err := h.postRepository.GetPostByID(c.Request().Context(), c.Param("post_id"))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, post)
}
