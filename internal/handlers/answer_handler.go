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

// AnswerHandler handles answers, votes and answer acceptance
type AnswerHandler struct {
	answerRepository repositories.AnswerRepository
	postRepository   repositories.PostRepository
	userRepository   repositories.UserRepository
	mentions         *mentions.Processor
	notifications    *notifications.Service
	logger           *slog.Logger
}

// NewAnswerHandler creates a new AnswerHandler
func NewAnswerHandler(answerRepo repositories.AnswerRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository,
	processor *mentions.Processor, svc *notifications.Service, logger *slog.Logger) *AnswerHandler {
	return &AnswerHandler{
		answerRepository: answerRepo,
		postRepository:   postRepo,
		userRepository:   userRepo,
		mentions:         processor,
		notifications:    svc,
		logger:           logger,
	}
}

// RegisterAnswerRoutes registers answer routes
func (h *AnswerHandler) RegisterAnswerRoutes(g *echo.Group) {
	g.POST("/questions/:post_id/answers", h.CreateAnswer)
	g.POST("/answers/:id/votes", h.Vote)
	g.PUT("/answers/:id/accept", h.Accept)
}

// CreateAnswer answers a question, records mentions and notifies the asker
func (h *AnswerHandler) CreateAnswer(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("post_id")

	var req models.CreateAnswerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	author, err := h.userRepository.GetUserByID(ctx, getUserIDFromContext(c))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authenticated user not found in database")
	}

	mentioned, err := h.mentions.Resolve(ctx, req.Content)
	if err != nil {
		h.logger.Warn("mention resolution failed", "post_id", postID, "error", err)
		mentioned = nil
	}

	answer := &models.Answer{
		PostID:  postID,
		UserID:  author.ID,
		Content: req.Content,
	}

	var recorded []models.Mention
	err = h.answerRepository.CreateAnswer(ctx, answer, func(store repositories.MentionRepository) error {
		var err error
		recorded, err = h.mentions.Record(ctx, store, answerRef(answer), author.ID, mentioned)
		return err
	})
	if err != nil {
		return toHTTPError(err)
	}

	h.mentions.Announce(ctx, author, answerRef(answer), recorded)

	if post.UserID != author.ID {
		h.notify(ctx, post.UserID, author, models.NotificationAnswer, "New answer",
			fmt.Sprintf("%s answered your question", author.Name()), answer.ID)
	}

	go func() {
		if err := h.postRepository.IncrementAnswersCount(context.Background(), postID, 1); err != nil {
			h.logger.Warn("answers count not updated", "post_id", postID, "error", err)
		}
	}()

	return success(c, http.StatusCreated, answer)
}

// Vote casts or changes the caller's vote on an answer. Only a new upvote
// notifies the answer author.
func (h *AnswerHandler) Vote(c echo.Context) error {
	ctx := c.Request().Context()
	userID := getUserIDFromContext(c)

	answerID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid answer ID")
	}

	var req models.VoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	answer, err := h.answerRepository.GetAnswerByID(ctx, answerID)
	if err != nil {
		return toHTTPError(err)
	}
	if answer.UserID == userID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot vote on your own answer")
	}

	vote := &models.Vote{AnswerID: answer.ID, UserID: userID, Value: req.Value}
	previous, err := h.answerRepository.CastVote(ctx, vote)
	if err != nil {
		return toHTTPError(err)
	}

	if vote.Value == 1 && previous != 1 {
		if voter, err := h.userRepository.GetUserByID(ctx, userID); err == nil {
			h.notify(ctx, answer.UserID, voter, models.NotificationVote, "New upvote",
				fmt.Sprintf("%s upvoted your answer", voter.Name()), answer.ID)
		}
	}

	return success(c, http.StatusOK, echo.Map{
		"vote":  vote,
		"score": answer.Score + vote.Value - previous,
	})
}

// Accept marks an answer as the accepted one. Only the asker may accept.
func (h *AnswerHandler) Accept(c echo.Context) error {
	ctx := c.Request().Context()
	userID := getUserIDFromContext(c)

	answerID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid answer ID")
	}

	answer, err := h.answerRepository.GetAnswerByID(ctx, answerID)
	if err != nil {
		return toHTTPError(err)
	}
	post, err := h.postRepository.GetPostByID(ctx, answer.PostID)
	if err != nil {
		return toHTTPError(err)
	}
	if post.UserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "Only the question author can accept an answer")
	}

	if err := h.answerRepository.Accept(ctx, answer); err != nil {
		return toHTTPError(err)
	}

	if answer.UserID != userID {
		if asker, err := h.userRepository.GetUserByID(ctx, userID); err == nil {
			h.notify(ctx, answer.UserID, asker, models.NotificationVote, "Answer accepted",
				fmt.Sprintf("%s accepted your answer", asker.Name()), answer.ID)
		}
	}

	return success(c, http.StatusOK, answer)
}

func (h *AnswerHandler) notify(ctx context.Context, recipient uint, actor *models.User, kind, title, message string, answerID uint) {
	actorID := actor.ID
	h.notifications.Notify(ctx, models.NotificationInput{
		UserID:      recipient,
		ActorID:     &actorID,
		Type:        kind,
		Title:       title,
		Message:     message,
		RelatedID:   strconv.FormatUint(uint64(answerID), 10),
		RelatedType: models.RelatedAnswer,
	})
}

func answerRef(answer *models.Answer) models.MentionContext {
	id := answer.ID
	return models.MentionContext{PostID: answer.PostID, AnswerID: &id}
}
