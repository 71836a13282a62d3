package handlers

import (
	"net/http"

	"github.com/anonto42/stackit/backend/internal/chat"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// ChatHandler exposes conversations over REST. Every write goes through the
// same chat.Service the WebSocket gateway uses.
type ChatHandler struct {
	chats *chat.Service
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chats *chat.Service) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// RegisterChatRoutes registers chat routes. send wraps the message-creating
// routes, typically with a rate limiter.
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group, send ...echo.MiddlewareFunc) {
	g.GET("/chats", h.ListConversations)
	g.POST("/chats", h.GetOrCreateConversation)
	g.GET("/chats/:id/messages", h.ListMessages)
	g.POST("/chats/:id/messages", h.SendMessage, send...)
	g.PUT("/chats/:id/read", h.MarkRead)
	g.POST("/users/:id/messages", h.SendMessageToUser, send...)
}

// ListConversations lists the caller's conversations, most recent first
func (h *ChatHandler) ListConversations(c echo.Context) error {
	conversations, err := h.chats.ListConversations(c.Request().Context(), getUserIDFromContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, conversations)
}

// GetOrCreateConversation returns the conversation between the caller and another user
func (h *ChatHandler) GetOrCreateConversation(c echo.Context) error {
	var req models.GetOrCreateConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	conv, err := h.chats.GetOrCreateConversation(c.Request().Context(), getUserIDFromContext(c), req.UserID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, conv)
}

// ListMessages returns a conversation's messages, oldest first
func (h *ChatHandler) ListMessages(c echo.Context) error {
	convID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid conversation ID")
	}

	messages, err := h.chats.ListMessages(c.Request().Context(), convID, getUserIDFromContext(c))
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, messages)
}

// SendMessage posts a message to a conversation
func (h *ChatHandler) SendMessage(c echo.Context) error {
	convID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid conversation ID")
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.chats.SendMessage(c.Request().Context(), convID, getUserIDFromContext(c), req.Content)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, msg)
}

// SendMessageToUser messages a user directly, opening the conversation on first contact
func (h *ChatHandler) SendMessageToUser(c echo.Context) error {
	recipientID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	conv, msg, err := h.chats.SendMessageToUser(c.Request().Context(), getUserIDFromContext(c), recipientID, req.Content)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusCreated, echo.Map{
		"conversation": conv,
		"message":      msg,
	})
}

// MarkRead marks messages from the other participant as read
func (h *ChatHandler) MarkRead(c echo.Context) error {
	convID, err := parseIDParam(c, "id")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid conversation ID")
	}

	var req models.MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	receipt, err := h.chats.MarkRead(c.Request().Context(), convID, getUserIDFromContext(c), req.MessageIDs, req.UpToMessageID)
	if err != nil {
		return toHTTPError(err)
	}
	return success(c, http.StatusOK, receipt)
}
