package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/stackit/backend/internal/chat"
	"github.com/anonto42/stackit/backend/internal/middleware"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// ChatService is the part of the chat service the gateway routes inbound events to
type ChatService interface {
	SendMessage(ctx context.Context, conversationID, senderID uint, content string) (*models.ChatMessage, error)
	MarkRead(ctx context.Context, conversationID, readerID uint, ids []uint, upTo uint) (*models.ReadReceipt, error)
	Typing(ctx context.Context, conversationID, userID uint, started bool) error
}

// TokenVerifier turns a bearer credential into a user id
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (uint, error)
}

type GatewayConfig struct {
	PingInterval    time.Duration
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.EventsPerSecond <= 0 {
		c.EventsPerSecond = 20
	}
	if c.EventBurst <= 0 {
		c.EventBurst = int(c.EventsPerSecond) * 2
	}
	return c
}

// Gateway is the WebSocket endpoint. It authenticates the handshake,
// registers the connection and routes inbound events to the chat service.
type Gateway struct {
	registry *Registry
	chats    ChatService
	verifier TokenVerifier
	upgrader websocket.Upgrader
	cfg      GatewayConfig
	logger   *slog.Logger

	mu       sync.Mutex
	draining bool
	active   sync.WaitGroup
}

func NewGateway(registry *Registry, chats ChatService, verifier TokenVerifier, cfg GatewayConfig, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry: registry,
		chats:    chats,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are already governed by the CORS middleware and the bearer token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "gateway"),
	}
}

// Serve handles GET /ws. Missing or invalid credentials are rejected with 401
// and suspended accounts with 403, both before the upgrade; no event is
// processed for an unauthenticated socket.
func (g *Gateway) Serve(c echo.Context) error {
	token := bearerToken(c.Request())
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing authentication token")
	}
	userID, err := g.verifier.VerifyToken(c.Request().Context(), token)
	if err != nil {
		g.logger.Debug("handshake rejected", "error", err)
		if errors.Is(err, middleware.ErrUserBanned) {
			return echo.NewHTTPError(http.StatusForbidden, "Account suspended")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	if !g.acquire() {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Server is shutting down")
	}
	defer g.active.Done()

	conn, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		g.logger.Debug("upgrade failed", "user_id", userID, "error", err)
		return nil
	}

	client := newClient(userID, conn, g.cfg, g.logger)
	g.registry.Register(userID, client)
	client.logger.Info("connected")

	go client.writePump(g.cfg.PingInterval)
	// Close may have run between acquire and Register and missed this client
	if g.isDraining() {
		client.Close()
	}
	g.readLoop(context.WithoutCancel(c.Request().Context()), client)

	g.registry.Unregister(userID, client)
	client.Close()
	client.logger.Info("disconnected")
	return nil
}

// Close stops accepting connections, closes every open one and waits until
// their read loops have returned or ctx is done.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.draining = true
	g.mu.Unlock()

	closed := 0
	for _, userID := range g.registry.OnlineUsers() {
		closed += g.registry.Disconnect(userID)
	}
	g.logger.Info("draining connections", "count", closed)

	done := make(chan struct{})
	go func() {
		g.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return false
	}
	g.active.Add(1)
	return true
}

func (g *Gateway) isDraining() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.draining
}

func (g *Gateway) readLoop(ctx context.Context, c *Client) {
	pongWait := 2 * g.cfg.PingInterval
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inboundEvent
		if err := json.Unmarshal(data, &in); err != nil {
			c.logger.Debug("malformed frame", "error", err)
			continue
		}

		if !c.limiter.Allow() {
			c.logger.Warn("inbound event rate exceeded, dropping", "event", in.Name)
			if in.AckID != "" {
				c.Send(Event{Name: models.EventAck, AckID: in.AckID, Data: errorAck("rate limited")})
			}
			continue
		}

		ack := g.dispatch(ctx, c.userID, in)
		if ack != nil && in.AckID != "" {
			c.Send(Event{Name: models.EventAck, AckID: in.AckID, Data: ack})
		}
	}
}

// dispatch handles a single inbound event. It never panics and never fails
// the connection; the returned ack is nil for events that are silent on failure.
func (g *Gateway) dispatch(ctx context.Context, userID uint, in inboundEvent) (ack *Ack) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("event handler panicked", "user_id", userID, "event", in.Name, "panic", r)
			ack = errorAck("internal error")
		}
	}()

	switch in.Name {
	case models.EventSendChatMessage:
		var p sendChatMessagePayload
		if err := json.Unmarshal(in.Data, &p); err != nil || p.ConversationID == 0 || strings.TrimSpace(p.Content) == "" {
			return errorAck(chat.ErrInvalidData.Error())
		}
		msg, err := g.chats.SendMessage(ctx, p.ConversationID, userID, p.Content)
		if err != nil {
			return errorAck(g.reason(userID, in.Name, err))
		}
		return &Ack{Status: AckSuccess, Message: msg}

	case models.EventMarkRead:
		var p markReadPayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return nil
		}
		if _, err := g.chats.MarkRead(ctx, p.ConversationID, userID, p.MessageIDs, p.UpToMessageID); err != nil {
			g.logger.Debug("mark-read ignored", "user_id", userID, "error", err)
		}
		return nil

	case models.EventTypingStart, models.EventTypingStop:
		var p typingPayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return nil
		}
		if err := g.chats.Typing(ctx, p.ConversationID, userID, in.Name == models.EventTypingStart); err != nil {
			g.logger.Debug("typing ignored", "user_id", userID, "error", err)
		}
		return nil

	default:
		return errorAck("unknown event")
	}
}

func (g *Gateway) reason(userID uint, event string, err error) string {
	switch {
	case errors.Is(err, chat.ErrInvalidData),
		errors.Is(err, chat.ErrNotParticipant),
		errors.Is(err, chat.ErrConversationNotFound):
		return err.Error()
	}
	g.logger.Error("event failed", "user_id", userID, "event", event, "error", err)
	return "internal error"
}

// bearerToken reads the credential from the Authorization header, falling
// back to the token query parameter since browsers cannot set headers on a
// WebSocket handshake.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
