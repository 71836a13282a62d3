package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/stackit/backend/internal/chat"
	"github.com/anonto42/stackit/backend/internal/middleware"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/anonto42/stackit/backend/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	sendErr  error
	panicOn  string
	sent     []string
	readArgs []uint
	typing   []bool
}

func (s *stubChat) SendMessage(_ context.Context, conversationID, senderID uint, content string) (*models.ChatMessage, error) {
	if s.panicOn == "send" {
		panic("boom")
	}
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	s.sent = append(s.sent, content)
	return &models.ChatMessage{ID: 1, ConversationID: conversationID, SenderID: senderID, Content: content}, nil
}

func (s *stubChat) MarkRead(_ context.Context, conversationID, _ uint, _ []uint, upTo uint) (*models.ReadReceipt, error) {
	s.readArgs = append(s.readArgs, conversationID, upTo)
	return nil, chat.ErrNotParticipant
}

func (s *stubChat) Typing(_ context.Context, _, _ uint, started bool) error {
	s.typing = append(s.typing, started)
	return nil
}

func inbound(t *testing.T, name string, data any) inboundEvent {
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return inboundEvent{Name: name, AckID: "1", Data: raw}
}

func TestDispatchSendChatMessage(t *testing.T) {
	stub := &stubChat{}
	g := NewGateway(NewRegistry(), stub, nil, GatewayConfig{}, nil)
	ctx := context.Background()

	ack := g.dispatch(ctx, 1, inbound(t, models.EventSendChatMessage, map[string]any{"conversation_id": 3, "content": "hi"}))
	require.NotNil(t, ack)
	assert.Equal(t, AckSuccess, ack.Status)
	assert.Equal(t, "hi", ack.Message.(*models.ChatMessage).Content)

	ack = g.dispatch(ctx, 1, inbound(t, models.EventSendChatMessage, map[string]any{"conversation_id": 3}))
	assert.Equal(t, &Ack{Status: AckError, Message: "invalid data"}, ack)

	ack = g.dispatch(ctx, 1, inbound(t, models.EventSendChatMessage, map[string]any{"content": "x"}))
	assert.Equal(t, &Ack{Status: AckError, Message: "invalid data"}, ack)

	ack = g.dispatch(ctx, 1, inboundEvent{Name: models.EventSendChatMessage, Data: json.RawMessage(`"nope"`)})
	assert.Equal(t, &Ack{Status: AckError, Message: "invalid data"}, ack)

	stub.sendErr = chat.ErrNotParticipant
	ack = g.dispatch(ctx, 1, inbound(t, models.EventSendChatMessage, map[string]any{"conversation_id": 3, "content": "hi"}))
	assert.Equal(t, &Ack{Status: AckError, Message: "not a participant"}, ack)

	stub.sendErr = errors.New("connection refused")
	ack = g.dispatch(ctx, 1, inbound(t, models.EventSendChatMessage, map[string]any{"conversation_id": 3, "content": "hi"}))
	assert.Equal(t, &Ack{Status: AckError, Message: "internal error"}, ack)
}

func TestDispatchRecoversFromPanics(t *testing.T) {
	g := NewGateway(NewRegistry(), &stubChat{panicOn: "send"}, nil, GatewayConfig{}, nil)

	var ack *Ack
	assert.NotPanics(t, func() {
		ack = g.dispatch(context.Background(), 1, inbound(t, models.EventSendChatMessage, map[string]any{"conversation_id": 3, "content": "hi"}))
	})
	assert.Equal(t, &Ack{Status: AckError, Message: "internal error"}, ack)
}

func TestDispatchSilentEvents(t *testing.T) {
	stub := &stubChat{}
	g := NewGateway(NewRegistry(), stub, nil, GatewayConfig{}, nil)
	ctx := context.Background()

	assert.Nil(t, g.dispatch(ctx, 1, inbound(t, models.EventMarkRead, map[string]any{"conversation_id": 3, "up_to_message_id": 9})))
	assert.Equal(t, []uint{3, 9}, stub.readArgs)

	assert.Nil(t, g.dispatch(ctx, 1, inbound(t, models.EventTypingStart, map[string]any{"conversation_id": 3})))
	assert.Nil(t, g.dispatch(ctx, 1, inbound(t, models.EventTypingStop, map[string]any{"conversation_id": 3})))
	assert.Equal(t, []bool{true, false}, stub.typing)

	assert.Nil(t, g.dispatch(ctx, 1, inboundEvent{Name: models.EventMarkRead, Data: json.RawMessage(`[1,2]`)}))

	ack := g.dispatch(ctx, 1, inbound(t, "launch-rockets", nil))
	assert.Equal(t, &Ack{Status: AckError, Message: "unknown event"}, ack)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=query", nil)
	assert.Equal(t, "query", bearerToken(r))

	r.Header.Set("Authorization", "Bearer header")
	assert.Equal(t, "header", bearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", bearerToken(r))
}

// tokenVerifier accepts tokens of the form "user-<id>" for the seeded users
type tokenVerifier map[string]uint

func (v tokenVerifier) VerifyToken(_ context.Context, token string) (uint, error) {
	if token == "suspended" {
		return 0, fmt.Errorf("verify: %w", middleware.ErrUserBanned)
	}
	if id, ok := v[token]; ok {
		return id, nil
	}
	return 0, errors.New("bad token")
}

type liveEnv struct {
	server *httptest.Server
	gw     *Gateway
	reg    *Registry
	chats  *chat.Service
	alice  *models.User
	bob    *models.User
	tokens tokenVerifier
}

func newLiveEnv(t *testing.T) *liveEnv {
	return newLiveEnvWith(t, GatewayConfig{PingInterval: 5 * time.Second})
}

func newLiveEnvWith(t *testing.T, cfg GatewayConfig) *liveEnv {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	reg := NewRegistry()
	hub := NewHub(reg, nil)
	notifier := notifications.NewService(repositories.NewPostgresNotificationRepository(db), hub, nil)
	chats := chat.NewService(repositories.NewPostgresChatRepository(db), repositories.NewPostgresUserRepository(db), notifier, hub, nil)
	tokens := tokenVerifier{"alice": alice.ID, "bob": bob.ID}

	e := echo.New()
	gw := NewGateway(reg, chats, tokens, cfg, nil)
	e.GET("/ws", gw.Serve)
	server := httptest.NewServer(e)
	t.Cleanup(func() {
		server.Close()
		chats.Wait()
	})

	return &liveEnv{server: server, gw: gw, reg: reg, chats: chats, alice: alice, bob: bob, tokens: tokens}
}

func (env *liveEnv) dial(t *testing.T, token string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type frame struct {
	Event string          `json:"event"`
	AckID string          `json:"ack_id"`
	Data  json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn, event string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event {
			return f
		}
	}
}

func TestGatewayRejectsMissingOrBadToken(t *testing.T) {
	env := newLiveEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=mallory", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, env.reg.OnlineUsers())
}

func TestGatewayChatRoundTrip(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()

	aliceConn := env.dial(t, "alice")
	bobTab1 := env.dial(t, "bob")
	bobTab2 := env.dial(t, "bob")
	require.Eventually(t, func() bool {
		return len(env.reg.HandlesFor(env.bob.ID)) == 2 && env.reg.IsOnline(env.alice.ID)
	}, 2*time.Second, 10*time.Millisecond)

	conv, err := env.chats.GetOrCreateConversation(ctx, env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	// a malformed frame must not break the connection
	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	require.NoError(t, aliceConn.WriteJSON(map[string]any{
		"event":  models.EventSendChatMessage,
		"ack_id": "a1",
		"data":   map[string]any{"conversation_id": conv.ID, "content": "hello bob"},
	}))

	ackFrame := readFrame(t, aliceConn, models.EventAck)
	assert.Equal(t, "a1", ackFrame.AckID)
	var ack struct {
		Status  string             `json:"status"`
		Message models.ChatMessage `json:"message"`
	}
	require.NoError(t, json.Unmarshal(ackFrame.Data, &ack))
	assert.Equal(t, AckSuccess, ack.Status)
	assert.Equal(t, "hello bob", ack.Message.Content)

	for _, conn := range []*websocket.Conn{bobTab1, bobTab2} {
		f := readFrame(t, conn, models.EventChatMessage)
		var msg models.ChatMessage
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, ack.Message.ID, msg.ID)
	}

	// the chat notification is pushed live as well
	f := readFrame(t, bobTab1, models.EventNewNotification)
	var n models.Notification
	require.NoError(t, json.Unmarshal(f.Data, &n))
	assert.Equal(t, models.NotificationChat, n.Type)

	// bob reads; alice gets the receipt
	require.NoError(t, bobTab2.WriteJSON(map[string]any{
		"event": models.EventMarkRead,
		"data":  map[string]any{"conversation_id": conv.ID, "message_ids": []uint{ack.Message.ID}},
	}))
	f = readFrame(t, aliceConn, models.EventReadReceipt)
	var receipt models.ReadReceipt
	require.NoError(t, json.Unmarshal(f.Data, &receipt))
	assert.Equal(t, env.bob.ID, receipt.ReaderID)

	// closing one tab keeps bob online on the other
	require.NoError(t, bobTab1.Close())
	require.Eventually(t, func() bool {
		return len(env.reg.HandlesFor(env.bob.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, bobTab2.Close())
	require.Eventually(t, func() bool {
		return !env.reg.IsOnline(env.bob.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGatewayRejectsSuspendedAccount(t *testing.T) {
	env := newLiveEnv(t)
	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=suspended"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, env.reg.OnlineUsers())
}

func TestDisconnectClosesLiveSockets(t *testing.T) {
	env := newLiveEnv(t)
	tab1 := env.dial(t, "alice")
	tab2 := env.dial(t, "alice")
	require.Eventually(t, func() bool {
		return len(env.reg.HandlesFor(env.alice.ID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 2, env.reg.Disconnect(env.alice.ID))

	for _, conn := range []*websocket.Conn{tab1, tab2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var err error
		for err == nil {
			_, _, err = conn.ReadMessage()
		}
		assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)
	}
	require.Eventually(t, func() bool {
		return !env.reg.IsOnline(env.alice.ID)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRateLimitedEventIsAcked(t *testing.T) {
	env := newLiveEnvWith(t, GatewayConfig{PingInterval: 5 * time.Second, EventsPerSecond: 0.01, EventBurst: 2})
	conv, err := env.chats.GetOrCreateConversation(context.Background(), env.alice.ID, env.bob.ID)
	require.NoError(t, err)

	conn := env.dial(t, "alice")
	for i := 1; i <= 3; i++ {
		require.NoError(t, conn.WriteJSON(map[string]any{
			"event":  models.EventSendChatMessage,
			"ack_id": fmt.Sprintf("m%d", i),
			"data":   map[string]any{"conversation_id": conv.ID, "content": "flood"},
		}))
	}

	want := map[string]string{"m1": AckSuccess, "m2": AckSuccess, "m3": AckError}
	for range want {
		f := readFrame(t, conn, models.EventAck)
		var ack struct {
			Status  string          `json:"status"`
			Message json.RawMessage `json:"message"`
		}
		require.NoError(t, json.Unmarshal(f.Data, &ack))
		assert.Equal(t, want[f.AckID], ack.Status, f.AckID)
		if f.AckID == "m3" {
			assert.JSONEq(t, `"rate limited"`, string(ack.Message))
		}
	}
}

func TestGatewayCloseDrainsConnections(t *testing.T) {
	env := newLiveEnv(t)
	aliceConn := env.dial(t, "alice")
	env.dial(t, "bob")
	require.Eventually(t, func() bool {
		return env.reg.ConnectionCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, env.gw.Close(ctx))
	assert.Zero(t, env.reg.ConnectionCount())

	// the client saw a proper close frame
	require.NoError(t, aliceConn.SetReadDeadline(time.Now().Add(time.Second)))
	var err error
	for err == nil {
		_, _, err = aliceConn.ReadMessage()
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), err)

	url := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?token=alice"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
