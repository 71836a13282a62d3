package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/stackit/backend/internal/chat"
	"github.com/anonto42/stackit/backend/internal/mentions"
	"github.com/anonto42/stackit/backend/internal/middleware"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/anonto42/stackit/backend/internal/testutil"
	"github.com/anonto42/stackit/backend/internal/validators"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// memoryPosts stands in for the Mongo question store
type memoryPosts struct {
	mu    sync.Mutex
	posts map[string]*models.Post
}

func newMemoryPosts() *memoryPosts {
	return &memoryPosts{posts: make(map[string]*models.Post)}
}

func (m *memoryPosts) CreatePost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	cp := *post
	m.posts[post.ID.Hex()] = &cp
	return nil
}

func (m *memoryPosts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *post
	return &cp, nil
}

func (m *memoryPosts) IncrementCommentsCount(_ context.Context, postID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[postID]; ok {
		post.CommentsCount += delta
	}
	return nil
}

func (m *memoryPosts) IncrementAnswersCount(_ context.Context, postID string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post, ok := m.posts[postID]; ok {
		post.AnswersCount += delta
	}
	return nil
}

type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	e        *echo.Echo
	verifier *middleware.JWTVerifier
	posts    *memoryPosts
	chats    *chat.Service
	online   map[uint]bool
	sessions *sessionLog

	alice, bob, carol *models.User
}

type onlineSet map[uint]bool

func (s onlineSet) IsOnline(id uint) bool { return s[id] }

// sessionLog records which users had their connections dropped
type sessionLog struct {
	mu     sync.Mutex
	closed []uint
}

func (s *sessionLog) Disconnect(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, userID)
	return 1
}

func (s *sessionLog) users() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.closed...)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := repositories.NewPostgresUserRepository(db)
	comments := repositories.NewPostgresCommentRepository(db)
	answers := repositories.NewPostgresAnswerRepository(db)
	posts := newMemoryPosts()
	notifier := notifications.NewService(repositories.NewPostgresNotificationRepository(db), nil, logger)
	processor := mentions.NewProcessor(users, repositories.NewPostgresMentionRepository(db), notifier, logger)
	chats := chat.NewService(repositories.NewPostgresChatRepository(db), users, notifier, nil, logger)
	t.Cleanup(chats.Wait)

	env := &testEnv{
		t:        t,
		db:       db,
		e:        echo.New(),
		verifier: middleware.NewJWTVerifier("handler-test-secret"),
		posts:    posts,
		chats:    chats,
		online:   map[uint]bool{},
		sessions: &sessionLog{},
		alice:    testutil.CreateUser(t, db, "alice"),
		bob:      testutil.CreateUser(t, db, "bob"),
		carol:    testutil.CreateUser(t, db, "carol"),
	}
	env.e.Validator = validators.NewValidator()

	api := env.e.Group("/api/v1", middleware.AuthMiddleware(middleware.RejectBanned(env.verifier, users)))
	NewChatHandler(chats).RegisterChatRoutes(api)
	NewNotificationHandler(notifier, users).RegisterNotificationRoutes(api)
	NewQuestionHandler(posts, users, processor, logger).RegisterQuestionRoutes(api)
	NewCommentHandler(comments, posts, users, processor, notifier, logger).RegisterCommentRoutes(api)
	NewAnswerHandler(answers, posts, users, processor, notifier, logger).RegisterAnswerRoutes(api)
	NewPresenceHandler(onlineSet(env.online)).RegisterPresenceRoutes(api)
	NewAdminHandler(users, comments, posts, notifier, env.sessions, logger).RegisterAdminRoutes(api.Group("/admin", middleware.RequireAdmin(users)))

	return env
}

func (env *testEnv) do(user *models.User, method, path string, body any) *httptest.ResponseRecorder {
	env.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(env.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if user != nil {
		token, err := env.verifier.Sign(user.ID, user.Email, time.Hour)
		require.NoError(env.t, err)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

// question stores a question owned by author directly in the fake store
func (env *testEnv) question(author *models.User) *models.Post {
	env.t.Helper()
	post := &models.Post{UserID: author.ID, Title: "How do channels work?", Content: "details"}
	require.NoError(env.t, env.posts.CreatePost(context.Background(), post))
	return post
}

func (env *testEnv) notificationsFor(user *models.User) []models.Notification {
	env.t.Helper()
	var list []models.Notification
	require.NoError(env.t, env.db.Where("user_id = ?", user.ID).Order("id").Find(&list).Error)
	return list
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Data    T    `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.True(t, body.Success)
	return body.Data
}

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)
