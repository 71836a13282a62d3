package router

import (
	"errors"
	"log"
	"log/slog"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/stackit/backend/internal/chat"
	"github.com/anonto42/stackit/backend/internal/handlers"
	"github.com/anonto42/stackit/backend/internal/mentions"
	"github.com/anonto42/stackit/backend/internal/middleware"
	"github.com/anonto42/stackit/backend/internal/models"
	"github.com/anonto42/stackit/backend/internal/notifications"
	"github.com/anonto42/stackit/backend/internal/realtime"
	"github.com/anonto42/stackit/backend/internal/repositories"
	"github.com/anonto42/stackit/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Dependencies are the external resources the routes are built on.
// Posts overrides the Mongo-backed question store when set.
type Dependencies struct {
	Config       *config.Config
	Postgres     *gorm.DB
	Mongo        *mongo.Database
	Posts        repositories.PostRepository
	FirebaseAuth *auth.Client
	Logger       *slog.Logger
}

// App exposes the long-lived components main needs for shutdown
type App struct {
	Registry *realtime.Registry
	Gateway  *realtime.Gateway
	Chats    *chat.Service
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) (*App, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// AutoMigrate PostgreSQL models
	if err := deps.Postgres.AutoMigrate(models.Tables()...); err != nil {
		return nil, err
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(deps.Postgres)
	commentRepo := repositories.NewPostgresCommentRepository(deps.Postgres)
	answerRepo := repositories.NewPostgresAnswerRepository(deps.Postgres)
	mentionRepo := repositories.NewPostgresMentionRepository(deps.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(deps.Postgres)
	chatRepo := repositories.NewPostgresChatRepository(deps.Postgres)
	postRepo := deps.Posts
	if postRepo == nil {
		if deps.Mongo == nil {
			return nil, errors.New("no question store configured")
		}
		postRepo = repositories.NewMongoPostRepository(deps.Mongo)
	}

	verifier, err := tokenVerifier(cfg, deps.FirebaseAuth, userRepo)
	if err != nil {
		return nil, err
	}
	verifier = middleware.RejectBanned(verifier, userRepo)

	// --- Live delivery and domain services ---
	registry := realtime.NewRegistry()
	hub := realtime.NewHub(registry, logger)
	notifier := notifications.NewService(notificationRepo, hub, logger)
	processor := mentions.NewProcessor(userRepo, mentionRepo, notifier, logger)
	chats := chat.NewService(chatRepo, userRepo, notifier, hub, logger)
	gateway := realtime.NewGateway(registry, chats, verifier, realtime.GatewayConfig{
		PingInterval:    cfg.WSPingInterval,
		SendBuffer:      cfg.WSSendBuffer,
		EventsPerSecond: cfg.WSEventsPerSecond,
	}, logger)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(registry))
	e.GET("/ws", gateway.Serve)
	log.Println("WebSocket gateway configured.")

	// --- Protected routes ---
	api := e.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(verifier))
	log.Printf("%s authentication middleware applied to /api/v1 group.", cfg.AuthProvider)

	handlers.NewChatHandler(chats).RegisterChatRoutes(api, middleware.RateLimit(cfg.RateLimitPerMinute))
	log.Println("Chat routes configured.")

	handlers.NewNotificationHandler(notifier, userRepo).RegisterNotificationRoutes(api)
	log.Println("Notification routes configured.")

	handlers.NewPresenceHandler(registry).RegisterPresenceRoutes(api)

	handlers.NewQuestionHandler(postRepo, userRepo, processor, logger).RegisterQuestionRoutes(api)
	handlers.NewCommentHandler(commentRepo, postRepo, userRepo, processor, notifier, logger).RegisterCommentRoutes(api)
	handlers.NewAnswerHandler(answerRepo, postRepo, userRepo, processor, notifier, logger).RegisterAnswerRoutes(api)
	log.Println("Question, comment and answer routes configured.")

	admin := api.Group("/admin", middleware.RequireAdmin(userRepo))
	handlers.NewAdminHandler(userRepo, commentRepo, postRepo, notifier, registry, logger).RegisterAdminRoutes(admin)
	log.Println("Admin routes configured.")

	e.RouteNotFound("/*", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "Route not found")
	})

	log.Println("All routes configured.")
	return &App{Registry: registry, Gateway: gateway, Chats: chats}, nil
}

func tokenVerifier(cfg *config.Config, firebaseAuth *auth.Client, users *repositories.PostgresUserRepository) (middleware.TokenVerifier, error) {
	switch cfg.AuthProvider {
	case config.AuthProviderFirebase:
		if firebaseAuth == nil {
			return nil, errors.New("AUTH_PROVIDER is firebase but no Firebase client was initialized")
		}
		return middleware.NewFirebaseVerifier(firebaseAuth, users), nil
	case config.AuthProviderJWT:
		if cfg.JWTSecret == "" {
			return nil, errors.New("JWT_SECRET environment variable not set")
		}
		return middleware.NewJWTVerifier(cfg.JWTSecret), nil
	}
	return nil, errors.New("unknown AUTH_PROVIDER " + cfg.AuthProvider)
}
