package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/stackit/backend/internal/router"
	"github.com/anonto42/stackit/backend/internal/validators"
	"github.com/anonto42/stackit/backend/pkg/config"
	"github.com/anonto42/stackit/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg := config.Load()

	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.Close() // Ensure database connections are closed when main exits

	// Initialize Firebase only when it verifies tokens
	var firebaseAuth *auth.Client
	if cfg.AuthProvider == config.AuthProviderFirebase {
		firebaseAuth, err = firebase.NewAuthClient(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}
		log.Println("Firebase auth client initialized successfully!")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e, logger)

	// Setup routes and dependencies
	app, err := router.SetupRoutes(e, router.Dependencies{
		Config:       cfg,
		Postgres:     db.Postgres,
		Mongo:        db.Mongo.Database(cfg.MongoDatabase),
		FirebaseAuth: firebaseAuth,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Failed to configure routes: %v", err)
	}

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", "connections", app.Registry.ConnectionCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// hijacked sockets are invisible to e.Shutdown, so drain them first
	if err := app.Gateway.Close(shutdownCtx); err != nil {
		logger.Error("gateway drain", "error", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	// let in-flight chat notifications land before the databases close
	app.Chats.Wait()
}
