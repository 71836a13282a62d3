package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectTimeout = 5 * time.Second
)

// Stores are the two backing databases: Postgres holds users, chat,
// notifications and mentions; Mongo holds questions.
type Stores struct {
	Postgres *gorm.DB
	Mongo    *mongo.Client
	logger   *slog.Logger
}

// OpenStores connects and pings both databases. Nothing stays open on
// failure: a store that connected is released before the error returns.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	if cfg.PostgresConnStr == "" {
		return nil, errors.New("POSTGRES_CONN_STR environment variable not set")
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI environment variable not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	pg, err := connectPostgres(ctx, cfg.PostgresConnStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	logger.Info("connected to postgres")

	mc, err := connectMongo(ctx, cfg.MongoURI)
	if err != nil {
		s := &Stores{Postgres: pg, logger: logger}
		s.Close()
		return nil, fmt.Errorf("mongo: %w", err)
	}
	logger.Info("connected to mongo")

	return &Stores{Postgres: pg, Mongo: mc, logger: logger}, nil
}

func connectPostgres(ctx context.Context, dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		// Connect already started monitoring goroutines and a pool
		discCtx, discCancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer discCancel()
		_ = client.Disconnect(discCtx)
		return nil, err
	}
	return client, nil
}

// Close releases both stores. Safe on a partially opened value.
func (s *Stores) Close() {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}

	if s.Postgres != nil {
		if sqlDB, err := s.Postgres.DB(); err != nil {
			logger.Error("postgres handle unavailable", "error", err)
		} else if err := sqlDB.Close(); err != nil {
			logger.Error("closing postgres", "error", err)
		} else {
			logger.Info("postgres closed")
		}
	}

	if s.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := s.Mongo.Disconnect(ctx); err != nil {
			logger.Error("closing mongo", "error", err)
		} else {
			logger.Info("mongo closed")
		}
	}
}
