// Package app wires the stores, clients and services shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/api"
	"github.com/blogsphere/blogapi/internal/auth"
	"github.com/blogsphere/blogapi/internal/cache"
	"github.com/blogsphere/blogapi/internal/db"
	"github.com/blogsphere/blogapi/internal/events"
	"github.com/blogsphere/blogapi/internal/mail"
	"github.com/blogsphere/blogapi/internal/service"
	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
	"github.com/blogsphere/blogapi/pkg/telemetry"
)

// App holds every long lived component of the blog
type App struct {
	Config *config.Config
	DB     *db.DB
	Cache  *cache.Cache
	Events *events.KafkaPublisher

	Posts    *service.PostService
	Comments *service.CommentService
	Taxonomy *service.TaxonomyService
	Auth     *service.AuthService
	Users    *service.UserService
}

// New connects to the database and cache and builds the services. The
// schema is migrated first when cfg.Database.AutoMigrate is set. Telemetry
// must already be initialized so the counters bind to its meter provider.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.WithComponent("app")

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		// Redis is optional; caching and the logout denylist switch off
		logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		redisCache = nil
	}

	mailer, err := mail.New(&cfg.Mail, cfg.Server.ClientURL)
	if err != nil {
		_ = database.Close()
		_ = redisCache.Close()
		return nil, fmt.Errorf("build mailer: %w", err)
	}

	publisher := events.NewKafkaPublisher(&cfg.Kafka)
	metrics := telemetry.NewMetrics()
	store := database.Store()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL)
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)

	return &App{
		Config:   cfg,
		DB:       database,
		Cache:    redisCache,
		Events:   publisher,
		Posts:    service.NewPostService(store, redisCache, publisher, metrics),
		Comments: service.NewCommentService(store, mailer, metrics),
		Taxonomy: service.NewTaxonomyService(store, redisCache, cfg.Redis.TTL),
		Auth:     service.NewAuthService(store, tokens, hasher, mailer, redisCache, metrics, &cfg.Auth),
		Users:    service.NewUserService(store),
	}, nil
}

// Services exposes the use cases to the HTTP layer
func (a *App) Services() api.Services {
	return api.Services{
		Posts:    a.Posts,
		Comments: a.Comments,
		Taxonomy: a.Taxonomy,
		Auth:     a.Auth,
		Users:    a.Users,
	}
}

// Close flushes pending events and closes the connections
func (a *App) Close() {
	logger := logging.WithComponent("app")
	if err := a.Events.Close(); err != nil {
		logger.Error("Error closing event producer", zap.Error(err))
	}
	if err := a.Cache.Close(); err != nil {
		logger.Error("Error closing cache", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		logger.Error("Error closing database", zap.Error(err))
	}
}
