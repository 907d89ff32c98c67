package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/pkg/config"
	"github.com/blogsphere/blogapi/pkg/logging"
)

// Services are the use cases the API exposes
type Services struct {
	Posts    PostService
	Comments CommentService
	Taxonomy TaxonomyService
	Auth     AuthService
	Users    UserService
}

// Options configures the router
type Options struct {
	ServiceName  string
	APIPrefix    string
	ClientOrigin string
	RateLimit    config.RateLimitConfig
	Database     HealthChecker
	Cache        HealthChecker
	// Metrics serves /metrics when set
	Metrics http.Handler
}

// Router sets up API routes
type Router struct {
	services Services
	opts     Options
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(services Services, opts Options) *Router {
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "blogapi"
	}
	return &Router{
		services: services,
		opts:     opts,
		logger:   logging.WithComponent("api-router"),
	}
}

// limiter returns the rate limit middleware, or a pass-through when rate
// limiting is off
func (r *Router) limiter(ctx context.Context, limit int, window time.Duration, message string) gin.HandlerFunc {
	if !r.opts.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return NewRateLimiter(ctx, limit, window, message).Middleware()
}

// SetupRoutes builds the engine. Limiter bookkeeping stops when ctx is done.
func (r *Router) SetupRoutes(ctx context.Context) *gin.Engine {
	useJSONFieldNames()

	engine := gin.New()
	engine.Use(
		otelgin.Middleware(r.opts.ServiceName),
		RequestID(),
		Recovery(),
		RequestLogger(),
		CORS(r.opts.ClientOrigin),
		ErrorHandler(),
	)

	health := &healthHandler{
		service:  r.opts.ServiceName,
		database: r.opts.Database,
		cache:    r.opts.Cache,
		started:  time.Now(),
	}
	engine.GET("/health", health.check)
	engine.GET("/.well-known/healthcheck.json", health.check)
	if r.opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(r.opts.Metrics))
	}

	rl := r.opts.RateLimit
	api := engine.Group(r.opts.APIPrefix)
	api.Use(r.limiter(ctx, rl.GeneralLimit, rl.GeneralWindow, "Too many requests, please try again later"))

	optional := OptionalAuth(r.services.Auth)
	required := RequireAuth(r.services.Auth)
	createLimit := r.limiter(ctx, rl.CreateLimit, rl.CreateWindow, "Too many posts created, please try again later")
	authLimit := r.limiter(ctx, rl.AuthLimit, rl.AuthWindow, "Too many authentication attempts, please try again later")

	NewPostHandler(r.services.Posts).RegisterRoutes(api, optional, required, createLimit)
	NewCommentHandler(r.services.Comments).RegisterRoutes(api, optional, required)
	NewTaxonomyHandler(r.services.Taxonomy).RegisterRoutes(api, required)
	NewAuthHandler(r.services.Auth).RegisterRoutes(api, required, authLimit)
	NewUserHandler(r.services.Users).RegisterRoutes(api)

	engine.NoRoute(func(c *gin.Context) {
		abort(c, NewError(http.StatusNotFound, "Route "+c.Request.URL.Path+" not found"))
	})

	r.logger.Info("Routes registered", zap.Int("routes", len(engine.Routes())))
	return engine
}
