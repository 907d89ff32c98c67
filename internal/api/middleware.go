package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/auth"
	"github.com/blogsphere/blogapi/internal/service"
	"github.com/blogsphere/blogapi/pkg/logging"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
	actorKey        = "actor"
	claimsKey       = "claims"
)

// Authenticator resolves a bearer token to the calling user
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (service.Actor, *auth.Claims, error)
}

// RequestID propagates or assigns the request id and puts a request scoped
// logger into the request context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		logger := logging.WithContext(zap.String("request_id", id))
		c.Request = c.Request.WithContext(logging.IntoContext(c.Request.Context(), logger))
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestLogger logs one line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		logger := logging.FromContext(c.Request.Context())
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request", fields...)
		default:
			logger.Info("Request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 with the error envelope
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.FromContext(c.Request.Context()).Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": internalMessage})
	})
}

// CORS allows the configured client origin to call the API with credentials.
// Other origins are refused with 403. An empty or "*" origin opens the API to
// every origin without credentials.
func CORS(origin string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if origin == "" || origin == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{strings.TrimSuffix(origin, "/")}
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// OptionalAuth identifies the caller when a valid token is presented and
// otherwise lets the request through as anonymous
func OptionalAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if actor, claims, err := a.Authenticate(c.Request.Context(), raw); err == nil {
				c.Set(actorKey, actor)
				c.Set(claimsKey, claims)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a valid token
func RequireAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, NewError(http.StatusUnauthorized, "No token, authorization denied"))
			return
		}
		actor, claims, err := a.Authenticate(c.Request.Context(), raw)
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(actorKey, actor)
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// currentActor is the caller set by the auth middleware, anonymous if none
func currentActor(c *gin.Context) service.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(service.Actor); ok {
			return actor
		}
	}
	return service.Anonymous
}

func currentClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		claims, _ := v.(*auth.Claims)
		return claims
	}
	return nil
}
