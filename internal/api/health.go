package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blogsphere/blogapi/internal/cache"
)

const healthTimeout = 2 * time.Second

// HealthChecker is a dependency that can report whether it is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

type healthHandler struct {
	service  string
	database HealthChecker
	cache    HealthChecker
	started  time.Time
}

func componentStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, cache.ErrCacheDisabled):
		return "disabled"
	default:
		return "down"
	}
}

// check reports the database and cache. Only a database outage makes the
// service unhealthy.
func (h *healthHandler) check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status, code := "OK", http.StatusOK
	checks := gin.H{}

	dbErr := h.database.Health(ctx)
	checks["database"] = componentStatus(dbErr)
	if dbErr != nil {
		status, code = "DEGRADED", http.StatusServiceUnavailable
	}
	if h.cache != nil {
		checks["cache"] = componentStatus(h.cache.Health(ctx))
	}

	c.JSON(code, gin.H{
		"success": code == http.StatusOK,
		"status":  status,
		"service": h.service,
		"checks":  checks,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}
