package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/blogsphere/blogapi/internal/cache"
)

const (
	categoriesCacheKey = "taxonomy:categories"
	tagsCacheKey       = "taxonomy:tags"
)

// Cache is the read-through cache used for taxonomy listings. Failures are
// never fatal to a request.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenDenylist records revoked access tokens
type TokenDenylist interface {
	RevokeToken(ctx context.Context, tokenID string, until time.Time) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

func logCacheError(logger *zap.Logger, op string, err error) {
	if err == nil || errors.Is(err, cache.ErrCacheDisabled) {
		return
	}
	logger.Warn("Cache operation failed", zap.String("op", op), zap.Error(err))
}

func invalidateTaxonomy(ctx context.Context, c Cache, logger *zap.Logger) {
	if c == nil {
		return
	}
	logCacheError(logger, "invalidate taxonomy", c.Delete(ctx, categoriesCacheKey, tagsCacheKey))
}
