package cache

import (
	"context"
	"time"
)

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

// RevokeToken marks a token id as revoked until it would have expired anyway
func (c *Cache) RevokeToken(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return c.Set(ctx, revokedKey(tokenID), 1, ttl)
}

// IsTokenRevoked reports whether a token id was revoked
func (c *Cache) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return c.Exists(ctx, revokedKey(tokenID))
}
