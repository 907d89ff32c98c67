package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogsphere/blogapi/pkg/config"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := New(&config.RedisConfig{URL: "redis://" + mr.Addr(), Enabled: true, TTL: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestHashKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{name: "single part", parts: []string{"test"}},
		{name: "multiple parts", parts: []string{"test", "key", "with", "many", "parts"}},
		{name: "empty parts", parts: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed1 := HashKey(tt.parts...)
			hashed2 := HashKey(tt.parts...)

			if hashed1 != hashed2 {
				t.Errorf("HashKey() should be consistent, got %s and %s", hashed1, hashed2)
			}
			if len(hashed1) != 32 {
				t.Errorf("HashKey() should return 32 character hex string, got length %d", len(hashed1))
			}
		})
	}

	if HashKey("a", "b") == HashKey("ab") {
		t.Error("HashKey() should separate parts")
	}
}

func TestCache_NamespaceKey(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{name: "simple key", key: "test", expected: "blog:test"},
		{name: "key with colon", key: "test:key", expected: "blog:test:key"},
		{name: "empty key", key: "", expected: "blog:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := cache.namespaceKey(tt.key); result != tt.expected {
				t.Errorf("namespaceKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCache_Disabled(t *testing.T) {
	c, err := New(&config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, c)

	ctx := context.Background()
	_, err = c.Get(ctx, "k")
	assert.True(t, errors.Is(err, ErrCacheDisabled))
	assert.ErrorIs(t, c.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute), ErrCacheDisabled)
	assert.ErrorIs(t, c.Delete(ctx, "k"), ErrCacheDisabled)
	assert.NoError(t, c.Close())

	revoked, err := c.IsTokenRevoked(ctx, "jti")
	assert.False(t, revoked)
	assert.ErrorIs(t, err, ErrCacheDisabled)
}

func TestCache_JSONRoundTripAndMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	type item struct {
		Name  string
		Count int
	}

	var got item
	found, err := c.GetJSON(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.SetJSON(ctx, "taxonomy:categories", item{Name: "Tech", Count: 2}, time.Minute))
	assert.True(t, mr.Exists("blog:taxonomy:categories"), "keys are namespaced")

	found, err = c.GetJSON(ctx, "taxonomy:categories", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, item{Name: "Tech", Count: 2}, got)

	mr.FastForward(2 * time.Minute)
	found, err = c.GetJSON(ctx, "taxonomy:categories", &got)
	require.NoError(t, err)
	assert.False(t, found, "entry expires with its ttl")
}

func TestCache_DeleteAndExists(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "2", time.Minute))

	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "a", "b"))
	ok, err = c.Exists(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_TokenDenylist(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.RevokeToken(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err := c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = c.IsTokenRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, c.RevokeToken(ctx, "expired", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists("blog:revoked:expired"), "already expired tokens are not stored")

	mr.FastForward(2 * time.Hour)
	revoked, err = c.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
