package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIdempotencyStore(client, "mascotas:test", ttl), mr
}

func TestRedisIdempotencyStore_AddThenContains(t *testing.T) {
	store, mr := setupRedisStore(t, time.Hour)
	ctx := context.Background()

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))

	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Keys are namespaced by the prefix.
	assert.True(t, mr.Exists("mascotas:test:event:evt-1"))
}

func TestRedisIdempotencyStore_EntriesCarryTTL(t *testing.T) {
	store, mr := setupRedisStore(t, 24*time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-2"))

	ttl := mr.TTL("mascotas:test:event:evt-2")
	assert.True(t, ttl > 23*time.Hour, "expected TTL > 23h, got %v", ttl)
	assert.True(t, ttl <= 24*time.Hour, "expected TTL <= 24h, got %v", ttl)
}

func TestRedisIdempotencyStore_ExpiredEntryForgotten(t *testing.T) {
	store, mr := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, "evt-3"))
	mr.FastForward(2 * time.Minute)

	seen, err := store.Contains(ctx, "evt-3")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisIdempotencyStore_PrefixesDoNotCollide(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	a := NewRedisIdempotencyStore(client, "group-a", time.Hour)
	b := NewRedisIdempotencyStore(client, "group-b", time.Hour)
	ctx := context.Background()

	require.NoError(t, a.Add(ctx, "evt-4"))

	seen, err := b.Contains(ctx, "evt-4")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisIdempotencyStore_ContainsSurfacesRedisErrors(t *testing.T) {
	store, mr := setupRedisStore(t, time.Hour)
	mr.Close()

	_, err := store.Contains(context.Background(), "evt-5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency exists check")
}
