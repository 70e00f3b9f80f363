package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantCache_SetAndGet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewGrantCache(client)
	ctx := context.Background()

	key := "quest-engine:quest-42"
	value := []byte(`{"notes":[{"token_id":7}]}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
	assert.True(t, s.Exists("grant:"+key))
}

func TestGrantCache_TTLExpiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewGrantCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "quest-engine:q1", []byte(`{}`), time.Second))
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "quest-engine:q1")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestGrantCache_ServerDown(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewGrantCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "redis grant cache get")
	assert.ErrorContains(t, cache.Set(context.Background(), "k", []byte("v"), time.Minute), "redis grant cache set")
}
