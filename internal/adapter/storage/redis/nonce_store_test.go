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

func TestNonceStore_CheckAndSet(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "op-key", "nonce-abc", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "new nonce should return true")

	ok, err = store.CheckAndSet(ctx, "op-key", "nonce-abc", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "replayed nonce should return false")

	ok, err = store.CheckAndSet(ctx, "granter-key", "nonce-abc", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "nonces are scoped per access key")
}

func TestNonceStore_ExpiresAfterTTL(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewNonceStore(client)
	ctx := context.Background()

	ok, err := store.CheckAndSet(ctx, "op-key", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	s.FastForward(61 * time.Second)

	ok, err = store.CheckAndSet(ctx, "op-key", "n1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
