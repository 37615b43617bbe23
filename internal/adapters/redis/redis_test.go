package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisad "review_hub/internal/adapters/redis"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

type payload struct {
	Name  string
	Count int
}

func TestCache_SetGetDel(t *testing.T) {
	mr, c := newClient(t)
	cache := redisad.NewFromClient(c)
	ctx := context.Background()

	var out payload
	ok, err := cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, ok, "empty cache must miss")

	require.NoError(t, cache.Set(ctx, "k", payload{Name: "a", Count: 2}, 60))
	ok, err = cache.Get(ctx, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payload{Name: "a", Count: 2}, out)

	mr.FastForward(61 * time.Second)
	ok, _ = cache.Get(ctx, "k", &out)
	assert.False(t, ok, "entry must expire after its ttl")

	require.NoError(t, cache.Set(ctx, "k2", "v", 60))
	require.NoError(t, cache.Del(ctx, "k2"))
	assert.False(t, mr.Exists("k2"))
}

func TestLocker_ExclusiveUntilUnlock(t *testing.T) {
	_, c := newClient(t)
	l := redisad.NewLocker(c)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "integration-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := l.TryLock(ctx, "integration-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok2, "second holder must be refused")

	_, ok3, err := l.TryLock(ctx, "integration-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok3, "different keys do not contend")

	unlock()
	_, ok4, err := l.TryLock(ctx, "integration-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok4, "lock is free after unlock")
}

func TestLocker_ExpiredLockIsNotReleasedByOldOwner(t *testing.T) {
	mr, c := newClient(t)
	l := redisad.NewLocker(c)
	ctx := context.Background()

	unlockOld, ok, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = l.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	unlockOld()
	assert.True(t, mr.Exists("lock:k"), "stale owner must not delete the new holder's lock")
}
