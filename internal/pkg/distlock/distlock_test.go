package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestRedisLockMutualExclusion(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "jobs", time.Minute)
	b := NewRedisLock(client, "jobs", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, a.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseIsOwnershipChecked(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "jobs", time.Minute)
	b := NewRedisLock(client, "jobs", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// b never acquired; its release must not free a's lock.
	require.NoError(t, b.Release(ctx))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLockExpires(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "jobs", time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// A crashed holder's lock frees itself after the TTL.
	mr.FastForward(2 * time.Second)

	b := NewRedisLock(client, "jobs", time.Second)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockExtend(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	a := NewRedisLock(client, "jobs", time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, a.Extend(ctx, time.Minute))
	mr.FastForward(2 * time.Second)

	b := NewRedisLock(client, "jobs", time.Second)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "extended lock is still held")
}

func TestNewPicksBackend(t *testing.T) {
	client, _ := newTestClient(t)

	_, isRedis := New(client, nil, "jobs", time.Minute).(*RedisLock)
	assert.True(t, isRedis)

	_, isPG := New(nil, nil, "jobs", time.Minute).(*PGAdvisoryLock)
	assert.True(t, isPG)
}
