package warmup

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/warmup-engine/internal/domain"
)

func newTestLimiter(t *testing.T) *SendLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSendLimiter(client)
}

func TestSendLimiterReserve(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	ok, err := l.Reserve(ctx, testServer, 40, 50)
	require.NoError(t, err)
	assert.True(t, ok)

	// 10 left; exactly 10 fits.
	ok, err = l.Reserve(ctx, testServer, 10, 50)
	require.NoError(t, err)
	assert.True(t, ok)

	// Budget spent.
	ok, err = l.Reserve(ctx, testServer, 1, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := l.SentToday(ctx, testServer)
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}

func TestSendLimiterReserveRefusesWholeBatch(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	ok, err := l.Reserve(ctx, testServer, 45, 50)
	require.NoError(t, err)
	require.True(t, ok)

	// 6 does not fit in the 5 remaining; the counter must not move.
	ok, err = l.Reserve(ctx, testServer, 6, 50)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := l.SentToday(ctx, testServer)
	require.NoError(t, err)
	assert.Equal(t, 45, n)
}

func TestSendLimiterUnlimited(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	ok, err := l.Reserve(ctx, testServer, 1_000_000, domain.UnlimitedDailyLimit)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Reserve(ctx, testServer, 1_000_000, domain.UnlimitedDailyLimit)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSendLimiterAdd(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, testServer, 7))
	require.NoError(t, l.Add(ctx, testServer, 3))

	n, err := l.SentToday(ctx, testServer)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestSendLimiterCountersAreScopedPerServer(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, "server-a", 5))

	n, err := l.SentToday(ctx, "server-b")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
