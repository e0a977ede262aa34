package warmup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SendLimiter is a shared daily send counter in Redis. It arbitrates the
// check-then-increment race across send workers on different hosts: the
// Lua script checks the day's budget and increments in one atomic step,
// so no two workers can both pass the check and overshoot the limit.
//
// Keys are bucketed by UTC date and expire after 48 hours, so counters
// reset themselves at the day boundary.
type SendLimiter struct {
	redis   *redis.Client
	reserve *redis.Script
}

// Lua script for the atomic reserve. A negative limit means no cap.
const reserveLuaScript = `
local key = KEYS[1]
local increment = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", key) or "0")

if limit >= 0 and current + increment > limit then
    return {0, current}
end

local newVal = redis.call("INCRBY", key, increment)
if newVal == increment then
    redis.call("EXPIRE", key, ttl)
end

return {1, newVal}
`

// NewSendLimiter creates a limiter with a pre-compiled Lua script.
func NewSendLimiter(client *redis.Client) *SendLimiter {
	return &SendLimiter{
		redis:   client,
		reserve: redis.NewScript(reserveLuaScript),
	}
}

// NewSendLimiterFromURL connects to Redis and verifies the connection.
func NewSendLimiterFromURL(redisURL string) (*SendLimiter, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewSendLimiter(client), nil
}

func (l *SendLimiter) key(serverID string) string {
	return fmt.Sprintf("warmup:sent:%s:%s", serverID, time.Now().UTC().Format("2006-01-02"))
}

const counterTTLSeconds = 172800 // 48 hours

// Reserve atomically claims n sends from today's budget. Returns false
// when the budget cannot cover n. A negative limit always succeeds.
func (l *SendLimiter) Reserve(ctx context.Context, serverID string, n, limit int) (bool, error) {
	result, err := l.reserve.Run(ctx, l.redis,
		[]string{l.key(serverID)},
		n, limit, counterTTLSeconds,
	).Slice()
	if err != nil {
		return false, fmt.Errorf("reserve script: %w", err)
	}
	return result[0].(int64) == 1, nil
}

// Add increments today's counter without a limit check, mirroring sends
// recorded through the advisory CanSendToTier/RecordSent path.
func (l *SendLimiter) Add(ctx context.Context, serverID string, n int) error {
	key := l.key(serverID)
	pipe := l.redis.Pipeline()
	pipe.IncrBy(ctx, key, int64(n))
	pipe.Expire(ctx, key, counterTTLSeconds*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment counter: %w", err)
	}
	return nil
}

// SentToday returns today's counter value.
func (l *SendLimiter) SentToday(ctx context.Context, serverID string) (int, error) {
	n, err := l.redis.Get(ctx, l.key(serverID)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	return n, nil
}

// Close closes the Redis connection.
func (l *SendLimiter) Close() error {
	return l.redis.Close()
}
