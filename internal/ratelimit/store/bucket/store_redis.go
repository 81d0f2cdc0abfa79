package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"stagevote/internal/ratelimit"
)

// allowScript implements check-then-record atomically on the Redis side.
// Members are scored by a microsecond timestamp in a sorted set per key;
// expired members are pruned, the live count compared against the limit, and
// the new action added only when capacity remains. Because the whole script
// executes atomically, concurrent bursts across processes can neither
// overcount nor undercount.
var allowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    return {0, count, tonumber(oldest[2])}
end
redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, math.ceil(window / 1000) + 1000)
return {1, count + 1, now}
`)

// RedisStore is the distributed sliding-window limiter. All engine replicas
// share its counters.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	// Members must be unique per action or concurrent writes with the same
	// timestamp would collapse into one sorted-set entry and undercount.
	now := time.Now()
	member := uuid.NewString()

	raw, err := allowScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMicro(), window.Microseconds(), limit, member,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	reply, ok := raw.([]any)
	if !ok || len(reply) != 3 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", raw)
	}
	allowed := reply[0].(int64) == 1
	count := int(reply[1].(int64))
	oldestMicro := reply[2].(int64)

	result := &ratelimit.Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   time.UnixMicro(oldestMicro).Add(window),
	}
	return result, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
