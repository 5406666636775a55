package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:ratelimit:"

// admitScript выполняет prune-count-add атомарно: отметки хранятся в sorted set
// со score = время в миллисекундах.
//
// KEYS[1] ключ идентификатора
// ARGV[1] now (ms), ARGV[2] граница окна (ms, включительно отбрасывается),
// ARGV[3] max, ARGV[4] member, ARGV[5] окно (ms)
var admitScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// RedisLimiter общий для всех инстансов лимитер на sorted set.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
}

func NewRedisLimiter(client redis.UniversalClient, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy}
}

func (l *RedisLimiter) Admit(ctx context.Context, identifier string, now time.Time) (bool, error) {
	nowMs := now.UnixMilli()
	cutoff := nowMs - l.policy.Window.Milliseconds()

	res, err := admitScript.Run(ctx, l.client, []string{redisKeyPrefix + identifier},
		strconv.FormatInt(nowMs, 10),
		strconv.FormatInt(cutoff, 10),
		strconv.FormatInt(l.policy.Max, 10),
		uuid.NewString(),
		strconv.FormatInt(l.policy.Window.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis admit: %w", err)
	}
	return res == 1, nil
}
