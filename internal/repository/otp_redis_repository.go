package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

const (
	otpKeyPrefix = "otp:code:"

	// consumeRetries сколько раз Consume перечитывает запись, изменённую другим инстансом.
	consumeRetries = 16
)

// ErrConsumeContention запись менялась конкурентно дольше, чем позволяет consumeRetries.
var ErrConsumeContention = errors.New("otp repository: запись изменяется конкурентно")

// swapScript применяет решение, только если значение не изменилось с момента чтения.
//
// KEYS[1] ключ кода
// ARGV[1] прочитанное значение, ARGV[2] новое значение ("" = удалить), ARGV[3] TTL (ms)
var swapScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current ~= ARGV[1] then
	return 0
end
if ARGV[2] == '' then
	redis.call('DEL', KEYS[1])
else
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
end
return 1
`)

// RedisOTPRepository общее для всех инстансов хранилище кодов.
// TTL ключа = время до истечения + retention.
type RedisOTPRepository struct {
	client    redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

func NewRedisOTPRepository(client redis.UniversalClient, retention time.Duration) *RedisOTPRepository {
	return &RedisOTPRepository{
		client:    client,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock подменяет часы (для тестов).
func (r *RedisOTPRepository) WithClock(now func() time.Time) *RedisOTPRepository {
	r.now = now
	return r
}

func (r *RedisOTPRepository) Put(ctx context.Context, entry *models.OTPEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("otp repository: marshal: %w", err)
	}

	if err := r.client.Set(ctx, otpKeyPrefix+entry.Identifier, data, r.ttl(entry)).Err(); err != nil {
		return fmt.Errorf("otp repository: set: %w", err)
	}
	return nil
}

func (r *RedisOTPRepository) ttl(entry *models.OTPEntry) time.Duration {
	ttl := entry.ExpiresAt.Sub(r.now()) + r.retention
	if ttl <= 0 {
		ttl = r.retention
	}
	return ttl
}

// Consume читает запись, принимает решение и применяет его compare-and-swap скриптом.
// Если между чтением и записью значение поменял другой инстанс, решение принимается заново.
func (r *RedisOTPRepository) Consume(ctx context.Context, identifier string, decide models.OTPDecider) (bool, error) {
	key := otpKeyPrefix + identifier

	for i := 0; i < consumeRetries; i++ {
		raw, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("otp repository: get: %w", err)
		}

		var entry models.OTPEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return false, fmt.Errorf("otp repository: unmarshal: %w", err)
		}

		var next string
		var ttlMs int64
		switch decide(&entry) {
		case models.OTPKeep:
			return true, nil
		case models.OTPUpdate:
			data, err := json.Marshal(&entry)
			if err != nil {
				return false, fmt.Errorf("otp repository: marshal: %w", err)
			}
			next = string(data)
			ttlMs = max(r.ttl(&entry).Milliseconds(), 1)
		}

		swapped, err := swapScript.Run(ctx, r.client, []string{key}, raw, next, ttlMs).Int64()
		if err != nil {
			return false, fmt.Errorf("otp repository: swap: %w", err)
		}
		if swapped == 1 {
			return true, nil
		}
	}
	return false, ErrConsumeContention
}

func (r *RedisOTPRepository) Get(ctx context.Context, identifier string) (*models.OTPEntry, bool, error) {
	data, err := r.client.Get(ctx, otpKeyPrefix+identifier).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("otp repository: get: %w", err)
	}

	var entry models.OTPEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("otp repository: unmarshal: %w", err)
	}
	return &entry, true, nil
}

func (r *RedisOTPRepository) Remove(ctx context.Context, identifier string) error {
	if err := r.client.Del(ctx, otpKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("otp repository: del: %w", err)
	}
	return nil
}
