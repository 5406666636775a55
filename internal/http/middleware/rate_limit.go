package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/Abishake01/0G-Proof-Pass/internal/dto"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/pkg/apperror"
)

const rateLimitPrefix = "proofpass:http"

// NewRateLimitStore выбирает хранилище счётчиков: Redis, если клиент передан, иначе память процесса.
func NewRateLimitStore(client *redis.Client) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit: redis store: %w", err)
	}
	return store, nil
}

// RateLimitMiddleware ограничивает количество запросов с одного IP.
// По умолчанию: 10 запросов в минуту.
func RateLimitMiddleware(store limiter.Store, limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = 1 * time.Minute
	}

	rate := limiter.Rate{
		Period: period,
		Limit:  limit,
	}
	instance := limiter.New(store, rate)

	return func(c *gin.Context) {
		key := c.ClientIP()
		context, err := instance.Get(c, key)
		if err != nil {
			// при недоступном хранилище пропускаем, лимит на email остаётся в силе
			logger.Log.WithError(err).Warn("rate limit: хранилище недоступно")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", context.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", context.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", context.Reset))

		if context.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{Error: apperror.ErrRateLimited.Message})
			return
		}

		c.Next()
	}
}
