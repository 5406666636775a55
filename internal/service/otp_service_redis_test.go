package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
	"github.com/Abishake01/0G-Proof-Pass/internal/ratelimit"
	"github.com/Abishake01/0G-Proof-Pass/internal/repository"
)

// slowDecisionStore растягивает окно между чтением записи и применением решения,
// как при сетевой задержке до Redis.
type slowDecisionStore struct {
	*repository.RedisOTPRepository
	delay time.Duration
}

func (s *slowDecisionStore) Consume(ctx context.Context, identifier string, decide models.OTPDecider) (bool, error) {
	return s.RedisOTPRepository.Consume(ctx, identifier, func(entry *models.OTPEntry) models.OTPAction {
		time.Sleep(s.delay)
		return decide(entry)
	})
}

// newSharedRedisServices создаёт n сервисов, каждый со своим клиентом к одному Redis.
func newSharedRedisServices(t *testing.T, mr *miniredis.Miniredis, n int, sender *recordingSender) []*OTPService {
	t.Helper()
	clock := newTestClock()
	cfg := testOTPConfig()

	services := make([]*OTPService, 0, n)
	for i := 0; i < n; i++ {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })

		store := &slowDecisionStore{
			RedisOTPRepository: repository.NewRedisOTPRepository(client, cfg.Retention).WithClock(clock.Now),
			delay:              2 * time.Millisecond,
		}
		svc := NewOTPService(store, ratelimit.NewRedisLimiter(client, ratelimit.DefaultPolicy), sender, nil, cfg)
		svc.now = clock.Now
		services = append(services, svc)
	}
	return services
}

func TestOTPService_SharedRedisVerifiesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	sender := newRecordingSender()
	services := newSharedRedisServices(t, mr, 8, sender)
	ctx := context.Background()

	for trial := 0; trial < 5; trial++ {
		require.NoError(t, services[0].RequestCode(ctx, "shared@x.io"))
		code := sender.Code("shared@x.io")

		var wg sync.WaitGroup
		var mu sync.Mutex
		verified := 0
		for _, svc := range services {
			wg.Add(1)
			go func(svc *OTPService) {
				defer wg.Done()
				if _, err := svc.VerifyCode(ctx, "shared@x.io", code); err == nil {
					mu.Lock()
					verified++
					mu.Unlock()
				}
			}(svc)
		}
		wg.Wait()

		assert.Equal(t, 1, verified, "trial %d", trial)
	}
}

func TestOTPService_SharedRedisMismatchKeepsNewerCode(t *testing.T) {
	mr := miniredis.RunT(t)
	sender := newRecordingSender()
	services := newSharedRedisServices(t, mr, 2, sender)
	for _, svc := range services {
		svc.maxAttempts = 3
	}
	services[0].generate = sequenceCodes("111111")
	services[1].generate = sequenceCodes("222222")
	ctx := context.Background()

	require.NoError(t, services[0].RequestCode(ctx, "swap@x.io"))

	// Пока первый инстанс обрабатывает неверный код, второй выпускает новый.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = services[0].VerifyCode(ctx, "swap@x.io", "999999")
	}()
	require.NoError(t, services[1].RequestCode(ctx, "swap@x.io"))
	<-done

	_, err := services[0].VerifyCode(ctx, "swap@x.io", "222222")
	assert.NoError(t, err)
}
