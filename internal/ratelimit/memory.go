package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
)

// MemoryLimiter хранит отметки в памяти процесса. Подходит только для одного инстанса.
type MemoryLimiter struct {
	policy Policy

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryLimiter(policy Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy: policy,
		hits:   make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Admit(_ context.Context, identifier string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.prune(l.hits[identifier], now)
	if int64(len(kept)) >= l.policy.Max {
		l.hits[identifier] = kept
		return false, nil
	}

	l.hits[identifier] = append(kept, now)
	return true, nil
}

// prune оставляет только отметки внутри окна. Переиспользует массив исходного слайса.
func (l *MemoryLimiter) prune(stamps []time.Time, now time.Time) []time.Time {
	kept := stamps[:0]
	for _, t := range stamps {
		if l.policy.inWindow(t, now) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Sweep удаляет идентификаторы, у которых не осталось отметок в окне.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, stamps := range l.hits {
		kept := l.prune(stamps, now)
		if len(kept) == 0 {
			delete(l.hits, id)
			removed++
			continue
		}
		l.hits[id] = kept
	}
	return removed
}

// Run периодически чистит устаревшие идентификаторы до отмены контекста.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := l.Sweep(now); n > 0 {
				logger.Log.WithField("removed", n).Debug("ratelimit: очищены устаревшие окна")
			}
		}
	}
}

// Len количество отслеживаемых идентификаторов.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}
