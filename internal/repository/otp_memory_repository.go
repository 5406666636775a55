package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// MemoryOTPRepository хранит коды в памяти процесса.
// Записи после истечения держатся ещё retention, чтобы проверка отвечала "expired", а не "not found".
type MemoryOTPRepository struct {
	retention time.Duration

	mu      sync.Mutex
	entries map[string]models.OTPEntry
}

func NewMemoryOTPRepository(retention time.Duration) *MemoryOTPRepository {
	return &MemoryOTPRepository{
		retention: retention,
		entries:   make(map[string]models.OTPEntry),
	}
}

func (r *MemoryOTPRepository) Put(_ context.Context, entry *models.OTPEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Identifier] = *entry
	return nil
}

func (r *MemoryOTPRepository) Get(_ context.Context, identifier string) (*models.OTPEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identifier]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

func (r *MemoryOTPRepository) Remove(_ context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, identifier)
	return nil
}

// Consume выполняет get-decide-apply под одной блокировкой.
func (r *MemoryOTPRepository) Consume(_ context.Context, identifier string, decide models.OTPDecider) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identifier]
	if !ok {
		return false, nil
	}

	switch decide(&entry) {
	case models.OTPRemove:
		delete(r.entries, identifier)
	case models.OTPUpdate:
		r.entries[identifier] = entry
	}
	return true, nil
}

// Sweep удаляет записи, истёкшие более retention назад.
func (r *MemoryOTPRepository) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, entry := range r.entries {
		if now.After(entry.ExpiresAt.Add(r.retention)) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Run периодически вызывает Sweep до отмены контекста.
func (r *MemoryOTPRepository) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				logger.Log.WithField("removed", n).Debug("otp repository: очищены устаревшие коды")
			}
		}
	}
}
