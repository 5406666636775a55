package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// MemoryContributionRepository используется без DATABASE_URL. Данные теряются при рестарте.
type MemoryContributionRepository struct {
	mu    sync.RWMutex
	items []models.Contribution
}

func NewMemoryContributionRepository() *MemoryContributionRepository {
	return &MemoryContributionRepository{}
}

func (r *MemoryContributionRepository) Create(_ context.Context, c *models.Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, *c)
	return nil
}

func (r *MemoryContributionRepository) ExistsFingerprint(_ context.Context, wallet string, eventID int64, feedbackHash string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.items {
		if c.WalletAddress == wallet && c.EventID == eventID && c.FeedbackHash == feedbackHash {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryContributionRepository) ListByWallet(_ context.Context, wallet string, limit int) ([]models.Contribution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Contribution, 0)
	for _, c := range r.items {
		if c.WalletAddress == wallet {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type checkInKey struct {
	eventID int64
	wallet  string
}

// MemoryCheckInRepository используется без DATABASE_URL.
type MemoryCheckInRepository struct {
	mu    sync.RWMutex
	items map[checkInKey]models.CheckIn
}

func NewMemoryCheckInRepository() *MemoryCheckInRepository {
	return &MemoryCheckInRepository{items: make(map[checkInKey]models.CheckIn)}
}

func (r *MemoryCheckInRepository) CreateOrGet(_ context.Context, c *models.CheckIn) (*models.CheckIn, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := checkInKey{eventID: c.EventID, wallet: c.WalletAddress}
	if existing, ok := r.items[key]; ok {
		return &existing, false, nil
	}
	r.items[key] = *c
	stored := *c
	return &stored, true, nil
}

func (r *MemoryCheckInRepository) ListByWallet(_ context.Context, wallet string) ([]models.CheckIn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.CheckIn, 0)
	for key, c := range r.items {
		if key.wallet == wallet {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
