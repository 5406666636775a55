package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// ContributionRepository хранит оценки вкладов в PostgreSQL.
type ContributionRepository struct {
	db *sqlx.DB
}

func NewContributionRepository(db *sqlx.DB) *ContributionRepository {
	return &ContributionRepository{db: db}
}

func (r *ContributionRepository) Create(ctx context.Context, c *models.Contribution) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO contributions (
			id, event_id, wallet_address, feedback_hash, photo_count,
			photo_score, feedback_score, overall_score, tier, reasoning,
			is_spam, is_duplicate, created_at
		) VALUES (
			:id, :event_id, :wallet_address, :feedback_hash, :photo_count,
			:photo_score, :feedback_score, :overall_score, :tier, :reasoning,
			:is_spam, :is_duplicate, :created_at
		)
	`, c)
	if err != nil {
		return fmt.Errorf("contribution repository: insert: %w", err)
	}
	return nil
}

// ExistsFingerprint проверяет, присылал ли кошелёк тот же отзыв на то же событие.
func (r *ContributionRepository) ExistsFingerprint(ctx context.Context, wallet string, eventID int64, feedbackHash string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM contributions
			WHERE wallet_address = $1 AND event_id = $2 AND feedback_hash = $3
		)
	`, wallet, eventID, feedbackHash)
	if err != nil {
		return false, fmt.Errorf("contribution repository: exists: %w", err)
	}
	return exists, nil
}

func (r *ContributionRepository) ListByWallet(ctx context.Context, wallet string, limit int) ([]models.Contribution, error) {
	items := make([]models.Contribution, 0)
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM contributions
		WHERE wallet_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("contribution repository: list: %w", err)
	}
	return items, nil
}
