package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// CheckInRepository хранит отметки на событиях в PostgreSQL.
type CheckInRepository struct {
	db *sqlx.DB
}

func NewCheckInRepository(db *sqlx.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// CreateOrGet сохраняет отметку. Если кошелёк уже отмечен на событии, возвращает
// существующую запись и created=false.
func (r *CheckInRepository) CreateOrGet(ctx context.Context, c *models.CheckIn) (*models.CheckIn, bool, error) {
	var stored models.CheckIn
	err := r.db.GetContext(ctx, &stored, `
		WITH inserted AS (
			INSERT INTO checkins (id, event_id, wallet_address, email, signature, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (event_id, wallet_address) DO NOTHING
			RETURNING *
		)
		SELECT * FROM inserted
		UNION ALL
		SELECT * FROM checkins WHERE event_id = $2 AND wallet_address = $3
		LIMIT 1
	`, c.ID, c.EventID, c.WalletAddress, c.Email, c.Signature, c.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("checkin repository: upsert: %w", err)
	}
	return &stored, stored.ID == c.ID, nil
}

func (r *CheckInRepository) ListByWallet(ctx context.Context, wallet string) ([]models.CheckIn, error) {
	items := make([]models.CheckIn, 0)
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM checkins WHERE wallet_address = $1 ORDER BY created_at DESC
	`, wallet)
	if err != nil {
		return nil, fmt.Errorf("checkin repository: list: %w", err)
	}
	return items, nil
}
