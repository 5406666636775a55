package models

import (
	"time"

	"github.com/google/uuid"
)

// CheckIn подтверждённая отметка кошелька на событии.
type CheckIn struct {
	ID            uuid.UUID `db:"id" json:"id"`
	EventID       int64     `db:"event_id" json:"eventId"`
	WalletAddress string    `db:"wallet_address" json:"walletAddress"`
	Email         string    `db:"email" json:"email"`
	Signature     string    `db:"signature" json:"signature"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// CheckInRequest подписанная заявка на отметку.
// Email адрес в том виде, в каком он вошёл в подписанное сообщение. Пустой = адрес из токена.
type CheckInRequest struct {
	EventID       int64
	WalletAddress string
	Email         string
	Signature     string
}
