package models

import "time"

// OTPEntry ожидающий проверки код для идентификатора (email).
// Для одного идентификатора хранится не более одной записи.
type OTPEntry struct {
	Identifier string    `json:"identifier"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
	Attempts   int64     `json:"attempts"`
}

// Expired истекает строго после ExpiresAt: при now == ExpiresAt код ещё действует.
func (e *OTPEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// VerifyResult итог успешной проверки кода.
type VerifyResult struct {
	Identifier string
	VerifiedAt time.Time
}

// OTPAction решение по найденной записи при атомарной проверке кода.
type OTPAction int

const (
	// OTPKeep запись остаётся без изменений.
	OTPKeep OTPAction = iota
	// OTPRemove запись удаляется.
	OTPRemove
	// OTPUpdate запись сохраняется с изменёнными полями.
	OTPUpdate
)

// OTPDecider вызывается с копией записи и может изменить её перед OTPUpdate.
// Хранилище может вызвать его повторно, если запись поменялась конкурентно.
type OTPDecider func(entry *OTPEntry) OTPAction
