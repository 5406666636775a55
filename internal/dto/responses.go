package dto

import (
	"time"

	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// OTPResponse ответ send-otp и verify-otp.
type OTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckInResponse результат отметки.
type CheckInResponse struct {
	*models.CheckIn
	Created bool `json:"created"`
}

// HealthResponse представляет ответ health check.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}
