package models

import "time"

// Типы доменных событий.
const (
	EventOTPRequested         = "otp.requested"
	EventOTPVerified          = "otp.verified"
	EventContributionAnalyzed = "contribution.analyzed"
	EventCheckInAttested      = "checkin.attested"
)

// DomainEvent событие для внешних подписчиков.
type DomainEvent struct {
	Type       string      `json:"type"`
	Subject    string      `json:"subject"`
	Payload    interface{} `json:"payload,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
}
