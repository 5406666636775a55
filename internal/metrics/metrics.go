// Package metrics объявляет Prometheus метрики сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OTPRequests исходы запросов кода: sent, invalid, rate_limited, dispatch_failed, error.
	OTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofpass_otp_requests_total",
			Help: "Total number of OTP requests by outcome",
		},
		[]string{"outcome"},
	)

	// OTPVerifications исходы проверок: verified, not_found, expired, mismatch, too_many_attempts, error.
	OTPVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofpass_otp_verifications_total",
			Help: "Total number of OTP verifications by outcome",
		},
		[]string{"outcome"},
	)

	OTPDispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proofpass_otp_dispatch_duration_seconds",
			Help:    "Duration of OTP email dispatch",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 15},
		},
	)

	ContributionsAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofpass_contributions_analyzed_total",
			Help: "Total number of analyzed contributions by tier and scorer",
		},
		[]string{"tier", "scorer"},
	)

	CheckIns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proofpass_checkins_total",
			Help: "Total number of attested check-ins",
		},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofpass_events_published_total",
			Help: "Total number of published domain events",
		},
		[]string{"type"},
	)

	EventPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofpass_event_publish_errors_total",
			Help: "Total number of domain event publish errors",
		},
		[]string{"type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proofpass_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proofpass_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
