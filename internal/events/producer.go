// Package events публикует доменные события (выдача и проверка кодов, оценки, отметки).
package events

import (
	"context"
	"time"

	"github.com/Abishake01/0G-Proof-Pass/internal/goroutine"
	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/metrics"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// publishTimeout предел одной асинхронной публикации.
const publishTimeout = 5 * time.Second

// Producer доставляет событие во внешний канал.
type Producer interface {
	Publish(ctx context.Context, event models.DomainEvent) error
	Close() error
}

// Publisher публикует события в фоне: ошибки логируются и не доходят до вызывающего.
type Publisher struct {
	producer Producer
	now      func() time.Time
}

func NewPublisher(producer Producer) *Publisher {
	return &Publisher{producer: producer, now: time.Now}
}

// PublishAsync отправляет событие в отдельной горутине.
// Контекст запроса не используется, отмена запроса не прерывает отправку.
func (p *Publisher) PublishAsync(eventType, subject string, payload interface{}) {
	if p == nil || p.producer == nil {
		return
	}
	event := models.DomainEvent{
		Type:       eventType,
		Subject:    subject,
		Payload:    payload,
		OccurredAt: p.now().UTC(),
	}

	goroutine.SafeGo(func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := p.producer.Publish(ctx, event); err != nil {
			metrics.EventPublishErrors.WithLabelValues(eventType).Inc()
			logger.Log.WithError(err).WithField("event_type", eventType).Warn("events: публикация не удалась")
			return
		}
		metrics.EventsPublished.WithLabelValues(eventType).Inc()
	})
}

// Close закрывает нижележащий producer.
func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
