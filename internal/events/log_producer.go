package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Abishake01/0G-Proof-Pass/internal/logger"
	"github.com/Abishake01/0G-Proof-Pass/internal/models"
)

// LogProducer пишет события в лог. Используется, когда Kafka не настроена.
type LogProducer struct{}

func NewLogProducer() *LogProducer {
	return &LogProducer{}
}

func (LogProducer) Publish(_ context.Context, event models.DomainEvent) error {
	logger.Log.WithFields(logrus.Fields{
		"event_type":  event.Type,
		"subject":     event.Subject,
		"occurred_at": event.OccurredAt,
	}).Info("domain event")
	return nil
}

func (LogProducer) Close() error {
	return nil
}
