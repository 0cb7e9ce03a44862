package repository

import (
	"context"

	"WaveScan/internal/domain/models"
	domrepo "WaveScan/internal/domain/repository"
	pkgkafka "WaveScan/pkg/kafka"
)

// KafkaEventPublisher implements Publisher for Kafka. Events are keyed by
// symbol so one symbol's history lands on one partition in order.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a Kafka publisher.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) domrepo.Publisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, e *models.ScanEvent) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{
		{Key: []byte(e.Symbol), Value: e, TraceID: e.ScanID},
	})
}

func (p *KafkaEventPublisher) PublishBatch(ctx context.Context, events []*models.ScanEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(events))
	for i, e := range events {
		msgs[i] = pkgkafka.Message{Key: []byte(e.Symbol), Value: e, TraceID: e.ScanID}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
