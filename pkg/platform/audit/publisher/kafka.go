package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"shopcore/internal/platform/kafka/producer"
	audit "shopcore/pkg/platform/audit"
)

// MessageProducer is satisfied by *producer.Producer.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaSink writes events as JSON records keyed by tenant, so one tenant's
// events stay ordered within a partition.
type KafkaSink struct {
	producer MessageProducer
	topic    string
}

func NewKafkaSink(p MessageProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Write(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	key := event.TenantID
	if key == "" {
		key = event.PrincipalID
	}
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"event":      event.Action,
			"request_id": event.RequestID,
		},
	})
}
