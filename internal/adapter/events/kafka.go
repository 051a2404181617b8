package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"birr-rate-service/internal/domain/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits one message per cache write, keyed by rate kind.
type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event *model.RateEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode rate event: %w", err)
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Kind),
		Value: msg,
		Time:  event.Timestamp,
	})
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}

// NoopPublisher drops events when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *model.RateEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
