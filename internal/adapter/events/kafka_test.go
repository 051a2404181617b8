package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"birr-rate-service/internal/domain/model"
)

type MockWriter struct {
	WriteMessagesFunc func(ctx context.Context, msgs ...kafka.Message) error
	closed            bool
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.WriteMessagesFunc(ctx, msgs...)
}

func (m *MockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var sent []kafka.Message
	writer := &MockWriter{
		WriteMessagesFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			sent = append(sent, msgs...)
			return nil
		},
	}
	publisher := &KafkaPublisher{writer: writer}

	event := &model.RateEvent{
		ID:        "evt-1",
		Kind:      model.Parallel,
		Source:    "ethioblackmarket",
		Rates:     []model.Rate{{Code: "USD", Rate: 140}},
		Timestamp: ts,
	}
	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(sent))
	}
	if string(sent[0].Key) != "parallel" || !sent[0].Time.Equal(ts) {
		t.Errorf("Unexpected message metadata %+v", sent[0])
	}
	var decoded model.RateEvent
	if err := json.Unmarshal(sent[0].Value, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != "evt-1" || decoded.Rates[0].Rate != 140 {
		t.Errorf("Unexpected payload %+v", decoded)
	}

	if err := publisher.Close(); err != nil || !writer.closed {
		t.Errorf("Expected writer to be closed, got %v", err)
	}
}

func TestKafkaPublisher_PublishError(t *testing.T) {
	publisher := &KafkaPublisher{writer: &MockWriter{
		WriteMessagesFunc: func(ctx context.Context, msgs ...kafka.Message) error {
			return errors.New("broker down")
		},
	}}

	if err := publisher.Publish(context.Background(), &model.RateEvent{Kind: model.Official}); err == nil {
		t.Error("Expected error")
	}
}
