package ports

import (
	"context"
	"encoding/json"

	"birr-rate-service/internal/domain/model"
)

type HistoryRepository interface {
	Record(ctx context.Context, snapshot *model.Snapshot) error
	List(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *model.RateEvent) error
	Close() error
}

// ParallelHistoryProvider serves the parallel-market chart.
type ParallelHistoryProvider interface {
	FetchHistory(ctx context.Context) ([]model.HistoryPoint, error)
}

// RateFileStore is the admin-editable set of JSON rate documents.
type RateFileStore interface {
	Merge(kind model.RateKind, updates map[string]any) (map[string]json.RawMessage, error)
	ReadAll() map[model.RateKind]map[string]json.RawMessage
}
