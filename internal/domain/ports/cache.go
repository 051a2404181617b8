package ports

import (
	"context"

	"birr-rate-service/internal/domain/model"
)

// RateCache holds at most one entry per rate kind. Freshness is decided by
// the caller; a cache only stores and returns entries.
type RateCache interface {
	Get(ctx context.Context, kind model.RateKind) (*model.CacheEntry, bool)
	Set(ctx context.Context, kind model.RateKind, entry *model.CacheEntry) error
	Clear(ctx context.Context) error
}
