package ports

import (
	"context"

	"birr-rate-service/internal/domain/model"
)

type RateService interface {
	FetchOfficialRates(ctx context.Context) []model.Rate
	FetchParallelRates(ctx context.Context) []model.Rate
	FetchNBERates(ctx context.Context) []model.Rate
	FetchFromSource(ctx context.Context, name string) ([]model.Rate, error)
	ResetRatesCache(ctx context.Context)
	OverrideRates(ctx context.Context, kind model.RateKind, rates []model.Rate) error
	ConvertCurrency(ctx context.Context, request model.ConversionRequest) (*model.ConversionResult, error)
	History(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error)
	ParallelHistory(ctx context.Context) ([]model.HistoryPoint, error)
	RefreshRates(ctx context.Context) error
}
