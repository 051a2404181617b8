package http

import (
	"context"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/metrics"
	"birr-rate-service/pkg/logger"
)

type MockRateService struct {
	FetchOfficialRatesFunc func(ctx context.Context) []model.Rate
	FetchParallelRatesFunc func(ctx context.Context) []model.Rate
	FetchNBERatesFunc      func(ctx context.Context) []model.Rate
	FetchFromSourceFunc    func(ctx context.Context, name string) ([]model.Rate, error)
	OverrideRatesFunc      func(ctx context.Context, kind model.RateKind, rates []model.Rate) error
	ConvertCurrencyFunc    func(ctx context.Context, request model.ConversionRequest) (*model.ConversionResult, error)
	HistoryFunc            func(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error)
	ParallelHistoryFunc    func(ctx context.Context) ([]model.HistoryPoint, error)
	RefreshRatesFunc       func(ctx context.Context) error

	Resets int
}

func (m *MockRateService) FetchOfficialRates(ctx context.Context) []model.Rate {
	return m.FetchOfficialRatesFunc(ctx)
}

func (m *MockRateService) FetchParallelRates(ctx context.Context) []model.Rate {
	return m.FetchParallelRatesFunc(ctx)
}

func (m *MockRateService) FetchNBERates(ctx context.Context) []model.Rate {
	return m.FetchNBERatesFunc(ctx)
}

func (m *MockRateService) FetchFromSource(ctx context.Context, name string) ([]model.Rate, error) {
	return m.FetchFromSourceFunc(ctx, name)
}

func (m *MockRateService) ResetRatesCache(ctx context.Context) {
	m.Resets++
}

func (m *MockRateService) OverrideRates(ctx context.Context, kind model.RateKind, rates []model.Rate) error {
	return m.OverrideRatesFunc(ctx, kind, rates)
}

func (m *MockRateService) ConvertCurrency(ctx context.Context, request model.ConversionRequest) (*model.ConversionResult, error) {
	return m.ConvertCurrencyFunc(ctx, request)
}

func (m *MockRateService) History(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error) {
	return m.HistoryFunc(ctx, kind, limit)
}

func (m *MockRateService) ParallelHistory(ctx context.Context) ([]model.HistoryPoint, error) {
	return m.ParallelHistoryFunc(ctx)
}

func (m *MockRateService) RefreshRates(ctx context.Context) error {
	return m.RefreshRatesFunc(ctx)
}

type MockRateFiles struct {
	MergeFunc   func(kind model.RateKind, updates map[string]any) (map[string]json.RawMessage, error)
	ReadAllFunc func() map[model.RateKind]map[string]json.RawMessage
}

func (m *MockRateFiles) Merge(kind model.RateKind, updates map[string]any) (map[string]json.RawMessage, error) {
	return m.MergeFunc(kind, updates)
}

func (m *MockRateFiles) ReadAll() map[model.RateKind]map[string]json.RawMessage {
	return m.ReadAllFunc()
}

const testAdminKey = "test-admin-key-0123456789"

func newTestHandler(svc *MockRateService, files *MockRateFiles) *Handler {
	return NewHandler(svc, files, testAdminKey, logger.Discard(), metrics.NewMetrics(prometheus.NewRegistry()))
}
