package source

import (
	"context"
	"time"

	"birr-rate-service/internal/adapter/scrape"
	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/logger"
)

type MockRenderer struct {
	RenderFunc func(ctx context.Context, req ports.RenderRequest) (*ports.RenderResult, error)
	Requests   []ports.RenderRequest
}

func (m *MockRenderer) Render(ctx context.Context, req ports.RenderRequest) (*ports.RenderResult, error) {
	m.Requests = append(m.Requests, req)
	return m.RenderFunc(ctx, req)
}

type MockSource struct {
	NameValue string
	FetchFunc func(ctx context.Context) ([]model.Rate, error)
}

func (m *MockSource) Name() string {
	return m.NameValue
}

func (m *MockSource) Fetch(ctx context.Context) ([]model.Rate, error) {
	return m.FetchFunc(ctx)
}

type MockOfficialProvider struct {
	FetchOfficialRatesFunc func(ctx context.Context) []model.Rate
}

func (m *MockOfficialProvider) FetchOfficialRates(ctx context.Context) []model.Rate {
	return m.FetchOfficialRatesFunc(ctx)
}

func testFetcher() *scrape.Fetcher {
	return scrape.NewFetcher("test-agent", 2*time.Second, 0)
}

func testLogger() *logger.Logger {
	return logger.Discard()
}
