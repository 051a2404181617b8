package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"birr-rate-service/internal/adapter/cache"
	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/metrics"
	"birr-rate-service/pkg/logger"
)

type MockRateCache struct {
	GetFunc   func(ctx context.Context, kind model.RateKind) (*model.CacheEntry, bool)
	SetFunc   func(ctx context.Context, kind model.RateKind, entry *model.CacheEntry) error
	ClearFunc func(ctx context.Context) error
}

func (m *MockRateCache) Get(ctx context.Context, kind model.RateKind) (*model.CacheEntry, bool) {
	return m.GetFunc(ctx, kind)
}

func (m *MockRateCache) Set(ctx context.Context, kind model.RateKind, entry *model.CacheEntry) error {
	return m.SetFunc(ctx, kind, entry)
}

func (m *MockRateCache) Clear(ctx context.Context) error {
	return m.ClearFunc(ctx)
}

type MockRateSource struct {
	NameValue string
	FetchFunc func(ctx context.Context) ([]model.Rate, error)
	calls     atomic.Int32
}

func (m *MockRateSource) Name() string {
	return m.NameValue
}

func (m *MockRateSource) Fetch(ctx context.Context) ([]model.Rate, error) {
	m.calls.Add(1)
	return m.FetchFunc(ctx)
}

func (m *MockRateSource) Calls() int {
	return int(m.calls.Load())
}

func staticSource(name string, rates ...model.Rate) *MockRateSource {
	return &MockRateSource{
		NameValue: name,
		FetchFunc: func(ctx context.Context) ([]model.Rate, error) {
			return rates, nil
		},
	}
}

func failingSource(name string, err error) *MockRateSource {
	return &MockRateSource{
		NameValue: name,
		FetchFunc: func(ctx context.Context) ([]model.Rate, error) {
			return nil, err
		},
	}
}

type MockHistoryRepository struct {
	mu        sync.Mutex
	Snapshots []*model.Snapshot
	ListFunc  func(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error)
}

func (m *MockHistoryRepository) Record(ctx context.Context, snapshot *model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, snapshot)
	return nil
}

func (m *MockHistoryRepository) List(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error) {
	return m.ListFunc(ctx, kind, limit)
}

type MockPublisher struct {
	mu     sync.Mutex
	Events []*model.RateEvent
}

func (m *MockPublisher) Publish(ctx context.Context, event *model.RateEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type serviceFixture struct {
	svc   *RateService
	clock *fakeClock
}

// newTestService builds a service over an in-memory cache with the given
// chains. Sources are registered in the order they appear.
func newTestService(chains map[model.RateKind][]*MockRateSource) serviceFixture {
	log := logger.Discard()
	priorities := make(map[model.RateKind][]string)
	for kind, chain := range chains {
		for _, src := range chain {
			priorities[kind] = append(priorities[kind], src.Name())
		}
	}

	svc := NewRateService(cache.NewMemoryCache(log), Options{Priorities: priorities}, log, metrics.NewMetrics(prometheus.NewRegistry()))
	for _, chain := range chains {
		for _, src := range chain {
			svc.RegisterSource(src)
		}
	}

	clock := newFakeClock()
	svc.now = clock.Now
	return serviceFixture{svc: svc, clock: clock}
}
