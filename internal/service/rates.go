package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/internal/metrics"
	"birr-rate-service/pkg/logger"
)

const (
	overrideSource         = "override"
	defaultsSource         = "defaults"
	defaultChainTimeout    = 90 * time.Second
	defaultResponseTimeout = 25 * time.Second
	defaultHistoryLimit    = 20
	maxHistoryLimit        = 100
)

type Options struct {
	Windows      map[model.RateKind]time.Duration
	Priorities   map[model.RateKind][]string
	ChainTimeout time.Duration
	// ResponseTimeout bounds how long a Fetch* caller waits on a refresh
	// before being served stale or default rates.
	ResponseTimeout time.Duration
}

// RateService serves official, parallel and NBE rate lists from a cache,
// refreshing them through per-kind priority chains of sources.
type RateService struct {
	cache        ports.RateCache
	sources      map[string]ports.RateSource
	priorities   map[model.RateKind][]string
	windows      map[model.RateKind]time.Duration
	chainTimeout time.Duration
	respTimeout  time.Duration

	history         ports.HistoryRepository
	publisher       ports.EventPublisher
	parallelHistory ports.ParallelHistoryProvider

	group   singleflight.Group
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
	newID   func() string
}

func NewRateService(cache ports.RateCache, opts Options, log *logger.Logger, m *metrics.Metrics) *RateService {
	windows := map[model.RateKind]time.Duration{
		model.Official: model.DefaultOfficialWindow,
		model.Parallel: model.DefaultParallelWindow,
		model.NBE:      model.DefaultNBEWindow,
	}
	for kind, w := range opts.Windows {
		if w > 0 {
			windows[kind] = w
		}
	}
	if opts.ChainTimeout <= 0 {
		opts.ChainTimeout = defaultChainTimeout
	}
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = defaultResponseTimeout
	}

	return &RateService{
		cache:        cache,
		sources:      make(map[string]ports.RateSource),
		priorities:   opts.Priorities,
		windows:      windows,
		chainTimeout: opts.ChainTimeout,
		respTimeout:  opts.ResponseTimeout,
		metrics:      m,
		log:          log,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// RegisterSource makes src available to every chain that names it.
func (s *RateService) RegisterSource(src ports.RateSource) {
	s.sources[src.Name()] = src
}

func (s *RateService) WithHistory(repo ports.HistoryRepository) *RateService {
	s.history = repo
	return s
}

func (s *RateService) WithPublisher(p ports.EventPublisher) *RateService {
	s.publisher = p
	return s
}

func (s *RateService) WithParallelHistory(p ports.ParallelHistoryProvider) *RateService {
	s.parallelHistory = p
	return s
}

// Chain resolves the configured priority list for kind. Names without a
// registered source are skipped.
func (s *RateService) Chain(kind model.RateKind) []ports.RateSource {
	names := s.priorities[kind]
	chain := make([]ports.RateSource, 0, len(names))
	for _, name := range names {
		if src, ok := s.sources[name]; ok {
			chain = append(chain, src)
		}
	}
	return chain
}

// UnknownSources returns configured names that have no registered source.
func (s *RateService) UnknownSources() []string {
	var unknown []string
	for _, kind := range model.RateKinds {
		for _, name := range s.priorities[kind] {
			if _, ok := s.sources[name]; !ok {
				unknown = append(unknown, string(kind)+":"+name)
			}
		}
	}
	return unknown
}

func (s *RateService) FetchOfficialRates(ctx context.Context) []model.Rate {
	return s.fetch(ctx, model.Official)
}

func (s *RateService) FetchParallelRates(ctx context.Context) []model.Rate {
	return s.fetch(ctx, model.Parallel)
}

func (s *RateService) FetchNBERates(ctx context.Context) []model.Rate {
	return s.fetch(ctx, model.NBE)
}

func (s *RateService) fetch(ctx context.Context, kind model.RateKind) []model.Rate {
	if entry, ok := s.freshEntry(ctx, kind); ok {
		s.metrics.CacheLookupsTotal.WithLabelValues(string(kind), "hit").Inc()
		return entry.Rates
	}
	s.metrics.CacheLookupsTotal.WithLabelValues(string(kind), "miss").Inc()

	timer := time.NewTimer(s.respTimeout)
	defer timer.Stop()

	select {
	case res := <-s.refreshChan(ctx, kind, false):
		return model.CloneRates(res.Val.(refreshResult).rates)
	case <-timer.C:
		s.log.Warn("Rate refresh exceeded response budget, continuing in background",
			"kind", kind, "budget", s.respTimeout)
	case <-ctx.Done():
		s.log.Debug("Caller stopped waiting for rate refresh", "kind", kind, "error", ctx.Err())
	}
	return model.CloneRates(s.fallback(context.WithoutCancel(ctx), kind))
}

func (s *RateService) freshEntry(ctx context.Context, kind model.RateKind) (*model.CacheEntry, bool) {
	entry, found := s.cache.Get(ctx, kind)
	if !found || len(entry.Rates) == 0 {
		return nil, false
	}
	if entry.Age(s.now()) >= s.windows[kind] {
		return nil, false
	}
	return entry, true
}

type refreshResult struct {
	rates []model.Rate
	err   error
}

// refreshChan runs the chain for kind once across concurrent callers. The run
// is detached from the caller's cancellation and bounded by the chain timeout,
// so it completes and fills the cache even when nobody is waiting for it.
func (s *RateService) refreshChan(ctx context.Context, kind model.RateKind, force bool) <-chan singleflight.Result {
	return s.group.DoChan(string(kind), func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.chainTimeout)
		defer cancel()

		if !force {
			if entry, ok := s.freshEntry(runCtx, kind); ok {
				return refreshResult{rates: entry.Rates}, nil
			}
		}

		rates, err := s.runChain(runCtx, kind)
		return refreshResult{rates: rates, err: err}, nil
	})
}

func (s *RateService) refresh(ctx context.Context, kind model.RateKind, force bool) ([]model.Rate, error) {
	res := (<-s.refreshChan(ctx, kind, force)).Val.(refreshResult)
	return model.CloneRates(res.rates), res.err
}

func (s *RateService) runChain(ctx context.Context, kind model.RateKind) ([]model.Rate, error) {
	chainErr := &ChainError{Kind: kind}

	for _, src := range s.Chain(kind) {
		rates, err := s.try(ctx, string(kind), src)
		if err != nil {
			chainErr.Failures = append(chainErr.Failures, SourceError{Source: src.Name(), Err: err})
			s.log.Debug("Rate source failed", "kind", kind, "source", src.Name(), "error", err)
			continue
		}

		if len(chainErr.Failures) > 0 {
			s.log.Warn("Rate sources failed before fallback succeeded",
				"kind", kind, "source", src.Name(), "failed", chainErr.Sources(), "error", chainErr)
		}
		s.store(ctx, kind, src.Name(), rates, false)
		s.log.Info("Refreshed rates", "kind", kind, "source", src.Name(), "count", len(rates))
		return rates, nil
	}

	s.log.Warn("All rate sources failed", "kind", kind, "error", chainErr)
	return s.fallback(ctx, kind), chainErr
}

// fallback serves the last cached list regardless of age, then the built-in
// defaults. NBE has no defaults and yields nil.
func (s *RateService) fallback(ctx context.Context, kind model.RateKind) []model.Rate {
	if entry, found := s.cache.Get(ctx, kind); found && len(entry.Rates) > 0 {
		s.metrics.FallbacksTotal.WithLabelValues(string(kind), "stale").Inc()
		s.log.Warn("Serving stale rates", "kind", kind, "source", entry.Source, "age", entry.Age(s.now()))
		return entry.Rates
	}

	defaults := model.DefaultRates(kind)
	if len(defaults) == 0 {
		s.log.Error("No rates available", "kind", kind)
		return nil
	}
	s.metrics.FallbacksTotal.WithLabelValues(string(kind), defaultsSource).Inc()
	s.log.Error("Serving default rates", "kind", kind)
	return defaults
}

// try runs one source, converting panics and empty results into errors.
func (s *RateService) try(ctx context.Context, label string, src ports.RateSource) (rates []model.Rate, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rates, err = nil, fmt.Errorf("source panicked: %v", r)
		}

		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.metrics.SourceAttemptsTotal.WithLabelValues(label, src.Name(), outcome).Inc()
		s.metrics.SourceDuration.WithLabelValues(label, src.Name()).Observe(time.Since(start).Seconds())
	}()

	rates, err = src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	rates = model.NormalizeRates(rates)
	if len(rates) == 0 {
		return nil, ErrNoRates
	}
	return rates, nil
}

func (s *RateService) store(ctx context.Context, kind model.RateKind, source string, rates []model.Rate, override bool) {
	now := s.now()
	entry := &model.CacheEntry{Timestamp: now, Source: source, Rates: rates}
	if err := s.cache.Set(ctx, kind, entry); err != nil {
		s.log.Error("Failed to cache rates", "kind", kind, "error", err)
	}

	id := s.newID()
	if s.history != nil {
		snapshot := &model.Snapshot{ID: id, Kind: kind, Source: source, Rates: rates, FetchedAt: now}
		if err := s.history.Record(ctx, snapshot); err != nil {
			s.log.Error("Failed to record snapshot", "kind", kind, "error", err)
		}
	}
	if s.publisher != nil {
		event := &model.RateEvent{ID: id, Kind: kind, Source: source, Override: override, Rates: rates, Timestamp: now}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.log.Error("Failed to publish rate event", "kind", kind, "error", err)
		}
	}
}

func (s *RateService) ResetRatesCache(ctx context.Context) {
	if err := s.cache.Clear(ctx); err != nil {
		s.log.Error("Failed to clear rate cache", "error", err)
		return
	}
	s.log.Info("Rate cache reset")
}

// OverrideRates replaces the cached list for kind with a fresh entry.
func (s *RateService) OverrideRates(ctx context.Context, kind model.RateKind, rates []model.Rate) error {
	if !kind.Overridable() {
		return ErrInvalidKind
	}
	normalized := model.NormalizeRates(rates)
	if len(normalized) == 0 {
		return ErrNoRates
	}

	s.store(ctx, kind, overrideSource, normalized, true)
	s.metrics.OverridesTotal.WithLabelValues(string(kind)).Inc()
	s.log.Info("Rates overridden", "kind", kind, "count", len(normalized))
	return nil
}

// FetchFromSource runs one named source without touching the cache.
func (s *RateService) FetchFromSource(ctx context.Context, name string) ([]model.Rate, error) {
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return s.try(ctx, "direct", src)
}

// RefreshRates re-runs every configured chain regardless of freshness.
func (s *RateService) RefreshRates(ctx context.Context) error {
	s.log.Info("Refreshing exchange rates")

	var errs []error
	for _, kind := range model.RateKinds {
		if len(s.priorities[kind]) == 0 {
			continue
		}
		if _, err := s.refresh(ctx, kind, true); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrExternalAPIFailure, err)
	}
	return nil
}

func (s *RateService) History(ctx context.Context, kind model.RateKind, limit int) ([]model.Snapshot, error) {
	if !kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if s.history == nil {
		return []model.Snapshot{}, nil
	}
	return s.history.List(ctx, kind, limit)
}

func (s *RateService) ParallelHistory(ctx context.Context) ([]model.HistoryPoint, error) {
	if s.parallelHistory == nil {
		return nil, fmt.Errorf("%w: parallel history not configured", ErrExternalAPIFailure)
	}
	points, err := s.parallelHistory.FetchHistory(ctx)
	if err != nil {
		s.log.Error("Failed to fetch parallel history", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExternalAPIFailure, err)
	}
	return points, nil
}
