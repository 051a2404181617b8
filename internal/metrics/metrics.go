package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateRequestsTotal       *prometheus.CounterVec
	ConversionRequestsTotal prometheus.Counter
	OverridesTotal          *prometheus.CounterVec

	SourceAttemptsTotal *prometheus.CounterVec
	SourceDuration      *prometheus.HistogramVec
	CacheLookupsTotal   *prometheus.CounterVec
	FallbacksTotal      *prometheus.CounterVec
}

// NewMetrics registers every collector on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		RateRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_requests_total",
				Help: "Total number of rate list requests",
			},
			[]string{"kind"},
		),

		ConversionRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conversion_requests_total",
				Help: "Total number of currency conversion requests",
			},
		),

		OverridesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_overrides_total",
				Help: "Total number of admin rate overrides",
			},
			[]string{"kind"},
		),

		SourceAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_source_attempts_total",
				Help: "Total number of rate source fetches by outcome",
			},
			[]string{"kind", "source", "outcome"},
		),

		SourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rate_source_duration_seconds",
				Help:    "Rate source fetch duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"kind", "source"},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_cache_lookups_total",
				Help: "Total number of rate cache lookups by result",
			},
			[]string{"kind", "result"},
		),

		FallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_fallbacks_total",
				Help: "Total number of responses served from stale cache or defaults",
			},
			[]string{"kind", "fallback"},
		),
	}
}
