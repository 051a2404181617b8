package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"birr-rate-service/internal/metrics"
	"birr-rate-service/pkg/logger"
)

type Router struct {
	handler  *Handler
	gatherer prometheus.Gatherer
	log      *logger.Logger
	metrics  *metrics.Metrics
}

func NewRouter(handler *Handler, gatherer prometheus.Gatherer, log *logger.Logger, metrics *metrics.Metrics) *Router {
	return &Router{
		handler:  handler,
		gatherer: gatherer,
		log:      log,
		metrics:  metrics,
	}
}

func (r *Router) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/rates/official", r.handler.OfficialRatesHandler)
	mux.HandleFunc("GET /api/rates/parallel", r.handler.ParallelRatesHandler)
	mux.HandleFunc("GET /api/rates/nbe", r.handler.NBERatesHandler)
	mux.HandleFunc("GET /api/rates/historical", r.handler.ParallelHistoryHandler)
	mux.HandleFunc("GET /api/rates/snapshots", r.handler.SnapshotsHandler)
	mux.HandleFunc("POST /api/rates/override", r.handler.OverrideRatesHandler)
	mux.HandleFunc("POST /api/rates/update", r.handler.UpdateRatesHandler)
	mux.HandleFunc("GET /api/rates/update", r.handler.ListRateFilesHandler)
	mux.HandleFunc("GET /api/v1/convert", r.handler.ConvertCurrencyHandler)

	mux.HandleFunc("GET /health", r.handler.HealthHandler)

	apiWithMiddleware := r.loggingMiddleware(mux)

	rootMux := http.NewServeMux()

	rootMux.Handle("/", apiWithMiddleware)
	rootMux.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))

	return rootMux
}
