package http

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/internal/metrics"
	"birr-rate-service/internal/service"
	"birr-rate-service/pkg/logger"
	"birr-rate-service/pkg/utils"
)

const (
	westernUnionSource = "westernunion"

	cacheControlRates = "public, s-maxage=900, max-age=300"
	cacheControlNBE   = "public, s-maxage=3600, max-age=1800"
	cacheControlNone  = "no-store"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ratesResponse struct {
	Rates  []model.Rate `json:"rates"`
	Source string       `json:"source,omitempty"`
	Date   string       `json:"date,omitempty"`
}

type historyResponse struct {
	Success bool                 `json:"success"`
	Data    []model.HistoryPoint `json:"data"`
	Count   int                  `json:"count"`
}

type Handler struct {
	service  ports.RateService
	files    ports.RateFileStore
	adminKey string
	log      *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewHandler(service ports.RateService, files ports.RateFileStore, adminKey string, log *logger.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		files:    files,
		adminKey: adminKey,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (h *Handler) OfficialRatesHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.RateRequestsTotal.WithLabelValues(string(model.Official)).Inc()

	ctx := r.Context()
	query := r.URL.Query()
	if query.Get("fresh") == "1" {
		h.service.ResetRatesCache(ctx)
	}

	if query.Get("source") == "wu" {
		rates, err := h.service.FetchFromSource(ctx, westernUnionSource)
		if err != nil {
			h.log.Warn("Western Union lookup failed", "error", err)
		}
		usd, ok := model.FindRate(rates, string(model.USD))
		rates = []model.Rate{}
		if ok {
			rates = append(rates, model.Rate{Code: usd.Code, Rate: usd.Rate})
		}

		w.Header().Set("Cache-Control", cacheControlNone)
		h.writeJSON(w, http.StatusOK, ratesResponse{Rates: rates, Source: "wu"})
		return
	}

	rates := h.service.FetchOfficialRates(ctx)
	w.Header().Set("Cache-Control", cacheControlRates)
	h.writeJSON(w, http.StatusOK, ratesResponse{Rates: orEmpty(rates), Source: "auto"})
}

func (h *Handler) ParallelRatesHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.RateRequestsTotal.WithLabelValues(string(model.Parallel)).Inc()

	ctx := r.Context()
	if r.URL.Query().Get("fresh") == "1" {
		h.service.ResetRatesCache(ctx)
	}

	rates := h.service.FetchParallelRates(ctx)
	w.Header().Set("Cache-Control", cacheControlRates)
	h.writeJSON(w, http.StatusOK, ratesResponse{Rates: orEmpty(rates)})
}

func (h *Handler) NBERatesHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.RateRequestsTotal.WithLabelValues(string(model.NBE)).Inc()

	rates := h.service.FetchNBERates(r.Context())
	if len(rates) == 0 {
		h.sendErrorResponse(w, http.StatusServiceUnavailable, "NBE rates unavailable")
		return
	}

	w.Header().Set("Cache-Control", cacheControlNBE)
	h.writeJSON(w, http.StatusOK, ratesResponse{
		Rates:  rates,
		Source: string(model.NBE),
		Date:   utils.FormatDate(h.now()),
	})
}

// ParallelHistoryHandler serves the last day of parallel-market prices for
// charting.
func (h *Handler) ParallelHistoryHandler(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.ParallelHistory(r.Context())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	if points == nil {
		points = []model.HistoryPoint{}
	}

	h.writeJSON(w, http.StatusOK, historyResponse{Success: true, Data: points, Count: len(points)})
}

func (h *Handler) SnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	kind := model.Official
	if k := query.Get("kind"); k != "" {
		kind = model.RateKind(k)
	}

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			h.sendErrorResponse(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
	}

	snapshots, err := h.service.History(r.Context(), kind, limit)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, snapshots)
}

func (h *Handler) ConvertCurrencyHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.ConversionRequestsTotal.Inc()

	from := model.Currency(r.URL.Query().Get("from"))
	to := model.Currency(r.URL.Query().Get("to"))
	amountStr := r.URL.Query().Get("amount")
	kind := model.RateKind(r.URL.Query().Get("kind"))

	if from == "" || to == "" {
		h.sendErrorResponse(w, http.StatusBadRequest, "missing required parameters: from and to")
		return
	}

	amount := 1.0
	if amountStr != "" {
		var err error
		amount, err = strconv.ParseFloat(amountStr, 64)
		if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
			h.sendErrorResponse(w, http.StatusBadRequest, "invalid amount parameter")
			return
		}
	}

	request := model.ConversionRequest{
		FromCurrency: from,
		ToCurrency:   to,
		Amount:       amount,
		Kind:         kind,
	}

	result, err := h.service.ConvertCurrency(r.Context(), request)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.sendSuccessResponse(w, result)
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func orEmpty(rates []model.Rate) []model.Rate {
	if rates == nil {
		return []model.Rate{}
	}
	return rates
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, Response{
		Success: false,
		Error:   message,
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorMessage := "internal server error"

	switch {
	case errors.Is(err, service.ErrInvalidCurrency):
		statusCode = http.StatusBadRequest
		errorMessage = "invalid currency"
	case errors.Is(err, service.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
		errorMessage = "invalid amount"
	case errors.Is(err, service.ErrInvalidKind):
		statusCode = http.StatusBadRequest
		errorMessage = "invalid rate kind"
	case errors.Is(err, service.ErrNoRates):
		statusCode = http.StatusBadRequest
		errorMessage = "no valid rates"
	case errors.Is(err, service.ErrRateNotFound):
		statusCode = http.StatusNotFound
		errorMessage = "exchange rate not found"
	case errors.Is(err, service.ErrExternalAPIFailure):
		statusCode = http.StatusServiceUnavailable
		errorMessage = "external API failure"
	}

	h.log.Error("Service error", "error", err, "status_code", statusCode)
	h.sendErrorResponse(w, statusCode, errorMessage)
}
