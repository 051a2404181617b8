package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"birr-rate-service/internal/domain/model"
)

const maxAdminBody = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

type overrideRate struct {
	Code    string   `json:"code" validate:"required,len=3,alpha,uppercase"`
	Rate    float64  `json:"rate" validate:"gt=0"`
	Buying  *float64 `json:"buying,omitempty" validate:"omitempty,gt=0"`
	Selling *float64 `json:"selling,omitempty" validate:"omitempty,gt=0"`
}

type overrideRequest struct {
	Kind  string         `json:"kind" validate:"required,oneof=official parallel"`
	Rates []overrideRate `json:"rates" validate:"required,max=20,dive"`
}

type overrideResponse struct {
	OK      bool `json:"ok"`
	Updated int  `json:"updated"`
}

type sideQuote struct {
	Buying  *float64 `json:"buying" validate:"required,gt=0"`
	Selling *float64 `json:"selling" validate:"required,gt=0"`
}

type parallelQuote struct {
	Rate *float64 `json:"rate" validate:"required,gt=0"`
}

type updateRequest struct {
	Official map[string]sideQuote     `json:"official,omitempty"`
	Parallel map[string]parallelQuote `json:"parallel,omitempty"`
	NBE      map[string]sideQuote     `json:"nbe,omitempty"`
}

type updateResponse struct {
	Success   bool                                          `json:"success"`
	Message   string                                        `json:"message,omitempty"`
	Updated   []model.RateKind                              `json:"updated,omitempty"`
	Timestamp string                                        `json:"timestamp"`
	Rates     map[model.RateKind]map[string]json.RawMessage `json:"rates"`
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (h *Handler) validKey(token string) bool {
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminKey)) == 1
}

// OverrideRatesHandler pins the cached list for one kind until its window
// expires.
func (h *Handler) OverrideRatesHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if h.adminKey == "" || !ok || !h.validKey(token) {
		h.log.Warn("Rejected override", "remote_addr", clientIP(r))
		h.sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&req); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "Invalid payload: "+validationMessage(err))
		return
	}

	rates := make([]model.Rate, len(req.Rates))
	for i, rate := range req.Rates {
		rates[i] = model.Rate{Code: rate.Code, Rate: rate.Rate, Buying: rate.Buying, Selling: rate.Selling}
	}

	if err := h.service.OverrideRates(r.Context(), model.RateKind(req.Kind), rates); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.log.Info("Rates overridden", "kind", req.Kind, "count", len(rates), "remote_addr", clientIP(r))
	h.writeJSON(w, http.StatusOK, overrideResponse{OK: true, Updated: len(rates)})
}

// UpdateRatesHandler merges admin-supplied quotes into the JSON rate files.
func (h *Handler) UpdateRatesHandler(w http.ResponseWriter, r *http.Request) {
	if h.adminKey == "" {
		h.sendErrorResponse(w, http.StatusInternalServerError, "Server configuration error: RATES_ADMIN_KEY not set")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		h.sendErrorResponse(w, http.StatusUnauthorized, "Missing or invalid authorization header")
		return
	}
	if !h.validKey(token) {
		h.log.Warn("Rejected rate file update", "remote_addr", clientIP(r))
		h.sendErrorResponse(w, http.StatusForbidden, "Invalid API key")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&req); err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, "Invalid payload")
		return
	}

	updates, err := req.updates()
	if err != nil {
		h.sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := updateResponse{
		Success: true,
		Message: "Exchange rates updated successfully",
		Rates:   make(map[model.RateKind]map[string]json.RawMessage),
	}
	for _, kind := range model.RateKinds {
		values, ok := updates[kind]
		if !ok {
			continue
		}
		doc, err := h.files.Merge(kind, values)
		if err != nil {
			h.log.Error("Failed to update rate file", "kind", kind, "error", err)
			h.sendErrorResponse(w, http.StatusInternalServerError, "Failed to update exchange rates")
			return
		}
		resp.Updated = append(resp.Updated, kind)
		resp.Rates[kind] = doc
	}

	h.service.ResetRatesCache(r.Context())
	resp.Timestamp = h.now().UTC().Format(time.RFC3339)
	h.writeJSON(w, http.StatusOK, resp)
}

// ListRateFilesHandler returns the current contents of every rate file.
func (h *Handler) ListRateFilesHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, updateResponse{
		Success:   true,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Rates:     h.files.ReadAll(),
	})
}

// updates validates the whole request before anything is written.
func (req updateRequest) updates() (map[model.RateKind]map[string]any, error) {
	if len(req.Official) == 0 && len(req.Parallel) == 0 && len(req.NBE) == 0 {
		return nil, errors.New("request must include at least one of: official, parallel, nbe")
	}

	out := make(map[model.RateKind]map[string]any)
	add := func(kind model.RateKind, code string, quote any) error {
		if !model.Currency(code).IsSupported() {
			return fmt.Errorf("invalid currency in %s: %s", kind, code)
		}
		if err := validate.Struct(quote); err != nil {
			return fmt.Errorf("invalid %s %s rates: %s", kind, code, validationMessage(err))
		}
		if out[kind] == nil {
			out[kind] = make(map[string]any)
		}
		out[kind][code] = quote
		return nil
	}

	for code, quote := range req.Official {
		if err := add(model.Official, code, quote); err != nil {
			return nil, err
		}
	}
	for code, quote := range req.Parallel {
		if err := add(model.Parallel, code, quote); err != nil {
			return nil, err
		}
	}
	for code, quote := range req.NBE {
		if err := add(model.NBE, code, quote); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return strings.Join(parts, "; ")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	return r.RemoteAddr
}
