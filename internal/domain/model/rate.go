package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Rate struct {
	Code    string   `json:"code"`
	Rate    float64  `json:"rate"`
	Buying  *float64 `json:"buying,omitempty"`
	Selling *float64 `json:"selling,omitempty"`
}

// NewRate builds a rate from buying and selling quotes. Zero quotes are
// treated as absent.
func NewRate(code string, rate, buying, selling float64) Rate {
	r := Rate{Code: code, Rate: rate}
	if buying > 0 {
		r.Buying = Float(buying)
	}
	if selling > 0 {
		r.Selling = Float(selling)
	}
	return r
}

func Float(v float64) *float64 {
	return &v
}

func (r Rate) String() string {
	return fmt.Sprintf("%s=%.4f", r.Code, r.Rate)
}

// NormalizeRates uppercases codes, drops invalid entries, recomputes the mid
// rate when both sides are quoted and keeps the first entry per code.
func NormalizeRates(rates []Rate) []Rate {
	out := make([]Rate, 0, len(rates))
	seen := make(map[string]struct{}, len(rates))

	for _, r := range rates {
		r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
		if !Currency(r.Code).IsValid() {
			continue
		}
		if _, dup := seen[r.Code]; dup {
			continue
		}

		if !positive(r.Buying) {
			r.Buying = nil
		}
		if !positive(r.Selling) {
			r.Selling = nil
		}
		if r.Buying != nil && r.Selling != nil {
			r.Rate = (*r.Buying + *r.Selling) / 2
		}
		if math.IsNaN(r.Rate) || math.IsInf(r.Rate, 0) || r.Rate <= 0 {
			continue
		}

		seen[r.Code] = struct{}{}
		out = append(out, r)
	}

	return out
}

func positive(v *float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && *v > 0
}

// FindRate returns the entry for code, if present.
func FindRate(rates []Rate, code string) (Rate, bool) {
	code = strings.ToUpper(code)
	for _, r := range rates {
		if r.Code == code {
			return r, true
		}
	}
	return Rate{}, false
}

// CloneRates deep-copies rates so cached slices are never shared with callers.
func CloneRates(rates []Rate) []Rate {
	if rates == nil {
		return nil
	}
	out := make([]Rate, len(rates))
	for i, r := range rates {
		out[i] = r
		if r.Buying != nil {
			out[i].Buying = Float(*r.Buying)
		}
		if r.Selling != nil {
			out[i].Selling = Float(*r.Selling)
		}
	}
	return out
}

type CacheEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Rates     []Rate    `json:"rates"`
}

func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

type Snapshot struct {
	ID        string    `json:"id"`
	Kind      RateKind  `json:"kind"`
	Source    string    `json:"source"`
	Rates     []Rate    `json:"rates"`
	FetchedAt time.Time `json:"fetched_at"`
}

type RateEvent struct {
	ID        string    `json:"id"`
	Kind      RateKind  `json:"kind"`
	Source    string    `json:"source"`
	Override  bool      `json:"override"`
	Rates     []Rate    `json:"rates"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryPoint is one parallel-market chart sample. Timestamp is epoch millis.
type HistoryPoint struct {
	Timestamp int64   `json:"timestamp"`
	USD       float64 `json:"USD"`
	EUR       float64 `json:"EUR"`
	GBP       float64 `json:"GBP"`
}

type ConversionRequest struct {
	FromCurrency Currency `json:"from_currency"`
	ToCurrency   Currency `json:"to_currency"`
	Amount       float64  `json:"amount"`
	Kind         RateKind `json:"kind"`
}

type ConversionResult struct {
	FromCurrency Currency `json:"from_currency"`
	ToCurrency   Currency `json:"to_currency"`
	FromAmount   float64  `json:"from_amount"`
	ToAmount     float64  `json:"to_amount"`
	Rate         float64  `json:"rate"`
	Kind         RateKind `json:"kind"`
}
