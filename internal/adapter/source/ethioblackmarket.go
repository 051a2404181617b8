package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
)

const (
	historyWindow     = 24 * time.Hour
	historyCount      = 200
	historySampleStep = 12
)

var parallelCodes = []string{"USD", "EUR", "GBP", "AED", "SAR", "KWD"}

type jsonGetter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// EthioBlackMarket reads the parallel-market API behind ethioblackmarket.com.
type EthioBlackMarket struct {
	baseURL string
	fetcher jsonGetter
	now     func() time.Time
}

func NewEthioBlackMarket(baseURL string, fetcher jsonGetter) *EthioBlackMarket {
	return &EthioBlackMarket{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: fetcher,
		now:     time.Now,
	}
}

func (e *EthioBlackMarket) Name() string {
	return "ethioblackmarket"
}

type currentPriceResponse struct {
	CurrentPrice map[string]flexFloat `json:"currentPrice"`
}

func (e *EthioBlackMarket) Fetch(ctx context.Context) ([]model.Rate, error) {
	var resp currentPriceResponse
	if err := e.fetcher.GetJSON(ctx, e.baseURL+"/api/current-price", &resp); err != nil {
		return nil, err
	}

	var rates []model.Rate
	for _, code := range parallelCodes {
		if v, ok := resp.CurrentPrice[code].positive(); ok {
			rates = append(rates, model.Rate{Code: code, Rate: v})
		}
	}
	if len(rates) == 0 {
		return nil, ports.ErrNoRates
	}
	return rates, nil
}

type historicalResponse struct {
	HistoricalPrices []struct {
		Time  int64 `json:"time"`
		Value struct {
			USD flexFloat `json:"USD"`
			EUR flexFloat `json:"EUR"`
			GBP flexFloat `json:"GBP"`
		} `json:"value"`
	} `json:"historicalPrices"`
}

// FetchHistory returns roughly hourly points for the last 24 hours, oldest
// first. The upstream lists newest first.
func (e *EthioBlackMarket) FetchHistory(ctx context.Context) ([]model.HistoryPoint, error) {
	now := e.now()
	url := fmt.Sprintf("%s/api/historical-prices?before=%d&count=%d", e.baseURL, now.Unix(), historyCount)

	var resp historicalResponse
	if err := e.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	recent := make([]model.HistoryPoint, 0, len(resp.HistoricalPrices))
	for _, item := range resp.HistoricalPrices {
		ts := time.Unix(item.Time, 0)
		if now.Sub(ts) > historyWindow {
			continue
		}
		recent = append(recent, model.HistoryPoint{
			Timestamp: ts.UnixMilli(),
			USD:       item.Value.USD.Value,
			EUR:       item.Value.EUR.Value,
			GBP:       item.Value.GBP.Value,
		})
	}

	points := make([]model.HistoryPoint, 0, len(recent)/historySampleStep+1)
	for i, p := range recent {
		if i%historySampleStep == 0 || i == len(recent)-1 {
			points = append(points, p)
		}
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	return points, nil
}
