package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"birr-rate-service/internal/domain/ports"
)

func TestEthioBlackMarket_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/current-price" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"currentPrice": {"GBP": 190.5, "USD": 140.2, "EUR": "151.1", "XAU": 9000, "SAR": 0}}`))
	}))
	defer server.Close()

	rates, err := NewEthioBlackMarket(server.URL+"/", testFetcher()).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	assertRates(t, rates, []expectedRate{
		{code: "USD", rate: 140.2},
		{code: "EUR", rate: 151.1},
		{code: "GBP", rate: 190.5},
	})
}

func TestEthioBlackMarket_FetchEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"currentPrice": null}`))
	}))
	defer server.Close()

	_, err := NewEthioBlackMarket(server.URL, testFetcher()).Fetch(context.Background())
	if !errors.Is(err, ports.ErrNoRates) {
		t.Errorf("Expected ErrNoRates, got %v", err)
	}
}

func TestEthioBlackMarket_FetchHistory(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	type price struct {
		Time  int64              `json:"time"`
		Value map[string]float64 `json:"value"`
	}
	// 30 points five minutes apart inside the window, newest first, plus
	// two older than a day.
	var prices []price
	for i := 0; i < 30; i++ {
		ts := now.Add(-time.Duration(i*5) * time.Minute)
		prices = append(prices, price{Time: ts.Unix(), Value: map[string]float64{"USD": float64(100 + i), "EUR": 1, "GBP": 2}})
	}
	prices = append(prices,
		price{Time: now.Add(-25 * time.Hour).Unix(), Value: map[string]float64{"USD": 1}},
		price{Time: now.Add(-26 * time.Hour).Unix(), Value: map[string]float64{"USD": 1}},
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := fmt.Sprintf("before=%d&count=200", now.Unix())
		if r.URL.Path != "/api/historical-prices" || r.URL.RawQuery != want {
			t.Errorf("Unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{"historicalPrices": prices})
	}))
	defer server.Close()

	src := NewEthioBlackMarket(server.URL, testFetcher())
	src.now = func() time.Time { return now }

	points, err := src.FetchHistory(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Indexes 0, 12, 24 and the last (29), reversed.
	wantUSD := []float64{129, 124, 112, 100}
	if len(points) != len(wantUSD) {
		t.Fatalf("Expected %d points, got %d: %v", len(wantUSD), len(points), points)
	}
	for i, w := range wantUSD {
		if points[i].USD != w {
			t.Errorf("Expected USD %v at %d, got %v", w, i, points[i].USD)
		}
	}
	if points[len(points)-1].Timestamp != now.UnixMilli() {
		t.Errorf("Expected newest point last, got %d", points[len(points)-1].Timestamp)
	}
	if points[0].Timestamp >= points[1].Timestamp {
		t.Errorf("Expected ascending timestamps, got %v", points)
	}
}
