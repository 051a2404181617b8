package source

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
)

func TestDerived_Fetch(t *testing.T) {
	official := &MockOfficialProvider{
		FetchOfficialRatesFunc: func(ctx context.Context) []model.Rate {
			return []model.Rate{
				{Code: "EUR", Rate: 159.2},
				{Code: "USD", Rate: 150},
				{Code: "GBP", Rate: 191.5},
			}
		},
	}

	rates, err := NewDerived(official, 20).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	assertRates(t, rates, []expectedRate{
		{code: "USD", rate: 170},
		{code: "EUR", rate: 180.43},
		{code: "GBP", rate: 217.03},
	})
}

func TestDeriveParallel_NoUSD(t *testing.T) {
	_, err := DeriveParallel([]model.Rate{{Code: "EUR", Rate: 160}}, decimal.NewFromInt(20))
	if !errors.Is(err, ports.ErrNoRates) {
		t.Errorf("Expected ErrNoRates, got %v", err)
	}
}
