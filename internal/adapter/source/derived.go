package source

import (
	"context"

	"github.com/shopspring/decimal"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
)

// OfficialProvider supplies the official list a derived estimate is based on.
type OfficialProvider interface {
	FetchOfficialRates(ctx context.Context) []model.Rate
}

// Derived estimates parallel rates from official ones: USD gets a fixed
// absolute premium and every other currency is scaled by the same factor.
type Derived struct {
	official OfficialProvider
	premium  decimal.Decimal
}

func NewDerived(official OfficialProvider, premium float64) *Derived {
	return &Derived{
		official: official,
		premium:  decimal.NewFromFloat(premium),
	}
}

func (d *Derived) Name() string {
	return "derived"
}

func (d *Derived) Fetch(ctx context.Context) ([]model.Rate, error) {
	return DeriveParallel(d.official.FetchOfficialRates(ctx), d.premium)
}

// DeriveParallel applies the premium to official. It needs an official USD
// quote.
func DeriveParallel(official []model.Rate, premium decimal.Decimal) ([]model.Rate, error) {
	usd, ok := model.FindRate(official, "USD")
	if !ok || usd.Rate <= 0 {
		return nil, ports.ErrNoRates
	}

	base := decimal.NewFromFloat(usd.Rate)
	premiumUSD := base.Add(premium)
	factor := premiumUSD.Div(base)

	rates := []model.Rate{{Code: "USD", Rate: premiumUSD.Round(2).InexactFloat64()}}
	for _, r := range official {
		if r.Code == "USD" || r.Rate <= 0 {
			continue
		}
		v := decimal.NewFromFloat(r.Rate).Mul(factor).Round(2)
		rates = append(rates, model.Rate{Code: r.Code, Rate: v.InexactFloat64()})
	}
	return rates, nil
}
