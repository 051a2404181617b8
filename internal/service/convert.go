package service

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"birr-rate-service/internal/domain/model"
)

// ConvertCurrency converts between any two currencies quoted against ETB,
// using the requested kind's current list.
func (s *RateService) ConvertCurrency(ctx context.Context, request model.ConversionRequest) (*model.ConversionResult, error) {
	from := model.ParseCurrency(string(request.FromCurrency))
	to := model.ParseCurrency(string(request.ToCurrency))
	if !from.IsValid() || !to.IsValid() {
		return nil, ErrInvalidCurrency
	}

	if request.Amount <= 0 || math.IsNaN(request.Amount) || math.IsInf(request.Amount, 0) {
		return nil, ErrInvalidAmount
	}

	kind := request.Kind
	if kind == "" {
		kind = model.Official
	}
	if !kind.IsValid() {
		return nil, ErrInvalidKind
	}

	rates := s.fetch(ctx, kind)

	fromRate, err := etbPerUnit(rates, from)
	if err != nil {
		return nil, err
	}
	toRate, err := etbPerUnit(rates, to)
	if err != nil {
		return nil, err
	}

	rate := fromRate.Div(toRate)
	amount := decimal.NewFromFloat(request.Amount)

	return &model.ConversionResult{
		FromCurrency: from,
		ToCurrency:   to,
		FromAmount:   request.Amount,
		ToAmount:     amount.Mul(rate).Round(2).InexactFloat64(),
		Rate:         rate.Round(6).InexactFloat64(),
		Kind:         kind,
	}, nil
}

func etbPerUnit(rates []model.Rate, c model.Currency) (decimal.Decimal, error) {
	if c == model.ETB {
		return decimal.NewFromInt(1), nil
	}
	r, ok := model.FindRate(rates, string(c))
	if !ok || r.Rate <= 0 {
		return decimal.Zero, ErrRateNotFound
	}
	return decimal.NewFromFloat(r.Rate), nil
}
