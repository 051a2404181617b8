package source

import (
	"context"
	"fmt"
	"time"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/utils"
)

var nbeCodes = []string{"USD", "EUR", "GBP", "AED", "SAR", "KWD"}

// NBE reads the National Bank of Ethiopia daily exchange-rate API.
type NBE struct {
	url     string
	fetcher jsonGetter
	now     func() time.Time
}

func NewNBE(url string, fetcher jsonGetter) *NBE {
	return &NBE{url: url, fetcher: fetcher, now: time.Now}
}

func (n *NBE) Name() string {
	return "nbe-api"
}

type nbeResponse struct {
	Data []struct {
		Currency struct {
			Code string `json:"code"`
		} `json:"currency"`
		Buying  flexFloat `json:"buying"`
		Selling flexFloat `json:"selling"`
	} `json:"data"`
}

func (n *NBE) Fetch(ctx context.Context) ([]model.Rate, error) {
	url := fmt.Sprintf("%s?date=%s", n.url, utils.FormatDate(n.now()))

	var resp nbeResponse
	if err := n.fetcher.GetJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	byCode := make(map[string]model.Rate, len(resp.Data))
	for _, item := range resp.Data {
		buying, hasBuy := item.Buying.positive()
		selling, hasSell := item.Selling.positive()
		if !hasBuy || !hasSell {
			continue
		}
		// The published weighted average is ignored; rates carry the mid.
		byCode[item.Currency.Code] = model.NewRate(item.Currency.Code, (buying+selling)/2, buying, selling)
	}

	var rates []model.Rate
	for _, code := range nbeCodes {
		if r, ok := byCode[code]; ok {
			rates = append(rates, r)
		}
	}
	if len(rates) == 0 {
		return nil, ports.ErrNoRates
	}
	return model.NormalizeRates(rates), nil
}
