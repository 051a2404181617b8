package source

import (
	"context"
	"errors"
	"fmt"

	"birr-rate-service/internal/adapter/scrape"
	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/logger"
)

// BankPages scrapes rate tables from bank and NBE pages. Every page is tried
// statically first; the headless pass only runs when no page yielded rates.
type BankPages struct {
	pages    []string
	fetcher  getter
	renderer ports.PageRenderer
	// usd, when set, replaces the scraped USD quote.
	usd ports.RateSource
	log *logger.Logger
}

func NewBankPages(pages []string, fetcher getter, renderer ports.PageRenderer, log *logger.Logger) *BankPages {
	return &BankPages{
		pages:    pages,
		fetcher:  fetcher,
		renderer: renderer,
		log:      log,
	}
}

// WithUSDOverlay makes the source prefer src's USD quote over the tables.
func (b *BankPages) WithUSDOverlay(src ports.RateSource) *BankPages {
	b.usd = src
	return b
}

func (b *BankPages) Name() string {
	return "bank-pages"
}

func (b *BankPages) Fetch(ctx context.Context) ([]model.Rate, error) {
	var errs []error

	for _, page := range b.pages {
		body, err := b.fetcher.Get(ctx, page)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rates := scrape.ParseRatesFromHTML(string(body)); len(rates) > 0 {
			return b.overlay(ctx, rates), nil
		}
	}

	for _, page := range b.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := b.renderer.Render(ctx, ports.RenderRequest{URL: page, WaitSelector: "table"})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if rates := scrape.ParseRatesFromHTML(result.HTML); len(rates) > 0 {
			return b.overlay(ctx, rates), nil
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ports.ErrNoRates, errors.Join(errs...))
	}
	return nil, ports.ErrNoRates
}

func (b *BankPages) overlay(ctx context.Context, rates []model.Rate) []model.Rate {
	if b.usd == nil {
		return rates
	}
	quotes, err := b.usd.Fetch(ctx)
	if err != nil {
		b.log.Debug("USD overlay unavailable", "source", b.usd.Name(), "error", err)
		return rates
	}
	usd, ok := model.FindRate(quotes, "USD")
	if !ok {
		return rates
	}

	out := []model.Rate{usd}
	for _, r := range rates {
		if r.Code != "USD" {
			out = append(out, r)
		}
	}
	return out
}
