package ports

import (
	"context"
	"errors"
	"time"

	"birr-rate-service/internal/domain/model"
)

// ErrNoRates is returned by a source that completed without usable rates.
var ErrNoRates = errors.New("no rates")

type RateSource interface {
	Name() string
	Fetch(ctx context.Context) ([]model.Rate, error)
}

type RenderRequest struct {
	URL          string
	WaitSelector string
	// Script is evaluated after the selector wait, before the page is read.
	Script   string
	WaitText string
	Settle   time.Duration
}

type RenderResult struct {
	HTML string
	Text string
}

// PageRenderer loads a page in a headless browser and returns its
// rendered HTML and visible text.
type PageRenderer interface {
	Render(ctx context.Context, req RenderRequest) (*RenderResult, error)
}
