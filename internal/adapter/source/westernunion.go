package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/logger"
)

var westernUnionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b1\s*USD\s*=\s*([0-9,.]+)\s*(?:ETB|Ethiopian\s+Birr)\b`),
	regexp.MustCompile(`(?i)\bUSD\s*1\s*=\s*([0-9,.]+)\s*(?:ETB|Ethiopian\s+Birr)\b`),
	regexp.MustCompile(`(?i)\b([0-9,.]+)\s*(?:ETB|Ethiopian\s+Birr)\s*=\s*1\s*(?:USD|United\s+States\s+Dollar)\b`),
	regexp.MustCompile(`(?i)USD\s*to\s*ETB[^\d]{0,20}([0-9]{2,4}(?:[.,]\d{1,2})?)`),
}

// amountScript sets the converter's send amount to 1 so the page quotes a
// unit rate.
const amountScript = `
const inputs = Array.from(document.querySelectorAll('input'));
for (const el of inputs) {
	const hint = ((el.getAttribute('placeholder') || '') + ' ' + (el.getAttribute('name') || '')).toLowerCase();
	if (el.type === 'number' || /amount|send|you send|enter/.test(hint)) {
		el.value = '1';
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		break;
	}
}`

const westernUnionWaitText = `(?is)(ETB|Ethiopian\s+Birr).*\b[0-9]{2,4}(?:[.,]\d{1,2})?\b|\b[0-9]{2,4}(?:[.,]\d{1,2})?\b.*(ETB|Ethiopian\s+Birr)`

// WesternUnion reads the USD to ETB converter page.
type WesternUnion struct {
	url      string
	fetcher  getter
	renderer ports.PageRenderer
	log      *logger.Logger
}

func NewWesternUnion(url string, fetcher getter, renderer ports.PageRenderer, log *logger.Logger) *WesternUnion {
	return &WesternUnion{
		url:      url,
		fetcher:  fetcher,
		renderer: renderer,
		log:      log,
	}
}

func (w *WesternUnion) Name() string {
	return "westernunion"
}

func (w *WesternUnion) Fetch(ctx context.Context) ([]model.Rate, error) {
	body, err := w.fetcher.Get(ctx, w.url)
	if err == nil {
		if rate, ok := MatchWesternUnionRate(string(body)); ok {
			return []model.Rate{{Code: "USD", Rate: rate}}, nil
		}
	} else {
		w.log.Debug("Western Union static fetch failed", "error", err)
	}

	page, err := w.renderer.Render(ctx, ports.RenderRequest{
		URL:          w.url,
		WaitSelector: "input",
		Script:       amountScript,
		WaitText:     westernUnionWaitText,
		Settle:       time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render western union: %w", err)
	}
	if rate, ok := MatchWesternUnionRate(page.Text); ok {
		return []model.Rate{{Code: "USD", Rate: rate}}, nil
	}
	return nil, ports.ErrNoRates
}

// MatchWesternUnionRate returns the first positive USD→ETB quote in text.
func MatchWesternUnionRate(text string) (float64, bool) {
	for _, re := range westernUnionPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err == nil && v > 0 {
			return v, true
		}
	}
	return 0, false
}
