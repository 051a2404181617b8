package source

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
)

var (
	livewireSnapshot = regexp.MustCompile(`(?s)wire:snapshot="(\{[^"]*?rates[^"]*?\})"`)
	decimalNumber    = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// Flag asset ids used by ethioxchange for each currency row.
var ethioxchangeFlags = []struct {
	marker string
	code   string
}{
	{"01J52SWRRX", "USD"},
	{"01J52SZ9PB", "EUR"},
	{"01J52SYBWP", "GBP"},
	{"01J56JMQHJ", "AED"},
	{"01J57DQCF9", "SAR"},
	{"KWD", "KWD"},
}

var ethioxchangeTextPatterns = func() []textPattern {
	var patterns []textPattern
	for _, code := range []string{"USD", "EUR", "GBP", "AED", "SAR", "KWD"} {
		patterns = append(patterns, textPattern{
			code: code,
			re:   regexp.MustCompile(`(?i)` + code + `[^\d]*(\d+(?:\.\d+)?)`),
		})
	}
	return patterns
}()

type textPattern struct {
	code string
	re   *regexp.Regexp
}

type Ethioxchange struct {
	baseURL  string
	bank     string
	renderer ports.PageRenderer
}

func NewEthioxchange(baseURL, bank string, renderer ports.PageRenderer) *Ethioxchange {
	return &Ethioxchange{
		baseURL:  strings.TrimRight(baseURL, "/"),
		bank:     bank,
		renderer: renderer,
	}
}

func (e *Ethioxchange) Name() string {
	return "ethioxchange"
}

func (e *Ethioxchange) Fetch(ctx context.Context) ([]model.Rate, error) {
	page, err := e.renderer.Render(ctx, ports.RenderRequest{
		URL:          fmt.Sprintf("%s/bank/%s", e.baseURL, e.bank),
		WaitSelector: `table, .rate, [class*="exchange"]`,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render ethioxchange: %w", err)
	}

	if rates := ParseLivewireRates(page.HTML); len(rates) > 0 {
		return rates, nil
	}
	if rates := ParseEthioxchangeText(page.Text); len(rates) > 0 {
		return rates, nil
	}
	return nil, ports.ErrNoRates
}

type livewireState struct {
	Data struct {
		Rates []livewireRate `json:"rates"`
	} `json:"data"`
}

type livewireRate struct {
	Today string `json:"today"`
	Flag  string `json:"flag"`
}

// ParseLivewireRates reads the Livewire component snapshot embedded in the
// page. Rows whose flag is unknown are skipped.
func ParseLivewireRates(page string) []model.Rate {
	var rates []model.Rate
	for _, m := range livewireSnapshot.FindAllStringSubmatch(page, -1) {
		var state livewireState
		if err := json.Unmarshal([]byte(unescapeSnapshot(m[1])), &state); err != nil {
			continue
		}
		for _, row := range state.Data.Rates {
			code := flagCode(row.Flag)
			if code == "" {
				continue
			}
			rate, ok := lastNumber(row.Today)
			if !ok {
				continue
			}
			rates = append(rates, model.NewRate(code, rate, rate, rate))
		}
	}
	return model.NormalizeRates(rates)
}

// unescapeSnapshot undoes the HTML entity encoding of the attribute and the
// backslash-escaped quotes some pages leave inside it.
func unescapeSnapshot(attr string) string {
	return strings.ReplaceAll(html.UnescapeString(attr), `\"`, `"`)
}

func flagCode(flag string) string {
	for _, f := range ethioxchangeFlags {
		if strings.Contains(flag, f.marker) {
			return f.code
		}
	}
	return ""
}

// lastNumber picks the quote out of strings like "2 days ago 151.526<sub> birr</sub>".
func lastNumber(s string) (float64, bool) {
	matches := decimalNumber.FindAllString(s, -1)
	if len(matches) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(matches[len(matches)-1], 64)
	return v, err == nil && v > 0
}

// ParseEthioxchangeText scans rendered text for "USD ... 151.3" style quotes.
func ParseEthioxchangeText(text string) []model.Rate {
	var rates []model.Rate
	for _, p := range ethioxchangeTextPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 || v >= 1000 {
			continue
		}
		rates = append(rates, model.NewRate(p.code, v, v, v))
	}
	return model.NormalizeRates(rates)
}
