package scrape

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"birr-rate-service/internal/domain/model"
)

var currencyNames = map[string]string{
	"us dollar":           "USD",
	"u.s. dollar":         "USD",
	"dollar(usa)":         "USD",
	"euro":                "EUR",
	"pound sterling":      "GBP",
	"british pound":       "GBP",
	"japanese yen":        "JPY",
	"yen":                 "JPY",
	"chinese yuan":        "CNY",
	"yuan renminbi":       "CNY",
	"saudi riyal":         "SAR",
	"saudi arabian riyal": "SAR",
	"uae dirham":          "AED",
	"emirati dirham":      "AED",
	"kenyan shilling":     "KES",
	"sudanese pound":      "SDG",
	"canadian dollar":     "CAD",
	"australian dollar":   "AUD",
	"swiss franc":         "CHF",
	"swedish krona":       "SEK",
	"norwegian krone":     "NOK",
	"danish krone":        "DKK",
	"south african rand":  "ZAR",
	"indian rupee":        "INR",
	"kuwaiti dinar":       "KWD",
}

// namesByLength orders names for substring matching, longest first.
var namesByLength = func() []string {
	names := make([]string, 0, len(currencyNames))
	for name := range currencyNames {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

var (
	codeToken   = regexp.MustCompile(`\b([A-Z]{3})\b`)
	spaces      = regexp.MustCompile(`\s+`)
	nonNumeric  = regexp.MustCompile(`[^0-9.]+`)
	currencyHdr = regexp.MustCompile(`curr|code|currency|name`)
	rateHdr     = regexp.MustCompile(`rate|buy|sell|average|avg|mid`)
	averageHdr  = regexp.MustCompile(`average|avg|mid`)
	buyHdr      = regexp.MustCompile(`buy`)
	sellHdr     = regexp.MustCompile(`sell`)
)

// CurrencyCode maps a table cell such as "US Dollar" or "USD - Dollar" to an
// ISO code. It returns "" when nothing matches.
func CurrencyCode(raw string) string {
	key := strings.ToLower(strings.TrimSpace(spaces.ReplaceAllString(raw, " ")))
	if code, ok := currencyNames[key]; ok {
		return code
	}
	if m := codeToken.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	for _, name := range namesByLength {
		if strings.Contains(key, name) {
			return currencyNames[name]
		}
	}
	return ""
}

// ParseNumber strips everything except digits and dots. Empty or malformed
// cells report ok=false.
func ParseNumber(s string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

type tableColumns struct {
	currency, average, buy, sell int
}

func findColumn(headers []string, re *regexp.Regexp) int {
	for i, h := range headers {
		if re.MatchString(h) {
			return i
		}
	}
	return -1
}

func tableHeaders(tbl *goquery.Selection) []string {
	cells := tbl.Find("thead th")
	if cells.Length() == 0 {
		cells = tbl.Find("tr").First().Find("th")
	}
	return cells.Map(func(_ int, th *goquery.Selection) string {
		return strings.ToLower(strings.TrimSpace(th.Text()))
	})
}

// ParseRatesFromHTML extracts ETB rates from every table that has both a
// currency-like and a rate-like header.
func ParseRatesFromHTML(html string) []model.Rate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var rates []model.Rate
	doc.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		headers := tableHeaders(tbl)
		cols := tableColumns{
			currency: findColumn(headers, currencyHdr),
			average:  findColumn(headers, averageHdr),
			buy:      findColumn(headers, buyHdr),
			sell:     findColumn(headers, sellHdr),
		}
		if cols.currency < 0 || findColumn(headers, rateHdr) < 0 {
			return
		}

		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
				return strings.TrimSpace(td.Text())
			})
			if rate, ok := parseRow(cells, cols); ok {
				rates = append(rates, rate)
			}
		})
	})

	return model.NormalizeRates(rates)
}

func parseRow(cells []string, cols tableColumns) (model.Rate, bool) {
	if len(cells) < 2 || cols.currency >= len(cells) {
		return model.Rate{}, false
	}
	code := CurrencyCode(cells[cols.currency])
	if code == "" {
		return model.Rate{}, false
	}

	cell := func(idx int) (float64, bool) {
		if idx < 0 || idx >= len(cells) {
			return 0, false
		}
		v, ok := ParseNumber(cells[idx])
		return v, ok && v > 0
	}

	buying, hasBuy := cell(cols.buy)
	selling, hasSell := cell(cols.sell)

	var rate float64
	switch avg, hasAvg := cell(cols.average); {
	case hasBuy && hasSell:
		rate = (buying + selling) / 2
	case hasAvg:
		rate = avg
	default:
		for i := range cells {
			if i == cols.currency {
				continue
			}
			if v, ok := cell(i); ok {
				rate = v
				break
			}
		}
	}
	if rate <= 0 {
		return model.Rate{}, false
	}

	return model.NewRate(code, rate, buying, selling), true
}
