package model

import "strings"

type Currency string

const (
	ETB Currency = "ETB"
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	AED Currency = "AED"
	SAR Currency = "SAR"
	KWD Currency = "KWD"
	CAD Currency = "CAD"
)

// SupportedCurrencies are the codes accepted by the admin file update.
var SupportedCurrencies = []Currency{USD, EUR, GBP, AED, SAR, KWD, CAD}

func ParseCurrency(s string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(s)))
}

// IsValid reports whether c looks like a three-letter currency code.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for i := 0; i < len(c); i++ {
		if c[i] < 'A' || c[i] > 'Z' {
			return false
		}
	}
	return true
}

func (c Currency) IsSupported() bool {
	for _, supportedCurrency := range SupportedCurrencies {
		if c == supportedCurrency {
			return true
		}
	}
	return false
}

func (c Currency) String() string {
	return string(c)
}
