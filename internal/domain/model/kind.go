package model

import "time"

type RateKind string

const (
	Official RateKind = "official"
	Parallel RateKind = "parallel"
	NBE      RateKind = "nbe"
)

var RateKinds = []RateKind{Official, Parallel, NBE}

func (k RateKind) IsValid() bool {
	switch k {
	case Official, Parallel, NBE:
		return true
	}
	return false
}

// Overridable reports whether admins may replace the cached list directly.
func (k RateKind) Overridable() bool {
	return k == Official || k == Parallel
}

func (k RateKind) String() string {
	return string(k)
}

const (
	DefaultOfficialWindow = 30 * time.Minute
	DefaultParallelWindow = 10 * time.Minute
	DefaultNBEWindow      = 30 * time.Minute
)

// DefaultOfficialRates is served when every official source fails and no
// earlier result is cached.
func DefaultOfficialRates() []Rate {
	return []Rate{
		{Code: "USD", Rate: 150.93},
		{Code: "EUR", Rate: 159.2},
		{Code: "GBP", Rate: 191.5},
		{Code: "AED", Rate: 41.09},
		{Code: "SAR", Rate: 40.4},
		{Code: "KWD", Rate: 484.6},
	}
}

func DefaultParallelRates() []Rate {
	return []Rate{
		{Code: "USD", Rate: 135.5},
		{Code: "EUR", Rate: 144.7},
		{Code: "GBP", Rate: 168.0},
	}
}

// DefaultRates returns the last-resort list for kind. NBE has none.
func DefaultRates(kind RateKind) []Rate {
	switch kind {
	case Official:
		return DefaultOfficialRates()
	case Parallel:
		return DefaultParallelRates()
	}
	return nil
}
