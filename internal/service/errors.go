package service

import (
	"errors"
	"fmt"
	"strings"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
)

var (
	ErrInvalidCurrency    = errors.New("invalid currency")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid rate kind")
	ErrRateNotFound       = errors.New("exchange rate not found")
	ErrUnknownSource      = errors.New("unknown rate source")
	ErrExternalAPIFailure = errors.New("external API failure")
	ErrNoRates            = ports.ErrNoRates
)

type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// ChainError collects the failure of every source tried for one kind.
type ChainError struct {
	Kind     model.RateKind
	Failures []SourceError
}

func (e *ChainError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("%s: no rate sources configured", e.Kind)
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%s: all %d sources failed: %s", e.Kind, len(e.Failures), strings.Join(parts, "; "))
}

func (e *ChainError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Sources lists the failed source names in order.
func (e *ChainError) Sources() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Source
	}
	return names
}
