package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/utils"
)

type getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// JSONSource reads a rate document from a file under the public directory or
// from an http(s) URL.
type JSONSource struct {
	name      string
	location  string
	publicDir string
	fetcher   getter
}

func NewJSONSource(name, location, publicDir string, fetcher getter) *JSONSource {
	return &JSONSource{
		name:      name,
		location:  location,
		publicDir: publicDir,
		fetcher:   fetcher,
	}
}

func (s *JSONSource) Name() string {
	return s.name
}

func (s *JSONSource) Fetch(ctx context.Context) ([]model.Rate, error) {
	var (
		data []byte
		err  error
	)
	if isRemote(s.location) {
		data, err = s.fetcher.Get(ctx, s.location)
	} else {
		data, err = os.ReadFile(utils.LocalPath(s.publicDir, s.location))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.location, err)
	}

	rates, err := DecodeRates(data)
	if err != nil {
		return nil, err
	}
	if len(rates) == 0 {
		return nil, ports.ErrNoRates
	}
	return rates, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
