package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	maxBodyBytes = 4 << 20
	baseDelay    = 500 * time.Millisecond
	maxDelay     = 8 * time.Second
)

// HTTPError captures a non-2xx upstream answer.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: unexpected status code: %d, body: %s", e.URL, e.StatusCode, string(body))
}

func (e *HTTPError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	if clone.Header.Get("Accept-Language") == "" {
		clone.Header.Set("Accept-Language", "en-US,en;q=0.9")
	}
	return rt.wrapped.RoundTrip(clone)
}

// Fetcher performs plain GETs against upstream pages and APIs.
type Fetcher struct {
	client  *http.Client
	retries int
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewFetcher(userAgent string, timeout time.Duration, retries int) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &userAgentRoundTripper{
				wrapped:   http.DefaultTransport,
				userAgent: userAgent,
			},
		},
		retries: retries,
		sleep:   sleepContext,
	}
}

// SetSleepForTest replaces the backoff sleep.
func (f *Fetcher) SetSleepForTest(sleep func(ctx context.Context, d time.Duration) error) {
	f.sleep = sleep
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the body of url, retrying retryable statuses with exponential
// backoff and jitter.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	delay := baseDelay
	var err error

	for attempt := 0; attempt <= f.retries; attempt++ {
		var body []byte
		if body, err = f.get(ctx, url); err == nil {
			return body, nil
		}

		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || !httpErr.Retryable() || attempt == f.retries {
			break
		}

		jitter := time.Duration(rand.Int64N(int64(delay)))
		if sleepErr := f.sleep(ctx, delay+jitter); sleepErr != nil {
			return nil, sleepErr
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}

	return nil, err
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode, Body: body}
	}
	return body, nil
}

func (f *Fetcher) GetText(ctx context.Context, url string) (string, error) {
	body, err := f.Get(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (f *Fetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}
