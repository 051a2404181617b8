package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"birr-rate-service/internal/domain/model"
	"birr-rate-service/internal/domain/ports"
	"birr-rate-service/pkg/logger"
)

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, "test:", logger.Discard())
}

func TestCaches(t *testing.T) {
	implementations := map[string]func(t *testing.T) ports.RateCache{
		"memory": func(t *testing.T) ports.RateCache { return NewMemoryCache(logger.Discard()) },
		"redis":  func(t *testing.T) ports.RateCache { return newRedisCache(t) },
	}

	for name, newCache := range implementations {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := newCache(t)

			if _, found := c.Get(ctx, model.Official); found {
				t.Fatal("Expected empty cache")
			}

			ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
			entry := &model.CacheEntry{
				Timestamp: ts,
				Source:    "official-json",
				Rates:     []model.Rate{{Code: "USD", Rate: 151.25, Buying: model.Float(150.5), Selling: model.Float(152)}},
			}
			if err := c.Set(ctx, model.Official, entry); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if err := c.Set(ctx, model.Parallel, &model.CacheEntry{Timestamp: ts, Source: "derived", Rates: []model.Rate{{Code: "USD", Rate: 170}}}); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			got, found := c.Get(ctx, model.Official)
			if !found {
				t.Fatal("Expected cache hit")
			}
			if !got.Timestamp.Equal(ts) || got.Source != "official-json" || len(got.Rates) != 1 {
				t.Errorf("Unexpected entry %+v", got)
			}
			if got.Rates[0].Buying == nil || *got.Rates[0].Buying != 150.5 {
				t.Errorf("Expected buying to round-trip, got %v", got.Rates[0].Buying)
			}

			got.Rates[0].Rate = 1
			again, _ := c.Get(ctx, model.Official)
			if again.Rates[0].Rate != 151.25 {
				t.Errorf("Expected cached rates to be isolated from callers, got %v", again.Rates[0].Rate)
			}

			if err := c.Clear(ctx); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			for _, kind := range []model.RateKind{model.Official, model.Parallel} {
				if _, found := c.Get(ctx, kind); found {
					t.Errorf("Expected %s to be cleared", kind)
				}
			}
		})
	}
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisCache(client, "test:", logger.Discard())

	if err := mr.Set("test:official", "not json"); err != nil {
		t.Fatal(err)
	}
	if _, found := c.Get(context.Background(), model.Official); found {
		t.Error("Expected corrupt entry to be reported as a miss")
	}
}
