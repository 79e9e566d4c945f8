package weather

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"homeclimate/internal/cache"
	"homeclimate/internal/types"
)

// CacheRecorder receives cache hit/miss observations.
type CacheRecorder interface {
	RecordCacheResult(cacheName string, hit bool)
}

const cacheName = "weather"

// CachedProvider serves outdoor conditions from a cache.Store for TTL and
// refreshes through Next on a miss. Cache backend errors are logged and
// treated as misses. Mock results are never cached.
type CachedProvider struct {
	Next     Provider
	Store    cache.Store
	TTL      time.Duration
	Logger   *slog.Logger
	Recorder CacheRecorder
}

// Current implements Provider.
func (c *CachedProvider) Current(ctx context.Context, lat, lon float64) (*types.OutdoorConditions, error) {
	key := cache.WeatherKey(lat, lon)
	logger := types.LoggerFromContext(ctx, c.logger())

	raw, ok, err := c.Store.Get(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "weather cache read failed", "key", key, "error", err)
	}
	if ok {
		var out types.OutdoorConditions
		if jerr := json.Unmarshal(raw, &out); jerr == nil {
			c.record(true)
			return &out, nil
		}
		logger.WarnContext(ctx, "discarding corrupt weather cache entry", "key", key)
	}
	c.record(false)

	out, err := c.Next.Current(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if out.Mock {
		return out, nil
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.Store.Set(ctx, key, encoded, c.TTL); err != nil {
		logger.WarnContext(ctx, "weather cache write failed", "key", key, "error", err)
	}
	return out, nil
}

func (c *CachedProvider) record(hit bool) {
	if c.Recorder != nil {
		c.Recorder.RecordCacheResult(cacheName, hit)
	}
}

func (c *CachedProvider) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
