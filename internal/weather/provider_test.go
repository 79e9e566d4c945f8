package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeclimate/internal/cache"
	"homeclimate/internal/types"
)

const oneCallFixture = `{
  "current": {"dt": 1752660000, "temp": 27.4, "humidity": 58, "weather": [{"main": "Clouds", "description": "broken clouds"}]},
  "hourly": [
    {"dt": 1752660000, "temp": 27.4, "humidity": 58, "pop": 0, "weather": [{"main": "Clouds", "description": "broken clouds"}]},
    {"dt": 1752663600, "temp": 26.1, "humidity": 62, "pop": 0.2, "weather": [{"main": "Clouds", "description": ""}]},
    {"dt": 1752667200, "temp": 24.8, "humidity": 70, "pop": 0.65, "weather": [{"main": "Rain", "description": "light rain"}]}
  ]
}`

func TestOpenWeatherClient_Current(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/onecall", r.URL.Path)
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(oneCallFixture))
	}))
	defer server.Close()

	client := NewOpenWeatherClient(newTestBase(DefaultRetryPolicy()), server.URL+"/", "secret")
	client.now = func() time.Time { return time.Unix(1752660300, 0) }

	out, err := client.Current(context.Background(), 43.6532, -79.3832)
	require.NoError(t, err)

	assert.Equal(t, "secret", gotQuery["appid"])
	assert.Equal(t, "metric", gotQuery["units"])
	assert.Equal(t, "43.6532", gotQuery["lat"])

	require.NotNil(t, out.TempC)
	assert.Equal(t, 27.4, *out.TempC)
	assert.Equal(t, 58.0, *out.HumidityRH)
	assert.Equal(t, "openweather", out.Source)
	assert.False(t, out.Mock)

	require.Len(t, out.Forecast, 2, "current hour must be dropped from the forecast")
	assert.Equal(t, "clouds", out.Forecast[0].Description)
	assert.Equal(t, 0.65, out.Forecast[1].Pop)
	assert.Equal(t, "light rain", out.Forecast[1].Description)
}

func TestOpenWeatherClient_Errors(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"cod":401}`, http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := NewOpenWeatherClient(newTestBase(DefaultRetryPolicy()), server.URL, "bad").Current(context.Background(), 0, 0)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeUpstreamWeather, appErr.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"current":`))
		}))
		defer server.Close()

		_, err := NewOpenWeatherClient(newTestBase(DefaultRetryPolicy()), server.URL, "k").Current(context.Background(), 0, 0)
		assert.Error(t, err)
	})
}

func TestMockProvider_Deterministic(t *testing.T) {
	at := time.Date(2025, 7, 16, 15, 20, 0, 0, time.UTC)
	p := NewMockProviderWithClock(func() time.Time { return at })

	a, err := p.Current(context.Background(), 43.65, -79.38)
	require.NoError(t, err)
	b, _ := p.Current(context.Background(), 0, 0)

	assert.Equal(t, a, b)
	assert.True(t, a.Mock)
	assert.Equal(t, "mock", a.Source)
	assert.Len(t, a.Forecast, mockForecastHours)
	assert.Equal(t, time.Date(2025, 7, 16, 16, 0, 0, 0, time.UTC), a.Forecast[0].Time)

	// Afternoon peak is warmer and drier than the early morning trough.
	morning, _ := NewMockProviderWithClock(func() time.Time { return at.Add(-12 * time.Hour) }).Current(context.Background(), 0, 0)
	assert.Greater(t, *a.TempC, *morning.TempC)
	assert.Less(t, *a.HumidityRH, *morning.HumidityRH)
}

type stubProvider struct {
	calls atomic.Int32
	out   *types.OutdoorConditions
	err   error
}

func (s *stubProvider) Current(context.Context, float64, float64) (*types.OutdoorConditions, error) {
	s.calls.Add(1)
	return s.out, s.err
}

func TestFallbackProvider(t *testing.T) {
	live := &types.OutdoorConditions{TempC: types.Float64(20), Source: "openweather"}
	mockOut := &types.OutdoorConditions{TempC: types.Float64(12), Source: "mock", Mock: true}

	t.Run("primary ok", func(t *testing.T) {
		secondary := &stubProvider{out: mockOut}
		f := &FallbackProvider{Primary: &stubProvider{out: live}, Secondary: secondary}
		out, err := f.Current(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Same(t, live, out)
		assert.Zero(t, secondary.calls.Load())
	})

	t.Run("primary fails", func(t *testing.T) {
		f := &FallbackProvider{
			Primary:   &stubProvider{err: errors.New("boom")},
			Secondary: &stubProvider{out: mockOut},
		}
		out, err := f.Current(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.True(t, out.Mock)
	})

	t.Run("cancelled context is not masked", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		secondary := &stubProvider{out: mockOut}
		f := &FallbackProvider{Primary: &stubProvider{err: context.Canceled}, Secondary: secondary}
		_, err := f.Current(ctx, 1, 2)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, secondary.calls.Load())
	})
}

type countingRecorder struct {
	hits, misses int
}

func (r *countingRecorder) RecordCacheResult(_ string, hit bool) {
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("second call is served from cache", func(t *testing.T) {
		next := &stubProvider{out: &types.OutdoorConditions{TempC: types.Float64(19.5), Source: "openweather", FetchedAt: now}}
		rec := &countingRecorder{}
		p := &CachedProvider{Next: next, Store: cache.NewMemoryStoreWithClock(clock), TTL: 10 * time.Minute, Recorder: rec}

		first, err := p.Current(ctx, 43.6532, -79.3832)
		require.NoError(t, err)
		second, err := p.Current(ctx, 43.6511, -79.3811)
		require.NoError(t, err)

		assert.Equal(t, int32(1), next.calls.Load())
		assert.Equal(t, *first.TempC, *second.TempC)
		assert.Equal(t, 1, rec.hits)
		assert.Equal(t, 1, rec.misses)
	})

	t.Run("mock results are not cached", func(t *testing.T) {
		next := &stubProvider{out: &types.OutdoorConditions{TempC: types.Float64(12), Mock: true}}
		store := cache.NewMemoryStoreWithClock(clock)
		p := &CachedProvider{Next: next, Store: store, TTL: time.Minute}

		_, _ = p.Current(ctx, 1, 1)
		_, _ = p.Current(ctx, 1, 1)
		assert.Equal(t, int32(2), next.calls.Load())
		assert.Zero(t, store.Len())
	})

	t.Run("upstream error is returned", func(t *testing.T) {
		p := &CachedProvider{Next: &stubProvider{err: errors.New("down")}, Store: cache.NewMemoryStore(), TTL: time.Minute}
		_, err := p.Current(ctx, 1, 1)
		assert.Error(t, err)
	})

	t.Run("corrupt entry is treated as a miss", func(t *testing.T) {
		store := cache.NewMemoryStoreWithClock(clock)
		require.NoError(t, store.Set(ctx, cache.WeatherKey(1, 1), []byte("not json"), time.Minute))
		next := &stubProvider{out: &types.OutdoorConditions{TempC: types.Float64(5)}}
		p := &CachedProvider{Next: next, Store: store, TTL: time.Minute}

		out, err := p.Current(ctx, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 5.0, *out.TempC)
	})
}
