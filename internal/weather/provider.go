// Package weather resolves outdoor conditions for a location. Providers are
// composed: an HTTP client for the real API, a deterministic mock, a fallback
// that degrades to the mock, and a cache wrapper.
package weather

import (
	"context"
	"log/slog"
	"math"
	"time"

	"homeclimate/internal/types"
)

// Provider returns outdoor conditions near lat/lon.
type Provider interface {
	Current(ctx context.Context, lat, lon float64) (*types.OutdoorConditions, error)
}

const mockForecastHours = 8

// MockProvider produces a deterministic diurnal cycle. It is used when no API
// key is configured and as the degraded fallback.
type MockProvider struct {
	now func() time.Time
}

// NewMockProvider creates a MockProvider on the wall clock.
func NewMockProvider() *MockProvider {
	return &MockProvider{now: time.Now}
}

// NewMockProviderWithClock creates a MockProvider with an injected clock.
func NewMockProviderWithClock(now func() time.Time) *MockProvider {
	return &MockProvider{now: now}
}

// Current implements Provider. Temperature peaks at 15:00 UTC and relative
// humidity moves opposite to it.
func (m *MockProvider) Current(_ context.Context, _, _ float64) (*types.OutdoorConditions, error) {
	now := m.now().UTC().Truncate(time.Minute)
	temp, rh := mockAt(now)

	out := &types.OutdoorConditions{
		TempC:      types.Float64(temp),
		HumidityRH: types.Float64(rh),
		Source:     "mock",
		Mock:       true,
		FetchedAt:  now,
	}
	start := now.Truncate(time.Hour)
	for i := 1; i <= mockForecastHours; i++ {
		t := start.Add(time.Duration(i) * time.Hour)
		ft, frh := mockAt(t)
		out.Forecast = append(out.Forecast, types.ForecastEntry{
			Time:        t,
			TempC:       ft,
			HumidityRH:  frh,
			Pop:         0.1,
			Description: "scattered clouds",
		})
	}
	return out, nil
}

func mockAt(t time.Time) (tempC, rh float64) {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	phase := math.Cos(2 * math.Pi * (hour - 15) / 24)
	tempC = math.Round((12+6*phase)*10) / 10
	rh = math.Round((65-15*phase)*10) / 10
	return tempC, rh
}

// FallbackProvider calls Primary and degrades to Secondary on error. The
// degradation is logged but not returned; the result is marked Mock when the
// secondary is a mock.
type FallbackProvider struct {
	Primary   Provider
	Secondary Provider
	Logger    *slog.Logger
}

// Current implements Provider.
func (f *FallbackProvider) Current(ctx context.Context, lat, lon float64) (*types.OutdoorConditions, error) {
	out, err := f.Primary.Current(ctx, lat, lon)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	types.LoggerFromContext(ctx, f.logger()).WarnContext(ctx, "weather provider degraded, using fallback",
		"error", err,
		"lat", lat,
		"lon", lon,
	)
	return f.Secondary.Current(ctx, lat, lon)
}

func (f *FallbackProvider) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}
