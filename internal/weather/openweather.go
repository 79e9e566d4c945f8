package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"homeclimate/internal/types"
)

// maxForecastEntries bounds the hourly forecast carried into conditions.
const maxForecastEntries = 12

// OpenWeatherClient fetches current conditions and the hourly forecast from
// the OpenWeather One Call API.
type OpenWeatherClient struct {
	*BaseClient
	baseURL string
	apiKey  string
	now     func() time.Time
}

// NewOpenWeatherClient creates a client for baseURL (without trailing
// /onecall).
func NewOpenWeatherClient(base *BaseClient, baseURL, apiKey string) *OpenWeatherClient {
	return &OpenWeatherClient{
		BaseClient: base,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		now:        time.Now,
	}
}

type oneCallResponse struct {
	Current struct {
		Dt       int64          `json:"dt"`
		Temp     *float64       `json:"temp"`
		Humidity *float64       `json:"humidity"`
		Weather  []weatherLabel `json:"weather"`
	} `json:"current"`
	Hourly []struct {
		Dt       int64          `json:"dt"`
		Temp     float64        `json:"temp"`
		Humidity float64        `json:"humidity"`
		Pop      float64        `json:"pop"`
		Weather  []weatherLabel `json:"weather"`
	} `json:"hourly"`
}

type weatherLabel struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

func describe(labels []weatherLabel) string {
	if len(labels) == 0 {
		return ""
	}
	if labels[0].Description != "" {
		return labels[0].Description
	}
	return strings.ToLower(labels[0].Main)
}

// Current implements Provider.
func (c *OpenWeatherClient) Current(ctx context.Context, lat, lon float64) (*types.OutdoorConditions, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("exclude", "minutely,daily,alerts")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/onecall?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "building weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather upstream returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}

	var payload oneCallResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "decoding weather response", err)
	}

	conditions := &types.OutdoorConditions{
		TempC:      payload.Current.Temp,
		HumidityRH: payload.Current.Humidity,
		Source:     "openweather",
		FetchedAt:  c.now().UTC(),
	}
	for i, h := range payload.Hourly {
		if i >= maxForecastEntries {
			break
		}
		conditions.Forecast = append(conditions.Forecast, types.ForecastEntry{
			Time:        time.Unix(h.Dt, 0).UTC(),
			TempC:       h.Temp,
			HumidityRH:  h.Humidity,
			Pop:         h.Pop,
			Description: describe(h.Weather),
		})
	}
	// The first hourly entry is the current hour.
	if len(conditions.Forecast) > 0 && !conditions.Forecast[0].Time.After(conditions.FetchedAt) {
		conditions.Forecast = conditions.Forecast[1:]
	}
	return conditions, nil
}
