package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"homeclimate/internal/rates"
	"homeclimate/internal/types"
)

func makeRatesRouter(t *testing.T, now time.Time) http.Handler {
	t.Helper()
	h := NewRatesHandler(rates.NewStaticResolver(), toronto(t), types.PlanTOU, testLogger())
	h.now = func() time.Time { return now }
	r := chi.NewRouter()
	r.Route("/v1/rates", h.RegisterRoutes)
	return r
}

func getRates(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleCurrent_ExplicitPlanAndTime(t *testing.T) {
	router := makeRatesRouter(t, time.Now())

	tests := []struct {
		name   string
		target string
		price  float64
		label  string
	}{
		{"local offset", "/v1/rates/current?plan=ULO&at=2025-07-16T17:30:00-04:00", 39.1, rates.LabelOnPeak},
		{"utc converted to household time", "/v1/rates/current?plan=ulo&at=2025-07-16T21:30:00Z", 39.1, rates.LabelOnPeak},
		{"late evening previous local day", "/v1/rates/current?plan=ULO&at=2025-07-16T02:00:00Z", 15.7, rates.LabelMidPeak},
		{"ultra-low overnight", "/v1/rates/current?plan=ULO&at=2025-07-16T03:00:00Z", 3.9, rates.LabelUltraLow},
		{"tou summer on-peak", "/v1/rates/current?plan=TOU&at=2025-07-16T12:00:00-04:00", 20.3, rates.LabelOnPeak},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := getRates(t, router, tc.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			var got rates.Rate
			decodeData(t, rec, &got)
			if got.PriceCentsPerKWh != tc.price || got.PeriodLabel != tc.label {
				t.Errorf("got %.1f %q, want %.1f %q", got.PriceCentsPerKWh, got.PeriodLabel, tc.price, tc.label)
			}
		})
	}
}

func TestHandleCurrent_Defaults(t *testing.T) {
	// Saturday afternoon in Toronto.
	saturday := time.Date(2025, 7, 19, 18, 0, 0, 0, time.UTC)
	rec := getRates(t, makeRatesRouter(t, saturday), "/v1/rates/current")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got rates.Rate
	decodeData(t, rec, &got)
	if got.PlanType != types.PlanTOU || got.DayType != types.DayTypeWeekend || got.PriceCentsPerKWh != 9.8 {
		t.Errorf("unexpected default rate %+v", got)
	}
}

func TestHandleCurrent_InvalidInput(t *testing.T) {
	router := makeRatesRouter(t, time.Now())

	tests := []struct {
		target string
		code   types.ErrorCode
	}{
		{"/v1/rates/current?plan=FLAT", types.ErrCodeValidationInvalidPlan},
		{"/v1/rates/current?at=yesterday", types.ErrCodeValidationInvalidTime},
		{"/v1/rates/schedule?plan=nope", types.ErrCodeValidationInvalidPlan},
	}
	for _, tc := range tests {
		rec := getRates(t, router, tc.target)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", tc.target, rec.Code)
			continue
		}
		if got := decodeErrorCode(t, rec); got != string(tc.code) {
			t.Errorf("%s: code = %s, want %s", tc.target, got, tc.code)
		}
	}
}

func TestHandleSchedule(t *testing.T) {
	router := makeRatesRouter(t, time.Now())

	rec := getRates(t, router, "/v1/rates/schedule?plan=TIERED&at=2025-01-15T12:00:00-05:00")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var tiered rates.Schedule
	decodeData(t, rec, &tiered)
	if tiered.Season != types.SeasonWinter || tiered.Tiers == nil || tiered.Tiers.ThresholdKWh != 1000 {
		t.Errorf("unexpected tiered schedule %+v", tiered)
	}
	if len(tiered.Weekday) != 0 {
		t.Errorf("tiered schedule should have no periods: %+v", tiered.Weekday)
	}

	rec = getRates(t, router, "/v1/rates/schedule?plan=TOU&at=2025-07-16T12:00:00-04:00")
	var tou rates.Schedule
	decodeData(t, rec, &tou)
	if tou.Season != types.SeasonSummer || len(tou.Weekday) != 5 || len(tou.Weekend) != 1 {
		t.Errorf("unexpected TOU schedule %+v", tou)
	}
}
