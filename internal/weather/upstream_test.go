package weather

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"homeclimate/internal/types"
)

func noWait(context.Context, time.Duration) error { return nil }

func newTestBase(policy RetryPolicy, opts ...BaseClientOption) *BaseClient {
	opts = append([]BaseClientOption{WithWaitFunc(noWait)}, opts...)
	return NewBaseClient(&http.Client{Timeout: 5 * time.Second}, "test-weather", policy, "HomeClimate-Test/1.0", opts...)
}

func mustGet(t *testing.T, ctx context.Context, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	return req
}

func TestDo_Success(t *testing.T) {
	var gotID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-Id")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	ctx := types.WithRequestID(context.Background(), "req-42")
	resp, err := newTestBase(DefaultRetryPolicy()).Do(mustGet(t, ctx, server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("unexpected body %q", body)
	}
	if gotID != "req-42" {
		t.Errorf("request id not propagated, got %q", gotID)
	}
	if gotUA != "HomeClimate-Test/1.0" {
		t.Errorf("user agent not set, got %q", gotUA)
	}
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := newTestBase(DefaultRetryPolicy()).Do(mustGet(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ErrorCode
	}{
		{"server error", http.StatusServiceUnavailable, types.ErrCodeUpstreamWeather},
		{"rate limited", http.StatusTooManyRequests, types.ErrCodeUpstreamRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestBase(DefaultRetryPolicy()).Do(mustGet(t, context.Background(), server.URL))
			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != tt.want {
				t.Errorf("code = %s, want %s", appErr.Code, tt.want)
			}
			if calls.Load() != 3 {
				t.Errorf("expected 3 attempts, got %d", calls.Load())
			}
		})
	}
}

func TestDo_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	resp, err := newTestBase(DefaultRetryPolicy()).Do(mustGet(t, context.Background(), server.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized || calls.Load() != 1 {
		t.Errorf("status=%d calls=%d", resp.StatusCode, calls.Load())
	}
}

func TestDo_OpenBreakerShortCircuits(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "trip-fast",
		Timeout: time.Hour,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 1
		},
	})
	client := newTestBase(RetryPolicy{MaxRetries: 0}, WithBreaker(cb))

	if _, err := client.Do(mustGet(t, context.Background(), server.URL)); err == nil {
		t.Fatal("expected first call to fail")
	}
	if client.BreakerState() != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", client.BreakerState())
	}

	_, err := client.Do(mustGet(t, context.Background(), server.URL))
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("expected open-state error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("open breaker must not reach upstream, calls=%d", calls.Load())
	}
}

func TestDo_StopsWhenWaitIsCancelled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cancelled := func(context.Context, time.Duration) error { return context.Canceled }
	_, err := newTestBase(DefaultRetryPolicy(), WithWaitFunc(cancelled)).Do(mustGet(t, context.Background(), server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected a single attempt, got %d", calls.Load())
	}
}

func TestComputeBackoff(t *testing.T) {
	c := newTestBase(RetryPolicy{MaxRetries: 3, MinWait: 100 * time.Millisecond, MaxWait: time.Second})

	resp := &http.Response{Header: http.Header{"Retry-After": []string{"30"}}}
	if got := c.computeBackoff(0, resp); got != time.Second {
		t.Errorf("Retry-After must be clamped to MaxWait, got %v", got)
	}

	if got := c.computeBackoff(0, nil); got != 100*time.Millisecond {
		t.Errorf("first attempt = %v, want MinWait", got)
	}

	for attempt := 1; attempt < 6; attempt++ {
		got := c.computeBackoff(attempt, nil)
		if got < 100*time.Millisecond || got > time.Second {
			t.Errorf("attempt %d backoff %v out of range", attempt, got)
		}
	}
}
