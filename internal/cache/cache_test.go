package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	clock.Advance(59 * time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(t, ok, "entry must expire exactly at ttl")
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_NonPositiveTTLStoresNothing(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), "k", []byte("v"), 0))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, time.Hour))
	buf[0] = 'X'

	got, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(got))
	got[1] = 'Y'

	again, _, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, s.Set(ctx, "long", []byte("2"), time.Hour))
	clock.Advance(2 * time.Minute)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := WeatherKey(float64(i), 0)
			_ = s.Set(ctx, key, []byte("x"), time.Minute)
			_, _, _ = s.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestWeatherKey(t *testing.T) {
	assert.Equal(t, "weather:43.65:-79.38", WeatherKey(43.6532, -79.3832))
	assert.Equal(t, WeatherKey(43.651, -79.381), WeatherKey(43.649, -79.379))
	assert.Equal(t, "weather:0.00:0.00", WeatherKey(-0.001, 0.001))
}

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Close() error {
	return m.Called().Error(0)
}

func TestRedisStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		client := new(mockRedis)
		client.On("Get", ctx, "hc:k").Return(redis.NewStringResult("payload", nil))

		got, ok, err := newRedisStoreWithClient(client, "hc:").Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("payload"), got)
		client.AssertExpectations(t)
	})

	t.Run("miss", func(t *testing.T) {
		client := new(mockRedis)
		client.On("Get", ctx, "hc:k").Return(redis.NewStringResult("", redis.Nil))

		_, ok, err := newRedisStoreWithClient(client, "hc:").Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("error", func(t *testing.T) {
		client := new(mockRedis)
		client.On("Get", ctx, "hc:k").Return(redis.NewStringResult("", errors.New("conn reset")))

		_, ok, err := newRedisStoreWithClient(client, "hc:").Get(ctx, "k")
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestRedisStore_Set(t *testing.T) {
	ctx := context.Background()
	client := new(mockRedis)
	client.On("Set", ctx, "hc:k", []byte("v"), 10*time.Minute).Return(redis.NewStatusResult("OK", nil))

	store := newRedisStoreWithClient(client, "hc:")
	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Minute))
	require.NoError(t, store.Set(ctx, "skip", []byte("v"), 0))

	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "Set", 1)
}

func TestRedisStore_Ping(t *testing.T) {
	ctx := context.Background()
	client := new(mockRedis)
	client.On("Ping", ctx).Return(redis.NewStatusResult("", errors.New("down")))

	assert.Error(t, newRedisStoreWithClient(client, "").Ping(ctx))
}
