package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fail(_ context.Context) (int, error) { return 0, errors.New("fail") }
func ok(_ context.Context) (int, error)   { return 42, nil }

func trip(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_, _ = Execute(context.Background(), cb, fail)
	}
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("grid", DefaultConfig())

	val, err := Execute(context.Background(), cb, ok)
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("geocode", Config{FailureThreshold: 3, ResetTimeout: time.Minute})
	trip(cb, 3)
	assert.Equal(t, CircuitOpen, cb.State())

	val, err := Execute(context.Background(), cb, func(_ context.Context) (int, error) {
		t.Error("should not be called when circuit is open")
		return 1, nil
	})
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Contains(t, err.Error(), "geocode")
	assert.Zero(t, val)
}

func TestCircuitBreaker_SuccessResetsCounter(t *testing.T) {
	cb := NewCircuitBreaker("anchor", Config{FailureThreshold: 3, ResetTimeout: time.Minute})
	trip(cb, 2)

	failures, state := cb.Counters()
	assert.Equal(t, 2, failures)
	assert.Equal(t, CircuitClosed, state)

	_, err := Execute(context.Background(), cb, ok)
	require.NoError(t, err)
	failures, _ = cb.Counters()
	assert.Zero(t, failures)
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("rent", Config{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
	cb.nowFunc = func() time.Time { return now }

	trip(cb, 2)
	require.Equal(t, CircuitOpen, cb.State())

	cb.nowFunc = func() time.Time { return now.Add(200 * time.Millisecond) }
	assert.Equal(t, CircuitHalfOpen, cb.State())

	_, err := Execute(context.Background(), cb, ok)
	require.NoError(t, err)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker("rent", Config{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond})
	cb.nowFunc = func() time.Time { return now }
	trip(cb, 2)

	cb.nowFunc = func() time.Time { return now.Add(200 * time.Millisecond) }
	trip(cb, 1)

	failures, state := cb.Counters()
	assert.Equal(t, CircuitOpen, state)
	assert.Equal(t, 3, failures)
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("anchor", Config{FailureThreshold: 1, ResetTimeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Execute(ctx, cb, func(ctx context.Context) (int, error) { return 0, ctx.Err() })
	require.Error(t, err)
	assert.Equal(t, CircuitClosed, cb.State())

	_, _ = Execute(context.Background(), cb, func(_ context.Context) (int, error) {
		return 0, context.Canceled
	})
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker("grid", Config{FailureThreshold: 100, ResetTimeout: time.Minute})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = Execute(context.Background(), cb, fail)
				return
			}
			_, _ = Execute(context.Background(), cb, ok)
		}()
	}
	wg.Wait()
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(0, 0)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg = FromSettings(2, 10)
	assert.Equal(t, 2, cfg.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.ResetTimeout)
}

func TestBreakers_GetOrCreate(t *testing.T) {
	b := NewBreakers(DefaultConfig())
	assert.Same(t, b.Get("geocode"), b.Get("geocode"))
	assert.NotSame(t, b.Get("geocode"), b.Get("anchor"))
}

func TestBreakers_States(t *testing.T) {
	b := NewBreakers(Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	trip(b.Get("anchor"), 1)
	_ = b.Get("geocode")

	assert.Equal(t, map[string]string{"anchor": "open", "geocode": "closed"}, b.States())
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}
