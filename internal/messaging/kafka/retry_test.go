package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
)

type flakyEvents struct {
	failures int
	calls    int
	err      error
}

func (f *flakyEvents) Publish(context.Context, domain.OrderEvent) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func newTestRetryingPublisher(next domain.OrderEvents, cfg RetryConfig, breaker *CircuitBreaker) (*RetryingPublisher, *[]time.Duration) {
	p := NewRetryingPublisher(next, cfg, breaker, nil)
	var waits []time.Duration
	p.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return p, &waits
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Positive(t, cfg.InitialDelay)
	assert.Positive(t, cfg.MaxDelay)
	assert.Greater(t, cfg.BackoffFactor, 1.0)
}

func TestRetryingPublisher_RetriesUntilSuccess(t *testing.T) {
	next := &flakyEvents{failures: 2, err: errors.New("broker unavailable")}
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: 10 * time.Millisecond, MaxDelay: 15 * time.Millisecond, BackoffFactor: 2}
	p, waits := newTestRetryingPublisher(next, cfg, nil)

	err := p.Publish(context.Background(), domain.NewOrderEvent(domain.OrderEventCreated, 1, 1))

	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 15 * time.Millisecond}, *waits)
}

func TestRetryingPublisher_GivesUpAfterMaxAttempts(t *testing.T) {
	brokerErr := errors.New("broker unavailable")
	next := &flakyEvents{failures: 10, err: brokerErr}
	p, waits := newTestRetryingPublisher(next, RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, nil)

	err := p.Publish(context.Background(), domain.NewOrderEvent(domain.OrderEventDeleted, 1, 0))

	require.ErrorIs(t, err, brokerErr)
	assert.Equal(t, 2, next.calls)
	assert.Len(t, *waits, 1)
}

func TestRetryingPublisher_DoesNotRetryCanceledContext(t *testing.T) {
	next := &flakyEvents{failures: 10, err: context.Canceled}
	p, _ := newTestRetryingPublisher(next, DefaultRetryConfig(), nil)

	err := p.Publish(context.Background(), domain.NewOrderEvent(domain.OrderEventUpdated, 1, 0))

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}

func TestRetryingPublisher_ZeroAttemptsStillPublishesOnce(t *testing.T) {
	next := &flakyEvents{}
	p, _ := newTestRetryingPublisher(next, RetryConfig{}, nil)

	require.NoError(t, p.Publish(context.Background(), domain.NewOrderEvent(domain.OrderEventCreated, 1, 0)))
	assert.Equal(t, 1, next.calls)
}

func TestRetryingPublisher_StopsWhenBreakerOpens(t *testing.T) {
	next := &flakyEvents{failures: 10, err: errors.New("broker unavailable")}
	breaker := NewCircuitBreaker(1, time.Minute, nil)
	p, _ := newTestRetryingPublisher(next, RetryConfig{MaxAttempts: 5}, breaker)

	err := p.Publish(context.Background(), domain.NewOrderEvent(domain.OrderEventCreated, 1, 0))

	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, CircuitOpen, breaker.State())
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}

func TestCircuitBreaker_Lifecycle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Second, nil)
	cb.now = func() time.Time { return now }

	failing := func() error { return errors.New("boom") }
	ok := func() error { return nil }

	require.Error(t, cb.Execute(failing))
	assert.Equal(t, CircuitClosed, cb.State())
	require.Error(t, cb.Execute(failing))
	assert.Equal(t, CircuitOpen, cb.State())

	require.ErrorIs(t, cb.Execute(ok), ErrCircuitOpen)

	now = now.Add(2 * time.Second)
	require.Error(t, cb.Execute(failing))
	assert.Equal(t, CircuitOpen, cb.State(), "failed probe reopens the breaker")

	now = now.Add(2 * time.Second)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, CircuitClosed, cb.State())
}
