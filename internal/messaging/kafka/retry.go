package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salesorders/internal/domain"
)

// ErrCircuitOpen is returned while the breaker rejects publishes.
var ErrCircuitOpen = errors.New("kafka publisher circuit breaker is open")

// RetryConfig controls the backoff between publish attempts.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the settings used by the service.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// RetryingPublisher retries failed publishes with exponential backoff.
type RetryingPublisher struct {
	next    domain.OrderEvents
	config  RetryConfig
	breaker *CircuitBreaker
	logger  *log.Entry
	wait    func(ctx context.Context, d time.Duration) error
}

// NewRetryingPublisher wraps next. breaker may be nil.
func NewRetryingPublisher(next domain.OrderEvents, config RetryConfig, breaker *CircuitBreaker, logger *log.Entry) *RetryingPublisher {
	if logger == nil {
		logger = log.WithField("component", "kafka-retrying-publisher")
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	return &RetryingPublisher{
		next:    next,
		config:  config,
		breaker: breaker,
		logger:  logger,
		wait:    sleepContext,
	}
}

func (p *RetryingPublisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	var lastErr error
	delay := p.config.InitialDelay

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		err := p.attempt(ctx, event)
		if err == nil {
			if attempt > 1 {
				p.logger.WithFields(log.Fields{
					"event_type": event.Type,
					"order_id":   event.OrderID,
					"attempt":    attempt,
				}).Info("order event published after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt < p.config.MaxAttempts {
			p.logger.WithFields(log.Fields{
				"event_type": event.Type,
				"order_id":   event.OrderID,
				"attempt":    attempt,
				"delay":      delay,
				"error":      err,
			}).Warn("order event publish failed, retrying")

			if err := p.wait(ctx, delay); err != nil {
				return err
			}
			delay = time.Duration(float64(delay) * p.config.BackoffFactor)
			if p.config.MaxDelay > 0 && delay > p.config.MaxDelay {
				delay = p.config.MaxDelay
			}
		}
	}

	return lastErr
}

func (p *RetryingPublisher) attempt(ctx context.Context, event domain.OrderEvent) error {
	if p.breaker == nil {
		return p.next.Publish(ctx, event)
	}
	return p.breaker.Execute(func() error {
		return p.next.Publish(ctx, event)
	})
}

func shouldRetry(err error) bool {
	return !errors.Is(err, ErrCircuitOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CircuitState is the breaker position.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker stops calling the broker after maxFailures consecutive
// failures and lets a single probe through once resetTimeout has passed.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time
	logger       *log.Entry

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	state       CircuitState
}

func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, logger *log.Entry) *CircuitBreaker {
	if logger == nil {
		logger = log.WithField("component", "kafka-circuit-breaker")
	}
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
		logger:       logger,
		state:        CircuitClosed,
	}
}

// State reports the current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Execute runs fn unless the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastFailure) <= cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = CircuitHalfOpen
		cb.logger.Info("circuit breaker half-open")
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
			if cb.state != CircuitOpen {
				cb.logger.WithField("failures", cb.failures).Warn("circuit breaker opened")
			}
			cb.state = CircuitOpen
		}
		return err
	}

	if cb.state == CircuitHalfOpen {
		cb.logger.Info("circuit breaker closed")
	}
	cb.state = CircuitClosed
	cb.failures = 0
	return nil
}

var _ domain.OrderEvents = (*RetryingPublisher)(nil)
