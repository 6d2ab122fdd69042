package errors

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/fumiya-kume/reposcan/pkg/clock"
)

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts         int
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the retry configuration used for hosting API calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:         3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         5 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
	}
}

// RetryableFunc is a function that can be retried
type RetryableFunc func() error

// ShouldRetryFunc determines if an error should trigger a retry
type ShouldRetryFunc func(error) bool

// DefaultShouldRetry retries only recoverable remote operation failures
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return IsType(err, ErrorTypeRemoteOperation) && IsRecoverable(err)
}

// Retry executes a function with retry logic on the real clock
func Retry(ctx context.Context, config RetryConfig, fn RetryableFunc, shouldRetry ShouldRetryFunc) error {
	return RetryWithClock(ctx, clock.NewRealClock(), config, fn, shouldRetry)
}

// RetryWithClock executes a function with retry logic using a custom clock.
// Errors that shouldRetry rejects are returned unchanged.
func RetryWithClock(ctx context.Context, clk clock.Clock, config RetryConfig, fn RetryableFunc, shouldRetry ShouldRetryFunc) error {
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	interval := config.InitialInterval

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(err) {
			return err
		}

		if attempt == config.MaxAttempts-1 {
			break
		}

		nextInterval := time.Duration(float64(interval) * config.Multiplier)
		if nextInterval > config.MaxInterval {
			nextInterval = config.MaxInterval
		}

		maxJitter := int64(float64(nextInterval) * config.RandomizationFactor)
		if maxJitter > 0 {
			jitterValue, err := rand.Int(rand.Reader, big.NewInt(maxJitter*2))
			if err == nil {
				nextInterval += time.Duration(jitterValue.Int64() - maxJitter)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(interval):
		}

		interval = nextInterval
	}

	return NewError(ErrorTypeRemoteOperation).
		WithMessage("operation failed after maximum retry attempts").
		WithCause(lastErr).
		WithSeverity(SeverityHigh).
		WithContext("max_attempts", config.MaxAttempts).
		Build()
}
