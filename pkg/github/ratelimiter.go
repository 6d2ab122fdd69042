package github

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fumiya-kume/reposcan/pkg/clock"
)

// RateLimiter implements a token bucket rate limiter for GitHub API calls.
// The bucket also follows the quota GitHub reports back on each response.
type RateLimiter struct {
	clock      clock.Clock
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
	// blockedUntil is set when the server reports an exhausted quota
	blockedUntil time.Time
	mutex        sync.Mutex
}

// NewRateLimiter creates a limiter allowing maxRequests per window
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return NewRateLimiterWithClock(maxRequests, window, clock.NewRealClock())
}

// NewRateLimiterWithClock creates a new rate limiter with a custom clock
func NewRateLimiterWithClock(maxRequests int, window time.Duration, clk clock.Clock) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	return &RateLimiter{
		clock:      clk,
		tokens:     maxRequests,
		maxTokens:  maxRequests,
		refillRate: window / time.Duration(maxRequests),
		lastRefill: clk.Now(),
	}
}

// Wait blocks until a token is available or ctx is canceled
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.TryTakeToken() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(r.GetTimeUntilNextToken()):
		}
	}
}

// TryTakeToken takes a token without blocking
func (r *RateLimiter) TryTakeToken() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.refillLocked()
	if r.clock.Now().Before(r.blockedUntil) {
		return false
	}
	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// Observe aligns the bucket with the remaining quota reported by GitHub.
// An exhausted quota blocks the limiter until reset.
func (r *RateLimiter) Observe(remaining int, reset time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.refillLocked()
	if remaining < r.tokens {
		r.tokens = remaining
	}
	if remaining <= 0 && reset.After(r.clock.Now()) {
		r.blockedUntil = reset
	}
}

func (r *RateLimiter) refillLocked() {
	tokensToAdd := int(r.clock.Since(r.lastRefill) / r.refillRate)
	if tokensToAdd <= 0 {
		return
	}
	r.tokens += tokensToAdd
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = r.clock.Now()
}

// GetAvailableTokens returns the current number of available tokens
func (r *RateLimiter) GetAvailableTokens() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.refillLocked()
	return r.tokens
}

// GetTimeUntilNextToken returns the duration until the next token is available
func (r *RateLimiter) GetTimeUntilNextToken() time.Duration {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if wait := r.blockedUntil.Sub(r.clock.Now()); wait > 0 {
		return wait
	}
	if r.tokens > 0 {
		return 0
	}
	return r.refillRate - r.clock.Since(r.lastRefill)
}

// Reset restores a full bucket and clears any server-imposed block
func (r *RateLimiter) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.tokens = r.maxTokens
	r.lastRefill = r.clock.Now()
	r.blockedUntil = time.Time{}
}

// String returns a string representation of the rate limiter status
func (r *RateLimiter) String() string {
	return fmt.Sprintf("RateLimiter{tokens: %d/%d, nextRefill: %v}",
		r.GetAvailableTokens(), r.maxTokens, r.GetTimeUntilNextToken())
}
