package github

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fumiya-kume/reposcan/pkg/clock"
)

var limiterEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRateLimiter_NewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(100, time.Hour)

	assert.Equal(t, 100, rl.maxTokens)
	assert.Equal(t, 100, rl.tokens)
	assert.Equal(t, time.Hour/100, rl.refillRate)

	rl = NewRateLimiter(0, time.Hour)
	assert.Equal(t, 1, rl.maxTokens)
}

func TestRateLimiter_TryTakeToken(t *testing.T) {
	rl := NewRateLimiterWithClock(2, time.Hour, clock.NewFakeClock(limiterEpoch))

	assert.True(t, rl.TryTakeToken())
	assert.True(t, rl.TryTakeToken())
	assert.False(t, rl.TryTakeToken())
	assert.Equal(t, 0, rl.GetAvailableTokens())
}

func TestRateLimiter_Refill(t *testing.T) {
	clk := clock.NewFakeClock(limiterEpoch)
	rl := NewRateLimiterWithClock(10, 10*time.Second, clk)

	for i := 0; i < 10; i++ {
		require.True(t, rl.TryTakeToken())
	}

	clk.Advance(3 * time.Second)
	assert.Equal(t, 3, rl.GetAvailableTokens())

	clk.Advance(time.Minute)
	assert.Equal(t, 10, rl.GetAvailableTokens())
}

func TestRateLimiter_Wait(t *testing.T) {
	clk := clock.NewFakeClock(limiterEpoch)
	rl := NewRateLimiterWithClock(1, time.Minute, clk)
	require.True(t, rl.TryTakeToken())

	done := make(chan error, 1)
	go func() {
		done <- rl.Wait(context.Background())
	}()

	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, time.Second, time.Millisecond)
	clk.Advance(time.Minute)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after refill")
	}
}

func TestRateLimiter_WaitWithCancellation(t *testing.T) {
	rl := NewRateLimiterWithClock(1, time.Hour, clock.NewFakeClock(limiterEpoch))
	require.True(t, rl.TryTakeToken())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}

func TestRateLimiter_Observe(t *testing.T) {
	clk := clock.NewFakeClock(limiterEpoch)
	rl := NewRateLimiterWithClock(100, time.Hour, clk)

	rl.Observe(5, limiterEpoch.Add(time.Hour))
	assert.Equal(t, 5, rl.GetAvailableTokens())

	// a higher server count never inflates the bucket
	rl.Observe(50, limiterEpoch.Add(time.Hour))
	assert.Equal(t, 5, rl.GetAvailableTokens())

	rl.Observe(0, limiterEpoch.Add(10*time.Minute))
	assert.Equal(t, 10*time.Minute, rl.GetTimeUntilNextToken())

	clk.Advance(9 * time.Minute)
	assert.False(t, rl.TryTakeToken())

	clk.Advance(time.Minute)
	assert.True(t, rl.TryTakeToken())
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiterWithClock(5, time.Hour, clock.NewFakeClock(limiterEpoch))

	rl.TryTakeToken()
	rl.TryTakeToken()
	rl.TryTakeToken()
	assert.Equal(t, 2, rl.GetAvailableTokens())

	rl.Observe(0, limiterEpoch.Add(time.Hour))
	rl.Reset()
	assert.Equal(t, 5, rl.GetAvailableTokens())
	assert.True(t, rl.TryTakeToken())
}

func TestRateLimiter_GetTimeUntilNextToken(t *testing.T) {
	clk := clock.NewFakeClock(limiterEpoch)
	rl := NewRateLimiterWithClock(1, 100*time.Second, clk)

	assert.Equal(t, time.Duration(0), rl.GetTimeUntilNextToken())

	rl.TryTakeToken()
	clk.Advance(40 * time.Second)
	assert.Equal(t, 60*time.Second, rl.GetTimeUntilNextToken())
}

func TestRateLimiter_String(t *testing.T) {
	rl := NewRateLimiterWithClock(10, time.Hour, clock.NewFakeClock(limiterEpoch))
	assert.Contains(t, rl.String(), "tokens: 10/10")
}
