package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClock(t *testing.T) {
	clock := NewRealClock()

	start := clock.Now()
	<-clock.After(10 * time.Millisecond)

	assert.True(t, clock.Since(start) >= 10*time.Millisecond)
}

func TestFakeClockNow(t *testing.T) {
	baseTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(baseTime)

	assert.Equal(t, baseTime, clock.Now())

	clock.Advance(time.Hour)
	assert.Equal(t, baseTime.Add(time.Hour), clock.Now())
	assert.Equal(t, time.Hour, clock.Since(baseTime))
}

func TestFakeClockAfter(t *testing.T) {
	baseTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(baseTime)

	ch := clock.After(0)
	select {
	case received := <-ch:
		assert.Equal(t, baseTime, received)
	default:
		t.Fatal("expected immediate firing for zero duration")
	}

	ch = clock.After(time.Hour)
	assert.Equal(t, 1, clock.Waiters())

	select {
	case <-ch:
		t.Fatal("should not fire before the deadline")
	default:
	}

	clock.Advance(30 * time.Minute)
	select {
	case <-ch:
		t.Fatal("should not fire halfway")
	default:
	}

	clock.Advance(30 * time.Minute)
	select {
	case received := <-ch:
		assert.Equal(t, baseTime.Add(time.Hour), received)
	default:
		t.Fatal("expected channel to fire after advancing clock")
	}
	assert.Equal(t, 0, clock.Waiters())
}

func TestFakeClockSet(t *testing.T) {
	baseTime := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewFakeClock(baseTime)

	ch := clock.After(time.Minute)
	later := baseTime.Add(24 * time.Hour)
	clock.Set(later)

	select {
	case received := <-ch:
		assert.Equal(t, later, received)
	default:
		t.Fatal("expected Set past the deadline to fire the waiter")
	}
}
