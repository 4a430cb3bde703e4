package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
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

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func TestIntervalFor(t *testing.T) {
	assert.Equal(t, time.Duration(0), IntervalFor(0))
	assert.Equal(t, time.Duration(0), IntervalFor(-1))
	assert.Equal(t, 500*time.Millisecond, IntervalFor(2))
	assert.Equal(t, time.Second, IntervalFor(1))
}

func TestAcquire_SpacesSequentialCalls(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	l := New(2, WithClock(clk.Now), WithSleep(clk.Sleep))

	var returns []time.Time
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(context.Background()))
		returns = append(returns, clk.Now())
	}

	for i := 1; i < len(returns); i++ {
		assert.GreaterOrEqual(t, returns[i].Sub(returns[i-1]), 500*time.Millisecond)
	}
}

func TestAcquire_NoWaitAfterIdleGap(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	slept := 0
	l := New(1, WithClock(clk.Now), WithSleep(func(ctx context.Context, d time.Duration) error {
		slept++
		return clk.Sleep(ctx, d)
	}))

	require.NoError(t, l.Acquire(context.Background()))
	clk.Sleep(context.Background(), 2*time.Second)
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 0, slept)
}

func TestAcquire_ZeroRateNeverSleeps(t *testing.T) {
	l := New(0, WithSleep(func(context.Context, time.Duration) error {
		t.Fatal("sleep should not be called")
		return nil
	}))
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
}

func TestAcquire_ConcurrentCallersAreSerialized(t *testing.T) {
	const interval = 50 * time.Millisecond
	l := New(float64(time.Second / interval))

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	tolerance := 15 * time.Millisecond
	for i := 1; i < len(times); i++ {
		assert.GreaterOrEqual(t, times[i].Sub(times[i-1]), interval-tolerance)
	}
}

func TestAcquire_CancelledContext(t *testing.T) {
	l := New(0.001)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
