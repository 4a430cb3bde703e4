package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var waitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "ctxdoc",
	Subsystem: "ratelimit",
	Name:      "wait_seconds",
	Help:      "Time callers spent blocked in Acquire.",
	Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
})

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter enforces a minimum interval between successive Acquire returns.
// One instance is shared by every job runner in the process.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time
	clk         func() time.Time
	sleep       SleepFunc
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(clk func() time.Time) Option {
	return func(l *Limiter) {
		if clk != nil {
			l.clk = clk
		}
	}
}

// WithSleep replaces the timer-based sleep.
func WithSleep(s SleepFunc) Option {
	return func(l *Limiter) {
		if s != nil {
			l.sleep = s
		}
	}
}

// New builds a limiter allowing rate calls per second. rate <= 0 disables throttling.
func New(rate float64, opts ...Option) *Limiter {
	l := &Limiter{
		minInterval: IntervalFor(rate),
		clk:         time.Now,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IntervalFor converts requests per second to the minimum spacing between calls.
func IntervalFor(rate float64) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / rate)
}

func (l *Limiter) MinInterval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minInterval
}

// SetRate changes the interval for subsequent calls.
func (l *Limiter) SetRate(rate float64) {
	l.mu.Lock()
	l.minInterval = IntervalFor(rate)
	l.mu.Unlock()
}

// Acquire blocks until minInterval has passed since the previous Acquire
// returned, then records the current time. The lock is held while sleeping so
// concurrent callers are serialized. A cancelled ctx aborts the wait without
// recording a call.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := l.clk()
	if l.minInterval > 0 && !l.last.IsZero() {
		elapsed := start.Sub(l.last)
		// clock went backwards: treat as no time passed
		if elapsed < 0 {
			elapsed = 0
		}
		if wait := l.minInterval - elapsed; wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	l.last = l.clk()
	waitSeconds.Observe(l.last.Sub(start).Seconds())
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
