package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MimeLyc/contextual-doc-translator/pkg/log"
)

// BreakerSettings controls the per-provider circuit breaker.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker; 0 disables it.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

type breakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps p so repeated failures fail fast with a ProviderError
// instead of reaching the network.
func WithBreaker(p Provider, s BreakerSettings) Provider {
	if s.ConsecutiveFailures == 0 {
		return p
	}
	threshold := s.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    p.Name(),
		Timeout: s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// a cancelled caller says nothing about provider health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Provider %s circuit breaker: %s -> %s", name, from, to)
		},
	})
	return &breakerProvider{inner: p, cb: cb}
}

func (b *breakerProvider) Name() string { return b.inner.Name() }

func (b *breakerProvider) Translate(ctx context.Context, text, prompt string, glossary map[string]string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Translate(ctx, text, prompt, glossary)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", newError(b.Name(), err, "temporarily unavailable")
		}
		return "", err
	}
	return out.(string), nil
}

// Unwrap exposes the wrapped provider.
func (b *breakerProvider) Unwrap() Provider { return b.inner }
