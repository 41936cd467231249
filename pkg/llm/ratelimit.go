package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// limited wraps a Provider with a token-bucket rate limit so narrative
// calls cannot hammer a remote backend under bursts of detections.
type limited struct {
	inner   Provider
	limiter *rate.Limiter
}

// RateLimited returns p throttled to rps requests per second with a burst
// of 1. A non-positive rps returns p unchanged.
func RateLimited(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	return &limited{inner: p, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

// Generate waits for a limiter token, honoring ctx cancellation, then
// delegates to the wrapped provider.
func (l *limited) Generate(ctx context.Context, prompt string, opts ...CallOption) (*Response, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, NewProviderError(ErrCodeRateLimit, "rate limit wait aborted", err)
	}
	return l.inner.Generate(ctx, prompt, opts...)
}

// Heartbeat passes through when the wrapped provider reports health.
func (l *limited) Heartbeat(ctx context.Context) error {
	if hr, ok := l.inner.(HealthReporter); ok {
		return hr.Heartbeat(ctx)
	}
	return nil
}
