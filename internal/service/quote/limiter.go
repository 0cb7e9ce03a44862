package quote

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacer throttles requests against the quote API quota and tracks the
// penalty backoff applied after 429 responses.
type pacer struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	backoff time.Duration
	maxWait time.Duration
}

// newPacer converts a per-minute quota into a token bucket. Burst is capped
// at 5 so a cold start cannot blow through the quota.
func newPacer(perMinute int) *pacer {
	if perMinute <= 0 {
		perMinute = 60
	}
	rps := float64(perMinute) / 60.0
	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	if burst > 5 {
		burst = 5
	}
	return &pacer{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		backoff: 100 * time.Millisecond,
		maxWait: 2 * time.Minute,
	}
}

// Wait blocks until a token is available or the context is cancelled.
func (p *pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// SignalRateLimited doubles the penalty backoff after a 429.
func (p *pacer) SignalRateLimited() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backoff *= 2
	if p.backoff > p.maxWait {
		p.backoff = p.maxWait
	}
}

// ResetBackoff restores the base backoff after a successful request.
func (p *pacer) ResetBackoff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backoff = 100 * time.Millisecond
}

// Backoff returns the current penalty backoff.
func (p *pacer) Backoff() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backoff
}
