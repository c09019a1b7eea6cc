package media

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestSpacing is the provider's mandated minimum delay between calls.
const DefaultRequestSpacing = 1200 * time.Millisecond

// Pacer serialises upstream provider calls process-wide, guaranteeing a
// minimum spacing between consecutive requests regardless of how many
// resolutions run concurrently.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer builds a pacer enforcing the given minimum interval between calls.
func NewPacer(minInterval time.Duration) *Pacer {
	if minInterval <= 0 {
		minInterval = DefaultRequestSpacing
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// AwaitSlot blocks until the next provider call is allowed or ctx is done.
// The slot is consumed before control returns, so concurrent callers cannot
// observe a stale "last call" time.
func (p *Pacer) AwaitSlot(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return errors.New("media: pacer not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return p.limiter.Wait(ctx)
}
