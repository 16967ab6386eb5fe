package reveal

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const DefaultDelay = 50 * time.Millisecond

// Pacer blocks before each reveal unit.
type Pacer interface {
	Wait(ctx context.Context) error
}

// RatePacer spaces units at least delay apart, the first one included. If the
// network is slower than the pace, units that arrive late are released
// without extra waiting.
type RatePacer struct {
	limiter *rate.Limiter
}

func NewRatePacer(delay time.Duration) *RatePacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	limiter := rate.NewLimiter(limit, 1)
	// start with an empty bucket so the first unit waits too
	limiter.Allow()
	return &RatePacer{
		limiter: limiter,
	}
}

func (p *RatePacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// NoPacer releases every unit immediately.
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error {
	return ctx.Err()
}
