package ai

import (
	"context"

	"golang.org/x/time/rate"
)

type rateLimitEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

// WrapRateLimitEmbedder throttles calls to next to rps per second. A non positive rps
// returns next unchanged.
func WrapRateLimitEmbedder(next IEmbedder, rps float64, burst int) IEmbedder {
	if next == nil || rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitEmbedder{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimitEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, text, taskType)
}

func (r *rateLimitEmbedder) ModelName() string {
	return r.next.ModelName()
}
