package providers

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimited wraps a Provider with a token-bucket limiter, implementing
// spec §5's "implicit semaphore" resource policy: a provider role with a
// configured RateLimitRPS never issues more than that many calls per
// second, queuing callers rather than letting them pile onto a burst.
type rateLimited struct {
	Provider
	limiter *rate.Limiter
}

// withRateLimit wraps p in a limiter when rps > 0, otherwise returns p
// unchanged — the zero-config case stays exactly a direct call.
func withRateLimit(p Provider, rps float64) Provider {
	if rps <= 0 {
		return p
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{Provider: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.Chat(ctx, req)
}

func (r *rateLimited) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Provider.ChatStream(ctx, req, onChunk)
}
