package infrastructure

import (
	"context"
	"fmt"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
	"golang.org/x/time/rate"
)

// Ensure RateLimitedResolver implements ports.TrackResolver.
var _ ports.TrackResolver = (*RateLimitedResolver)(nil)

// RateLimitedResolver bounds how often the wrapped resolver runs across all guilds.
// Callers wait for a token; a cancelled context aborts the wait.
type RateLimitedResolver struct {
	next    ports.TrackResolver
	limiter *rate.Limiter
}

// NewRateLimitedResolver wraps next with a limiter allowing perSecond resolutions
// and bursts of up to burst. A non-positive perSecond disables the limit.
func NewRateLimitedResolver(next ports.TrackResolver, perSecond float64, burst int) *RateLimitedResolver {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedResolver{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Resolve waits for the limiter and delegates to the wrapped resolver.
func (r *RateLimitedResolver) Resolve(
	ctx context.Context,
	query *domain.SearchQuery,
) (*domain.TrackMetadata, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for resolver rate limit: %w", err)
	}
	return r.next.Resolve(ctx, query)
}
