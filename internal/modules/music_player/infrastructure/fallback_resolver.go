package infrastructure

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// Ensure FallbackResolver implements ports.TrackResolver.
var _ ports.TrackResolver = (*FallbackResolver)(nil)

// FallbackResolver tries each resolver in order and returns the first success.
// A resolver answering ErrUnsupportedQuery is skipped without being reported.
type FallbackResolver struct {
	resolvers []ports.TrackResolver
}

// NewFallbackResolver creates a new FallbackResolver.
func NewFallbackResolver(resolvers ...ports.TrackResolver) *FallbackResolver {
	return &FallbackResolver{resolvers: resolvers}
}

// Resolve returns the first successful resolution. If all fail, the first
// real error is returned.
func (r *FallbackResolver) Resolve(
	ctx context.Context,
	query *domain.SearchQuery,
) (*domain.TrackMetadata, error) {
	var firstErr error
	for i, resolver := range r.resolvers {
		meta, err := resolver.Resolve(ctx, query)
		if err == nil {
			if i > 0 {
				slog.Info("resolved track with fallback resolver",
					"query", query.Query,
					"resolver", i,
				)
			}
			return meta, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if errors.Is(err, ErrUnsupportedQuery) {
			continue
		}

		slog.Warn("resolver failed",
			"query", query.Query,
			"resolver", i,
			"error", err,
		)
		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = ErrUnsupportedQuery
	}
	return nil, firstErr
}
