package ports

import (
	"context"
	"errors"

	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// TrackResolver defines the interface for turning a query into a playable stream.
type TrackResolver interface {
	// Resolve returns the stream handle and display metadata for the query.
	// The returned StreamURL must be understood by the VoiceSession the
	// resolver is paired with.
	Resolve(ctx context.Context, query *domain.SearchQuery) (*domain.TrackMetadata, error)
}

// ErrTrackNotFound is returned by a TrackResolver when the query matches nothing playable.
var ErrTrackNotFound = errors.New("no results found")
