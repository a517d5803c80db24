package ports

import "github.com/sglre6355/jukebot/internal/modules/music_player/domain"

// EventPublisher defines the interface for publishing events asynchronously.
type EventPublisher interface {
	PublishTrackEnded(event domain.TrackEndedEvent)
	PublishPlaybackStarted(event domain.PlaybackStartedEvent)
	PublishTrackFailed(event domain.TrackFailedEvent)
	PublishPlaybackExhausted(event domain.PlaybackExhaustedEvent)
}
