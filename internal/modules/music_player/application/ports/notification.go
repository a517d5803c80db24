package ports

import (
	"github.com/disgoorg/snowflake/v2"
)

// NotificationSender defines the interface for sending notifications to Discord channels.
type NotificationSender interface {
	// SendNowPlaying sends a "Now Playing" embed to the channel.
	SendNowPlaying(channelID snowflake.ID, info *NowPlayingInfo) error

	// SendTrackFailed reports a track that was skipped because it could not be played.
	SendTrackFailed(channelID snowflake.ID, info *TrackFailedInfo) error

	// SendError sends an error message embed to the channel.
	SendError(channelID snowflake.ID, message string) error
}
