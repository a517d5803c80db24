package ports

import (
	"github.com/disgoorg/snowflake/v2"
)

// VoiceStateProvider answers questions about who is in which voice channel.
type VoiceStateProvider interface {
	// GetUserVoiceChannel returns the voice channel ID the user is currently in.
	// Returns 0 if the user is not in a voice channel.
	GetUserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)

	// ChannelName returns the channel's display name, or its ID when unknown.
	ChannelName(channelID snowflake.ID) string
}
