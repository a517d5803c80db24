package discord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
)

// EventHandlers handles Discord gateway events for the music player.
type EventHandlers struct {
	botID    snowflake.ID
	registry *usecases.ControllerRegistry
}

// NewEventHandlers creates a new EventHandlers.
func NewEventHandlers(botID snowflake.ID, registry *usecases.ControllerRegistry) *EventHandlers {
	return &EventHandlers{
		botID:    botID,
		registry: registry,
	}
}

// HandleVoiceStateUpdate cleans up a guild whose voice connection was ended
// from outside the bot, e.g. by a moderator disconnecting it or deleting the channel.
func (h *EventHandlers) HandleVoiceStateUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	// Only handle the bot's own disconnects
	if event.UserID != h.botID.String() || event.ChannelID != "" {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	ctrl, ok := h.registry.Get(guildID)
	if !ok {
		return
	}

	// A disconnect from a channel the controller already left behind is stale
	if event.BeforeUpdate != nil && event.BeforeUpdate.ChannelID != "" {
		before, err := snowflake.Parse(event.BeforeUpdate.ChannelID)
		if err == nil && ctrl.Queue().VoiceChannelID != before {
			return
		}
	}

	output, err := h.registry.Leave(context.Background(), guildID)
	if err != nil && !errors.Is(err, usecases.ErrNotConnected) {
		slog.Warn("failed to clean up after external disconnect", "guild", guildID, "error", err)
		return
	}
	if output != nil && output.WasConnected {
		slog.Info("cleaned up after external disconnect",
			"guild", guildID,
			"cleared", output.ClearedTracks,
		)
	}
}
