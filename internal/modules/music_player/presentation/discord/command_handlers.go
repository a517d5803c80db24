package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
)

// Replies.
const (
	msgGuildOnly      = "This command can only be used in a server."
	msgUserNotInVoice = "You must be connected to a voice channel to use this command."
	msgConnectFailed  = "I couldn't connect to your voice channel."
	msgNothingPlaying = "Nothing is playing right now."
	msgSkipped        = "Skipped the current track."
	msgPaused         = "Paused playback."
	msgAlreadyPaused  = "Playback is already paused."
	msgResumed        = "Resumed playback."
	msgNotPaused      = "Playback is not paused."
	msgQueueEmpty     = "The queue is empty."
	msgStopped        = "Cleared the queue and stopped playback."
	msgNotConnected   = "I'm not connected to a voice channel."
	msgLeft           = "Disconnected and cleared the queue."
)

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	registry   *usecases.ControllerRegistry
	voiceState ports.VoiceStateProvider
	prefix     string
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(
	registry *usecases.ControllerRegistry,
	voiceState ports.VoiceStateProvider,
	prefix string,
) *CommandHandlers {
	return &CommandHandlers{
		registry:   registry,
		voiceState: voiceState,
		prefix:     prefix,
	}
}

// Handlers returns the handlers keyed by command name.
func (h *CommandHandlers) Handlers() map[string]bot.CommandHandler {
	return map[string]bot.CommandHandler{
		"join":   h.HandleJoin,
		"play":   h.HandlePlay,
		"skip":   h.HandleSkip,
		"pause":  h.HandlePause,
		"resume": h.HandleResume,
		"queue":  h.HandleQueue,
		"stop":   h.HandleStop,
		"leave":  h.HandleLeave,
	}
}

// Commands describes the music commands for the help listing.
func Commands() []bot.Command {
	return []bot.Command{
		{Name: "join", Description: "Join your voice channel"},
		{Name: "play", Usage: "<url-or-query>", Description: "Queue a track from a URL or search"},
		{Name: "skip", Description: "Skip the current track"},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "queue", Description: "Show the current queue"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "leave", Description: "Leave the voice channel and clear the queue"},
	}
}

// commandContext is what every handler parses out of the message.
type commandContext struct {
	guildID   snowflake.ID
	channelID snowflake.ID
	userID    snowflake.ID
}

// errDirectMessage is returned for commands sent outside a guild.
var errDirectMessage = errors.New("command sent in a direct message")

func parseCommandContext(m *discordgo.MessageCreate) (*commandContext, error) {
	if m.GuildID == "" {
		return nil, errDirectMessage
	}

	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse guild ID: %w", err)
	}
	channelID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel ID: %w", err)
	}
	userID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user ID: %w", err)
	}

	return &commandContext{guildID: guildID, channelID: channelID, userID: userID}, nil
}

// HandleJoin handles the join command.
func (h *CommandHandlers) HandleJoin(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	voiceChannelID, err := h.voiceState.GetUserVoiceChannel(cc.guildID, cc.userID)
	if err != nil {
		return fmt.Errorf("failed to look up voice channel: %w", err)
	}
	if voiceChannelID == 0 {
		return r.Reply(msgUserNotInVoice)
	}

	var output *usecases.JoinOutput
	err = h.registry.WithController(cc.guildID, func(c *usecases.GuildPlaybackController) error {
		var err error
		output, err = c.Join(context.Background(), usecases.JoinInput{
			VoiceChannelID:        voiceChannelID,
			NotificationChannelID: cc.channelID,
		})
		return err
	})
	if err != nil {
		return h.replyError(r, cc, err)
	}

	return r.Reply(fmt.Sprintf("Connected to `%s`.", h.voiceState.ChannelName(output.VoiceChannelID)))
}

// HandlePlay handles the play command.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	args string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}
	if args == "" {
		return r.Reply(h.playUsage())
	}

	voiceChannelID, err := h.voiceState.GetUserVoiceChannel(cc.guildID, cc.userID)
	if err != nil {
		return fmt.Errorf("failed to look up voice channel: %w", err)
	}

	var output *usecases.EnqueueOutput
	err = h.registry.WithController(cc.guildID, func(c *usecases.GuildPlaybackController) error {
		var err error
		output, err = c.Enqueue(context.Background(), usecases.EnqueueInput{
			Query:                 args,
			RequesterID:           cc.userID,
			RequesterName:         requesterName(m),
			VoiceChannelID:        voiceChannelID,
			NotificationChannelID: cc.channelID,
		})
		return err
	})
	if err != nil {
		return h.replyError(r, cc, err)
	}
	if output.Dropped {
		// The failure notice from the advance already reached the channel.
		slog.Debug("enqueued track failed before reply", "guild", cc.guildID, "query", args)
		return nil
	}

	return r.ReplyEmbed(queuedEmbed(output))
}

func (h *CommandHandlers) playUsage() string {
	return fmt.Sprintf("Usage: `%splay <url-or-query>`", h.prefix)
}

// HandleSkip handles the skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	ctrl, ok := h.registry.Get(cc.guildID)
	if !ok {
		return r.Reply(msgNothingPlaying)
	}
	if _, err := ctrl.Skip(context.Background(), usecases.CommandInput{NotificationChannelID: cc.channelID}); err != nil {
		return h.replyError(r, cc, err)
	}
	return r.Reply(msgSkipped)
}

// HandlePause handles the pause command.
func (h *CommandHandlers) HandlePause(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	ctrl, ok := h.registry.Get(cc.guildID)
	if !ok {
		return r.Reply(msgNothingPlaying)
	}
	if err := ctrl.Pause(context.Background(), usecases.CommandInput{NotificationChannelID: cc.channelID}); err != nil {
		return h.replyError(r, cc, err)
	}
	return r.Reply(msgPaused)
}

// HandleResume handles the resume command.
func (h *CommandHandlers) HandleResume(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	ctrl, ok := h.registry.Get(cc.guildID)
	if !ok {
		return r.Reply(msgNotPaused)
	}
	if err := ctrl.Resume(context.Background(), usecases.CommandInput{NotificationChannelID: cc.channelID}); err != nil {
		return h.replyError(r, cc, err)
	}
	return r.Reply(msgResumed)
}

// HandleQueue handles the queue command.
func (h *CommandHandlers) HandleQueue(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	ctrl, ok := h.registry.Get(cc.guildID)
	if !ok {
		return r.Reply(msgQueueEmpty)
	}
	snapshot := ctrl.Queue()
	if snapshot.IsEmpty() {
		return r.Reply(msgQueueEmpty)
	}
	return r.ReplyEmbed(queueEmbed(snapshot))
}

// HandleStop handles the stop command.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	ctrl, ok := h.registry.Get(cc.guildID)
	if !ok {
		return r.Reply(msgNotConnected)
	}
	output, err := ctrl.Stop(context.Background(), usecases.CommandInput{NotificationChannelID: cc.channelID})
	if err != nil {
		return h.replyError(r, cc, err)
	}

	slog.Debug("stopped playback", "guild", cc.guildID, "cleared", output.ClearedTracks)
	return r.Reply(msgStopped)
}

// HandleLeave handles the leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	cc, err := parseCommandContext(m)
	if errors.Is(err, errDirectMessage) {
		return r.Reply(msgGuildOnly)
	}
	if err != nil {
		return err
	}

	if _, err := h.registry.Leave(context.Background(), cc.guildID); err != nil {
		return h.replyError(r, cc, err)
	}
	return r.Reply(msgLeft)
}

// replyError renders benign state errors and connect errors as replies.
// Anything else goes back to the router as a failure.
func (h *CommandHandlers) replyError(r bot.Responder, cc *commandContext, err error) error {
	switch {
	case errors.Is(err, usecases.ErrNotPlaying):
		return r.Reply(msgNothingPlaying)
	case errors.Is(err, usecases.ErrAlreadyPaused):
		return r.Reply(msgAlreadyPaused)
	case errors.Is(err, usecases.ErrNotPaused):
		return r.Reply(msgNotPaused)
	case errors.Is(err, usecases.ErrNotConnected), errors.Is(err, usecases.ErrControllerClosed):
		return r.Reply(msgNotConnected)
	case errors.Is(err, usecases.ErrEmptyQuery):
		return r.Reply(h.playUsage())
	case errors.Is(err, usecases.ErrUserNotInVoice):
		return r.Reply(msgUserNotInVoice)
	}

	var connectErr *usecases.ConnectError
	if errors.As(err, &connectErr) {
		slog.Warn("failed to connect to voice channel",
			"guild", cc.guildID,
			"channel", connectErr.ChannelID,
			"error", connectErr.Err,
		)
		return r.Reply(msgConnectFailed)
	}

	if usecases.IsBenign(err) {
		return r.Reply(err.Error())
	}
	return err
}

// requesterName returns the author's effective display name.
// Priority: guild nickname > global display name > username.
func requesterName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
