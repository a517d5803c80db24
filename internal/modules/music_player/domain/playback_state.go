package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// PlaybackStatus is the state of a guild's playback state machine.
type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusPlaying
	StatusPaused
)

// String returns the lowercase status name.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "idle"
	}
}

// GuildPlaybackState holds the queue and now-playing track of one guild.
// It is not safe for concurrent mutation; its owner serializes access.
//
// Invariants maintained by the methods below:
//   - nowPlaying is non-nil iff status is Playing or Paused
//   - generation changes every time a now-playing span starts or ends
type GuildPlaybackState struct {
	guildID               snowflake.ID
	voiceChannelID        snowflake.ID // Voice channel the bot is connected to
	notificationChannelID snowflake.ID // Text channel for asynchronous notices
	Queue                 *Queue
	nowPlaying            *Track
	status                PlaybackStatus
	generation            uint64
}

// NewGuildPlaybackState creates an idle state for the given guild.
func NewGuildPlaybackState(guildID snowflake.ID) *GuildPlaybackState {
	return &GuildPlaybackState{
		guildID: guildID,
		Queue:   NewQueue(),
		status:  StatusIdle,
	}
}

// GuildID returns the guild ID.
func (p *GuildPlaybackState) GuildID() snowflake.ID {
	return p.guildID
}

// VoiceChannelID returns the voice channel the bot is connected to, or 0.
func (p *GuildPlaybackState) VoiceChannelID() snowflake.ID {
	return p.voiceChannelID
}

// SetVoiceChannelID updates the voice channel ID.
func (p *GuildPlaybackState) SetVoiceChannelID(channelID snowflake.ID) {
	p.voiceChannelID = channelID
}

// NotificationChannelID returns the text channel for notices, or 0.
func (p *GuildPlaybackState) NotificationChannelID() snowflake.ID {
	return p.notificationChannelID
}

// SetNotificationChannelID updates the notification channel ID.
// A zero ID leaves the current channel unchanged.
func (p *GuildPlaybackState) SetNotificationChannelID(channelID snowflake.ID) {
	if channelID != 0 {
		p.notificationChannelID = channelID
	}
}

// Status returns the current playback status.
func (p *GuildPlaybackState) Status() PlaybackStatus {
	return p.status
}

// NowPlaying returns the current track, or nil when idle.
func (p *GuildPlaybackState) NowPlaying() *Track {
	return p.nowPlaying
}

// IsIdle returns true when nothing is playing or paused.
func (p *GuildPlaybackState) IsIdle() bool {
	return p.status == StatusIdle
}

// Generation returns the token of the current now-playing span.
func (p *GuildPlaybackState) Generation() uint64 {
	return p.generation
}

// IsCurrentGeneration reports whether gen identifies the track that is playing now.
func (p *GuildPlaybackState) IsCurrentGeneration(gen uint64) bool {
	return p.nowPlaying != nil && p.generation == gen
}

// StartPlaying makes track the now-playing track and returns its generation.
// The track must already be removed from the queue.
func (p *GuildPlaybackState) StartPlaying(track *Track) uint64 {
	p.generation++
	p.nowPlaying = track
	p.status = StatusPlaying
	return p.generation
}

// Pause moves Playing to Paused. Returns false for any other status.
func (p *GuildPlaybackState) Pause() bool {
	if p.status != StatusPlaying {
		return false
	}
	p.status = StatusPaused
	return true
}

// Resume moves Paused to Playing. Returns false for any other status.
func (p *GuildPlaybackState) Resume() bool {
	if p.status != StatusPaused {
		return false
	}
	p.status = StatusPlaying
	return true
}

// FinishCurrent discards the now-playing track and returns it, or nil if idle.
// Any completion still pending for the discarded track becomes stale.
func (p *GuildPlaybackState) FinishCurrent() *Track {
	finished := p.nowPlaying
	if finished != nil {
		p.generation++
	}
	p.nowPlaying = nil
	p.status = StatusIdle
	return finished
}

// Reset clears the queue and the now-playing track.
// Returns the number of queued tracks removed.
func (p *GuildPlaybackState) Reset() int {
	p.FinishCurrent()
	return p.Queue.Clear()
}
