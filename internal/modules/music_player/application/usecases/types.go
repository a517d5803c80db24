package usecases

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// Re-export domain types for presentation layer use.
// This allows presentation to depend only on usecases without importing domain directly.

// Track is an alias for domain.Track.
type Track = domain.Track

// PlaybackStatus is an alias for domain.PlaybackStatus.
type PlaybackStatus = domain.PlaybackStatus

// Playback statuses.
const (
	StatusIdle    = domain.StatusIdle
	StatusPlaying = domain.StatusPlaying
	StatusPaused  = domain.StatusPaused
)

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	VoiceChannelID        snowflake.ID // Requester's voice channel; 0 if none
	NotificationChannelID snowflake.ID
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	VoiceChannelID   snowflake.ID
	Moved            bool // the bot switched from another channel
	AlreadyConnected bool // the bot was already in the requested channel
}

// EnqueueInput contains the input for the Enqueue use case.
type EnqueueInput struct {
	Query                 string
	RequesterID           snowflake.ID
	RequesterName         string
	VoiceChannelID        snowflake.ID // Requester's voice channel; used to auto-join
	NotificationChannelID snowflake.ID
}

// EnqueueOutput contains the result of the Enqueue use case.
type EnqueueOutput struct {
	Track    *domain.Track
	Position int // 1-based position in the queue at enqueue time
	Joined   bool
	Moved    bool // the bot switched from another voice channel
	// NowPlaying is the track playing when Enqueue returned; it equals Track
	// when the request started immediately.
	NowPlaying *domain.Track
	// Dropped is set when the track failed during the advance Enqueue ran
	// and is neither queued nor playing any more.
	Dropped bool
}

// StartedImmediately reports whether the enqueued track is the one now playing.
func (o *EnqueueOutput) StartedImmediately() bool {
	return o.NowPlaying != nil && o.Track != nil && o.NowPlaying.ID == o.Track.ID
}

// CommandInput carries what every state-changing command has in common.
type CommandInput struct {
	NotificationChannelID snowflake.ID // Optional: updates notification channel if non-zero
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	SkippedTrack *domain.Track
	NextTrack    *domain.Track // nil if nothing started playing
}

// StopOutput contains the result of the Stop use case.
type StopOutput struct {
	StoppedTrack  *domain.Track // nil if nothing was playing
	ClearedTracks int
}

// LeaveOutput contains the result of the Leave use case.
type LeaveOutput struct {
	WasConnected  bool
	ClearedTracks int
}

// QueueSnapshot is a consistent view of a guild's playback state.
type QueueSnapshot struct {
	Status         domain.PlaybackStatus
	NowPlaying     *domain.Track
	Resolving      *domain.Track // popped and being resolved, not yet playing
	Upcoming       []*domain.Track
	VoiceChannelID snowflake.ID // 0 when not connected
}

// IsEmpty reports whether nothing is playing, loading, or queued.
func (s *QueueSnapshot) IsEmpty() bool {
	return s.NowPlaying == nil && s.Resolving == nil && len(s.Upcoming) == 0
}
