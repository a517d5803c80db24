package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// TrackEndReason represents why the voice backend ended a track.
type TrackEndReason string

const (
	// TrackEndFinished means the track finished normally.
	TrackEndFinished TrackEndReason = "finished"
	// TrackEndLoadFailed means the backend failed to load or decode the track.
	TrackEndLoadFailed TrackEndReason = "load_failed"
	// TrackEndStopped means the track was stopped by the bot.
	TrackEndStopped TrackEndReason = "stopped"
	// TrackEndReplaced means the track was replaced by another.
	TrackEndReplaced TrackEndReason = "replaced"
	// TrackEndCleanup means the track was cleaned up.
	TrackEndCleanup TrackEndReason = "cleanup"
)

// ShouldAdvanceQueue returns true if this end reason should advance the queue.
// Stopped, replaced and cleaned-up tracks were ended by the controller itself.
func (r TrackEndReason) ShouldAdvanceQueue() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// TrackEndedEvent is published when the voice session reports a track ended.
// Generation identifies the now-playing span the track was started with.
type TrackEndedEvent struct {
	GuildID    snowflake.ID
	Generation uint64
	Err        error // non-nil when the decoder failed mid-stream
}

// PlaybackStartedEvent is published when a track starts playing.
type PlaybackStartedEvent struct {
	GuildID               snowflake.ID
	Track                 *Track
	NotificationChannelID snowflake.ID
}

// FailureStage identifies where a track failed.
type FailureStage string

const (
	// FailureResolve means no stream could be resolved for the query.
	FailureResolve FailureStage = "resolve"
	// FailurePlayback means the stream failed to start or failed mid-stream.
	FailurePlayback FailureStage = "playback"
)

// TrackFailedEvent is published when a track could not be resolved or played.
type TrackFailedEvent struct {
	GuildID               snowflake.ID
	Track                 *Track
	Stage                 FailureStage
	Err                   error
	NotificationChannelID snowflake.ID
}

// PlaybackExhaustedEvent is published when advancing gave up after
// too many consecutive failures and cleared the queue.
type PlaybackExhaustedEvent struct {
	GuildID               snowflake.ID
	Failures              int
	Cleared               int // queued tracks dropped
	NotificationChannelID snowflake.ID
}
