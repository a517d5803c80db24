package ports

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
)

// ErrNoPlayback is returned by Pause and Resume when nothing is streaming,
// for example because the track ended before its completion was handled.
var ErrNoPlayback = errors.New("no active playback")

// VoiceConnector defines the interface for establishing voice sessions.
type VoiceConnector interface {
	// Connect joins the voice channel and returns a session bound to it.
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (VoiceSession, error)
}

// VoiceSession is a live connection to one voice channel.
// A session is owned by exactly one controller.
type VoiceSession interface {
	// ChannelID returns the voice channel the session is connected to.
	ChannelID() snowflake.ID

	// MoveTo moves the session to another voice channel in the same guild.
	MoveTo(ctx context.Context, channelID snowflake.ID) error

	// Play starts streaming streamURL, replacing anything currently playing.
	// onFinished is invoked exactly once, from another goroutine, when the
	// stream ends naturally or fails mid-stream. It is not invoked after Stop.
	Play(ctx context.Context, streamURL string, onFinished func(err error)) error

	// Pause pauses the current stream.
	Pause() error

	// Resume resumes a paused stream.
	Resume() error

	// Stop ends the current stream without invoking its onFinished callback.
	Stop() error

	// Disconnect stops playback and leaves the voice channel.
	Disconnect(ctx context.Context) error
}
