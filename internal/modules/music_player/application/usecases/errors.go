package usecases

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
)

// StateError is returned when a command does not apply to the current playback state.
// It is informational and never indicates a fault.
type StateError struct {
	msg string
}

func (e *StateError) Error() string {
	return e.msg
}

// State errors for the music player module.
var (
	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = &StateError{"not connected to a voice channel"}

	// ErrNotPlaying is returned when no track is currently playing.
	ErrNotPlaying = &StateError{"nothing is currently playing"}

	// ErrAlreadyPaused is returned when trying to pause while already paused.
	ErrAlreadyPaused = &StateError{"playback is already paused"}

	// ErrNotPaused is returned when trying to resume while not paused.
	ErrNotPaused = &StateError{"playback is not paused"}

	// ErrEmptyQuery is returned when play is called without a query.
	ErrEmptyQuery = &StateError{"query must not be empty"}

	// ErrControllerClosed is returned by a controller that has already left its guild.
	// Callers should fetch a fresh controller from the registry and retry.
	ErrControllerClosed = &StateError{"controller has left the guild"}
)

var (
	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrNoResults is returned when a search yields no results.
	ErrNoResults = ports.ErrTrackNotFound
)

// IsBenign reports whether err only describes a state the command did not apply to.
func IsBenign(err error) bool {
	var stateErr *StateError
	return errors.As(err, &stateErr)
}

// ResolutionError is returned when a query could not be turned into a stream.
type ResolutionError struct {
	Query string
	Err   error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %q: %v", e.Query, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// ConnectError is returned when the bot could not join or move to a voice channel.
type ConnectError struct {
	ChannelID snowflake.ID
	Err       error
}

func (e *ConnectError) Error() string {
	if e.ChannelID == 0 {
		return fmt.Sprintf("failed to connect: %v", e.Err)
	}
	return fmt.Sprintf("failed to connect to channel %s: %v", e.ChannelID, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// PlaybackError is returned when the decoder failed to start or failed mid-stream.
type PlaybackError struct {
	Query string
	Err   error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("playback of %q failed: %v", e.Query, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}
