package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// MaxConsecutiveFailures is how many tracks in a row may fail to resolve or
// start before advance gives up, clears the queue and goes idle.
const MaxConsecutiveFailures = 3

// DefaultResolveTimeout bounds a single resolver call.
const DefaultResolveTimeout = 30 * time.Second

// ControllerDeps holds the collaborators shared by every guild's controller.
type ControllerDeps struct {
	Connector      ports.VoiceConnector
	Resolver       ports.TrackResolver
	Publisher      ports.EventPublisher
	ResolveTimeout time.Duration
}

// GuildPlaybackController owns one guild's queue, now-playing track and voice session.
//
// Every operation holds mu for its duration, except that track resolution in
// advance and the voice disconnect in Leave run with mu released. Completion
// callbacks from the voice session carry the generation they were started
// with and are ignored once that generation is stale.
type GuildPlaybackController struct {
	guildID        snowflake.ID
	connector      ports.VoiceConnector
	resolver       ports.TrackResolver
	publisher      ports.EventPublisher
	resolveTimeout time.Duration

	mu        sync.Mutex
	state     *domain.GuildPlaybackState
	session   ports.VoiceSession
	resolving *domain.Track
	advancing bool
	epoch     uint64 // bumped by Stop and Leave; in-flight advances from older epochs are discarded
	closed    atomic.Bool
}

// NewGuildPlaybackController creates an idle, disconnected controller.
func NewGuildPlaybackController(
	guildID snowflake.ID,
	deps ControllerDeps,
) *GuildPlaybackController {
	timeout := deps.ResolveTimeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}

	return &GuildPlaybackController{
		guildID:        guildID,
		connector:      deps.Connector,
		resolver:       deps.Resolver,
		publisher:      deps.Publisher,
		resolveTimeout: timeout,
		state:          domain.NewGuildPlaybackState(guildID),
	}
}

// GuildID returns the guild this controller serves.
func (c *GuildPlaybackController) GuildID() snowflake.ID {
	return c.guildID
}

// IsClosed reports whether the controller has left its guild.
func (c *GuildPlaybackController) IsClosed() bool {
	return c.closed.Load()
}

// IsConnected reports whether the controller holds a voice session.
func (c *GuildPlaybackController) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Join connects to the requester's voice channel, or moves there when the
// bot is already connected elsewhere in the guild.
// The connect call runs with the controller locked.
func (c *GuildPlaybackController) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, ErrControllerClosed
	}
	c.state.SetNotificationChannelID(input.NotificationChannelID)

	if input.VoiceChannelID == 0 {
		return nil, &ConnectError{Err: ErrUserNotInVoice}
	}

	if c.session != nil {
		if c.session.ChannelID() == input.VoiceChannelID {
			return &JoinOutput{VoiceChannelID: input.VoiceChannelID, AlreadyConnected: true}, nil
		}
		if err := c.session.MoveTo(ctx, input.VoiceChannelID); err != nil {
			return nil, &ConnectError{ChannelID: input.VoiceChannelID, Err: err}
		}
		c.state.SetVoiceChannelID(input.VoiceChannelID)
		slog.Info("moved voice session", "guild", c.guildID, "channel", input.VoiceChannelID)
		return &JoinOutput{VoiceChannelID: input.VoiceChannelID, Moved: true}, nil
	}

	if err := c.connectLocked(ctx, input.VoiceChannelID); err != nil {
		return nil, err
	}
	return &JoinOutput{VoiceChannelID: input.VoiceChannelID}, nil
}

// connectLocked opens a voice session. c.mu must be held.
func (c *GuildPlaybackController) connectLocked(ctx context.Context, channelID snowflake.ID) error {
	session, err := c.connector.Connect(ctx, c.guildID, channelID)
	if err != nil {
		return &ConnectError{ChannelID: channelID, Err: err}
	}
	c.session = session
	c.state.SetVoiceChannelID(channelID)
	slog.Info("connected voice session", "guild", c.guildID, "channel", channelID)
	return nil
}

// Enqueue appends an unresolved track to the queue. The requester must be in
// a voice channel; the bot connects there, or moves there when it is
// connected elsewhere. When nothing is playing it advances before returning.
func (c *GuildPlaybackController) Enqueue(
	ctx context.Context,
	input EnqueueInput,
) (*EnqueueOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	}
	c.state.SetNotificationChannelID(input.NotificationChannelID)

	if input.VoiceChannelID == 0 {
		c.mu.Unlock()
		return nil, &ConnectError{Err: ErrUserNotInVoice}
	}

	joined, moved := false, false
	switch {
	case c.session == nil:
		if err := c.connectLocked(ctx, input.VoiceChannelID); err != nil {
			c.mu.Unlock()
			return nil, err
		}
		joined = true
	case c.session.ChannelID() != input.VoiceChannelID:
		if err := c.session.MoveTo(ctx, input.VoiceChannelID); err != nil {
			c.mu.Unlock()
			return nil, &ConnectError{ChannelID: input.VoiceChannelID, Err: err}
		}
		c.state.SetVoiceChannelID(input.VoiceChannelID)
		moved = true
		slog.Info("moved voice session", "guild", c.guildID, "channel", input.VoiceChannelID)
	}

	track := domain.NewTrack(query, input.RequesterID, input.RequesterName)
	c.state.Queue.Add(track)
	position := c.state.Queue.Len()

	start := c.claimAdvanceLocked()
	epoch := c.epoch
	c.mu.Unlock()

	slog.Debug("track enqueued",
		"guild", c.guildID,
		"query", query,
		"position", position,
	)

	if start {
		c.advance(ctx, epoch)
	}

	c.mu.Lock()
	nowPlaying := c.state.NowPlaying()
	pending := c.holdsLocked(track.ID)
	c.mu.Unlock()

	return &EnqueueOutput{
		Track:      track,
		Position:   position,
		Joined:     joined,
		Moved:      moved,
		NowPlaying: nowPlaying,
		Dropped:    !pending,
	}, nil
}

// holdsLocked reports whether the track is queued, being resolved or playing.
// c.mu must be held.
func (c *GuildPlaybackController) holdsLocked(id domain.TrackID) bool {
	if np := c.state.NowPlaying(); np != nil && np.ID == id {
		return true
	}
	if c.resolving != nil && c.resolving.ID == id {
		return true
	}
	for _, queued := range c.state.Queue.List() {
		if queued.ID == id {
			return true
		}
	}
	return false
}

// claimAdvanceLocked marks an advance as in flight if one should start now.
// c.mu must be held.
func (c *GuildPlaybackController) claimAdvanceLocked() bool {
	if c.advancing || !c.state.IsIdle() || c.session == nil {
		return false
	}
	c.advancing = true
	return true
}

// advance pops tracks until one starts playing, the queue runs dry, or
// MaxConsecutiveFailures tracks in a row have failed. The caller must have
// claimed the advance with claimAdvanceLocked.
func (c *GuildPlaybackController) advance(ctx context.Context, epoch uint64) {
	failures := 0

	for {
		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			return
		}

		if c.state.Queue.IsEmpty() {
			c.advancing = false
			c.mu.Unlock()
			slog.Debug("queue drained, idle in channel", "guild", c.guildID)
			return
		}

		if failures >= MaxConsecutiveFailures {
			cleared := c.state.Queue.Clear()
			notify := c.state.NotificationChannelID()
			c.advancing = false
			c.mu.Unlock()

			slog.Warn("giving up after consecutive failures",
				"guild", c.guildID,
				"failures", failures,
				"cleared", cleared,
			)
			c.publishExhausted(failures, cleared, notify)
			return
		}

		track := c.state.Queue.Next()
		c.resolving = track
		c.mu.Unlock()

		resolved, err := c.resolve(ctx, track)

		c.mu.Lock()
		if c.epoch != epoch {
			c.mu.Unlock()
			slog.Debug("discarding resolution after stop",
				"guild", c.guildID,
				"query", track.Query,
			)
			return
		}
		c.resolving = nil

		if err != nil {
			failures++
			notify := c.state.NotificationChannelID()
			c.mu.Unlock()

			slog.Warn("failed to resolve track",
				"guild", c.guildID,
				"query", track.Query,
				"error", err,
			)
			c.publishTrackFailed(track, domain.FailureResolve, err, notify)
			continue
		}

		generation := c.state.StartPlaying(resolved)
		if err := c.session.Play(ctx, resolved.StreamURL, c.onFinished(generation)); err != nil {
			c.state.FinishCurrent()
			failures++
			notify := c.state.NotificationChannelID()
			c.mu.Unlock()

			playErr := &PlaybackError{Query: resolved.Query, Err: err}
			slog.Warn("failed to start playback",
				"guild", c.guildID,
				"query", resolved.Query,
				"error", err,
			)
			c.publishTrackFailed(resolved, domain.FailurePlayback, playErr, notify)
			continue
		}

		c.advancing = false
		notify := c.state.NotificationChannelID()
		c.mu.Unlock()

		slog.Info("started playback",
			"guild", c.guildID,
			"title", resolved.Title,
			"generation", generation,
		)
		if c.publisher != nil {
			c.publisher.PublishPlaybackStarted(domain.PlaybackStartedEvent{
				GuildID:               c.guildID,
				Track:                 resolved,
				NotificationChannelID: notify,
			})
		}
		return
	}
}

// resolve runs the resolver for an unresolved track. It must be called without c.mu held.
func (c *GuildPlaybackController) resolve(
	ctx context.Context,
	track *domain.Track,
) (*domain.Track, error) {
	if track.IsResolved() {
		return track, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.resolveTimeout)
	defer cancel()

	meta, err := c.resolver.Resolve(ctx, domain.NewSearchQuery(track.Query))
	if err != nil {
		return nil, &ResolutionError{Query: track.Query, Err: err}
	}
	if meta == nil || meta.StreamURL == "" {
		return nil, &ResolutionError{Query: track.Query, Err: ErrNoResults}
	}
	return track.Resolve(*meta), nil
}

// onFinished returns the completion callback for the playback span started with generation.
// The callback only posts an event; the event handler calls HandleTrackEnded.
func (c *GuildPlaybackController) onFinished(generation uint64) func(error) {
	return func(err error) {
		if c.publisher == nil {
			return
		}
		c.publisher.PublishTrackEnded(domain.TrackEndedEvent{
			GuildID:    c.guildID,
			Generation: generation,
			Err:        err,
		})
	}
}

// HandleTrackEnded discards the now-playing track and advances, unless
// generation no longer identifies the now-playing track.
func (c *GuildPlaybackController) HandleTrackEnded(
	ctx context.Context,
	generation uint64,
	playbackErr error,
) {
	c.mu.Lock()
	if c.closed.Load() || !c.state.IsCurrentGeneration(generation) {
		c.mu.Unlock()
		slog.Debug("ignoring stale track end",
			"guild", c.guildID,
			"generation", generation,
		)
		return
	}

	finished := c.state.FinishCurrent()
	notify := c.state.NotificationChannelID()
	start := c.claimAdvanceLocked()
	epoch := c.epoch
	c.mu.Unlock()

	if playbackErr != nil {
		slog.Warn("playback failed mid-stream",
			"guild", c.guildID,
			"query", finished.Query,
			"error", playbackErr,
		)
		c.publishTrackFailed(
			finished,
			domain.FailurePlayback,
			&PlaybackError{Query: finished.Query, Err: playbackErr},
			notify,
		)
	}

	if start {
		c.advance(ctx, epoch)
	}
}

// Pause pauses the now-playing track.
func (c *GuildPlaybackController) Pause(_ context.Context, input CommandInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrControllerClosed
	}
	c.state.SetNotificationChannelID(input.NotificationChannelID)

	switch c.state.Status() {
	case domain.StatusIdle:
		return ErrNotPlaying
	case domain.StatusPaused:
		return ErrAlreadyPaused
	}

	if err := c.session.Pause(); err != nil {
		if errors.Is(err, ports.ErrNoPlayback) {
			return ErrNotPlaying
		}
		return fmt.Errorf("failed to pause playback: %w", err)
	}
	c.state.Pause()
	return nil
}

// Resume resumes the paused track.
func (c *GuildPlaybackController) Resume(_ context.Context, input CommandInput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrControllerClosed
	}
	c.state.SetNotificationChannelID(input.NotificationChannelID)

	if c.state.Status() != domain.StatusPaused {
		return ErrNotPaused
	}

	if err := c.session.Resume(); err != nil {
		if errors.Is(err, ports.ErrNoPlayback) {
			return ErrNotPlaying
		}
		return fmt.Errorf("failed to resume playback: %w", err)
	}
	c.state.Resume()
	return nil
}

// Skip stops the now-playing track and advances to the next one.
func (c *GuildPlaybackController) Skip(ctx context.Context, input CommandInput) (*SkipOutput, error) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	}
	c.state.SetNotificationChannelID(input.NotificationChannelID)

	if c.state.IsIdle() {
		c.mu.Unlock()
		return nil, ErrNotPlaying
	}

	if err := c.session.Stop(); err != nil {
		slog.Warn("failed to stop playback on skip", "guild", c.guildID, "error", err)
	}
	skipped := c.state.FinishCurrent()
	start := c.claimAdvanceLocked()
	epoch := c.epoch
	c.mu.Unlock()

	slog.Debug("skipped track", "guild", c.guildID, "query", skipped.Query)

	if start {
		c.advance(ctx, epoch)
	}

	c.mu.Lock()
	next := c.state.NowPlaying()
	c.mu.Unlock()

	return &SkipOutput{SkippedTrack: skipped, NextTrack: next}, nil
}

// Stop stops playback and clears the queue. Any in-flight resolution is discarded.
// Stopping an idle connected controller succeeds.
func (c *GuildPlaybackController) Stop(_ context.Context, input CommandInput) (*StopOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() || c.session == nil {
		return nil, ErrNotConnected
	}
	c.state.SetNotificationChannelID(input.NotificationChannelID)

	if !c.state.IsIdle() {
		if err := c.session.Stop(); err != nil {
			slog.Warn("failed to stop playback", "guild", c.guildID, "error", err)
		}
	}

	stopped := c.state.NowPlaying()
	cleared := c.resetLocked()

	return &StopOutput{StoppedTrack: stopped, ClearedTracks: cleared}, nil
}

// resetLocked clears all playback state and invalidates in-flight advances.
// c.mu must be held.
func (c *GuildPlaybackController) resetLocked() int {
	c.epoch++
	c.advancing = false
	c.resolving = nil
	return c.state.Reset()
}

// Leave stops playback, clears the queue and disconnects. The controller is
// closed afterwards. Calling Leave again is a no-op.
func (c *GuildPlaybackController) Leave(ctx context.Context) (*LeaveOutput, error) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return &LeaveOutput{}, nil
	}

	session := c.session
	if session != nil && !c.state.IsIdle() {
		if err := session.Stop(); err != nil {
			slog.Warn("failed to stop playback on leave", "guild", c.guildID, "error", err)
		}
	}
	cleared := c.resetLocked()
	c.session = nil
	c.state.SetVoiceChannelID(0)
	c.closed.Store(true)
	c.mu.Unlock()

	output := &LeaveOutput{WasConnected: session != nil, ClearedTracks: cleared}
	if session == nil {
		return output, nil
	}

	if err := session.Disconnect(ctx); err != nil {
		return output, fmt.Errorf("failed to disconnect: %w", err)
	}
	slog.Info("disconnected voice session", "guild", c.guildID)
	return output, nil
}

// Queue returns a snapshot of the now-playing track and pending tracks.
func (c *GuildPlaybackController) Queue() *QueueSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &QueueSnapshot{
		Status:         c.state.Status(),
		NowPlaying:     c.state.NowPlaying(),
		Resolving:      c.resolving,
		Upcoming:       c.state.Queue.List(),
		VoiceChannelID: c.state.VoiceChannelID(),
	}
}

func (c *GuildPlaybackController) publishTrackFailed(
	track *domain.Track,
	stage domain.FailureStage,
	err error,
	notificationChannelID snowflake.ID,
) {
	if c.publisher == nil {
		return
	}
	c.publisher.PublishTrackFailed(domain.TrackFailedEvent{
		GuildID:               c.guildID,
		Track:                 track,
		Stage:                 stage,
		Err:                   err,
		NotificationChannelID: notificationChannelID,
	})
}

func (c *GuildPlaybackController) publishExhausted(
	failures, cleared int,
	notificationChannelID snowflake.ID,
) {
	if c.publisher == nil {
		return
	}
	c.publisher.PublishPlaybackExhausted(domain.PlaybackExhaustedEvent{
		GuildID:               c.guildID,
		Failures:              failures,
		Cleared:               cleared,
		NotificationChannelID: notificationChannelID,
	})
}
