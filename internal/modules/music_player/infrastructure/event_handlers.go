package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// TrackEndedFunc is the function signature for delivering a track end to its guild's controller.
type TrackEndedFunc func(ctx context.Context, guildID snowflake.ID, generation uint64, err error)

// PlaybackEventHandler turns voice-session completions into controller calls.
// Each TrackEndedEvent is handled on its own goroutine so a slow resolution
// in one guild never delays completions in another.
type PlaybackEventHandler struct {
	trackEndedFunc TrackEndedFunc
	subscriber     ports.EventSubscriber

	wg sync.WaitGroup
}

// NewPlaybackEventHandler creates a new PlaybackEventHandler.
func NewPlaybackEventHandler(
	trackEndedFunc TrackEndedFunc,
	subscriber ports.EventSubscriber,
) *PlaybackEventHandler {
	return &PlaybackEventHandler{
		trackEndedFunc: trackEndedFunc,
		subscriber:     subscriber,
	}
}

// Start registers event handlers with the subscriber.
func (h *PlaybackEventHandler) Start() {
	h.subscriber.OnTrackEnded(h.handleTrackEnded)

	slog.Debug("playback event handler started")
}

// Wait blocks until every in-flight track end has been handled.
func (h *PlaybackEventHandler) Wait() {
	h.wg.Wait()
}

func (h *PlaybackEventHandler) handleTrackEnded(_ context.Context, event domain.TrackEndedEvent) {
	slog.Debug("track ended",
		"guild", event.GuildID,
		"generation", event.Generation,
		"error", event.Err,
	)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		// The bus context is cancelled on shutdown; advancing must not be cut short by it.
		h.trackEndedFunc(context.Background(), event.GuildID, event.Generation, event.Err)
	}()
}

// NotificationEventHandler handles events related to Discord notifications.
// It subscribes to playback and failure events and posts them to the guild's
// notification channel.
type NotificationEventHandler struct {
	notifier     ports.NotificationSender
	subscriber   ports.EventSubscriber
	userInfoProv ports.UserInfoProvider
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
// userInfoProv may be nil; requester avatars are then omitted.
func NewNotificationEventHandler(
	notifier ports.NotificationSender,
	subscriber ports.EventSubscriber,
	userInfoProv ports.UserInfoProvider,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		notifier:     notifier,
		subscriber:   subscriber,
		userInfoProv: userInfoProv,
	}
}

// Start registers event handlers with the subscriber.
func (h *NotificationEventHandler) Start() {
	h.subscriber.OnPlaybackStarted(h.handlePlaybackStarted)
	h.subscriber.OnTrackFailed(h.handleTrackFailed)
	h.subscriber.OnPlaybackExhausted(h.handlePlaybackExhausted)

	slog.Debug("notification event handler started")
}

func (h *NotificationEventHandler) handlePlaybackStarted(
	_ context.Context,
	event domain.PlaybackStartedEvent,
) {
	if event.NotificationChannelID == 0 {
		return
	}

	track := event.Track
	requesterName := track.RequesterName
	var requesterAvatarURL string
	if h.userInfoProv != nil && track.RequesterID != 0 {
		userInfo, err := h.userInfoProv.GetUserInfo(event.GuildID, track.RequesterID)
		if err != nil {
			slog.Warn("failed to fetch requester info for now playing",
				"guild", event.GuildID,
				"requester", track.RequesterID,
				"error", err,
			)
		} else {
			requesterName = userInfo.DisplayName
			requesterAvatarURL = userInfo.AvatarURL
		}
	}
	if requesterName == "" {
		requesterName = "Unknown"
	}

	slog.Debug("sending now playing notification",
		"guild", event.GuildID,
		"title", track.Title,
	)

	if err := h.notifier.SendNowPlaying(event.NotificationChannelID, &ports.NowPlayingInfo{
		Title:              track.DisplayTitle(),
		Duration:           track.FormattedDuration(),
		URI:                track.WebpageURL,
		SourceName:         track.SourceName,
		IsStream:           track.IsLive,
		ArtworkURL:         track.ArtworkURL,
		RequesterID:        track.RequesterID,
		RequesterName:      requesterName,
		RequesterAvatarURL: requesterAvatarURL,
		EnqueuedAt:         track.EnqueuedAt,
	}); err != nil {
		slog.Error("failed to send now playing notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handleTrackFailed(
	_ context.Context,
	event domain.TrackFailedEvent,
) {
	if event.NotificationChannelID == 0 {
		return
	}

	reason := "Could not retrieve audio from that link."
	if event.Stage == domain.FailurePlayback {
		reason = "Playback failed while streaming this track."
	}

	if err := h.notifier.SendTrackFailed(event.NotificationChannelID, &ports.TrackFailedInfo{
		Query:  event.Track.Query,
		Title:  event.Track.DisplayTitle(),
		Reason: reason,
	}); err != nil {
		slog.Error("failed to send track failure notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) handlePlaybackExhausted(
	_ context.Context,
	event domain.PlaybackExhaustedEvent,
) {
	if event.NotificationChannelID == 0 {
		return
	}

	message := fmt.Sprintf("Stopped after %d tracks in a row could not be played.", event.Failures)
	if event.Cleared > 0 {
		message += fmt.Sprintf(" Cleared %d queued track(s).", event.Cleared)
	}
	if err := h.notifier.SendError(event.NotificationChannelID, message); err != nil {
		slog.Error("failed to send exhaustion notification",
			"guild", event.GuildID,
			"error", err,
		)
	}
}
