package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// ErrUnsupportedQuery is returned by a resolver that cannot handle the query at all.
var ErrUnsupportedQuery = errors.New("query not supported by resolver")

// Ensure YouTubeResolver implements ports.TrackResolver.
var _ ports.TrackResolver = (*YouTubeResolver)(nil)

// YouTubeResolver resolves YouTube video URLs without an external process.
// It cannot search; non-YouTube queries return ErrUnsupportedQuery.
type YouTubeResolver struct {
	client *youtube.Client
}

// NewYouTubeResolver creates a new YouTubeResolver.
func NewYouTubeResolver() *YouTubeResolver {
	return &YouTubeResolver{client: &youtube.Client{}}
}

// Resolve fetches the video and returns its best audio-bearing format.
func (r *YouTubeResolver) Resolve(
	ctx context.Context,
	query *domain.SearchQuery,
) (*domain.TrackMetadata, error) {
	if !query.IsURL || !isYouTubeURL(query.Identifier()) {
		return nil, ErrUnsupportedQuery
	}
	videoID, err := youtube.ExtractVideoID(query.Query)
	if err != nil {
		return nil, ErrUnsupportedQuery
	}

	video, err := r.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch youtube video: %w", err)
	}

	meta := &domain.TrackMetadata{
		Title:      video.Title,
		WebpageURL: "https://www.youtube.com/watch?v=" + video.ID,
		Duration:   video.Duration,
		SourceName: string(domain.TrackSourceYouTube),
		ArtworkURL: bestThumbnail(video.Thumbnails),
	}
	if meta.Title == "" {
		meta.Title = "Unknown title"
	}

	format := bestAudioFormat(video.Formats.WithAudioChannels())
	if format == nil {
		if video.HLSManifestURL == "" {
			return nil, ports.ErrTrackNotFound
		}
		meta.StreamURL = video.HLSManifestURL
		meta.IsLive = true
		meta.Duration = 0
		return meta, nil
	}

	streamURL, err := r.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get youtube stream url: %w", err)
	}
	meta.StreamURL = streamURL
	return meta, nil
}

func isYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	default:
		return false
	}
}

// bestAudioFormat prefers audio-only formats, then the highest bitrate.
func bestAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	bestAudioOnly := false
	for i := range formats {
		f := &formats[i]
		audioOnly := strings.HasPrefix(f.MimeType, "audio/")
		switch {
		case best == nil,
			audioOnly && !bestAudioOnly,
			audioOnly == bestAudioOnly && f.Bitrate > best.Bitrate:
			best = f
			bestAudioOnly = audioOnly
		}
	}
	return best
}

func bestThumbnail(thumbnails youtube.Thumbnails) string {
	var best string
	var width uint
	for _, thumb := range thumbnails {
		if best == "" || thumb.Width > width {
			best = thumb.URL
			width = thumb.Width
		}
	}
	return best
}
