package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

// Ensure YtDlpResolver implements ports.TrackResolver.
var _ ports.TrackResolver = (*YtDlpResolver)(nil)

// YtDlpResolver resolves queries to direct media URLs by running yt-dlp.
type YtDlpResolver struct {
	executable string
}

// NewYtDlpResolver creates a new YtDlpResolver. An empty executable uses yt-dlp from PATH.
func NewYtDlpResolver(executable string) *YtDlpResolver {
	return &YtDlpResolver{executable: executable}
}

// Resolve runs yt-dlp for a single best-audio result and returns its metadata.
func (r *YtDlpResolver) Resolve(
	ctx context.Context,
	query *domain.SearchQuery,
) (*domain.TrackMetadata, error) {
	cmd := ytdlp.New().
		Format("bestaudio/best").
		NoPlaylist().
		DefaultSearch("ytsearch").
		DumpSingleJSON().
		NoWarnings().
		IgnoreConfig()
	if r.executable != "" {
		cmd.SetExecutable(r.executable)
	}

	start := time.Now()
	res, err := cmd.Run(ctx, query.Identifier())
	if err != nil {
		if res != nil && res.Stderr != "" {
			slog.Debug("yt-dlp stderr", "query", query.Query, "stderr", res.Stderr)
		}
		return nil, fmt.Errorf("failed to run yt-dlp: %w", err)
	}

	meta, err := parseYtDlpInfo([]byte(res.Stdout), query.Query)
	if err != nil {
		return nil, err
	}

	slog.Debug("resolved track with yt-dlp",
		"query", query.Query,
		"title", meta.Title,
		"elapsed", time.Since(start),
	)
	return meta, nil
}

// ytdlpInfo is the subset of yt-dlp's info JSON the resolver reads.
type ytdlpInfo struct {
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	WebpageURL  string      `json:"webpage_url"`
	OriginalURL string      `json:"original_url"`
	Duration    float64     `json:"duration"`
	IsLive      bool        `json:"is_live"`
	Extractor   string      `json:"extractor"`
	Thumbnail   string      `json:"thumbnail"`
	Entries     []ytdlpInfo `json:"entries"`
}

// parseYtDlpInfo converts yt-dlp's single-JSON output into TrackMetadata.
// Search results arrive as a playlist; the first entry wins.
func parseYtDlpInfo(data []byte, query string) (*domain.TrackMetadata, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}

	if len(info.Entries) > 0 {
		entry := info.Entries[0]
		if entry.Extractor == "" {
			entry.Extractor = info.Extractor
		}
		info = entry
	}

	if info.URL == "" {
		return nil, ports.ErrTrackNotFound
	}

	webpageURL := info.WebpageURL
	if webpageURL == "" {
		webpageURL = info.OriginalURL
	}
	if webpageURL == "" {
		webpageURL = query
	}

	title := info.Title
	if title == "" {
		title = "Unknown title"
	}

	return &domain.TrackMetadata{
		StreamURL:  info.URL,
		Title:      title,
		WebpageURL: webpageURL,
		Duration:   time.Duration(info.Duration * float64(time.Second)),
		IsLive:     info.IsLive,
		SourceName: string(domain.ParseTrackSource(info.Extractor)),
		ArtworkURL: info.Thumbnail,
	}, nil
}
