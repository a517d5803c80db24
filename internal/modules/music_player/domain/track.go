package domain

import (
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// TrackID is a unique identifier for a queued track.
type TrackID string

// TrackMetadata is what a resolver learns about a query.
type TrackMetadata struct {
	StreamURL  string // handle understood by the voice session
	Title      string
	WebpageURL string
	Duration   time.Duration // zero when unknown
	IsLive     bool
	SourceName string // e.g., "youtube", "soundcloud"
	ArtworkURL string
}

// Track is one playback request, resolved or pending resolution.
// A resolved Track is never mutated; Resolve returns a new value.
type Track struct {
	ID            TrackID
	Query         string // original user input (URL or search text)
	StreamURL     string // empty until resolved
	Title         string
	WebpageURL    string
	Duration      time.Duration
	IsLive        bool
	SourceName    string
	ArtworkURL    string
	RequesterID   snowflake.ID
	RequesterName string
	EnqueuedAt    time.Time
}

// NewTrack creates an unresolved Track for the given query.
func NewTrack(query string, requesterID snowflake.ID, requesterName string) *Track {
	return &Track{
		ID:            TrackID(uuid.NewString()),
		Query:         query,
		RequesterID:   requesterID,
		RequesterName: requesterName,
		EnqueuedAt:    time.Now().UTC(),
	}
}

// IsResolved returns true once a stream URL is known.
func (t *Track) IsResolved() bool {
	return t.StreamURL != ""
}

// Resolve returns a copy of the track populated with the resolver's metadata.
func (t *Track) Resolve(meta TrackMetadata) *Track {
	resolved := *t
	resolved.StreamURL = meta.StreamURL
	resolved.Title = meta.Title
	if resolved.Title == "" {
		resolved.Title = "Unknown title"
	}
	resolved.WebpageURL = meta.WebpageURL
	if resolved.WebpageURL == "" {
		resolved.WebpageURL = t.Query
	}
	resolved.Duration = meta.Duration
	resolved.IsLive = meta.IsLive
	resolved.SourceName = meta.SourceName
	resolved.ArtworkURL = meta.ArtworkURL
	return &resolved
}

// DisplayTitle returns the title when known, otherwise the original query.
func (t *Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Query
}

// Source returns the parsed TrackSource for this track.
func (t *Track) Source() TrackSource {
	return ParseTrackSource(t.SourceName)
}

// FormattedDuration returns "Live" for streams, "N/A" when unknown,
// h:mm:ss when the track is an hour or longer and m:ss otherwise.
func (t *Track) FormattedDuration() string {
	if t.IsLive {
		return "Live"
	}
	if t.Duration <= 0 {
		return "N/A"
	}

	totalSeconds := int(t.Duration.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
