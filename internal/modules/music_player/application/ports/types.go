package ports

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// NowPlayingInfo contains information for the "Now Playing" notification.
type NowPlayingInfo struct {
	Title              string
	Duration           string
	URI                string
	SourceName         string // e.g., "youtube", "soundcloud"
	IsStream           bool
	ArtworkURL         string
	RequesterID        snowflake.ID
	RequesterName      string
	RequesterAvatarURL string
	EnqueuedAt         time.Time
}

// TrackFailedInfo contains information for a skipped-track notification.
type TrackFailedInfo struct {
	Query  string
	Title  string
	Reason string
}
