package domain

import "strings"

// TrackSource represents the origin platform of a track.
type TrackSource string

const (
	TrackSourceYouTube    TrackSource = "youtube"
	TrackSourceSoundCloud TrackSource = "soundcloud"
	TrackSourceBandcamp   TrackSource = "bandcamp"
	TrackSourceTwitch     TrackSource = "twitch"
	TrackSourceHTTP       TrackSource = "http"
	TrackSourceOther      TrackSource = "other"
)

// ParseTrackSource converts a source or extractor name to a TrackSource.
// Extractor names such as "Youtube", "youtube:tab" or "twitch:stream" are accepted.
func ParseTrackSource(name string) TrackSource {
	name = strings.ToLower(name)
	if base, _, found := strings.Cut(name, ":"); found {
		name = base
	}

	switch name {
	case "youtube":
		return TrackSourceYouTube
	case "soundcloud":
		return TrackSourceSoundCloud
	case "bandcamp":
		return TrackSourceBandcamp
	case "twitch":
		return TrackSourceTwitch
	case "http", "generic":
		return TrackSourceHTTP
	default:
		return TrackSourceOther
	}
}

// Color returns the embed accent color for the source.
func (s TrackSource) Color() int {
	switch s {
	case TrackSourceYouTube:
		return 0xFF0000
	case TrackSourceSoundCloud:
		return 0xFF5500
	case TrackSourceBandcamp:
		return 0x1DA0C3
	case TrackSourceTwitch:
		return 0x9146FF
	default:
		return 0x5865F2
	}
}

// IconURL returns the favicon shown next to the embed author, or "" when none applies.
func (s TrackSource) IconURL() string {
	switch s {
	case TrackSourceYouTube:
		return "https://www.youtube.com/favicon.ico"
	case TrackSourceSoundCloud:
		return "https://soundcloud.com/favicon.ico"
	case TrackSourceBandcamp:
		return "https://bandcamp.com/favicon.ico"
	case TrackSourceTwitch:
		return "https://www.twitch.tv/favicon.ico"
	default:
		return ""
	}
}
