package music_player

import (
	"errors"
	"fmt"
	"time"
)

// Audio backends.
const (
	BackendFFmpeg   = "ffmpeg"
	BackendLavalink = "lavalink"
)

// Config holds the music player module configuration.
type Config struct {
	AudioBackend string `env:"AUDIO_BACKEND" envDefault:"ffmpeg"`

	FFmpegExecutable string `env:"FFMPEG_EXECUTABLE" envDefault:"ffmpeg"`
	YtDlpExecutable  string `env:"YTDLP_EXECUTABLE"  envDefault:"yt-dlp"`
	OpusBitrate      int    `env:"OPUS_BITRATE"      envDefault:"128000"`

	LavalinkAddress  string `env:"LAVALINK_ADDRESS"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD"`

	ResolverRate    float64       `env:"RESOLVER_RATE"    envDefault:"2"`
	ResolverBurst   int           `env:"RESOLVER_BURST"   envDefault:"4"`
	ResolveTimeout  time.Duration `env:"RESOLVE_TIMEOUT"  envDefault:"30s"`
	YouTubeFallback bool          `env:"YOUTUBE_FALLBACK" envDefault:"true"`

	EventBufferSize int `env:"EVENT_BUFFER_SIZE" envDefault:"100"`
}

// Validate checks settings that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.AudioBackend {
	case BackendFFmpeg:
		if c.FFmpegExecutable == "" {
			return errors.New("FFMPEG_EXECUTABLE must not be empty")
		}
		if c.YtDlpExecutable == "" {
			return errors.New("YTDLP_EXECUTABLE must not be empty")
		}
		if c.OpusBitrate < 6000 || c.OpusBitrate > 510000 {
			return fmt.Errorf("OPUS_BITRATE must be between 6000 and 510000, got %d", c.OpusBitrate)
		}
	case BackendLavalink:
		if c.LavalinkAddress == "" || c.LavalinkPassword == "" {
			return errors.New("LAVALINK_ADDRESS and LAVALINK_PASSWORD are required for the lavalink backend")
		}
	default:
		return fmt.Errorf("AUDIO_BACKEND must be %q or %q, got %q", BackendFFmpeg, BackendLavalink, c.AudioBackend)
	}

	if c.ResolverRate < 0 {
		return fmt.Errorf("RESOLVER_RATE must not be negative, got %v", c.ResolverRate)
	}
	if c.ResolverRate > 0 && c.ResolverBurst < 1 {
		return fmt.Errorf("RESOLVER_BURST must be at least 1, got %d", c.ResolverBurst)
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("RESOLVE_TIMEOUT must be positive, got %v", c.ResolveTimeout)
	}
	if c.EventBufferSize < 1 {
		return fmt.Errorf("EVENT_BUFFER_SIZE must be at least 1, got %d", c.EventBufferSize)
	}
	return nil
}
