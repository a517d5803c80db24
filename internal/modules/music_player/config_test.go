package music_player

import (
	"testing"
	"time"

	"github.com/sglre6355/jukebot/internal/bot"
)

func TestMusicPlayerModule_LoadConfig_Defaults(t *testing.T) {
	m := &MusicPlayerModule{}

	if err := m.LoadConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Config{
		AudioBackend:     BackendFFmpeg,
		FFmpegExecutable: "ffmpeg",
		YtDlpExecutable:  "yt-dlp",
		OpusBitrate:      128000,
		ResolverRate:     2,
		ResolverBurst:    4,
		ResolveTimeout:   30 * time.Second,
		YouTubeFallback:  true,
		EventBufferSize:  100,
	}
	if *m.config != want {
		t.Errorf("expected %+v, got %+v", want, *m.config)
	}
}

func TestMusicPlayerModule_LoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "overrides",
			env: map[string]string{
				"FFMPEG_EXECUTABLE": "/usr/local/bin/ffmpeg",
				"YTDLP_EXECUTABLE":  "/opt/yt-dlp",
				"RESOLVER_RATE":     "0.5",
				"RESOLVER_BURST":    "1",
				"RESOLVE_TIMEOUT":   "45s",
				"YOUTUBE_FALLBACK":  "false",
				"OPUS_BITRATE":      "96000",
				"EVENT_BUFFER_SIZE": "16",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.FFmpegExecutable != "/usr/local/bin/ffmpeg" || cfg.YtDlpExecutable != "/opt/yt-dlp" {
					t.Errorf("unexpected executables %q %q", cfg.FFmpegExecutable, cfg.YtDlpExecutable)
				}
				if cfg.ResolverRate != 0.5 || cfg.ResolverBurst != 1 {
					t.Errorf("unexpected rate %v burst %d", cfg.ResolverRate, cfg.ResolverBurst)
				}
				if cfg.ResolveTimeout != 45*time.Second {
					t.Errorf("unexpected timeout %v", cfg.ResolveTimeout)
				}
				if cfg.YouTubeFallback {
					t.Error("expected YouTube fallback disabled")
				}
				if cfg.OpusBitrate != 96000 || cfg.EventBufferSize != 16 {
					t.Errorf("unexpected bitrate %d buffer %d", cfg.OpusBitrate, cfg.EventBufferSize)
				}
			},
		},
		{
			name: "lavalink backend",
			env: map[string]string{
				"AUDIO_BACKEND":     "lavalink",
				"LAVALINK_ADDRESS":  "localhost:2333",
				"LAVALINK_PASSWORD": "youshallnotpass",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.AudioBackend != BackendLavalink {
					t.Errorf("expected lavalink backend, got %q", cfg.AudioBackend)
				}
			},
		},
		{
			name:    "lavalink without address",
			env:     map[string]string{"AUDIO_BACKEND": "lavalink", "LAVALINK_PASSWORD": "secret"},
			wantErr: true,
		},
		{
			name:    "unknown backend",
			env:     map[string]string{"AUDIO_BACKEND": "vlc"},
			wantErr: true,
		},
		{
			name:    "bitrate out of range",
			env:     map[string]string{"OPUS_BITRATE": "1000000"},
			wantErr: true,
		},
		{
			name:    "negative rate",
			env:     map[string]string{"RESOLVER_RATE": "-1"},
			wantErr: true,
		},
		{
			name:    "zero burst with a rate",
			env:     map[string]string{"RESOLVER_BURST": "0"},
			wantErr: true,
		},
		{
			name: "unlimited rate ignores burst",
			env:  map[string]string{"RESOLVER_RATE": "0", "RESOLVER_BURST": "0"},
		},
		{
			name:    "zero timeout",
			env:     map[string]string{"RESOLVE_TIMEOUT": "0s"},
			wantErr: true,
		},
		{
			name:    "malformed duration",
			env:     map[string]string{"RESOLVE_TIMEOUT": "soon"},
			wantErr: true,
		},
		{
			name:    "empty event buffer",
			env:     map[string]string{"EVENT_BUFFER_SIZE": "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}
			m := &MusicPlayerModule{}

			err := m.LoadConfig()

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, m.config)
			}
		})
	}
}

func TestMusicPlayerModule_InitRequiresSession(t *testing.T) {
	m := &MusicPlayerModule{}
	if err := m.LoadConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Init(bot.ModuleDependencies{}); err == nil {
		t.Fatal("expected error without a session")
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("expected shutdown of an uninitialized module to succeed, got %v", err)
	}
}

func TestMusicPlayerModule_Commands(t *testing.T) {
	m := &MusicPlayerModule{}

	names := map[string]bool{}
	for _, cmd := range m.Commands() {
		names[cmd.Name] = true
	}
	for _, want := range []string{"join", "play", "skip", "pause", "resume", "queue", "stop", "leave"} {
		if !names[want] {
			t.Errorf("expected command %q", want)
		}
	}
}
