package infrastructure

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

func TestNotifier_NowPlayingEmbed(t *testing.T) {
	n := NewNotifier(nil)
	enqueuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		info         *ports.NowPlayingInfo
		wantDuration bool
		wantImage    string
	}{
		{
			name: "regular track",
			info: &ports.NowPlayingInfo{
				Title:         "songA",
				Duration:      "3:00",
				URI:           "https://example.com/songA",
				SourceName:    "generic",
				ArtworkURL:    "https://example.com/songA.jpg",
				RequesterName: "alice",
				EnqueuedAt:    enqueuedAt,
			},
			wantDuration: true,
			wantImage:    "https://example.com/songA.jpg",
		},
		{
			name: "live stream hides duration",
			info: &ports.NowPlayingInfo{
				Title:         "radio",
				Duration:      "Live",
				SourceName:    "other",
				IsStream:      true,
				RequesterName: "bob",
				EnqueuedAt:    enqueuedAt,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			embed := n.nowPlayingEmbed(tt.info)

			if embed.Title != tt.info.Title {
				t.Errorf("expected title %q, got %q", tt.info.Title, embed.Title)
			}
			if embed.Footer == nil || embed.Footer.Text != "Requested by "+tt.info.RequesterName {
				t.Errorf("unexpected footer %+v", embed.Footer)
			}
			if embed.Timestamp != "2024-05-01T12:00:00Z" {
				t.Errorf("unexpected timestamp %q", embed.Timestamp)
			}
			hasDuration := len(embed.Fields) == 1 && embed.Fields[0].Name == "Duration"
			if hasDuration != tt.wantDuration {
				t.Errorf("duration field present = %v, want %v", hasDuration, tt.wantDuration)
			}
			var image string
			if embed.Image != nil {
				image = embed.Image.URL
			}
			if image != tt.wantImage {
				t.Errorf("expected image %q, got %q", tt.wantImage, image)
			}
		})
	}
}

func TestTrackFailedEmbed(t *testing.T) {
	embed := trackFailedEmbed(&ports.TrackFailedInfo{
		Query:  "https://bad.example/x",
		Title:  "https://bad.example/x",
		Reason: "Could not retrieve audio from that link.",
	})

	if !strings.Contains(embed.Description, "Could not retrieve audio from that link.") {
		t.Errorf("expected reason in description, got %q", embed.Description)
	}
	if strings.Contains(embed.Description, "Query:") {
		t.Errorf("expected query line omitted when it equals the title, got %q", embed.Description)
	}
}

func TestNotifier_TwitchThumbnail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "1280x720") {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	n := NewNotifier(nil)
	artwork := server.URL + "/preview-440x248.jpg"

	got := n.getBestThumbnail(domain.TrackSourceTwitch, "", artwork)
	if want := server.URL + "/preview-1280x720.jpg"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := n.getBestThumbnail(domain.TrackSourceOther, "", artwork); got != artwork {
		t.Errorf("expected fallback artwork, got %q", got)
	}
}
