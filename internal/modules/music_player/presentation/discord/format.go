package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
)

// Embed colors.
const (
	colorQueued = 0x5865F2
	colorQueue  = 0x2ECC71
)

// maxQueueLines caps the upcoming lines so the embed stays under Discord's description limit.
const maxQueueLines = 20

// trackLine renders a track as "title • duration (requested by name)".
// Unresolved tracks show their query and "Loading".
func trackLine(track *usecases.Track) string {
	duration := "Loading"
	if track.IsResolved() {
		duration = track.FormattedDuration()
	}
	line := fmt.Sprintf("%s • %s", track.DisplayTitle(), duration)
	if track.RequesterName != "" {
		line += fmt.Sprintf(" (requested by %s)", track.RequesterName)
	}
	return line
}

// queueDescription renders the now-playing line followed by the numbered upcoming tracks.
func queueDescription(snapshot *usecases.QueueSnapshot) string {
	var sb strings.Builder

	current := snapshot.NowPlaying
	if current == nil {
		current = snapshot.Resolving
	}
	if current != nil {
		sb.WriteString("Now playing: ")
		sb.WriteString(trackLine(current))
		if snapshot.Status == usecases.StatusPaused {
			sb.WriteString(" [paused]")
		}
		sb.WriteString("\n")
		if isLink(current.WebpageURL) {
			fmt.Fprintf(&sb, "<%s>\n", current.WebpageURL)
		}
	}

	if len(snapshot.Upcoming) > 0 {
		if current != nil {
			sb.WriteString("\n")
		}
		sb.WriteString("Up next:\n")
		for i, track := range snapshot.Upcoming {
			if i == maxQueueLines {
				fmt.Fprintf(&sb, "...and %d more\n", len(snapshot.Upcoming)-maxQueueLines)
				break
			}
			fmt.Fprintf(&sb, "%d. %s\n", i+1, trackLine(track))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func queueEmbed(snapshot *usecases.QueueSnapshot) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Music Queue",
		Description: queueDescription(snapshot),
		Color:       colorQueue,
	}
}

// queuedEmbed confirms an enqueue. The track is usually unresolved here, so
// the query stands in for the title until resolution finishes.
func queuedEmbed(output *usecases.EnqueueOutput) *discordgo.MessageEmbed {
	track := output.Track
	if output.StartedImmediately() {
		track = output.NowPlaying
	}

	description := track.DisplayTitle()
	if isLink(track.WebpageURL) {
		description = fmt.Sprintf("[%s](%s)", track.DisplayTitle(), track.WebpageURL)
	}

	position := fmt.Sprintf("#%d", output.Position)
	if output.StartedImmediately() {
		position = "Now playing"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Requested by", Value: requesterMention(track), Inline: true},
		{Name: "Position", Value: position, Inline: true},
	}
	if track.IsResolved() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Duration",
			Value:  track.FormattedDuration(),
			Inline: true,
		})
	}

	return &discordgo.MessageEmbed{
		Title:       "Queued",
		Description: description,
		Color:       colorQueued,
		Fields:      fields,
	}
}

func requesterMention(track *usecases.Track) string {
	if track.RequesterID == 0 {
		return track.RequesterName
	}
	return fmt.Sprintf("<@%d>", track.RequesterID)
}

// isLink reports whether a webpage URL is worth linking. Unresolved
// searches fall back to the raw query, which is not.
func isLink(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
