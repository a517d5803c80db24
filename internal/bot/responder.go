package bot

import "github.com/bwmarrin/discordgo"

// Responder provides an abstraction for replying to a text command.
// This interface enables testing handlers without a live Discord connection.
type Responder interface {
	// Reply sends a plain text message to the channel the command came from.
	Reply(content string) error

	// ReplyEmbed sends an embed to the channel the command came from.
	ReplyEmbed(embed *discordgo.MessageEmbed) error
}

// DiscordResponder implements Responder using a live Discord session.
type DiscordResponder struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordResponder creates a new DiscordResponder.
func NewDiscordResponder(s *discordgo.Session, channelID string) *DiscordResponder {
	return &DiscordResponder{
		session:   s,
		channelID: channelID,
	}
}

// Reply sends a text message via Discord API.
func (r *DiscordResponder) Reply(content string) error {
	_, err := r.session.ChannelMessageSend(r.channelID, content)
	return err
}

// ReplyEmbed sends an embed via Discord API.
func (r *DiscordResponder) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	_, err := r.session.ChannelMessageSendEmbed(r.channelID, embed)
	return err
}

// MockResponder is a test double for Responder.
type MockResponder struct {
	Messages []string
	Embeds   []*discordgo.MessageEmbed
	Err      error
}

// Reply records the message for testing.
func (m *MockResponder) Reply(content string) error {
	m.Messages = append(m.Messages, content)
	return m.Err
}

// ReplyEmbed records the embed for testing.
func (m *MockResponder) ReplyEmbed(embed *discordgo.MessageEmbed) error {
	m.Embeds = append(m.Embeds, embed)
	return m.Err
}

// LastMessage returns the most recent text reply, or "" if none.
func (m *MockResponder) LastMessage() string {
	if len(m.Messages) == 0 {
		return ""
	}
	return m.Messages[len(m.Messages)-1]
}

// LastEmbed returns the most recent embed reply, or nil if none.
func (m *MockResponder) LastEmbed() *discordgo.MessageEmbed {
	if len(m.Embeds) == 0 {
		return nil
	}
	return m.Embeds[len(m.Embeds)-1]
}
