package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
)

// Compile-time checks.
var (
	_ ports.VoiceConnector = (*DiscordVoiceConnector)(nil)
	_ ports.VoiceSession   = (*discordVoiceSession)(nil)
	_ voiceLink            = (*discordgo.VoiceConnection)(nil)
)

// voiceLink is the part of a discordgo voice connection a session drives.
type voiceLink interface {
	ChangeChannel(channelID string, mute, deaf bool) error
	Speaking(speaking bool) error
	Disconnect() error
}

// DiscordVoiceConnector joins voice channels through the Discord gateway and
// streams audio decoded locally by ffmpeg.
type DiscordVoiceConnector struct {
	session    *discordgo.Session
	decoder    audioDecoder
	newEncoder func() (frameEncoder, error)
}

// NewDiscordVoiceConnector creates a new DiscordVoiceConnector.
func NewDiscordVoiceConnector(
	session *discordgo.Session,
	decoder *FFmpegDecoder,
	bitrate int,
) *DiscordVoiceConnector {
	if bitrate <= 0 {
		bitrate = DefaultOpusBitrate
	}
	return &DiscordVoiceConnector{
		session: session,
		decoder: decoder,
		newEncoder: func() (frameEncoder, error) {
			return newOpusEncoder(bitrate)
		},
	}
}

// Connect joins the voice channel. The bot joins self-deafened.
func (c *DiscordVoiceConnector) Connect(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) (ports.VoiceSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := c.session.ChannelVoiceJoin(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}

	slog.Info("joined voice channel", "guild", guildID, "channel", channelID)

	return newDiscordVoiceSession(guildID, channelID, vc, vc.OpusSend, c.decoder, c.newEncoder), nil
}

// playback is one decoder run on a session.
type playback struct {
	cancel  context.CancelFunc
	gate    *pauseGate
	done    chan struct{}
	stopped bool // guarded by discordVoiceSession.mu
}

type discordVoiceSession struct {
	guildID    snowflake.ID
	link       voiceLink
	opusSend   chan<- []byte
	decoder    audioDecoder
	newEncoder func() (frameEncoder, error)

	mu        sync.Mutex
	channelID snowflake.ID
	current   *playback
}

func newDiscordVoiceSession(
	guildID, channelID snowflake.ID,
	link voiceLink,
	opusSend chan<- []byte,
	decoder audioDecoder,
	newEncoder func() (frameEncoder, error),
) *discordVoiceSession {
	return &discordVoiceSession{
		guildID:    guildID,
		channelID:  channelID,
		link:       link,
		opusSend:   opusSend,
		decoder:    decoder,
		newEncoder: newEncoder,
	}
}

func (s *discordVoiceSession) ChannelID() snowflake.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID
}

func (s *discordVoiceSession) MoveTo(_ context.Context, channelID snowflake.ID) error {
	if err := s.link.ChangeChannel(channelID.String(), false, true); err != nil {
		return fmt.Errorf("failed to move to voice channel: %w", err)
	}

	s.mu.Lock()
	s.channelID = channelID
	s.mu.Unlock()
	return nil
}

// Play stops any current playback and starts streaming streamURL.
// ctx bounds startup only; the stream runs until it ends or Stop is called.
func (s *discordVoiceSession) Play(
	ctx context.Context,
	streamURL string,
	onFinished func(err error),
) error {
	s.stopCurrent()

	if err := ctx.Err(); err != nil {
		return err
	}

	enc, err := s.newEncoder()
	if err != nil {
		return err
	}

	playCtx, cancel := context.WithCancel(context.Background())
	stream, err := s.decoder.Open(playCtx, streamURL)
	if err != nil {
		cancel()
		return err
	}

	p := &playback{
		cancel: cancel,
		gate:   newPauseGate(),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()

	if err := s.link.Speaking(true); err != nil {
		slog.Debug("failed to set speaking", "guild", s.guildID, "error", err)
	}

	go s.run(playCtx, p, stream, enc, onFinished)
	return nil
}

func (s *discordVoiceSession) run(
	ctx context.Context,
	p *playback,
	stream decodedStream,
	enc frameEncoder,
	onFinished func(err error),
) {
	defer close(p.done)

	err := pumpOpus(ctx, stream, enc, s.opusSend, p.gate)
	if err != nil {
		stream.Kill()
		_ = stream.Wait()
	} else if waitErr := stream.Wait(); waitErr != nil && ctx.Err() == nil {
		err = waitErr
	}
	p.cancel()

	s.mu.Lock()
	stopped := p.stopped
	if s.current == p {
		s.current = nil
	}
	s.mu.Unlock()

	if stopped {
		return
	}

	if err := s.link.Speaking(false); err != nil {
		slog.Debug("failed to clear speaking", "guild", s.guildID, "error", err)
	}
	onFinished(err)
}

func (s *discordVoiceSession) Pause() error {
	p := s.active()
	if p == nil {
		return ports.ErrNoPlayback
	}
	p.gate.Pause()
	return nil
}

func (s *discordVoiceSession) Resume() error {
	p := s.active()
	if p == nil {
		return ports.ErrNoPlayback
	}
	p.gate.Resume()
	return nil
}

func (s *discordVoiceSession) Stop() error {
	s.stopCurrent()
	return nil
}

func (s *discordVoiceSession) Disconnect(_ context.Context) error {
	s.stopCurrent()
	if err := s.link.Disconnect(); err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	slog.Info("left voice channel", "guild", s.guildID)
	return nil
}

func (s *discordVoiceSession) active() *playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// stopCurrent cancels the current playback and waits for its goroutine so the
// completion callback can never fire afterwards.
func (s *discordVoiceSession) stopCurrent() {
	s.mu.Lock()
	p := s.current
	if p != nil {
		p.stopped = true
		s.current = nil
	}
	s.mu.Unlock()

	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}
