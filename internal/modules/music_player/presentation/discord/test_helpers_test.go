package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/domain"
)

const (
	testGuildID        = snowflake.ID(1)
	testVoiceChannelID = snowflake.ID(100)
	testTextChannelID  = snowflake.ID(200)
	testUserID         = snowflake.ID(300)
	testBotID          = snowflake.ID(900)
)

type fakeVoiceSession struct {
	mu         sync.Mutex
	channelID  snowflake.ID
	played     []string
	disconnect int
}

func (f *fakeVoiceSession) ChannelID() snowflake.ID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channelID
}

func (f *fakeVoiceSession) MoveTo(_ context.Context, channelID snowflake.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelID = channelID
	return nil
}

func (f *fakeVoiceSession) Play(_ context.Context, streamURL string, _ func(error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, streamURL)
	return nil
}

func (f *fakeVoiceSession) Pause() error  { return nil }
func (f *fakeVoiceSession) Resume() error { return nil }
func (f *fakeVoiceSession) Stop() error   { return nil }

func (f *fakeVoiceSession) Disconnect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnect++
	return nil
}

type fakeConnector struct {
	mu      sync.Mutex
	session *fakeVoiceSession
	err     error
}

func (f *fakeConnector) Connect(_ context.Context, _, channelID snowflake.ID) (ports.VoiceSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.session = &fakeVoiceSession{channelID: channelID}
	return f.session, nil
}

// fakeResolver resolves every query to a track titled after the query,
// except queries listed in failing.
type fakeResolver struct {
	failing map[string]bool
}

func (f *fakeResolver) Resolve(_ context.Context, query *domain.SearchQuery) (*domain.TrackMetadata, error) {
	if f.failing[query.Query] {
		return nil, errUnresolvable
	}
	return &domain.TrackMetadata{
		StreamURL:  "stream://" + query.Query,
		Title:      query.Query,
		SourceName: "youtube",
	}, nil
}

type fakeVoiceState struct {
	channels map[snowflake.ID]snowflake.ID // user -> voice channel
	names    map[snowflake.ID]string
	err      error
}

func (f *fakeVoiceState) GetUserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.channels[userID], nil
}

func (f *fakeVoiceState) ChannelName(channelID snowflake.ID) string {
	if name, ok := f.names[channelID]; ok {
		return name
	}
	return channelID.String()
}

// handlerFixture wires CommandHandlers to a real registry backed by fakes.
type handlerFixture struct {
	connector  *fakeConnector
	resolver   *fakeResolver
	voiceState *fakeVoiceState
	registry   *usecases.ControllerRegistry
	handlers   *CommandHandlers
}

func newHandlerFixture() *handlerFixture {
	connector := &fakeConnector{}
	voiceState := &fakeVoiceState{
		channels: map[snowflake.ID]snowflake.ID{testUserID: testVoiceChannelID},
		names:    map[snowflake.ID]string{testVoiceChannelID: "General"},
	}
	resolver := &fakeResolver{failing: make(map[string]bool)}
	registry := usecases.NewControllerRegistry(usecases.ControllerDeps{
		Connector: connector,
		Resolver:  resolver,
	})
	return &handlerFixture{
		connector:  connector,
		resolver:   resolver,
		voiceState: voiceState,
		registry:   registry,
		handlers:   NewCommandHandlers(registry, voiceState, "!"),
	}
}

func guildMessage(username string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			GuildID:   testGuildID.String(),
			ChannelID: testTextChannelID.String(),
			Author:    &discordgo.User{ID: testUserID.String(), Username: username},
		},
	}
}

func directMessage() *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ChannelID: testTextChannelID.String(),
			Author:    &discordgo.User{ID: testUserID.String(), Username: "alice"},
		},
	}
}

var (
	errConnectRefused = errors.New("voice gateway refused the connection")
	errUnresolvable   = errors.New("unsupported URL")
)
