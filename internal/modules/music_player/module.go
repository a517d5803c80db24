package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/jukebot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/jukebot/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/jukebot/internal/modules/music_player/presentation/discord"
)

// shutdownTimeout bounds leaving every guild on shutdown.
const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*MusicPlayerModule)(nil)

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	registry        *usecases.ControllerRegistry
	commandHandlers *discord.CommandHandlers
	eventHandlers   *discord.EventHandlers
	lavalinkAdapter *infrastructure.LavalinkAdapter

	// Event-driven components
	eventBus            *infrastructure.ChannelEventBus
	playbackHandler     *infrastructure.PlaybackEventHandler
	notificationHandler *infrastructure.NotificationEventHandler
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the text commands for this module.
func (m *MusicPlayerModule) Commands() []bot.Command {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.CommandHandler {
	return m.commandHandlers.Handlers()
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil || deps.Session.State == nil || deps.Session.State.User == nil {
		return errors.New("music_player requires a connected session")
	}
	if m.config == nil {
		return errors.New("music_player config not loaded")
	}

	botID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		return fmt.Errorf("failed to parse bot ID: %w", err)
	}

	// Create event bus
	m.eventBus = infrastructure.NewChannelEventBus(m.config.EventBufferSize)

	// Create the audio backend
	connector, resolver, err := m.newBackend(deps.Session)
	if err != nil {
		m.eventBus.Close()
		return err
	}

	// Create the per-guild controllers
	m.registry = usecases.NewControllerRegistry(usecases.ControllerDeps{
		Connector:      connector,
		Resolver:       resolver,
		Publisher:      m.eventBus,
		ResolveTimeout: m.config.ResolveTimeout,
	})

	// Create event handlers
	m.playbackHandler = infrastructure.NewPlaybackEventHandler(m.deliverTrackEnded, m.eventBus)
	m.notificationHandler = infrastructure.NewNotificationEventHandler(
		infrastructure.NewNotifier(deps.Session),
		m.eventBus,
		infrastructure.NewDiscordUserInfoProvider(deps.Session),
	)
	m.playbackHandler.Start()
	m.notificationHandler.Start()

	// Create presentation handlers
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session.State)
	m.commandHandlers = discord.NewCommandHandlers(m.registry, voiceState, deps.Config.CommandPrefix)
	m.eventHandlers = discord.NewEventHandlers(botID, m.registry)

	slog.Info("music_player module initialized", "backend", m.config.AudioBackend)

	return nil
}

// newBackend builds the voice connector and the resolver whose stream handles it plays.
func (m *MusicPlayerModule) newBackend(
	session *discordgo.Session,
) (ports.VoiceConnector, ports.TrackResolver, error) {
	if m.config.AudioBackend == BackendLavalink {
		adapter, err := infrastructure.NewLavalinkAdapter(session, infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		m.lavalinkAdapter = adapter
		return adapter, rateLimited(m.config, adapter), nil
	}

	connector := infrastructure.NewDiscordVoiceConnector(
		session,
		infrastructure.NewFFmpegDecoder(m.config.FFmpegExecutable),
		m.config.OpusBitrate,
	)
	return connector, newFFmpegResolver(m.config), nil
}

// newFFmpegResolver builds the resolver chain for locally decoded playback.
func newFFmpegResolver(cfg *Config) ports.TrackResolver {
	resolvers := []ports.TrackResolver{infrastructure.NewYtDlpResolver(cfg.YtDlpExecutable)}
	if cfg.YouTubeFallback {
		resolvers = append(resolvers, infrastructure.NewYouTubeResolver())
	}
	return rateLimited(cfg, infrastructure.NewFallbackResolver(resolvers...))
}

func rateLimited(cfg *Config, resolver ports.TrackResolver) ports.TrackResolver {
	return infrastructure.NewRateLimitedResolver(resolver, cfg.ResolverRate, cfg.ResolverBurst)
}

// deliverTrackEnded hands a voice session completion to its guild's controller.
func (m *MusicPlayerModule) deliverTrackEnded(
	ctx context.Context,
	guildID snowflake.ID,
	generation uint64,
	err error,
) {
	ctrl, ok := m.registry.Get(guildID)
	if !ok {
		slog.Debug("dropping track end for guild without controller", "guild", guildID)
		return
	}
	ctrl.HandleTrackEnded(ctx, generation, err)
}

// Shutdown leaves every guild, then stops event delivery.
func (m *MusicPlayerModule) Shutdown() error {
	var errs []error

	if m.registry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := m.registry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to leave guilds: %w", err))
		}
	}

	if m.playbackHandler != nil {
		m.playbackHandler.Wait()
	}

	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Close()
	}

	return errors.Join(errs...)
}

// Event handlers.

func (m *MusicPlayerModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceServerUpdate(event)
	}
}

func (m *MusicPlayerModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceStateUpdate(event)
	}
	if m.eventHandlers != nil {
		m.eventHandlers.HandleVoiceStateUpdate(s, event)
	}
}
