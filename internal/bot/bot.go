package bot

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// helpCommand is handled by the bot itself rather than by a module.
const helpCommand = "help"

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config   *Config
	session  *discordgo.Session
	modules  []Module
	handlers map[string]CommandHandler
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:   cfg,
		modules:  make([]Module, 0),
		handlers: make(map[string]CommandHandler),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
}

// Start initializes the bot, connects to Discord, and wires module handlers.
func (b *Bot) Start() error {
	// Module configuration is validated before any network activity
	if err := b.loadModuleConfigs(); err != nil {
		return fmt.Errorf("failed to load module configuration: %w", err)
	}

	// Create Discord session
	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentMessageContent
	b.session = session

	// Open connection so modules can read the bot user from state
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	// Initialize modules
	if err := b.initModules(); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	// Build handler map
	b.buildHandlerMap()

	// Register message handler
	b.session.AddHandler(b.handleMessage)

	// Register module event handlers
	b.registerEventHandlers()

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
		"prefix", b.config.CommandPrefix,
	)

	return nil
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() error {
	// Shutdown modules
	for _, mod := range b.modules {
		if err := mod.Shutdown(); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// loadModuleConfigs calls LoadConfig on every module that implements ConfigurableModule.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		configurable, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := configurable.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules() error {
	deps := ModuleDependencies{
		Session: b.session,
		Config:  b.config,
	}

	for _, mod := range b.modules {
		if err := mod.Init(deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// buildHandlerMap builds the command name to handler mapping.
func (b *Bot) buildHandlerMap() {
	for _, mod := range b.modules {
		for name := range mod.CommandHandlers() {
			if _, exists := b.handlers[name]; exists {
				slog.Warn("command registered twice, last module wins",
					"command", name,
					"module", mod.Name(),
				)
			}
		}
		maps.Copy(b.handlers, mod.CommandHandlers())
	}
	b.handlers[helpCommand] = b.handleHelp
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// collectCommands gathers all commands from loaded modules, sorted by name.
func (b *Bot) collectCommands() []Command {
	var commands []Command
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}
	slices.SortFunc(commands, func(a, b Command) int {
		return strings.Compare(a.Name, b.Name)
	})
	return commands
}

// Embed colors for responses.
const (
	colorBlurple = 0x5865F2
	colorRed     = 0xFF0000
)

// handleMessage parses incoming messages and routes commands to their handler.
func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	name, args, ok := ParseCommand(m.Content, b.config.CommandPrefix)
	if !ok {
		return
	}

	b.dispatch(s, m, name, args, NewDiscordResponder(s, m.ChannelID))
}

// dispatch runs the handler for name and reports unexpected failures to the channel.
func (b *Bot) dispatch(
	s *discordgo.Session,
	m *discordgo.MessageCreate,
	name, args string,
	r Responder,
) {
	handler, ok := b.handlers[name]
	if !ok {
		slog.Debug("found no handler for command", "command", name)
		return
	}

	logger := slog.With(
		"request_id", uuid.NewString(),
		"command", name,
		"guild", m.GuildID,
		"channel", m.ChannelID,
	)
	logger.Debug("dispatching command")

	if err := handler(s, m, args, r); err != nil {
		logger.Error("failed to handle command", "error", err)
		respondWithEmbed(r, "Error", "An error occurred while processing your command.", colorRed)
	}
}

// handleHelp lists every command the loaded modules provide.
func (b *Bot) handleHelp(
	_ *discordgo.Session,
	_ *discordgo.MessageCreate,
	_ string,
	r Responder,
) error {
	var sb strings.Builder
	for _, cmd := range b.collectCommands() {
		sb.WriteString("`")
		sb.WriteString(b.config.CommandPrefix)
		sb.WriteString(cmd.Name)
		if cmd.Usage != "" {
			sb.WriteString(" ")
			sb.WriteString(cmd.Usage)
		}
		sb.WriteString("` ")
		sb.WriteString(cmd.Description)
		sb.WriteString("\n")
	}

	return r.ReplyEmbed(&discordgo.MessageEmbed{
		Title:       "Commands",
		Description: sb.String(),
		Color:       colorBlurple,
	})
}

// respondWithEmbed sends an embed reply, logging rather than returning failures.
func respondWithEmbed(r Responder, title, description string, color int) {
	err := r.ReplyEmbed(&discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
	})
	if err != nil {
		slog.Error("failed to send embed response", "error", err)
	}
}
