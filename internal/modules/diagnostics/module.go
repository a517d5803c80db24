package diagnostics

import (
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/diagnostics/presentation"
)

func init() {
	bot.Register(&DiagnosticsModule{})
}

// DiagnosticsModule provides health-check commands.
type DiagnosticsModule struct {
	pingHandler *presentation.PingHandler
}

// Name returns the module name.
func (m *DiagnosticsModule) Name() string {
	return "diagnostics"
}

// Commands returns the text commands for this module.
func (m *DiagnosticsModule) Commands() []bot.Command {
	return []bot.Command{
		{Name: "ping", Description: "Show the gateway latency"},
	}
}

// CommandHandlers returns the command handlers for this module.
func (m *DiagnosticsModule) CommandHandlers() map[string]bot.CommandHandler {
	return map[string]bot.CommandHandler{
		"ping": m.pingHandler.Handle,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *DiagnosticsModule) EventHandlers() []bot.EventHandler {
	return nil
}

// Init initializes the module.
func (m *DiagnosticsModule) Init(_ bot.ModuleDependencies) error {
	m.pingHandler = presentation.NewPingHandler()
	return nil
}

// Shutdown cleans up module resources.
func (m *DiagnosticsModule) Shutdown() error {
	return nil
}
