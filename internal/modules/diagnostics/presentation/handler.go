package presentation

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/jukebot/internal/bot"
	"github.com/sglre6355/jukebot/internal/modules/diagnostics/application"
)

// PingHandler handles the ping command.
type PingHandler struct {
	interactor *application.PingInteractor
}

// NewPingHandler creates a new PingHandler.
func NewPingHandler() *PingHandler {
	return &PingHandler{
		interactor: application.NewPingInteractor(),
	}
}

// Handle replies with the gateway heartbeat latency.
func (h *PingHandler) Handle(
	s *discordgo.Session,
	_ *discordgo.MessageCreate,
	_ string,
	r bot.Responder,
) error {
	var source application.LatencySource
	if s != nil {
		source = s
	}

	result := h.interactor.Execute(source)
	return r.Reply(result.Message)
}
