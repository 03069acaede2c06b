package handlers

import (
	"log/slog"

	"github.com/edgard/herald/internal/assistant"
	"github.com/edgard/herald/internal/config"
	"github.com/edgard/herald/internal/database"
	"github.com/edgard/herald/internal/inbound"
)

// HandlerDeps provides dependencies for Telegram command handlers.
// Journal may be nil, in which case /deliveries reports it as unavailable.
type HandlerDeps struct {
	Logger    *slog.Logger
	Config    *config.Config
	Assistant *assistant.Service
	Pipeline  *inbound.Pipeline
	Journal   database.Store
}
