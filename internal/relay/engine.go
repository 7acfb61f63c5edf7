package relay

import (
	"log/slog"
	"time"

	"github.com/tradedeck/relay/internal/auth"
	"github.com/tradedeck/relay/internal/protocol"
)

// Config holds relay engine tuning.
type Config struct {
	// WriteTimeout bounds sends the engine issues on behalf of peers
	// (error replies, forwarded frames, status broadcasts).
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 5 * time.Second,
	}
}

// Engine accepts authenticated duplex connections, routes frames between
// connectors and clients, and keeps the session registry current. One
// goroutine per connection runs a Handle* method until the transport closes.
type Engine struct {
	cfg       Config
	verifier  auth.TokenVerifier
	ownership auth.OwnershipStore
	reg       *Registry
	logger    *slog.Logger
}

// NewEngine creates a relay engine with an empty registry.
func NewEngine(cfg Config, verifier auth.TokenVerifier, ownership auth.OwnershipStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cfg:       cfg,
		verifier:  verifier,
		ownership: ownership,
		reg:       NewRegistry(),
		logger:    logger,
	}
}

// Registry exposes the session registry for health reporting and shutdown.
func (e *Engine) Registry() *Registry {
	return e.reg
}

// sendError writes an ERROR frame, best effort. A peer that vanished between
// lookup and send is logged; the calling read loop is never taken down by it.
func (e *Engine) sendError(p Peer, commandID, message string) {
	if err := p.Send(protocol.Error(commandID, message)); err != nil {
		e.logger.Debug("error reply not delivered", "error", err)
	}
}
