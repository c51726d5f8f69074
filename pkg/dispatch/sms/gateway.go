package sms

import (
	"context"
	"log/slog"
	"sync"
)

// LogGateway logs outbound texts instead of delivering them, with
// dedupe key suppression. Used in development and tests.
type LogGateway struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{
		logger: logger,
		seen:   make(map[string]bool),
	}
}

func (g *LogGateway) Send(_ context.Context, msg Message) error {
	if msg.DedupeKey != "" {
		g.mu.Lock()
		duplicate := g.seen[msg.DedupeKey]
		g.seen[msg.DedupeKey] = true
		g.mu.Unlock()

		if duplicate {
			g.logger.Debug("suppressed duplicate sms", "dedupe_key", msg.DedupeKey)

			return nil
		}
	}

	g.logger.Info("sms sent", "to", msg.To, "dedupe_key", msg.DedupeKey)

	return nil
}
