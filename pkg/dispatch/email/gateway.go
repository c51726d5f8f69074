package email

import (
	"context"
	"log/slog"
	"sync"
)

// LogGateway logs outbound mail instead of delivering it, with dedupe
// key suppression. Used in development and tests; production deploys
// plug a real provider behind the Gateway interface.
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
			g.logger.Debug("suppressed duplicate email", "dedupe_key", msg.DedupeKey)

			return nil
		}
	}

	g.logger.Info("email sent",
		"to", msg.To,
		"subject", msg.Subject,
		"dedupe_key", msg.DedupeKey)

	return nil
}
