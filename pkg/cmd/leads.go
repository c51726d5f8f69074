package cmd

import (
	"log/slog"
	"strings"

	"github.com/leadmill/leadmill/pkg/leads"
	"github.com/leadmill/leadmill/pkg/protocol"
)

// NewLeadStore builds the lead store from the same database URL used
// for persistence. Non-redis URLs fall back to the in-process store.
func NewLeadStore(logger *slog.Logger, databaseURL string) protocol.LeadStore {
	if strings.HasPrefix(databaseURL, "redis://") || strings.HasPrefix(databaseURL, "rediss://") {
		store, err := leads.NewRedisStore(databaseURL)
		if err != nil {
			logger.Error("failed to connect redis lead store", "error", err)
			panic(err)
		}

		return store
	}

	return leads.NewMemoryStore()
}
