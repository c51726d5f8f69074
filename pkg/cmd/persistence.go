package cmd

import (
	"log/slog"
	"strings"

	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/persistence/file"
	"github.com/leadmill/leadmill/pkg/persistence/redis"
)

// NewPersistence builds the persistence layer from a database URL.
// redis:// selects the Redis store; anything else is treated as a file
// data directory.
func NewPersistence(logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		store, err := redis.NewPersistence(databaseURL)
		if err != nil {
			logger.Error("failed to connect redis persistence", "error", err)
			panic(err)
		}

		return store
	default:
		root := strings.TrimPrefix(databaseURL, "file://")

		store, err := file.NewPersistence(root)
		if err != nil {
			logger.Error("failed to open file persistence", "path", root, "error", err)
			panic(err)
		}

		return store
	}
}
