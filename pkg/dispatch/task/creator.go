package task

import (
	"context"
	"log/slog"
	"sync"
)

// LogCreator records follow-up tasks to the log, with dedupe key
// suppression. Used in development and tests.
type LogCreator struct {
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

func NewLogCreator(logger *slog.Logger) *LogCreator {
	return &LogCreator{
		logger: logger,
		seen:   make(map[string]bool),
	}
}

func (c *LogCreator) CreateTask(_ context.Context, task Task) error {
	if task.DedupeKey != "" {
		c.mu.Lock()
		duplicate := c.seen[task.DedupeKey]
		c.seen[task.DedupeKey] = true
		c.mu.Unlock()

		if duplicate {
			c.logger.Debug("suppressed duplicate task", "dedupe_key", task.DedupeKey)

			return nil
		}
	}

	c.logger.Info("task created",
		"lead_id", task.LeadID,
		"title", task.Title,
		"assignee", task.Assignee)

	return nil
}
