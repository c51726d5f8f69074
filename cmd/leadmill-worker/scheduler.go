package main

import (
	"context"
	"time"

	"github.com/leadmill/leadmill/pkg/graph"
	"github.com/leadmill/leadmill/pkg/models"
)

// runScheduleTriggers fires workflows with a schedule trigger whose
// cron expression came due since the last poll. Fire times are tracked
// per workflow version, so a redeployed worker starts from its boot
// time instead of replaying history.
func (w *Worker) runScheduleTriggers(ctx context.Context) {
	ticker := w.clock.NewTicker(w.pollInterval)
	defer ticker.Stop()

	lastChecked := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.fireDueSchedules(ctx, lastChecked)
		}
	}
}

func (w *Worker) fireDueSchedules(ctx context.Context, lastChecked map[string]time.Time) {
	now := w.clock.Now()

	active, err := w.persistence.Workflows().ListByStatus(ctx, models.WorkflowStatusActive)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to list active workflows", "error", err)

		return
	}

	for _, workflow := range active {
		node, ok := workflow.TriggerNode()
		if !ok || node.Trigger.Type != models.TriggerSchedule {
			continue
		}

		schedule, err := graph.ParseCron(node.Trigger.Cron)
		if err != nil {
			// Validation rejects bad expressions at activation; an
			// unparseable one here means the definition predates the check.
			w.logger.WarnContext(ctx, "Skipping workflow with invalid schedule",
				"workflow_id", workflow.ID,
				"cron", node.Trigger.Cron,
				"error", err)

			continue
		}

		last, seen := lastChecked[workflow.ID]
		if !seen {
			lastChecked[workflow.ID] = now

			continue
		}

		next := schedule.Next(last)
		if next.After(now) {
			continue
		}

		lastChecked[workflow.ID] = now

		w.startInstance(ctx, workflow, models.TriggerEvent{
			Type:       models.TriggerSchedule,
			OccurredAt: next,
		})
	}
}
