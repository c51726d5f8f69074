// Package trigger matches incoming lead events against the trigger
// nodes of active workflows.
package trigger

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/expression"
	"github.com/leadmill/leadmill/pkg/models"
)

// Matcher decides which active workflows an event should start.
type Matcher struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	evaluator *expression.Evaluator
}

func NewMatcher(logger *slog.Logger, clock clockwork.Clock) *Matcher {
	return &Matcher{
		logger:    logger,
		clock:     clock,
		evaluator: expression.NewEvaluator(),
	}
}

// Match returns the subset of workflows whose trigger node matches the
// event. The trigger's filter condition is evaluated against the lead
// record with one shared "now"; a filter that fails to evaluate skips
// that workflow rather than blocking the rest of the batch.
func (m *Matcher) Match(ctx context.Context, workflows []*models.Workflow, event models.TriggerEvent, lead models.LeadRecord) []*models.Workflow {
	now := m.clock.Now()

	matched := make([]*models.Workflow, 0)

	for _, workflow := range workflows {
		if workflow.Status != models.WorkflowStatusActive {
			continue
		}

		node, ok := workflow.TriggerNode()
		if !ok {
			continue
		}

		if !m.triggerMatches(node.Trigger, event, lead, now, workflow.ID) {
			continue
		}

		matched = append(matched, workflow)
	}

	return matched
}

func (m *Matcher) triggerMatches(config *models.TriggerConfig, event models.TriggerEvent, lead models.LeadRecord, now time.Time, workflowID string) bool {
	if config.Type != event.Type {
		return false
	}

	// lead_updated triggers can be pinned to a single field.
	if config.Type == models.TriggerLeadUpdated && config.Field != "" && config.Field != event.Field {
		return false
	}

	if config.Filter == nil {
		return true
	}

	matched, err := m.evaluator.Evaluate(config.Filter, lead, event.Data, now)
	if err != nil {
		m.logger.Warn("trigger filter failed to evaluate, skipping workflow",
			"workflow_id", workflowID,
			"error", err)

		return false
	}

	return matched
}
