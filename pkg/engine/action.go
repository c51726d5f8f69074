package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
)

// visitAction invokes the node's dispatcher exactly once per attempt and
// applies the node's explicit error policy: continue, stop, or retry
// with backoff. A non-zero backoff parks the instance in waiting between
// attempts; the pending attempt count survives in the instance so the
// step log ends up with the true total.
func (e *Engine) visitAction(ctx context.Context, instance *models.WorkflowInstance, node *models.WorkflowNode, lead models.LeadRecord) error {
	action := node.Action

	dispatcher, err := e.registry.Create(action.Kind, action.Config)
	if err != nil {
		e.logStep(instance, node, models.StepFailure, 1, err.Error(), "")
		e.finish(instance, models.InstanceStatusFailed, err.Error())

		return fmt.Errorf("instance %s: %w", instance.ID, err)
	}

	maxAttempts := 1
	if action.OnError == models.ErrorPolicyRetry {
		maxAttempts = 1 + action.RetryCount
	}

	backoff, err := retryBackoff(action)
	if err != nil {
		e.logStep(instance, node, models.StepFailure, 1, err.Error(), "")
		e.finish(instance, models.InstanceStatusFailed, err.Error())

		return err
	}

	config := invokeConfig(instance, node, action)
	attempts := instance.PendingAttempts
	instance.PendingAttempts = 0

	for {
		attempts++
		instance.ActionRuns++

		outcome, invokeErr := dispatcher.Invoke(ctx, config, lead)

		// An action completing after a cancel request must not revive the
		// instance: record what happened, then stay cancelled.
		if e.cancelRequested(instance.ID) {
			if invokeErr != nil {
				e.logStep(instance, node, models.StepFailure, attempts, invokeErr.Error(), "")
			} else {
				e.logStep(instance, node, models.StepSuccess, attempts, "", outcomeDetail(outcome))
			}

			e.finish(instance, models.InstanceStatusCancelled, "")

			return nil
		}

		if invokeErr == nil {
			e.logStep(instance, node, models.StepSuccess, attempts, "", outcomeDetail(outcome))
			moveTo(instance, node, models.EdgeDefault)

			return nil
		}

		e.logger.Warn("action failed",
			"instance_id", instance.ID,
			"node_id", node.ID,
			"action", action.Kind,
			"attempt", attempts,
			"error", invokeErr)

		if action.OnError == models.ErrorPolicyRetry && attempts < maxAttempts && retryable(invokeErr) {
			if backoff > 0 {
				instance.PendingAttempts = attempts
				due := e.now().Add(backoff)
				instance.WaitUntil = &due
				instance.Status = models.InstanceStatusWaiting

				return nil
			}

			continue
		}

		e.logStep(instance, node, models.StepFailure, attempts, invokeErr.Error(), "")
		e.notifyStepFailed(ctx, instance, node, attempts, invokeErr)

		if action.OnError == models.ErrorPolicyContinue {
			moveTo(instance, node, models.EdgeDefault)
			return nil
		}

		// Policy stop, or retries exhausted / permanent failure.
		e.finish(instance, models.InstanceStatusFailed,
			fmt.Sprintf("action %s failed after %d attempt(s): %v", action.Kind, attempts, invokeErr))

		return nil
	}
}

// invokeConfig augments the node config with per-invocation context the
// dispatchers need: the lead id, trigger data for templates, and a
// stable dedupe key so gateways can suppress duplicate sends on retry.
func invokeConfig(instance *models.WorkflowInstance, node *models.WorkflowNode, action *models.ActionConfig) map[string]any {
	config := make(map[string]any, len(action.Config)+3)
	for k, v := range action.Config {
		config[k] = v
	}

	config["lead_id"] = instance.LeadID
	config["trigger_data"] = instance.Trigger.Data
	config["dedupe_key"] = instance.ID + ":" + node.ID

	return config
}

func retryBackoff(action *models.ActionConfig) (time.Duration, error) {
	if action.OnError != models.ErrorPolicyRetry || action.RetryBackoff <= 0 {
		return 0, nil
	}

	unit := action.RetryBackoffIn
	if unit == "" {
		unit = models.UnitMinutes
	}

	return unit.Duration(action.RetryBackoff)
}

// retryable reports whether an action failure is eligible for retry.
// Dispatchers flag transience; unknown error shapes default to
// retryable so flaky collaborators get their attempts.
func retryable(err error) bool {
	var actionErr *protocol.ActionError
	if errors.As(err, &actionErr) {
		return actionErr.Transient
	}

	return true
}

func outcomeDetail(outcome *protocol.ActionOutcome) string {
	if outcome == nil {
		return ""
	}

	return outcome.Detail
}

func (e *Engine) notifyStepFailed(ctx context.Context, instance *models.WorkflowInstance, node *models.WorkflowNode, attempts int, err error) {
	if e.notifier == nil {
		return
	}

	e.notifier.Notify(ctx, protocol.Notification{
		Kind:       "instance.step.failed",
		WorkflowID: instance.WorkflowID,
		InstanceID: instance.ID,
		LeadID:     instance.LeadID,
		Detail:     err.Error(),
		Data:       map[string]any{"node_id": node.ID, "attempts": attempts},
	})
}
