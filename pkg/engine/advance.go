package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
)

// Advance runs an instance to its next suspension point: a delay, a
// retry backoff, or a terminal status. Calling Advance on an instance
// in waiting with an unexpired due time is a no-op returning the
// current state. Re-entrant advancement of the same instance is
// serialized by the per-instance lock.
func (e *Engine) Advance(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	lock := e.instanceLock(instanceID)
	lock.Lock()
	defer lock.Unlock()

	instance, err := e.persistence.Instances().GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if instance.Status.Terminal() {
		return instance, nil
	}

	workflow, err := e.persistence.Workflows().GetByID(ctx, instance.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("load workflow for instance %s: %w", instanceID, err)
	}

	if instance.Status == models.InstanceStatusWaiting {
		resumed, err := e.tryResume(ctx, instance, workflow)
		if err != nil {
			return instance, err
		}

		if !resumed {
			return instance, nil
		}
	}

	runErr := e.run(ctx, instance, workflow)

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		return instance, fmt.Errorf("save instance %s: %w", instanceID, err)
	}

	if instance.Status.Terminal() {
		e.release(instance.ID)
		e.notify(ctx, instance, "instance."+string(instance.Status), instance.FailReason)
	} else if instance.Status == models.InstanceStatusWaiting {
		e.notify(ctx, instance, "instance.waiting", "")
	}

	return instance, runErr
}

// tryResume decides whether a waiting instance may run again. It
// re-checks the business window at resume time, deferring further when
// the due time landed outside it.
func (e *Engine) tryResume(ctx context.Context, instance *models.WorkflowInstance, workflow *models.Workflow) (bool, error) {
	now := e.now()

	if instance.WaitUntil != nil && now.Before(*instance.WaitUntil) {
		return false, nil
	}

	eligible, err := nextEligible(now, workflow.Settings)
	if err != nil {
		schedErr := &SchedulingError{NodeID: instance.CurrentNode, Err: err}
		e.finish(instance, models.InstanceStatusFailed, schedErr.Error())

		if saveErr := e.persistence.Instances().Save(ctx, instance); saveErr != nil {
			return false, saveErr
		}

		e.release(instance.ID)
		e.notify(ctx, instance, "instance.failed", schedErr.Error())

		return false, schedErr
	}

	if eligible.After(now) {
		instance.WaitUntil = &eligible

		if err := e.persistence.Instances().Save(ctx, instance); err != nil {
			return false, err
		}

		return false, nil
	}

	instance.Status = models.InstanceStatusRunning
	instance.WaitUntil = nil

	return true, nil
}

// run processes nodes until the instance suspends or terminates.
func (e *Engine) run(ctx context.Context, instance *models.WorkflowInstance, workflow *models.Workflow) error {
	for instance.Status == models.InstanceStatusRunning {
		if e.cancelRequested(instance.ID) {
			e.finish(instance, models.InstanceStatusCancelled, "")
			return nil
		}

		if instance.CurrentNode == "" {
			e.finish(instance, models.InstanceStatusCompleted, "")
			return nil
		}

		lead, err := e.fetchLead(ctx, instance.LeadID)
		if err != nil {
			return err
		}

		// Global stop conditions are checked before every node visit.
		if reason := stopReason(workflow.Settings, lead, instance); reason != "" {
			e.logger.Info("stop condition met",
				"instance_id", instance.ID, "reason", reason)
			e.finish(instance, models.InstanceStatusCompleted, "")

			return nil
		}

		node, ok := workflow.NodeByID(instance.CurrentNode)
		if !ok {
			err := fmt.Errorf("instance %s node %s: %w", instance.ID, instance.CurrentNode, ErrNodeNotFound)
			e.finish(instance, models.InstanceStatusFailed, err.Error())

			return err
		}

		if err := e.visit(ctx, instance, workflow, node, lead); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) fetchLead(ctx context.Context, leadID string) (models.LeadRecord, error) {
	if leadID == "" {
		return models.LeadRecord{}, nil
	}

	lead, err := e.leads.Get(ctx, leadID)
	if err != nil {
		if errors.Is(err, protocol.ErrLeadNotFound) {
			// A deleted lead degrades to an empty record; conditions fail
			// safe and actions report their own errors.
			return models.LeadRecord{}, nil
		}

		return nil, fmt.Errorf("fetch lead %s: %w", leadID, err)
	}

	return lead, nil
}

func stopReason(settings models.WorkflowSettings, lead models.LeadRecord, instance *models.WorkflowInstance) string {
	if settings.StopOnReply && truthy(lead["replied"]) {
		return "lead replied"
	}

	if settings.StopOnMeeting && truthy(lead["meeting_booked"]) {
		return "meeting booked"
	}

	if settings.MaxAttempts > 0 && instance.ActionRuns >= settings.MaxAttempts {
		return "max attempts reached"
	}

	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return false
	}
}

func (e *Engine) visit(ctx context.Context, instance *models.WorkflowInstance, workflow *models.Workflow, node *models.WorkflowNode, lead models.LeadRecord) error {
	switch node.Kind {
	case models.NodeKindTrigger:
		return e.visitTrigger(instance, node, lead)
	case models.NodeKindCondition:
		return e.visitCondition(instance, node, lead)
	case models.NodeKindDelay:
		return e.visitDelay(instance, workflow, node)
	case models.NodeKindAction:
		return e.visitAction(ctx, instance, node, lead)
	case models.NodeKindBranch:
		return e.visitBranch(instance, node, lead)
	default:
		err := fmt.Errorf("instance %s: unknown node kind %q", instance.ID, string(node.Kind))
		e.finish(instance, models.InstanceStatusFailed, err.Error())

		return err
	}
}

// moveTo advances the node pointer along the labeled edge, or marks the
// traversal complete when the node is terminal.
func moveTo(instance *models.WorkflowInstance, node *models.WorkflowNode, label string) {
	if to, ok := node.Successor(label); ok {
		instance.CurrentNode = to
		return
	}

	instance.CurrentNode = ""
}

func (e *Engine) logStep(instance *models.WorkflowInstance, node *models.WorkflowNode, result models.StepResult, attempts int, errDetail, detail string) {
	now := e.now()
	instance.LogStep(models.StepLog{
		NodeID:     node.ID,
		NodeKind:   node.Kind,
		Result:     result,
		Attempts:   attempts,
		Error:      errDetail,
		Detail:     detail,
		StartedAt:  now,
		FinishedAt: now,
	})
}

func (e *Engine) visitTrigger(instance *models.WorkflowInstance, node *models.WorkflowNode, lead models.LeadRecord) error {
	matched, err := e.evaluator.Evaluate(node.Trigger.Filter, lead, instance.Trigger.Data, e.now())
	if err != nil {
		evalErr := &EvaluationError{NodeID: node.ID, Err: err}
		e.logStep(instance, node, models.StepFailure, 1, evalErr.Error(), "")
		e.finish(instance, models.InstanceStatusFailed, evalErr.Error())

		return evalErr
	}

	if !matched {
		e.logStep(instance, node, models.StepSkipped, 1, "", "trigger filter did not match")
		e.finish(instance, models.InstanceStatusCompleted, "")

		return nil
	}

	e.logStep(instance, node, models.StepSuccess, 1, "", "trigger matched")
	moveTo(instance, node, models.EdgeDefault)

	return nil
}

func (e *Engine) visitCondition(instance *models.WorkflowInstance, node *models.WorkflowNode, lead models.LeadRecord) error {
	result, err := e.evaluator.Evaluate(node.Condition, lead, instance.Trigger.Data, e.now())
	if err != nil {
		evalErr := &EvaluationError{NodeID: node.ID, Err: err}
		e.logStep(instance, node, models.StepFailure, 1, evalErr.Error(), "")
		e.finish(instance, models.InstanceStatusFailed, evalErr.Error())

		return evalErr
	}

	label := models.EdgeFalse
	if result {
		label = models.EdgeTrue
	}

	e.logStep(instance, node, models.StepSuccess, 1, "", "took "+label+" branch")
	moveTo(instance, node, label)

	return nil
}

func (e *Engine) visitDelay(instance *models.WorkflowInstance, workflow *models.Workflow, node *models.WorkflowNode) error {
	duration, err := node.Delay.Unit.Duration(node.Delay.Value)
	if err != nil {
		schedErr := &SchedulingError{NodeID: node.ID, Err: err}
		e.logStep(instance, node, models.StepFailure, 1, schedErr.Error(), "")
		e.finish(instance, models.InstanceStatusFailed, schedErr.Error())

		return schedErr
	}

	due := e.now().Add(duration)

	due, err = nextEligible(due, workflow.Settings)
	if err != nil {
		schedErr := &SchedulingError{NodeID: node.ID, Err: err}
		e.logStep(instance, node, models.StepFailure, 1, schedErr.Error(), "")
		e.finish(instance, models.InstanceStatusFailed, schedErr.Error())

		return schedErr
	}

	e.logStep(instance, node, models.StepSuccess, 1, "",
		fmt.Sprintf("waiting until %s", due.Format("2006-01-02 15:04:05")))

	moveTo(instance, node, models.EdgeDefault)
	instance.Status = models.InstanceStatusWaiting
	instance.WaitUntil = &due
	instance.PendingAttempts = 0

	return nil
}

func (e *Engine) visitBranch(instance *models.WorkflowInstance, node *models.WorkflowNode, lead models.LeadRecord) error {
	// Guarded rules win over percentage buckets, in declaration order.
	for _, rule := range node.Branch.Rules {
		if rule.Guard == nil {
			continue
		}

		matched, err := e.evaluator.Evaluate(rule.Guard, lead, instance.Trigger.Data, e.now())
		if err != nil {
			evalErr := &EvaluationError{NodeID: node.ID, Err: err}
			e.logStep(instance, node, models.StepFailure, 1, evalErr.Error(), "")
			e.finish(instance, models.InstanceStatusFailed, evalErr.Error())

			return evalErr
		}

		if matched {
			e.logStep(instance, node, models.StepSuccess, 1, "", "matched rule "+rule.Name)
			moveTo(instance, node, rule.Name)

			return nil
		}
	}

	// Percentage buckets: a stable hash of the instance id picks the
	// bucket, so re-advancing the same instance routes identically.
	bucket := percentBucket(instance.ID)
	cumulative := 0

	for _, rule := range node.Branch.Rules {
		if rule.Guard != nil || rule.Percent == nil {
			continue
		}

		cumulative += *rule.Percent
		if bucket < cumulative {
			e.logStep(instance, node, models.StepSuccess, 1, "",
				fmt.Sprintf("bucket %d%% -> rule %s", bucket, rule.Name))
			moveTo(instance, node, rule.Name)

			return nil
		}
	}

	e.logStep(instance, node, models.StepSuccess, 1, "", "no rule matched, took default")
	moveTo(instance, node, models.EdgeDefault)

	return nil
}

func percentBucket(instanceID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(instanceID))

	return int(h.Sum32() % 100)
}
