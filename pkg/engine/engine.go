package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/expression"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/registry"
)

// Engine owns workflow instances. All instance mutation goes through
// Start, Advance, or Cancel; advancement of one instance is serialized
// by a per-instance lock, while distinct instances run concurrently.
type Engine struct {
	logger      *slog.Logger
	clock       clockwork.Clock
	persistence persistence.Persistence
	leads       protocol.LeadStore
	registry    *registry.Registry
	notifier    protocol.NotificationSink
	evaluator   *expression.Evaluator

	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	cancelled map[string]bool // cancel requested, not yet applied
}

func New(
	logger *slog.Logger,
	clock clockwork.Clock,
	store persistence.Persistence,
	leads protocol.LeadStore,
	reg *registry.Registry,
	notifier protocol.NotificationSink,
) *Engine {
	return &Engine{
		logger:      logger,
		clock:       clock,
		persistence: store,
		leads:       leads,
		registry:    reg,
		notifier:    notifier,
		evaluator:   expression.NewEvaluator(),
		locks:       make(map[string]*sync.Mutex),
		cancelled:   make(map[string]bool),
	}
}

// Start creates an instance of an active workflow for one trigger
// event. The instance points at the trigger node; the caller advances
// it to the first suspension point.
func (e *Engine) Start(ctx context.Context, workflow *models.Workflow, event models.TriggerEvent) (*models.WorkflowInstance, error) {
	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s: %w", workflow.ID, ErrWorkflowNotActive)
	}

	trigger, ok := workflow.TriggerNode()
	if !ok {
		return nil, fmt.Errorf("workflow %s has no trigger node", workflow.ID)
	}

	now := e.clock.Now()

	instance := &models.WorkflowInstance{
		ID:              "inst-" + uuid.New().String()[:8],
		WorkflowID:      workflow.ID,
		WorkflowVersion: workflow.Version,
		LeadID:          event.LeadID,
		Trigger:         event,
		Status:          models.InstanceStatusRunning,
		CurrentNode:     trigger.ID,
		StartedAt:       now,
	}

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		return nil, fmt.Errorf("save instance: %w", err)
	}

	e.logger.Info("instance started",
		"instance_id", instance.ID,
		"workflow_id", workflow.ID,
		"lead_id", event.LeadID,
		"trigger", string(event.Type))

	e.notify(ctx, instance, "instance.started", "")

	return instance, nil
}

// Cancel requests cancellation. Nodes not yet executed never take
// effect; if an action is in flight when Cancel is called, its outcome
// is logged but the instance stays cancelled.
func (e *Engine) Cancel(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	e.mu.Lock()
	e.cancelled[instanceID] = true
	e.mu.Unlock()

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

	e.finish(instance, models.InstanceStatusCancelled, "")

	if err := e.persistence.Instances().Save(ctx, instance); err != nil {
		return nil, fmt.Errorf("save cancelled instance: %w", err)
	}

	e.logger.Info("instance cancelled", "instance_id", instanceID)
	e.notify(ctx, instance, "instance.cancelled", "")

	return instance, nil
}

func (e *Engine) instanceLock(instanceID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[instanceID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[instanceID] = lock
	}

	return lock
}

func (e *Engine) cancelRequested(instanceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.cancelled[instanceID]
}

// release drops bookkeeping for a terminal instance.
func (e *Engine) release(instanceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.locks, instanceID)
	delete(e.cancelled, instanceID)
}

func (e *Engine) finish(instance *models.WorkflowInstance, status models.InstanceStatus, reason string) {
	now := e.clock.Now()
	instance.Status = status
	instance.WaitUntil = nil
	instance.PendingAttempts = 0
	instance.FinishedAt = &now
	instance.FailReason = reason
}

func (e *Engine) notify(ctx context.Context, instance *models.WorkflowInstance, kind, detail string) {
	if e.notifier == nil {
		return
	}

	e.notifier.Notify(ctx, protocol.Notification{
		Kind:       kind,
		WorkflowID: instance.WorkflowID,
		InstanceID: instance.ID,
		LeadID:     instance.LeadID,
		Detail:     detail,
	})
}

func (e *Engine) now() time.Time {
	return e.clock.Now()
}
