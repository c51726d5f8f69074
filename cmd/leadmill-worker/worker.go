package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/engine"
	"github.com/leadmill/leadmill/pkg/eventbus"
	"github.com/leadmill/leadmill/pkg/events"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/trigger"
)

// Worker consumes trigger events, starts matching workflow instances,
// and drives waiting instances past their due times.
type Worker struct {
	id           string
	logger       *slog.Logger
	clock        clockwork.Clock
	persistence  persistence.Persistence
	leads        protocol.LeadStore
	engine       *engine.Engine
	matcher      *trigger.Matcher
	bus          eventbus.EventBus
	pollInterval time.Duration
}

func NewWorker(
	id string,
	logger *slog.Logger,
	clock clockwork.Clock,
	store persistence.Persistence,
	leads protocol.LeadStore,
	exec *engine.Engine,
	matcher *trigger.Matcher,
	bus eventbus.EventBus,
	pollInterval time.Duration,
) *Worker {
	return &Worker{
		id:           id,
		logger:       logger,
		clock:        clock,
		persistence:  store,
		leads:        leads,
		engine:       exec,
		matcher:      matcher,
		bus:          bus,
		pollInterval: pollInterval,
	}
}

// Run subscribes to the trigger topic and blocks until SIGINT/SIGTERM
// or context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.bus.Handle(events.LeadCreatedEvent, w.handleLeadTrigger)
	w.bus.Handle(events.LeadUpdatedEvent, w.handleLeadTrigger)

	if err := w.bus.Subscribe(ctx, events.TriggerTopic); err != nil {
		return err
	}

	go w.pollDueInstances(ctx)
	go w.runScheduleTriggers(ctx)

	w.logger.InfoContext(ctx, "Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		w.logger.InfoContext(ctx, "Shutting down worker")
	case <-ctx.Done():
	}

	return nil
}

func (w *Worker) handleLeadTrigger(ctx context.Context, event any) error {
	leadEvent, ok := event.(*events.LeadTrigger)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event payload for lead trigger")

		return nil
	}

	triggerEvent := models.TriggerEvent{
		Type:       leadEvent.TriggerType,
		LeadID:     leadEvent.LeadID,
		Field:      leadEvent.Field,
		Data:       leadEvent.Data,
		OccurredAt: leadEvent.Timestamp,
	}

	lead, err := w.leads.Get(ctx, leadEvent.LeadID)
	if errors.Is(err, protocol.ErrLeadNotFound) {
		lead = models.LeadRecord{}
	} else if err != nil {
		return err
	}

	active, err := w.persistence.Workflows().ListByStatus(ctx, models.WorkflowStatusActive)
	if err != nil {
		return err
	}

	for _, workflow := range w.matcher.Match(ctx, active, triggerEvent, lead) {
		w.startInstance(ctx, workflow, triggerEvent)
	}

	return nil
}

func (w *Worker) startInstance(ctx context.Context, workflow *models.Workflow, event models.TriggerEvent) {
	instance, err := w.engine.Start(ctx, workflow, event)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to start instance",
			"workflow_id", workflow.ID,
			"lead_id", event.LeadID,
			"error", err)

		return
	}

	if _, err := w.engine.Advance(ctx, instance.ID); err != nil {
		w.logger.ErrorContext(ctx, "Failed to advance instance",
			"instance_id", instance.ID,
			"error", err)
	}
}

// pollDueInstances advances waiting instances whose delay expired.
func (w *Worker) pollDueInstances(ctx context.Context) {
	ticker := w.clock.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			due, err := w.persistence.Instances().DueBefore(ctx, w.clock.Now().Unix())
			if err != nil {
				w.logger.ErrorContext(ctx, "Failed to list due instances", "error", err)

				continue
			}

			for _, instance := range due {
				if _, err := w.engine.Advance(ctx, instance.ID); err != nil {
					w.logger.ErrorContext(ctx, "Failed to advance due instance",
						"instance_id", instance.ID,
						"error", err)
				}
			}
		}
	}
}
