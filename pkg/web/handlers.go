// Package web provides HTTP handlers and REST API endpoints for workflow
// and instance management.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/eventbus"
	"github.com/leadmill/leadmill/pkg/events"
	"github.com/leadmill/leadmill/pkg/graph"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/registry"
	"github.com/leadmill/leadmill/pkg/workflow"
)

type APIHandlers struct {
	workflowService *workflow.Service
	persistence     persistence.Persistence
	validator       *validator.Validate
	graphValidator  *graph.Validator
	registry        *registry.Registry
	publisher       eventbus.EventPublisher
	clock           clockwork.Clock
}

func NewAPIHandlers(
	workflowService *workflow.Service,
	store persistence.Persistence,
	validate *validator.Validate,
	graphValidator *graph.Validator,
	reg *registry.Registry,
	publisher eventbus.EventPublisher,
	clock clockwork.Clock,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		persistence:     store,
		validator:       validate,
		graphValidator:  graphValidator,
		registry:        reg,
		publisher:       publisher,
		clock:           clock,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	var (
		workflows []*models.Workflow
		err       error
	)

	if statusStr := c.Query("status"); statusStr != "" {
		workflows, err = h.persistence.Workflows().ListByStatus(c.Context(), models.WorkflowStatus(statusStr))
	} else {
		workflows, err = h.workflowService.List(c.Context())
	}

	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	found, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), &models.Workflow{
		Name:        req.Name,
		Description: req.Description,
		Owner:       req.Owner,
		Nodes:       req.Nodes,
		Settings:    req.Settings,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Owner != nil {
		existing.Owner = *req.Owner
	}

	if req.Nodes != nil {
		existing.Nodes = req.Nodes
	}

	if req.Settings != nil {
		existing.Settings = *req.Settings
	}

	updated, err := h.workflowService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	if err := h.workflowService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateWorkflow runs a dry-run graph validation without changing the
// workflow's status. The editor calls this as the user builds the graph.
func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	found, err := h.workflowService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	result := h.graphValidator.Validate(found)

	return c.JSON(ValidationResponse{Valid: result.Valid(), Issues: result.Issues})
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	activated, err := h.workflowService.Activate(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	return h.transitionWorkflow(c, h.workflowService.Pause)
}

func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	return h.transitionWorkflow(c, h.workflowService.Resume)
}

func (h *APIHandlers) ArchiveWorkflow(c fiber.Ctx) error {
	return h.transitionWorkflow(c, h.workflowService.Archive)
}

func (h *APIHandlers) transitionWorkflow(
	c fiber.Ctx,
	transition func(ctx context.Context, id string) (*models.Workflow, error),
) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	transitioned, err := transition(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(transitioned)
}

func (h *APIHandlers) GetWorkflowInstances(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow ID is required")
	}

	instances, err := h.persistence.Instances().ListByWorkflow(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"instances": instances})
}

func (h *APIHandlers) GetInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "instance ID is required")
	}

	instance, err := h.persistence.Instances().GetByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(instance)
}

// CancelInstance marks an instance cancelled. The worker sees the
// terminal status on its next load and never advances it again.
func (h *APIHandlers) CancelInstance(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "instance ID is required")
	}

	instance, err := h.persistence.Instances().GetByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if instance.Status.Terminal() {
		return conflict(c, "instance already finished with status "+string(instance.Status))
	}

	now := h.clock.Now()
	instance.Status = models.InstanceStatusCancelled
	instance.WaitUntil = nil
	instance.PendingAttempts = 0
	instance.FinishedAt = &now

	if err := h.persistence.Instances().Save(c.Context(), instance); err != nil {
		return internalError(c, err)
	}

	event := events.InstanceLifecycle{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Timestamp: now,
		},
		InstanceID: instance.ID,
		WorkflowID: instance.WorkflowID,
		LeadID:     instance.LeadID,
		Status:     instance.Status,
	}
	event.Type = event.GetType()

	if err := h.publisher.Publish(c.Context(), events.InstanceTopic, instance.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.JSON(instance)
}

// PublishLeadEvent accepts a lead change from the CRM and publishes it
// for trigger matching. The API never starts instances directly; the
// worker owns that.
func (h *APIHandlers) PublishLeadEvent(c fiber.Ctx) error {
	var req LeadEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.LeadTrigger{
		BaseEvent: events.BaseEvent{
			ID:        uuid.New().String(),
			Timestamp: h.clock.Now(),
		},
		TriggerType: models.TriggerType(req.Type),
		LeadID:      req.LeadID,
		Field:       req.Field,
		Data:        req.Data,
	}
	event.Type = event.GetType()

	if err := h.publisher.Publish(c.Context(), events.TriggerTopic, req.LeadID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"event_id": event.ID})
}

// GetActionKinds lists the registered action kinds with their config
// schemas so the editor can render action forms.
func (h *APIHandlers) GetActionKinds(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"actions": h.registry.Describe()})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
