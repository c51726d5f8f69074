// Package workflow manages workflow definitions: drafts, validation,
// activation, versioning, and the paused/archived lifecycle.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/graph"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
)

// ErrWorkflowActive indicates an operation that requires the workflow
// to be paused or archived first.
var ErrWorkflowActive = errors.New("workflow is active")

// Service owns workflow definition operations. Activation is the only
// path from draft to active, and it always runs full graph validation.
type Service struct {
	persistence persistence.Persistence
	validator   *graph.Validator
	clock       clockwork.Clock
}

func NewService(store persistence.Persistence, validator *graph.Validator, clock clockwork.Clock) *Service {
	return &Service{
		persistence: store,
		validator:   validator,
		clock:       clock,
	}
}

// Create stores a new draft workflow as version 1 of a new group.
func (s *Service) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	now := s.clock.Now()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.GroupID == "" {
		workflow.GroupID = uuid.New().String()
	}

	workflow.Version = 1
	workflow.Status = models.WorkflowStatusDraft
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update edits a workflow definition. Drafts are edited in place. An
// active or paused workflow is never mutated: editing it creates a new
// draft version in the same group, so in-flight instances keep the
// graph they started on.
func (s *Service) Update(ctx context.Context, id string, updated *models.Workflow) (*models.Workflow, error) {
	existing, err := s.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	switch existing.Status {
	case models.WorkflowStatusDraft:
		updated.ID = existing.ID
		updated.GroupID = existing.GroupID
		updated.Version = existing.Version
		updated.Status = existing.Status
		updated.CreatedAt = existing.CreatedAt
		updated.UpdatedAt = now

		if err := s.persistence.Workflows().Save(ctx, updated); err != nil {
			return nil, err
		}

		return updated, nil

	case models.WorkflowStatusActive, models.WorkflowStatusPaused:
		updated.ID = uuid.New().String()
		updated.GroupID = existing.GroupID
		updated.Version = existing.Version + 1
		updated.Status = models.WorkflowStatusDraft
		updated.CreatedAt = now
		updated.UpdatedAt = now

		if err := s.persistence.Workflows().Save(ctx, updated); err != nil {
			return nil, err
		}

		return updated, nil

	default:
		return nil, fmt.Errorf("workflow %s is archived and cannot be edited", id)
	}
}

// Activate validates the workflow graph and transitions it to active.
// A failing validation is returned to the caller with every issue; the
// workflow stays in its current status. Any previously active version
// of the same group is archived.
func (s *Service) Activate(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := s.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !workflow.CanTransition(models.WorkflowStatusActive) {
		return nil, fmt.Errorf("workflow %s: cannot activate from status %s", id, workflow.Status)
	}

	if result := s.validator.Validate(workflow); !result.Valid() {
		return nil, result
	}

	now := s.clock.Now()

	previous, err := s.persistence.Workflows().ActiveVersion(ctx, workflow.GroupID)
	if err != nil && !errors.Is(err, persistence.ErrActiveWorkflowNotFound) {
		return nil, err
	}

	if previous != nil && previous.ID != workflow.ID {
		if err := previous.Transition(models.WorkflowStatusArchived, now); err != nil {
			return nil, err
		}

		if err := s.persistence.Workflows().Save(ctx, previous); err != nil {
			return nil, err
		}
	}

	if err := workflow.Transition(models.WorkflowStatusActive, now); err != nil {
		return nil, err
	}

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Pause suspends new instance creation. In-flight instances continue.
func (s *Service) Pause(ctx context.Context, id string) (*models.Workflow, error) {
	return s.transition(ctx, id, models.WorkflowStatusPaused)
}

// Resume reactivates a paused workflow without revalidation; the graph
// has not changed since activation because active graphs are immutable.
func (s *Service) Resume(ctx context.Context, id string) (*models.Workflow, error) {
	return s.transition(ctx, id, models.WorkflowStatusActive)
}

// Archive is terminal.
func (s *Service) Archive(ctx context.Context, id string) (*models.Workflow, error) {
	return s.transition(ctx, id, models.WorkflowStatusArchived)
}

func (s *Service) transition(ctx context.Context, id string, target models.WorkflowStatus) (*models.Workflow, error) {
	workflow, err := s.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := workflow.Transition(target, s.clock.Now()); err != nil {
		return nil, err
	}

	if err := s.persistence.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Get fetches one workflow version by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return s.persistence.Workflows().GetByID(ctx, id)
}

// List returns all workflow versions.
func (s *Service) List(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows().List(ctx)
}

// ListActive returns workflows eligible for trigger matching.
func (s *Service) ListActive(ctx context.Context) ([]*models.Workflow, error) {
	return s.persistence.Workflows().ListByStatus(ctx, models.WorkflowStatusActive)
}

// Delete removes a workflow version. Active workflows must be archived
// or paused first.
func (s *Service) Delete(ctx context.Context, id string) error {
	workflow, err := s.persistence.Workflows().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if workflow.Status == models.WorkflowStatusActive {
		return fmt.Errorf("workflow %s: %w, archive it first", id, ErrWorkflowActive)
	}

	return s.persistence.Workflows().Delete(ctx, id)
}
