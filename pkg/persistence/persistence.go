// Package persistence provides the storage abstraction for workflows and
// workflow instances. Entities are serialized as JSON-compatible
// structures with stable field names, so any document or relational
// store can host them.
package persistence

import (
	"context"

	"github.com/leadmill/leadmill/pkg/models"
)

// WorkflowRepository stores workflow definitions and their versions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// ActiveVersion returns the active workflow of a version group.
	ActiveVersion(ctx context.Context, groupID string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	ListByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// InstanceRepository stores workflow instances. DueBefore feeds the
// worker's delay poller with waiting instances whose due time passed.
type InstanceRepository interface {
	Save(ctx context.Context, instance *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowInstance, error)
	DueBefore(ctx context.Context, t int64) ([]*models.WorkflowInstance, error)
	Delete(ctx context.Context, id string) error
}

// Persistence bundles the repositories behind one handle.
type Persistence interface {
	Workflows() WorkflowRepository
	Instances() InstanceRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
