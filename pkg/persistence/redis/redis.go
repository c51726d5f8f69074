// Package redis implements persistence on Redis. Workflows and
// instances are stored as JSON values with secondary index sets per
// status and a due-time sorted set feeding the delay poller.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const (
	workflowKeyPrefix  = "leadmill:workflow:"
	workflowIndexKey   = "leadmill:workflows"
	workflowStatusKey  = "leadmill:workflows:status:"
	workflowActiveKey  = "leadmill:workflows:active:" // per group id
	instanceKeyPrefix  = "leadmill:instance:"
	instanceByWorkflow = "leadmill:instances:workflow:"
	instanceDueKey     = "leadmill:instances:due"
)

type Persistence struct {
	client    *goredis.Client
	workflows *WorkflowRepository
	instances *InstanceRepository
}

func NewPersistence(url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	return NewPersistenceWithClient(goredis.NewClient(opts)), nil
}

// NewPersistenceWithClient wires persistence onto an existing client,
// used by tests running against miniredis.
func NewPersistenceWithClient(client *goredis.Client) *Persistence {
	return &Persistence{
		client:    client,
		workflows: &WorkflowRepository{client: client},
		instances: &InstanceRepository{client: client},
	}
}

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }
func (p *Persistence) Instances() persistence.InstanceRepository { return p.instances }

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Persistence) Close(ctx context.Context) error {
	return p.client.Close()
}

type WorkflowRepository struct {
	client *goredis.Client
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	data, err := json.Marshal(workflow)
	if err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	// Drop the previous status index entry when the status changed.
	previous, err := r.GetByID(ctx, workflow.ID)
	if err != nil && !errors.Is(err, persistence.ErrWorkflowNotFound) {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, workflowKeyPrefix+workflow.ID, data, 0)
	pipe.SAdd(ctx, workflowIndexKey, workflow.ID)

	if previous != nil && previous.Status != workflow.Status {
		pipe.SRem(ctx, workflowStatusKey+string(previous.Status), workflow.ID)
	}

	pipe.SAdd(ctx, workflowStatusKey+string(workflow.Status), workflow.ID)

	if workflow.Status == models.WorkflowStatusActive {
		pipe.Set(ctx, workflowActiveKey+workflow.GroupID, workflow.ID, 0)
	} else if previous != nil && previous.Status == models.WorkflowStatusActive {
		pipe.Del(ctx, workflowActiveKey+workflow.GroupID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	data, err := r.client.Get(ctx, workflowKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) ActiveVersion(ctx context.Context, groupID string) (*models.Workflow, error) {
	id, err := r.client.Get(ctx, workflowActiveKey+groupID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewStoreError("ActiveVersion", groupID, persistence.ErrActiveWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("ActiveVersion", groupID, err)
	}

	return r.GetByID(ctx, id)
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	return r.byIndex(ctx, workflowIndexKey)
}

func (r *WorkflowRepository) ListByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	return r.byIndex(ctx, workflowStatusKey+string(status))
}

func (r *WorkflowRepository) byIndex(ctx context.Context, key string) ([]*models.Workflow, error) {
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, persistence.NewStoreError("List", key, err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrWorkflowNotFound) {
				continue // index entry outlived the value
			}

			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	workflow, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, workflowKeyPrefix+id)
	pipe.SRem(ctx, workflowIndexKey, id)
	pipe.SRem(ctx, workflowStatusKey+string(workflow.Status), id)

	if workflow.Status == models.WorkflowStatusActive {
		pipe.Del(ctx, workflowActiveKey+workflow.GroupID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewStoreError("Delete", id, err)
	}

	return nil
}

type InstanceRepository struct {
	client *goredis.Client
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return persistence.NewStoreError("Save", instance.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, instanceKeyPrefix+instance.ID, data, 0)
	pipe.SAdd(ctx, instanceByWorkflow+instance.WorkflowID, instance.ID)

	if instance.Status == models.InstanceStatusWaiting && instance.WaitUntil != nil {
		pipe.ZAdd(ctx, instanceDueKey, goredis.Z{
			Score:  float64(instance.WaitUntil.Unix()),
			Member: instance.ID,
		})
	} else {
		pipe.ZRem(ctx, instanceDueKey, instance.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewStoreError("Save", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	data, err := r.client.Get(ctx, instanceKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	var instance models.WorkflowInstance
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	return &instance, nil
}

func (r *InstanceRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowInstance, error) {
	ids, err := r.client.SMembers(ctx, instanceByWorkflow+workflowID).Result()
	if err != nil {
		return nil, persistence.NewStoreError("ListByWorkflow", workflowID, err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		instance, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrInstanceNotFound) {
				continue
			}

			return nil, err
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

func (r *InstanceRepository) DueBefore(ctx context.Context, t int64) ([]*models.WorkflowInstance, error) {
	ids, err := r.client.ZRangeByScore(ctx, instanceDueKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", t),
	}).Result()
	if err != nil {
		return nil, persistence.NewStoreError("DueBefore", instanceDueKey, err)
	}

	instances := make([]*models.WorkflowInstance, 0, len(ids))

	for _, id := range ids {
		instance, err := r.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrInstanceNotFound) {
				continue
			}

			return nil, err
		}

		instances = append(instances, instance)
	}

	return instances, nil
}

func (r *InstanceRepository) Delete(ctx context.Context, id string) error {
	instance, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, instanceKeyPrefix+id)
	pipe.SRem(ctx, instanceByWorkflow+instance.WorkflowID, id)
	pipe.ZRem(ctx, instanceDueKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewStoreError("Delete", id, err)
	}

	return nil
}
