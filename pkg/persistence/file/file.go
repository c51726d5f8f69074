// Package file implements persistence on top of a JSON-file-per-entity
// data directory. Intended for development and tests; production setups
// use the redis implementation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
)

type Persistence struct {
	workflows *WorkflowRepository
	instances *InstanceRepository
}

func NewPersistence(root string) (*Persistence, error) {
	for _, dir := range []string{"workflows", "instances"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	mu := &sync.RWMutex{}

	return &Persistence{
		workflows: &WorkflowRepository{root: filepath.Join(root, "workflows"), mu: mu},
		instances: &InstanceRepository{root: filepath.Join(root, "instances"), mu: mu},
	}, nil
}

func (p *Persistence) Workflows() persistence.WorkflowRepository { return p.workflows }
func (p *Persistence) Instances() persistence.InstanceRepository { return p.instances }

func (p *Persistence) HealthCheck(ctx context.Context) error {
	_, err := os.Stat(p.workflows.root)
	return err
}

func (p *Persistence) Close(ctx context.Context) error {
	return nil
}

func writeEntity(path string, entity any) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

func readEntity(path string, entity any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, entity)
}

// WorkflowRepository stores one JSON file per workflow version.
type WorkflowRepository struct {
	root string
	mu   *sync.RWMutex
}

func (r *WorkflowRepository) path(id string) string {
	return filepath.Join(r.root, id+".json")
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeEntity(r.path(workflow.ID), workflow); err != nil {
		return persistence.NewStoreError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var workflow models.Workflow
	if err := readEntity(r.path(id), &workflow); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(*models.Workflow) bool { return true })
}

func (r *WorkflowRepository) ListByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(w *models.Workflow) bool { return w.Status == status })
}

func (r *WorkflowRepository) ActiveVersion(ctx context.Context, groupID string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches, err := r.list(func(w *models.Workflow) bool {
		return w.GroupID == groupID && w.Status == models.WorkflowStatusActive
	})
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 {
		return nil, persistence.NewStoreError("ActiveVersion", groupID, persistence.ErrActiveWorkflowNotFound)
	}

	// At most one version of a group should be active; pick the newest.
	best := matches[0]
	for _, w := range matches[1:] {
		if w.Version > best.Version {
			best = w
		}
	}

	return best, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewStoreError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewStoreError("Delete", id, err)
	}

	return nil
}

func (r *WorkflowRepository) list(keep func(*models.Workflow) bool) ([]*models.Workflow, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		var workflow models.Workflow
		if err := readEntity(filepath.Join(r.root, entry.Name()), &workflow); err != nil {
			return nil, fmt.Errorf("load workflow %s: %w", entry.Name(), err)
		}

		if keep(&workflow) {
			workflows = append(workflows, &workflow)
		}
	}

	return workflows, nil
}

// InstanceRepository stores one JSON file per workflow instance.
type InstanceRepository struct {
	root string
	mu   *sync.RWMutex
}

func (r *InstanceRepository) path(id string) string {
	return filepath.Join(r.root, id+".json")
}

func (r *InstanceRepository) Save(ctx context.Context, instance *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := writeEntity(r.path(instance.ID), instance); err != nil {
		return persistence.NewStoreError("Save", instance.ID, err)
	}

	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var instance models.WorkflowInstance
	if err := readEntity(r.path(id), &instance); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStoreError("GetByID", id, persistence.ErrInstanceNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", id, err)
	}

	return &instance, nil
}

func (r *InstanceRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(i *models.WorkflowInstance) bool { return i.WorkflowID == workflowID })
}

func (r *InstanceRepository) DueBefore(ctx context.Context, t int64) ([]*models.WorkflowInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(i *models.WorkflowInstance) bool {
		return i.Status == models.InstanceStatusWaiting &&
			i.WaitUntil != nil && i.WaitUntil.Unix() <= t
	})
}

func (r *InstanceRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewStoreError("Delete", id, persistence.ErrInstanceNotFound)
		}

		return persistence.NewStoreError("Delete", id, err)
	}

	return nil
}

func (r *InstanceRepository) list(keep func(*models.WorkflowInstance) bool) ([]*models.WorkflowInstance, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, err
	}

	instances := make([]*models.WorkflowInstance, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		var instance models.WorkflowInstance
		if err := readEntity(filepath.Join(r.root, entry.Name()), &instance); err != nil {
			return nil, fmt.Errorf("load instance %s: %w", entry.Name(), err)
		}

		if keep(&instance) {
			instances = append(instances, &instance)
		}
	}

	return instances, nil
}
