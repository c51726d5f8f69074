// Package testutil provides workflow and node builders for tests.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/leadmill/leadmill/pkg/models"
)

// CreateWorkflow builds an active workflow from the given nodes. The
// caller is responsible for wiring the edges.
func CreateWorkflow(nodes []*models.WorkflowNode, overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()

	w := &models.Workflow{
		ID:        uuid.New().String(),
		GroupID:   uuid.New().String(),
		Version:   1,
		Name:      "Test Workflow",
		Status:    models.WorkflowStatusActive,
		Nodes:     nodes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(w)
	}

	return w
}

// WithStatus sets the workflow status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Status = status
	}
}

// WithSettings sets the workflow settings.
func WithSettings(settings models.WorkflowSettings) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Settings = settings
	}
}

// TriggerNode builds a trigger node with a single default edge to next.
// An empty next leaves the node terminal.
func TriggerNode(id string, triggerType models.TriggerType, next string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:      id,
		Kind:    models.NodeKindTrigger,
		Name:    "When " + string(triggerType),
		Trigger: &models.TriggerConfig{Type: triggerType},
		Next:    edgeTo(models.EdgeDefault, next),
	}
}

// ConditionNode builds a condition node with true/false edges.
func ConditionNode(id string, spec *models.ConditionSpec, onTrue, onFalse string) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:        id,
		Kind:      models.NodeKindCondition,
		Name:      "Check",
		Condition: spec,
	}
	node.Next = append(node.Next, edgeTo(models.EdgeTrue, onTrue)...)
	node.Next = append(node.Next, edgeTo(models.EdgeFalse, onFalse)...)

	return node
}

// ActionNode builds an action node with a default edge to next.
func ActionNode(id, kind string, config map[string]any, next string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:   id,
		Kind: models.NodeKindAction,
		Name: "Do " + kind,
		Action: &models.ActionConfig{
			Kind:    kind,
			Config:  config,
			OnError: models.ErrorPolicyStop,
		},
		Next: edgeTo(models.EdgeDefault, next),
	}
}

// DelayNode builds a delay node with a default edge to next.
func DelayNode(id string, value int, unit models.TimeUnit, next string) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:    id,
		Kind:  models.NodeKindDelay,
		Name:  "Wait",
		Delay: &models.DelayConfig{Value: value, Unit: unit},
		Next:  edgeTo(models.EdgeDefault, next),
	}
}

// BranchNode builds a branch node from rules; edges must be attached by
// the caller via WithEdges.
func BranchNode(id string, rules []models.BranchRule, edges ...models.Edge) *models.WorkflowNode {
	return &models.WorkflowNode{
		ID:     id,
		Kind:   models.NodeKindBranch,
		Name:   "Split",
		Branch: &models.BranchConfig{Rules: rules},
		Next:   edges,
	}
}

// StructuredCondition wraps a single string-equals condition in a spec.
func StructuredCondition(field, want string) *models.ConditionSpec {
	return &models.ConditionSpec{
		Language: models.LanguageStructured,
		Group: &models.ConditionGroup{
			Operator: models.GroupAnd,
			Children: []models.GroupChild{
				{Condition: &models.Condition{
					Field:    field,
					Operator: models.OpEquals,
					DataType: models.DataTypeString,
					Value:    models.StringValue(want),
				}},
			},
		},
	}
}

func edgeTo(label, to string) []models.Edge {
	if to == "" {
		return nil
	}

	return []models.Edge{{Label: label, To: to}}
}
