package graph

import (
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/robfig/cron/v3"
)

// ActionConfigValidator checks an action node's config against its
// dispatcher schema. Wired to the dispatcher registry by the caller so
// the graph package stays free of dispatcher imports.
type ActionConfigValidator func(kind string, config map[string]any) error

// Validator validates workflow graphs before activation.
type Validator struct {
	// ValidateActionConfig is optional; when nil, action configs are only
	// checked structurally.
	ValidateActionConfig ActionConfigValidator
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ParseCron parses a five-field schedule expression with the same
// field set validation accepts, so the scheduler and the validator
// never disagree on what a trigger means.
func ParseCron(expr string) (cron.Schedule, error) {
	return cronParser.Parse(expr)
}

// Validate runs every structural and per-node check and returns the
// aggregated result. A workflow may only transition to active when the
// result is valid.
func (v *Validator) Validate(w *models.Workflow) *ValidationResult {
	result := &ValidationResult{}

	index := make(map[string]*models.WorkflowNode, len(w.Nodes))
	for _, n := range w.Nodes {
		if _, dup := index[n.ID]; dup {
			result.add(ErrDuplicateNode, "node id appears more than once", n.ID)
			continue
		}

		index[n.ID] = n
	}

	trigger := v.checkTrigger(w, result)
	v.checkEdges(w, index, result)

	for _, n := range w.Nodes {
		v.checkNode(n, result)
	}

	// Traversal checks only make sense on a structurally sound graph.
	if trigger != nil && result.Valid() {
		v.checkReachability(trigger, index, result)
		v.checkCycles(w, index, result)
	}

	return result
}

func (v *Validator) checkTrigger(w *models.Workflow, result *ValidationResult) *models.WorkflowNode {
	var triggers []*models.WorkflowNode

	for _, n := range w.Nodes {
		if n.Kind == models.NodeKindTrigger {
			triggers = append(triggers, n)
		}
	}

	switch {
	case len(triggers) == 0:
		result.add(ErrNoTrigger, "workflow has no trigger node")
		return nil
	case len(triggers) > 1:
		ids := make([]string, 0, len(triggers))
		for _, t := range triggers {
			ids = append(ids, t.ID)
		}

		result.add(ErrMultipleTriggers, "workflow has more than one trigger node", ids...)

		return nil
	}

	trigger := triggers[0]

	for _, n := range w.Nodes {
		for _, e := range n.Next {
			if e.To == trigger.ID {
				result.add(ErrTriggerIncoming,
					fmt.Sprintf("edge from %s targets the trigger node", n.ID),
					trigger.ID, n.ID)
			}
		}
	}

	return trigger
}

func (v *Validator) checkEdges(w *models.Workflow, index map[string]*models.WorkflowNode, result *ValidationResult) {
	for _, n := range w.Nodes {
		seen := make(map[string]bool, len(n.Next))

		for _, e := range n.Next {
			if _, ok := index[e.To]; !ok {
				result.add(ErrDanglingEdge,
					fmt.Sprintf("edge %q targets unknown node %q", e.Label, e.To), n.ID)
			}

			if seen[e.Label] {
				result.add(ErrTooManyEdges,
					fmt.Sprintf("duplicate edge label %q", e.Label), n.ID)
			}

			seen[e.Label] = true
		}

		switch n.Kind {
		case models.NodeKindCondition:
			if !seen[models.EdgeTrue] {
				result.add(ErrMissingBranch, "condition node is missing its true branch", n.ID)
			}

			if !seen[models.EdgeFalse] {
				result.add(ErrMissingBranch, "condition node is missing its false branch", n.ID)
			}

			if len(n.Next) > 2 {
				result.add(ErrTooManyEdges, "condition node must have exactly two edges", n.ID)
			}
		case models.NodeKindAction, models.NodeKindDelay, models.NodeKindTrigger:
			if len(n.Next) > 1 {
				result.add(ErrTooManyEdges,
					fmt.Sprintf("%s node must have at most one outgoing edge", n.Kind), n.ID)
			}
		case models.NodeKindBranch:
			v.checkBranchEdges(n, seen, result)
		}
	}
}

func (v *Validator) checkBranchEdges(n *models.WorkflowNode, seen map[string]bool, result *ValidationResult) {
	if n.Branch == nil {
		return
	}

	exhaustive := false

	for _, rule := range n.Branch.Rules {
		if !seen[rule.Name] {
			result.add(ErrMissingBranch,
				fmt.Sprintf("branch rule %q has no matching edge", rule.Name), n.ID)
		}

		if rule.Guard == nil && rule.Percent != nil && *rule.Percent >= 100 {
			exhaustive = true
		}
	}

	// No implicit fallthrough: a branch whose guards may all miss needs an
	// explicit default edge.
	if !exhaustive && !seen[models.EdgeDefault] {
		result.add(ErrNoDefaultBranch,
			"branch guards are not exhaustive and no default edge exists", n.ID)
	}
}

func (v *Validator) checkNode(n *models.WorkflowNode, result *ValidationResult) {
	if err := n.ConfigForKind(); err != nil {
		result.add(ErrBadNodeConfig, err.Error(), n.ID)
		return
	}

	switch n.Kind {
	case models.NodeKindTrigger:
		v.checkTriggerConfig(n, result)
	case models.NodeKindCondition:
		if err := n.Condition.Validate(); err != nil {
			result.add(ErrBadCondition, err.Error(), n.ID)
		}
	case models.NodeKindAction:
		v.checkActionConfig(n, result)
	case models.NodeKindDelay:
		if n.Delay.Value <= 0 {
			result.add(ErrBadDelay, "delay value must be positive", n.ID)
		} else if _, err := n.Delay.Unit.Duration(n.Delay.Value); err != nil {
			result.add(ErrBadDelay, err.Error(), n.ID)
		}
	case models.NodeKindBranch:
		for _, rule := range n.Branch.Rules {
			if rule.Guard != nil {
				if err := rule.Guard.Validate(); err != nil {
					result.add(ErrBadCondition,
						fmt.Sprintf("branch rule %q: %v", rule.Name, err), n.ID)
				}
			}

			if rule.Percent != nil && (*rule.Percent < 0 || *rule.Percent > 100) {
				result.add(ErrBadNodeConfig,
					fmt.Sprintf("branch rule %q percent out of range", rule.Name), n.ID)
			}
		}
	}
}

func (v *Validator) checkTriggerConfig(n *models.WorkflowNode, result *ValidationResult) {
	switch n.Trigger.Type {
	case models.TriggerLeadCreated:
	case models.TriggerLeadUpdated:
	case models.TriggerSchedule:
		if n.Trigger.Cron == "" {
			result.add(ErrBadTrigger, "schedule trigger requires a cron expression", n.ID)
		} else if _, err := cronParser.Parse(n.Trigger.Cron); err != nil {
			result.add(ErrBadTrigger, fmt.Sprintf("invalid cron expression: %v", err), n.ID)
		}
	default:
		result.add(ErrBadTrigger,
			fmt.Sprintf("unknown trigger type %q", string(n.Trigger.Type)), n.ID)
	}

	if n.Trigger.Filter != nil {
		if err := n.Trigger.Filter.Validate(); err != nil {
			result.add(ErrBadCondition, err.Error(), n.ID)
		}
	}
}

func (v *Validator) checkActionConfig(n *models.WorkflowNode, result *ValidationResult) {
	a := n.Action

	switch a.OnError {
	case models.ErrorPolicyContinue, models.ErrorPolicyStop:
	case models.ErrorPolicyRetry:
		if a.RetryCount <= 0 {
			result.add(ErrBadAction, "retry policy requires a positive retry_count", n.ID)
		}
	default:
		result.add(ErrBadAction,
			fmt.Sprintf("action error policy must be explicit, got %q", string(a.OnError)), n.ID)
	}

	if v.ValidateActionConfig != nil {
		if err := v.ValidateActionConfig(a.Kind, a.Config); err != nil {
			result.add(ErrBadAction, err.Error(), n.ID)
		}
	}
}

func (v *Validator) checkReachability(trigger *models.WorkflowNode, index map[string]*models.WorkflowNode, result *ValidationResult) {
	visited := make(map[string]bool, len(index))
	queue := []string{trigger.ID}
	visited[trigger.ID] = true

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, e := range index[id].Next {
			if !visited[e.To] {
				visited[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}

	for id := range index {
		if !visited[id] {
			result.add(ErrUnreachableNode, "node is not reachable from the trigger", id)
		}
	}
}

// checkCycles runs a three-color DFS. The product has no loop construct,
// so any back edge is a validation error.
func (v *Validator) checkCycles(w *models.Workflow, index map[string]*models.WorkflowNode, result *ValidationResult) {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[string]int, len(index))

	var visit func(id string) []string

	visit = func(id string) []string {
		color[id] = gray

		for _, e := range index[id].Next {
			switch color[e.To] {
			case white:
				if cycle := visit(e.To); cycle != nil {
					return append([]string{id}, cycle...)
				}
			case gray:
				return []string{id, e.To}
			}
		}

		color[id] = black

		return nil
	}

	for _, n := range w.Nodes {
		if color[n.ID] == white {
			if cycle := visit(n.ID); cycle != nil {
				result.add(ErrCycle, "workflow graph contains a cycle", cycle...)
				return
			}
		}
	}
}
