package models

import "fmt"

// NodeKind discriminates the five workflow node types.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindCondition NodeKind = "condition"
	NodeKindAction    NodeKind = "action"
	NodeKindDelay     NodeKind = "delay"
	NodeKindBranch    NodeKind = "branch"
)

// Edge labels. Condition nodes use true/false; delay, action and trigger
// nodes use default; branch nodes use their rule names plus default.
const (
	EdgeDefault = "default"
	EdgeTrue    = "true"
	EdgeFalse   = "false"
)

// Edge is a labeled successor reference. Nodes hold successor ids only
// (adjacency list form), never embedded child nodes.
type Edge struct {
	Label string `json:"label" validate:"required"`
	To    string `json:"to"    validate:"required"`
}

// TriggerType identifies the event that starts a workflow instance.
type TriggerType string

const (
	TriggerLeadCreated TriggerType = "lead_created"
	TriggerLeadUpdated TriggerType = "lead_updated"
	TriggerSchedule    TriggerType = "schedule"
)

// TriggerConfig configures a trigger node.
type TriggerConfig struct {
	Type TriggerType `json:"type" validate:"required"`
	// Field restricts lead_updated triggers to changes of one field.
	Field string `json:"field,omitempty"`
	// Cron holds the schedule expression for schedule triggers.
	Cron string `json:"cron,omitempty"`
	// Filter, when set, must match the lead for the instance to start.
	Filter *ConditionSpec `json:"filter,omitempty"`
}

// ErrorPolicy is the explicit per-action failure handling choice.
type ErrorPolicy string

const (
	ErrorPolicyContinue ErrorPolicy = "continue"
	ErrorPolicyStop     ErrorPolicy = "stop"
	ErrorPolicyRetry    ErrorPolicy = "retry"
)

// ActionConfig configures an action node. Kind selects the dispatcher;
// Config is validated against the dispatcher's JSON schema at save time.
type ActionConfig struct {
	Kind           string         `json:"kind" validate:"required"`
	Config         map[string]any `json:"config"`
	OnError        ErrorPolicy    `json:"on_error" validate:"required"`
	RetryCount     int            `json:"retry_count,omitempty"`
	RetryBackoff   int            `json:"retry_backoff,omitempty"` // value in RetryBackoffUnit
	RetryBackoffIn TimeUnit       `json:"retry_backoff_unit,omitempty"`
}

// DelayConfig configures a delay node.
type DelayConfig struct {
	Value int      `json:"value" validate:"gt=0"`
	Unit  TimeUnit `json:"unit"  validate:"required"`
}

// BranchRule is one guarded or weighted outgoing route of a branch node.
// Guarded rules are evaluated in declaration order and always take
// precedence over percentage buckets.
type BranchRule struct {
	Name    string         `json:"name" validate:"required"`
	Guard   *ConditionSpec `json:"guard,omitempty"`
	Percent *int           `json:"percent,omitempty"`
}

// BranchConfig configures a branch/split node.
type BranchConfig struct {
	Rules []BranchRule `json:"rules" validate:"required,min=1"`
}

// WorkflowNode is one node of a workflow graph. Exactly the config field
// matching Kind is set.
type WorkflowNode struct {
	ID   string   `json:"id"   validate:"required"`
	Kind NodeKind `json:"kind" validate:"required"`
	Name string   `json:"name" validate:"required,min=1"`

	Trigger   *TriggerConfig `json:"trigger,omitempty"`
	Condition *ConditionSpec `json:"condition,omitempty"`
	Action    *ActionConfig  `json:"action,omitempty"`
	Delay     *DelayConfig   `json:"delay,omitempty"`
	Branch    *BranchConfig  `json:"branch,omitempty"`

	Next []Edge `json:"next,omitempty"`
}

// Successor returns the target of the edge with the given label.
func (n *WorkflowNode) Successor(label string) (string, bool) {
	for _, e := range n.Next {
		if e.Label == label {
			return e.To, true
		}
	}

	return "", false
}

// IsTerminal reports whether the node has no outgoing edges.
func (n *WorkflowNode) IsTerminal() bool {
	return len(n.Next) == 0
}

// ConfigForKind checks that the config payload matching Kind is present
// and that no foreign payload is attached.
func (n *WorkflowNode) ConfigForKind() error {
	set := 0
	if n.Trigger != nil {
		set++
	}

	if n.Condition != nil {
		set++
	}

	if n.Action != nil {
		set++
	}

	if n.Delay != nil {
		set++
	}

	if n.Branch != nil {
		set++
	}

	if set != 1 {
		return fmt.Errorf("node %s must carry exactly one config payload, has %d", n.ID, set)
	}

	var ok bool

	switch n.Kind {
	case NodeKindTrigger:
		ok = n.Trigger != nil
	case NodeKindCondition:
		ok = n.Condition != nil
	case NodeKindAction:
		ok = n.Action != nil
	case NodeKindDelay:
		ok = n.Delay != nil
	case NodeKindBranch:
		ok = n.Branch != nil
	default:
		return fmt.Errorf("node %s has unknown kind %q", n.ID, string(n.Kind))
	}

	if !ok {
		return fmt.Errorf("node %s config does not match kind %q", n.ID, string(n.Kind))
	}

	return nil
}
