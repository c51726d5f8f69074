package graph

import (
	"errors"
	"testing"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(result *ValidationResult) []ErrorKind {
	out := make([]ErrorKind, 0, len(result.Issues))
	for _, issue := range result.Issues {
		out = append(out, issue.Kind)
	}

	return out
}

func validWorkflow() *models.Workflow {
	return testutil.CreateWorkflow([]*models.WorkflowNode{
		testutil.TriggerNode("t1", models.TriggerLeadCreated, "c1"),
		testutil.ConditionNode("c1", testutil.StructuredCondition("source", "Website"), "a1", "d1"),
		testutil.ActionNode("a1", "email", map[string]any{"subject": "Hi"}, ""),
		testutil.DelayNode("d1", 1, models.UnitDays, "a2"),
		testutil.ActionNode("a2", "sms", map[string]any{"body": "Hi"}, ""),
	})
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	v := &Validator{}

	result := v.Validate(validWorkflow())
	assert.True(t, result.Valid(), "unexpected issues: %v", result.Issues)
}

func TestValidateTriggerRules(t *testing.T) {
	v := &Validator{}

	t.Run("no trigger", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrNoTrigger)
	})

	t.Run("multiple triggers", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.TriggerNode("t2", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrMultipleTriggers)
	})

	t.Run("edge into trigger", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, "t1"),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrTriggerIncoming)
	})

	t.Run("schedule trigger needs valid cron", func(t *testing.T) {
		trigger := testutil.TriggerNode("t1", models.TriggerSchedule, "a1")
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			trigger,
			testutil.ActionNode("a1", "email", nil, ""),
		})

		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadTrigger)

		trigger.Trigger.Cron = "nonsense"
		result = v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadTrigger)

		trigger.Trigger.Cron = "0 9 * * 1"
		result = v.Validate(w)
		assert.True(t, result.Valid(), "unexpected issues: %v", result.Issues)
	})
}

func TestValidateEdges(t *testing.T) {
	v := &Validator{}

	t.Run("dangling edge", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "ghost"),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrDanglingEdge)
	})

	t.Run("duplicate node id", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, ""),
			testutil.ActionNode("a1", "sms", map[string]any{"body": "x"}, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrDuplicateNode)
	})

	t.Run("condition missing false branch", func(t *testing.T) {
		cond := testutil.ConditionNode("c1", testutil.StructuredCondition("source", "Website"), "a1", "")
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "c1"),
			cond,
			testutil.ActionNode("a1", "email", nil, ""),
		})

		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrMissingBranch)

		// Wiring the missing branch fixes the workflow.
		cond.Next = append(cond.Next, models.Edge{Label: models.EdgeFalse, To: "a1"})
		result = v.Validate(w)
		assert.True(t, result.Valid(), "unexpected issues: %v", result.Issues)
	})

	t.Run("action with two edges", func(t *testing.T) {
		action := testutil.ActionNode("a1", "email", nil, "a2")
		action.Next = append(action.Next, models.Edge{Label: "extra", To: "a2"})
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			action,
			testutil.ActionNode("a2", "sms", map[string]any{"body": "x"}, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrTooManyEdges)
	})

	t.Run("duplicate edge label", func(t *testing.T) {
		cond := testutil.ConditionNode("c1", testutil.StructuredCondition("source", "Website"), "a1", "a1")
		cond.Next[1].Label = models.EdgeTrue
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "c1"),
			cond,
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrTooManyEdges)
	})
}

func TestValidateBranchRules(t *testing.T) {
	v := &Validator{}
	fifty := 50
	hundred := 100

	t.Run("rule without matching edge", func(t *testing.T) {
		branch := testutil.BranchNode("b1",
			[]models.BranchRule{{Name: "hot", Percent: &fifty}},
			models.Edge{Label: models.EdgeDefault, To: "a1"},
		)
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "b1"),
			branch,
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrMissingBranch)
	})

	t.Run("non-exhaustive guards need default", func(t *testing.T) {
		branch := testutil.BranchNode("b1",
			[]models.BranchRule{{Name: "hot", Guard: testutil.StructuredCondition("stage", "hot")}},
			models.Edge{Label: "hot", To: "a1"},
		)
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "b1"),
			branch,
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrNoDefaultBranch)
	})

	t.Run("full percent rule is exhaustive", func(t *testing.T) {
		branch := testutil.BranchNode("b1",
			[]models.BranchRule{{Name: "all", Percent: &hundred}},
			models.Edge{Label: "all", To: "a1"},
		)
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "b1"),
			branch,
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.True(t, result.Valid(), "unexpected issues: %v", result.Issues)
	})

	t.Run("percent out of range", func(t *testing.T) {
		over := 120
		branch := testutil.BranchNode("b1",
			[]models.BranchRule{{Name: "all", Percent: &over}},
			models.Edge{Label: "all", To: "a1"},
			models.Edge{Label: models.EdgeDefault, To: "a1"},
		)
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "b1"),
			branch,
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadNodeConfig)
	})
}

func TestValidateNodeConfigs(t *testing.T) {
	v := &Validator{}

	t.Run("bad condition pairing", func(t *testing.T) {
		spec := &models.ConditionSpec{
			Group: &models.ConditionGroup{
				Operator: models.GroupAnd,
				Children: []models.GroupChild{
					{Condition: &models.Condition{
						Field:    "budget",
						Operator: models.OpContains,
						DataType: models.DataTypeNumber,
						Value:    models.StringValue("5"),
					}},
				},
			},
		}
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "c1"),
			testutil.ConditionNode("c1", spec, "a1", "a1"),
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadCondition)
	})

	t.Run("zero delay", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "d1"),
			testutil.DelayNode("d1", 0, models.UnitDays, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadDelay)
	})

	t.Run("retry policy without count", func(t *testing.T) {
		action := testutil.ActionNode("a1", "email", nil, "")
		action.Action.OnError = models.ErrorPolicyRetry
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			action,
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadAction)
	})

	t.Run("implicit error policy rejected", func(t *testing.T) {
		action := testutil.ActionNode("a1", "email", nil, "")
		action.Action.OnError = ""
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			action,
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadAction)
	})

	t.Run("dispatcher schema hook", func(t *testing.T) {
		v := &Validator{
			ValidateActionConfig: func(kind string, _ map[string]any) error {
				return errors.New("unknown action kind " + kind)
			},
		}
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, ""),
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadAction)
	})

	t.Run("mismatched payload", func(t *testing.T) {
		node := &models.WorkflowNode{
			ID:    "x1",
			Kind:  models.NodeKindAction,
			Name:  "broken",
			Delay: &models.DelayConfig{Value: 1, Unit: models.UnitDays},
		}
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "x1"),
			node,
		})
		result := v.Validate(w)
		assert.Contains(t, kinds(result), ErrBadNodeConfig)
	})
}

func TestValidateTraversal(t *testing.T) {
	v := &Validator{}

	t.Run("unreachable node", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, ""),
			testutil.ActionNode("orphan", "sms", map[string]any{"body": "x"}, ""),
		})
		result := v.Validate(w)
		require.False(t, result.Valid())
		assert.Contains(t, kinds(result), ErrUnreachableNode)
	})

	t.Run("cycle", func(t *testing.T) {
		w := testutil.CreateWorkflow([]*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, "a2"),
			testutil.ActionNode("a2", "sms", map[string]any{"body": "x"}, "a1"),
		})
		result := v.Validate(w)
		require.False(t, result.Valid())
		assert.Contains(t, kinds(result), ErrCycle)

		// The reported cycle names the nodes involved.
		for _, issue := range result.Issues {
			if issue.Kind == ErrCycle {
				assert.Contains(t, issue.NodeIDs, "a1")
				assert.Contains(t, issue.NodeIDs, "a2")
			}
		}
	})
}

func TestValidationResultError(t *testing.T) {
	result := &ValidationResult{}
	result.add(ErrNoTrigger, "workflow has no trigger node")

	assert.False(t, result.Valid())
	assert.Contains(t, result.Error(), "no_trigger")
}
