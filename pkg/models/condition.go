// Package models defines the core domain models for lead automation:
// condition expressions, workflow graphs, and workflow instances.
package models

import (
	"errors"
	"fmt"
)

// DataType declares how a lead record field is interpreted by a condition.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeDate    DataType = "date"
	DataTypeSelect  DataType = "select"
)

// Operator is a comparison applied to a lead record field.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpStartsWith     Operator = "starts_with"
	OpEndsWith       Operator = "ends_with"
	OpGreaterThan    Operator = "greater_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessThan       Operator = "less_than"
	OpLessOrEqual    Operator = "less_or_equal"
	OpBetween        Operator = "between"
	OpNotBetween     Operator = "not_between"
	OpIsTrue         Operator = "is_true"
	OpIsFalse        Operator = "is_false"
	OpBefore         Operator = "before"
	OpAfter          Operator = "after"
	OpInLast         Operator = "in_last"
	OpInNext         Operator = "in_next"
	OpToday          Operator = "today"
	OpThisWeek       Operator = "this_week"
	OpThisMonth      Operator = "this_month"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)

// operatorSets maps each data type to its valid operators and the value
// kind each operator requires (empty string means no value is consulted).
var operatorSets = map[DataType]map[Operator]ValueKind{
	DataTypeString: {
		OpEquals:      ValueKindString,
		OpNotEquals:   ValueKindString,
		OpContains:    ValueKindString,
		OpNotContains: ValueKindString,
		OpStartsWith:  ValueKindString,
		OpEndsWith:    ValueKindString,
		OpIsEmpty:     "",
		OpIsNotEmpty:  "",
	},
	DataTypeNumber: {
		OpEquals:         ValueKindNumber,
		OpNotEquals:      ValueKindNumber,
		OpGreaterThan:    ValueKindNumber,
		OpGreaterOrEqual: ValueKindNumber,
		OpLessThan:       ValueKindNumber,
		OpLessOrEqual:    ValueKindNumber,
		OpBetween:        ValueKindRange,
		OpNotBetween:     ValueKindRange,
		OpIsEmpty:        "",
		OpIsNotEmpty:     "",
	},
	DataTypeBoolean: {
		OpIsTrue:  "",
		OpIsFalse: "",
	},
	DataTypeDate: {
		OpBefore:     ValueKindDate,
		OpAfter:      ValueKindDate,
		OpInLast:     ValueKindWindow,
		OpInNext:     ValueKindWindow,
		OpToday:      "",
		OpThisWeek:   "",
		OpThisMonth:  "",
		OpIsEmpty:    "",
		OpIsNotEmpty: "",
	},
	DataTypeSelect: {
		OpEquals:     ValueKindString,
		OpNotEquals:  ValueKindString,
		OpIn:         ValueKindList,
		OpNotIn:      ValueKindList,
		OpIsEmpty:    "",
		OpIsNotEmpty: "",
	},
}

// RequiresValue reports whether op consults its value for the given type.
func RequiresValue(dt DataType, op Operator) bool {
	kind, ok := operatorSets[dt][op]
	return ok && kind != ""
}

// Condition is a single field/operator/value predicate over a lead record.
type Condition struct {
	Field    string   `json:"field"     validate:"required"`
	Operator Operator `json:"operator"  validate:"required"`
	DataType DataType `json:"data_type" validate:"required"`
	Value    *Value   `json:"value,omitempty"`
}

// Validate rejects operator/dataType mismatches and malformed values.
// This runs at workflow save time so evaluation never sees a bad pairing.
func (c *Condition) Validate() error {
	if c.Field == "" {
		return errors.New("condition field is required")
	}

	ops, ok := operatorSets[c.DataType]
	if !ok {
		return fmt.Errorf("unknown data type %q on field %q", string(c.DataType), c.Field)
	}

	wantKind, ok := ops[c.Operator]
	if !ok {
		return fmt.Errorf("operator %q is not valid for data type %q (field %q)",
			string(c.Operator), string(c.DataType), c.Field)
	}

	// Operators without a value ignore whatever is attached, per contract.
	if wantKind == "" {
		return nil
	}

	if c.Value == nil {
		return fmt.Errorf("operator %q on field %q requires a %s value",
			string(c.Operator), c.Field, string(wantKind))
	}

	if err := c.Value.Validate(); err != nil {
		return fmt.Errorf("field %q: %w", c.Field, err)
	}

	if c.Value.Kind != wantKind {
		return fmt.Errorf("operator %q on field %q requires a %s value, got %s",
			string(c.Operator), c.Field, string(wantKind), string(c.Value.Kind))
	}

	return nil
}

// GroupOperator combines the children of a ConditionGroup.
type GroupOperator string

const (
	GroupAnd GroupOperator = "and"
	GroupOr  GroupOperator = "or"
)

// GroupChild holds exactly one of a leaf condition or a nested group.
type GroupChild struct {
	Condition *Condition      `json:"condition,omitempty"`
	Group     *ConditionGroup `json:"group,omitempty"`
}

// ConditionGroup is a boolean combination of conditions and nested groups.
// An empty AND group is vacuously true; an empty OR group is vacuously false.
type ConditionGroup struct {
	Operator GroupOperator `json:"operator"`
	Children []GroupChild  `json:"children"`
}

// Validate recursively checks the group and every leaf condition.
func (g *ConditionGroup) Validate() error {
	if g.Operator != GroupAnd && g.Operator != GroupOr {
		return fmt.Errorf("unknown group operator %q", string(g.Operator))
	}

	for i, child := range g.Children {
		switch {
		case child.Condition != nil && child.Group != nil:
			return fmt.Errorf("group child %d sets both condition and group", i)
		case child.Condition != nil:
			if err := child.Condition.Validate(); err != nil {
				return err
			}
		case child.Group != nil:
			if err := child.Group.Validate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("group child %d is empty", i)
		}
	}

	return nil
}

// ConditionLanguage selects how a condition node expresses its predicate.
type ConditionLanguage string

const (
	// LanguageStructured is the field/operator/value condition tree.
	LanguageStructured ConditionLanguage = "structured"
	// LanguageExpr is a free-form expr-lang expression over the lead record.
	LanguageExpr ConditionLanguage = "expr"
)

// ConditionSpec is the predicate attached to condition nodes, branch guards
// and trigger filters. Structured groups are the primary path; expr is the
// escape hatch for predicates the builder UI cannot express.
type ConditionSpec struct {
	Language   ConditionLanguage `json:"language,omitempty"`
	Group      *ConditionGroup   `json:"group,omitempty"`
	Expression string            `json:"expression,omitempty"`
}

func (s *ConditionSpec) Validate() error {
	switch s.Language {
	case LanguageStructured, "":
		if s.Group == nil {
			return errors.New("structured condition requires a group")
		}
		return s.Group.Validate()
	case LanguageExpr:
		if s.Expression == "" {
			return errors.New("expr condition requires an expression")
		}
		return nil
	default:
		return fmt.Errorf("unknown condition language %q", string(s.Language))
	}
}
