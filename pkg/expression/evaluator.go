// Package expression evaluates condition trees against lead records.
// Evaluation is pure and deterministic: a single injected "now" is used
// for every date operator within one call, and missing or uncoercible
// fields degrade to false instead of aborting the whole group.
package expression

import (
	"strconv"
	"strings"
	"time"

	"github.com/leadmill/leadmill/pkg/models"
)

// EvaluateGroup evaluates a condition group against a lead record.
// AND short-circuits at the first false child, OR at the first true one.
// An empty AND group is true; an empty OR group is false.
func EvaluateGroup(g *models.ConditionGroup, record models.LeadRecord, now time.Time) bool {
	if g.Operator == models.GroupOr {
		for _, child := range g.Children {
			if evaluateChild(child, record, now) {
				return true
			}
		}

		return false
	}

	for _, child := range g.Children {
		if !evaluateChild(child, record, now) {
			return false
		}
	}

	return true
}

func evaluateChild(child models.GroupChild, record models.LeadRecord, now time.Time) bool {
	if child.Group != nil {
		return EvaluateGroup(child.Group, record, now)
	}

	if child.Condition != nil {
		return EvaluateCondition(child.Condition, record, now)
	}

	return false
}

// EvaluateCondition evaluates a single condition. A missing field yields
// false for every operator except is_empty, which yields true. Coercion
// failures are treated the same as a missing field.
func EvaluateCondition(c *models.Condition, record models.LeadRecord, now time.Time) bool {
	raw, present := record[c.Field]
	if present && raw == nil {
		present = false
	}

	switch c.Operator {
	case models.OpIsEmpty:
		return !present || isEmptyValue(raw)
	case models.OpIsNotEmpty:
		return present && !isEmptyValue(raw)
	}

	if !present {
		return false
	}

	switch c.DataType {
	case models.DataTypeString, models.DataTypeSelect:
		return evaluateString(c, raw)
	case models.DataTypeNumber:
		return evaluateNumber(c, raw)
	case models.DataTypeBoolean:
		return evaluateBool(c, raw)
	case models.DataTypeDate:
		return evaluateDate(c, raw, now)
	default:
		return false
	}
}

func evaluateString(c *models.Condition, raw any) bool {
	s, ok := coerceString(raw)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OpEquals:
		return c.Value != nil && c.Value.String != nil && s == *c.Value.String
	case models.OpNotEquals:
		return c.Value != nil && c.Value.String != nil && s != *c.Value.String
	case models.OpContains:
		return c.Value != nil && c.Value.String != nil && strings.Contains(s, *c.Value.String)
	case models.OpNotContains:
		return c.Value != nil && c.Value.String != nil && !strings.Contains(s, *c.Value.String)
	case models.OpStartsWith:
		return c.Value != nil && c.Value.String != nil && strings.HasPrefix(s, *c.Value.String)
	case models.OpEndsWith:
		return c.Value != nil && c.Value.String != nil && strings.HasSuffix(s, *c.Value.String)
	case models.OpIn:
		return c.Value != nil && contains(c.Value.List, s)
	case models.OpNotIn:
		return c.Value != nil && len(c.Value.List) > 0 && !contains(c.Value.List, s)
	default:
		return false
	}
}

func evaluateNumber(c *models.Condition, raw any) bool {
	n, ok := coerceNumber(raw)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OpEquals:
		return c.Value != nil && c.Value.Number != nil && n == *c.Value.Number
	case models.OpNotEquals:
		return c.Value != nil && c.Value.Number != nil && n != *c.Value.Number
	case models.OpGreaterThan:
		return c.Value != nil && c.Value.Number != nil && n > *c.Value.Number
	case models.OpGreaterOrEqual:
		return c.Value != nil && c.Value.Number != nil && n >= *c.Value.Number
	case models.OpLessThan:
		return c.Value != nil && c.Value.Number != nil && n < *c.Value.Number
	case models.OpLessOrEqual:
		return c.Value != nil && c.Value.Number != nil && n <= *c.Value.Number
	case models.OpBetween:
		return c.Value != nil && c.Value.Range != nil &&
			n >= c.Value.Range.From && n <= c.Value.Range.To
	case models.OpNotBetween:
		return c.Value != nil && c.Value.Range != nil &&
			(n < c.Value.Range.From || n > c.Value.Range.To)
	default:
		return false
	}
}

func evaluateBool(c *models.Condition, raw any) bool {
	b, ok := coerceBool(raw)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OpIsTrue:
		return b
	case models.OpIsFalse:
		return !b
	default:
		return false
	}
}

func evaluateDate(c *models.Condition, raw any, now time.Time) bool {
	t, ok := coerceTime(raw)
	if !ok {
		return false
	}

	switch c.Operator {
	case models.OpBefore:
		return c.Value != nil && c.Value.Date != nil && t.Before(*c.Value.Date)
	case models.OpAfter:
		return c.Value != nil && c.Value.Date != nil && t.After(*c.Value.Date)
	case models.OpInLast:
		if c.Value == nil || c.Value.Window == nil {
			return false
		}

		d, err := c.Value.Window.Unit.Duration(c.Value.Window.Count)
		if err != nil {
			return false
		}

		return !t.Before(now.Add(-d)) && !t.After(now)
	case models.OpInNext:
		if c.Value == nil || c.Value.Window == nil {
			return false
		}

		d, err := c.Value.Window.Unit.Duration(c.Value.Window.Count)
		if err != nil {
			return false
		}

		return !t.Before(now) && !t.After(now.Add(d))
	case models.OpToday:
		return sameDay(t, now)
	case models.OpThisWeek:
		ty, tw := t.ISOWeek()
		ny, nw := now.ISOWeek()

		return ty == ny && tw == nw
	case models.OpThisMonth:
		return t.Year() == now.Year() && t.Month() == now.Month()
	default:
		return false
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}

func isEmptyValue(raw any) bool {
	switch v := raw.(type) {
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

func coerceString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

func coerceNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}

func coerceBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false
		}

		return b, true
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	default:
		return false, false
	}
}

func coerceTime(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}

		return time.Time{}, false
	case float64:
		return time.Unix(int64(v), 0).UTC(), true
	case int64:
		return time.Unix(v, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
