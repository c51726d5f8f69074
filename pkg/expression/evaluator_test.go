package expression

import (
	"testing"
	"time"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // a Wednesday

func cond(field string, op models.Operator, dt models.DataType, value *models.Value) *models.Condition {
	return &models.Condition{Field: field, Operator: op, DataType: dt, Value: value}
}

func TestEvaluateConditionStrings(t *testing.T) {
	record := models.LeadRecord{
		"source": "Website Form",
		"email":  "jo@example.com",
	}

	tests := []struct {
		name string
		c    *models.Condition
		want bool
	}{
		{"equals match", cond("source", models.OpEquals, models.DataTypeString, models.StringValue("Website Form")), true},
		{"equals miss", cond("source", models.OpEquals, models.DataTypeString, models.StringValue("Referral")), false},
		{"not_equals", cond("source", models.OpNotEquals, models.DataTypeString, models.StringValue("Referral")), true},
		{"contains", cond("source", models.OpContains, models.DataTypeString, models.StringValue("Form")), true},
		{"not_contains", cond("source", models.OpNotContains, models.DataTypeString, models.StringValue("Phone")), true},
		{"starts_with", cond("email", models.OpStartsWith, models.DataTypeString, models.StringValue("jo@")), true},
		{"ends_with", cond("email", models.OpEndsWith, models.DataTypeString, models.StringValue(".com")), true},
		{"missing field is false", cond("phone", models.OpEquals, models.DataTypeString, models.StringValue("x")), false},
		{"missing field is_empty true", cond("phone", models.OpIsEmpty, models.DataTypeString, nil), true},
		{"present field is_empty false", cond("source", models.OpIsEmpty, models.DataTypeString, nil), false},
		{"present field is_not_empty", cond("source", models.OpIsNotEmpty, models.DataTypeString, nil), true},
		{"missing field is_not_empty false", cond("phone", models.OpIsNotEmpty, models.DataTypeString, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(tt.c, record, testNow))
		})
	}
}

func TestEvaluateConditionEmptyAndNil(t *testing.T) {
	record := models.LeadRecord{
		"notes": "",
		"tags":  []any{},
		"extra": nil,
	}

	assert.True(t, EvaluateCondition(cond("notes", models.OpIsEmpty, models.DataTypeString, nil), record, testNow))
	assert.True(t, EvaluateCondition(cond("tags", models.OpIsEmpty, models.DataTypeSelect, nil), record, testNow))
	// An explicit nil behaves exactly like an absent field.
	assert.True(t, EvaluateCondition(cond("extra", models.OpIsEmpty, models.DataTypeString, nil), record, testNow))
	assert.False(t, EvaluateCondition(cond("extra", models.OpEquals, models.DataTypeString, models.StringValue("")), record, testNow))
}

func TestEvaluateConditionNumbers(t *testing.T) {
	record := models.LeadRecord{
		"budget":   float64(2500),
		"bedrooms": 4,
		"score":    "85",
		"city":     "Springfield",
	}

	tests := []struct {
		name string
		c    *models.Condition
		want bool
	}{
		{"equals", cond("budget", models.OpEquals, models.DataTypeNumber, models.NumberValue(2500)), true},
		{"greater_than", cond("budget", models.OpGreaterThan, models.DataTypeNumber, models.NumberValue(1000)), true},
		{"greater_or_equal at bound", cond("budget", models.OpGreaterOrEqual, models.DataTypeNumber, models.NumberValue(2500)), true},
		{"less_than false", cond("budget", models.OpLessThan, models.DataTypeNumber, models.NumberValue(1000)), false},
		{"between inclusive", cond("budget", models.OpBetween, models.DataTypeNumber, models.RangeValue(2500, 3000)), true},
		{"not_between", cond("budget", models.OpNotBetween, models.DataTypeNumber, models.RangeValue(0, 100)), true},
		{"int coerces", cond("bedrooms", models.OpEquals, models.DataTypeNumber, models.NumberValue(4)), true},
		{"numeric string coerces", cond("score", models.OpGreaterThan, models.DataTypeNumber, models.NumberValue(80)), true},
		{"uncoercible is false", cond("city", models.OpGreaterThan, models.DataTypeNumber, models.NumberValue(0)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(tt.c, record, testNow))
		})
	}
}

func TestEvaluateConditionBooleans(t *testing.T) {
	record := models.LeadRecord{
		"replied":  true,
		"verified": "true",
		"flagged":  0,
	}

	assert.True(t, EvaluateCondition(cond("replied", models.OpIsTrue, models.DataTypeBoolean, nil), record, testNow))
	assert.True(t, EvaluateCondition(cond("verified", models.OpIsTrue, models.DataTypeBoolean, nil), record, testNow))
	assert.True(t, EvaluateCondition(cond("flagged", models.OpIsFalse, models.DataTypeBoolean, nil), record, testNow))
	assert.False(t, EvaluateCondition(cond("missing", models.OpIsFalse, models.DataTypeBoolean, nil), record, testNow))
}

func TestEvaluateConditionDates(t *testing.T) {
	record := models.LeadRecord{
		"created_at":   testNow.Add(-48 * time.Hour).Format(time.RFC3339),
		"follow_up":    testNow.Add(24 * time.Hour).Format(time.RFC3339),
		"closed_on":    "2026-03-04",
		"last_contact": testNow.Add(-40 * 24 * time.Hour).Format(time.RFC3339),
	}

	tests := []struct {
		name string
		c    *models.Condition
		want bool
	}{
		{"before", cond("created_at", models.OpBefore, models.DataTypeDate, models.DateValue(testNow)), true},
		{"after false", cond("created_at", models.OpAfter, models.DataTypeDate, models.DateValue(testNow)), false},
		{"in_last 7 days", cond("created_at", models.OpInLast, models.DataTypeDate, models.WindowValue(7, models.UnitDays)), true},
		{"in_last excludes older", cond("last_contact", models.OpInLast, models.DataTypeDate, models.WindowValue(7, models.UnitDays)), false},
		{"in_next 2 days", cond("follow_up", models.OpInNext, models.DataTypeDate, models.WindowValue(2, models.UnitDays)), true},
		{"in_next excludes past", cond("created_at", models.OpInNext, models.DataTypeDate, models.WindowValue(2, models.UnitDays)), false},
		{"today date-only layout", cond("closed_on", models.OpToday, models.DataTypeDate, nil), true},
		{"this_week", cond("created_at", models.OpThisWeek, models.DataTypeDate, nil), true},
		{"this_month excludes old", cond("last_contact", models.OpThisMonth, models.DataTypeDate, nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateCondition(tt.c, record, testNow))
		})
	}
}

func TestEvaluateGroup(t *testing.T) {
	record := models.LeadRecord{"source": "Website", "budget": float64(2500)}

	sourceMatch := models.GroupChild{Condition: cond("source", models.OpEquals, models.DataTypeString, models.StringValue("Website"))}
	budgetMiss := models.GroupChild{Condition: cond("budget", models.OpGreaterThan, models.DataTypeNumber, models.NumberValue(10000))}

	t.Run("and all match", func(t *testing.T) {
		g := &models.ConditionGroup{Operator: models.GroupAnd, Children: []models.GroupChild{sourceMatch}}
		assert.True(t, EvaluateGroup(g, record, testNow))
	})

	t.Run("and one fails", func(t *testing.T) {
		g := &models.ConditionGroup{Operator: models.GroupAnd, Children: []models.GroupChild{sourceMatch, budgetMiss}}
		assert.False(t, EvaluateGroup(g, record, testNow))
	})

	t.Run("or one matches", func(t *testing.T) {
		g := &models.ConditionGroup{Operator: models.GroupOr, Children: []models.GroupChild{budgetMiss, sourceMatch}}
		assert.True(t, EvaluateGroup(g, record, testNow))
	})

	t.Run("empty and is true", func(t *testing.T) {
		assert.True(t, EvaluateGroup(&models.ConditionGroup{Operator: models.GroupAnd}, record, testNow))
	})

	t.Run("empty or is false", func(t *testing.T) {
		assert.False(t, EvaluateGroup(&models.ConditionGroup{Operator: models.GroupOr}, record, testNow))
	})

	t.Run("nested group", func(t *testing.T) {
		g := &models.ConditionGroup{
			Operator: models.GroupAnd,
			Children: []models.GroupChild{
				sourceMatch,
				{Group: &models.ConditionGroup{Operator: models.GroupOr, Children: []models.GroupChild{budgetMiss, sourceMatch}}},
			},
		}
		assert.True(t, EvaluateGroup(g, record, testNow))
	})
}
