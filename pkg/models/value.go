package models

import (
	"errors"
	"fmt"
	"time"
)

// ValueKind discriminates the typed condition value union.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindNumber ValueKind = "number"
	ValueKindBool   ValueKind = "bool"
	ValueKindDate   ValueKind = "date"
	ValueKindRange  ValueKind = "range"
	ValueKindList   ValueKind = "list"
	ValueKindWindow ValueKind = "window" // relative time window (in_last / in_next)
)

// TimeUnit is the unit for delays and relative date windows.
type TimeUnit string

const (
	UnitMinutes TimeUnit = "minutes"
	UnitHours   TimeUnit = "hours"
	UnitDays    TimeUnit = "days"
	UnitWeeks   TimeUnit = "weeks"
	UnitMonths  TimeUnit = "months"
)

// Duration converts n units to a time.Duration. Months are approximated
// as 30 days, which matches how the sequencing UI presents them.
func (u TimeUnit) Duration(n int) (time.Duration, error) {
	switch u {
	case UnitMinutes:
		return time.Duration(n) * time.Minute, nil
	case UnitHours:
		return time.Duration(n) * time.Hour, nil
	case UnitDays:
		return time.Duration(n) * 24 * time.Hour, nil
	case UnitWeeks:
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	case UnitMonths:
		return time.Duration(n) * 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown time unit %q", string(u))
	}
}

// NumberRange carries the two bounds required by between / not_between.
type NumberRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
}

// Window is a relative time window such as "last 7 days".
type Window struct {
	Count int      `json:"count" validate:"gt=0"`
	Unit  TimeUnit `json:"unit"  validate:"required"`
}

// Value is the tagged union for condition values. Exactly one payload
// field matching Kind is set; the JSON shape is stable across versions.
type Value struct {
	Kind   ValueKind    `json:"kind"`
	String *string      `json:"string,omitempty"`
	Number *float64     `json:"number,omitempty"`
	Bool   *bool        `json:"bool,omitempty"`
	Date   *time.Time   `json:"date,omitempty"`
	Range  *NumberRange `json:"range,omitempty"`
	List   []string     `json:"list,omitempty"`
	Window *Window      `json:"window,omitempty"`
}

// Convenience constructors used heavily in tests and seed data.

func StringValue(s string) *Value   { return &Value{Kind: ValueKindString, String: &s} }
func NumberValue(n float64) *Value  { return &Value{Kind: ValueKindNumber, Number: &n} }
func BoolValue(b bool) *Value       { return &Value{Kind: ValueKindBool, Bool: &b} }
func DateValue(t time.Time) *Value  { return &Value{Kind: ValueKindDate, Date: &t} }
func ListValue(vs ...string) *Value { return &Value{Kind: ValueKindList, List: vs} }

func RangeValue(from, to float64) *Value {
	return &Value{Kind: ValueKindRange, Range: &NumberRange{From: from, To: to}}
}

func WindowValue(count int, unit TimeUnit) *Value {
	return &Value{Kind: ValueKindWindow, Window: &Window{Count: count, Unit: unit}}
}

// Validate checks that the payload matching Kind is present and well-formed.
func (v *Value) Validate() error {
	if v == nil {
		return errors.New("value is nil")
	}

	switch v.Kind {
	case ValueKindString:
		if v.String == nil {
			return errors.New("string value missing payload")
		}
	case ValueKindNumber:
		if v.Number == nil {
			return errors.New("number value missing payload")
		}
	case ValueKindBool:
		if v.Bool == nil {
			return errors.New("bool value missing payload")
		}
	case ValueKindDate:
		if v.Date == nil {
			return errors.New("date value missing payload")
		}
	case ValueKindRange:
		if v.Range == nil {
			return errors.New("range value missing payload")
		}
		if v.Range.From > v.Range.To {
			return fmt.Errorf("range bounds inverted: %v > %v", v.Range.From, v.Range.To)
		}
	case ValueKindList:
		if len(v.List) == 0 {
			return errors.New("list value is empty")
		}
	case ValueKindWindow:
		if v.Window == nil {
			return errors.New("window value missing payload")
		}
		if v.Window.Count <= 0 {
			return fmt.Errorf("window count must be positive, got %d", v.Window.Count)
		}
		if _, err := v.Window.Unit.Duration(1); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown value kind %q", string(v.Kind))
	}

	return nil
}
