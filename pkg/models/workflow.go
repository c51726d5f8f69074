package models

import (
	"errors"
	"fmt"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Validated, instances may start
	WorkflowStatusPaused   WorkflowStatus = "paused"   // No new instances; in-flight unaffected
	WorkflowStatusArchived WorkflowStatus = "archived" // Terminal
)

// BusinessHours bounds delay resumption to a daily window.
type BusinessHours struct {
	StartHour int    `json:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int    `json:"end_hour"   validate:"gte=1,lte=24"`
	Timezone  string `json:"timezone,omitempty"`
}

// WorkflowSettings are workflow-wide execution settings, checked by the
// engine before every node visit and when computing delay due times.
type WorkflowSettings struct {
	BusinessHours *BusinessHours `json:"business_hours,omitempty"`
	SkipWeekends  bool           `json:"skip_weekends,omitempty"`
	StopOnReply   bool           `json:"stop_on_reply,omitempty"`
	StopOnMeeting bool           `json:"stop_on_meeting,omitempty"`
	// MaxAttempts caps action invocations per instance; zero means unlimited.
	MaxAttempts int `json:"max_attempts,omitempty"`
}

// Workflow is a versioned graph of automation nodes. Instances are bound
// to the version they started on; editing an active workflow produces a
// new version and never rewires running instances.
type Workflow struct {
	ID          string         `json:"id"`
	GroupID     string         `json:"group_id"` // Stable ID linking all versions
	Version     int            `json:"version"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"      validate:"required"`

	Nodes    []*WorkflowNode  `json:"nodes"`
	Settings WorkflowSettings `json:"settings"`

	Owner       string     `json:"owner"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

// NodeByID returns the node with the given id from the node table.
func (w *Workflow) NodeByID(id string) (*WorkflowNode, bool) {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n, true
		}
	}

	return nil, false
}

// TriggerNode returns the workflow's trigger node, if exactly one exists.
func (w *Workflow) TriggerNode() (*WorkflowNode, bool) {
	var found *WorkflowNode

	for _, n := range w.Nodes {
		if n.Kind == NodeKindTrigger {
			if found != nil {
				return nil, false
			}

			found = n
		}
	}

	return found, found != nil
}

// allowedTransitions encodes the workflow lifecycle. Archived is terminal.
var allowedTransitions = map[WorkflowStatus][]WorkflowStatus{
	WorkflowStatusDraft:    {WorkflowStatusActive, WorkflowStatusArchived},
	WorkflowStatusActive:   {WorkflowStatusPaused, WorkflowStatusArchived},
	WorkflowStatusPaused:   {WorkflowStatusActive, WorkflowStatusArchived},
	WorkflowStatusArchived: {},
}

// CanTransition reports whether the lifecycle permits moving to target.
func (w *Workflow) CanTransition(target WorkflowStatus) bool {
	for _, s := range allowedTransitions[w.Status] {
		if s == target {
			return true
		}
	}

	return false
}

// ErrIllegalTransition indicates a lifecycle move the state machine
// does not permit.
var ErrIllegalTransition = errors.New("illegal workflow transition")

// Transition moves the workflow to target or fails with the disallowed pair.
func (w *Workflow) Transition(target WorkflowStatus, now time.Time) error {
	if !w.CanTransition(target) {
		return fmt.Errorf("workflow %s: %w: %s -> %s", w.ID, ErrIllegalTransition, w.Status, target)
	}

	w.Status = target
	w.UpdatedAt = now

	if target == WorkflowStatusActive && w.ActivatedAt == nil {
		w.ActivatedAt = &now
	}

	return nil
}
