// Package engine executes workflow instances: it walks a validated
// workflow graph for one lead, evaluating conditions, dispatching
// actions, and suspending on delays until their due time.
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrWorkflowNotActive is returned by Start for workflows that have
	// not passed validation and activation.
	ErrWorkflowNotActive = errors.New("workflow is not active")

	// ErrNodeNotFound means an instance points at a node id absent from
	// its workflow version; only possible through store corruption.
	ErrNodeNotFound = errors.New("current node not found in workflow")
)

// SchedulingError means a delay due time could not be computed, for
// example from a malformed business-hours window. Always fatal to the
// instance.
type SchedulingError struct {
	NodeID string
	Err    error
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("scheduling failed at node %s: %v", e.NodeID, e.Err)
}

func (e *SchedulingError) Unwrap() error {
	return e.Err
}

// EvaluationError means a condition expression failed to evaluate.
// Structured conditions cannot produce this; expr-language conditions
// can, and when they do the instance fails rather than guessing.
type EvaluationError struct {
	NodeID string
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed at node %s: %v", e.NodeID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
