package models

import "time"

// InstanceStatus is the state of one workflow execution.
type InstanceStatus string

const (
	InstanceStatusRunning   InstanceStatus = "running"
	InstanceStatusWaiting   InstanceStatus = "waiting"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusFailed    InstanceStatus = "failed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// Terminal reports whether no further advancement is possible.
func (s InstanceStatus) Terminal() bool {
	return s == InstanceStatusCompleted || s == InstanceStatusFailed || s == InstanceStatusCancelled
}

// StepResult is the outcome of one node visit.
type StepResult string

const (
	StepSuccess StepResult = "success"
	StepFailure StepResult = "failure"
	StepSkipped StepResult = "skipped"
)

// StepLog records one node visit, including every retry attempt made
// on that visit. A failed instance keeps the full log so the failure
// point stays inspectable.
type StepLog struct {
	NodeID     string     `json:"node_id"`
	NodeKind   NodeKind   `json:"node_kind"`
	Result     StepResult `json:"result"`
	Attempts   int        `json:"attempts,omitempty"`
	Error      string     `json:"error,omitempty"`
	Detail     string     `json:"detail,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

// TriggerEvent is the event that starts (or fails to start) an instance.
type TriggerEvent struct {
	Type       TriggerType    `json:"type"`
	LeadID     string         `json:"lead_id"`
	Field      string         `json:"field,omitempty"` // changed field for lead_updated
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// WorkflowInstance is one execution of a workflow version against one
// lead. Owned exclusively by the execution engine.
type WorkflowInstance struct {
	ID              string `json:"id"`
	WorkflowID      string `json:"workflow_id"`
	WorkflowVersion int    `json:"workflow_version"`
	LeadID          string `json:"lead_id"`

	Trigger TriggerEvent `json:"trigger"`

	Status      InstanceStatus `json:"status"`
	CurrentNode string         `json:"current_node"`
	// WaitUntil is the delay due time while Status is waiting. Retries in
	// flight also park here between backoff attempts.
	WaitUntil *time.Time `json:"wait_until,omitempty"`
	// PendingAttempts tracks how many attempts the current action node has
	// already consumed when a retry is parked behind WaitUntil.
	PendingAttempts int `json:"pending_attempts,omitempty"`

	Steps      []StepLog `json:"steps"`
	ActionRuns int       `json:"action_runs"` // counted against settings.max_attempts

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	FailReason string     `json:"fail_reason,omitempty"`
}

// LogStep appends a completed step entry.
func (i *WorkflowInstance) LogStep(step StepLog) {
	i.Steps = append(i.Steps, step)
}

// LastStep returns the most recent step entry.
func (i *WorkflowInstance) LastStep() (StepLog, bool) {
	if len(i.Steps) == 0 {
		return StepLog{}, false
	}

	return i.Steps[len(i.Steps)-1], true
}
