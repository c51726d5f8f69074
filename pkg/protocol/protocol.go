// Package protocol defines the collaborator contracts between the
// automation core and the surrounding application: lead storage, action
// dispatch, and notification delivery. Implementations live elsewhere;
// the core only talks to these interfaces.
package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
)

// LeadStore is the core's only view of lead storage. The core reads
// records for evaluation and requests mutations as patches; it never
// holds authoritative lead state.
type LeadStore interface {
	Get(ctx context.Context, leadID string) (models.LeadRecord, error)
	Update(ctx context.Context, leadID string, patch models.LeadPatch) error
}

// ErrLeadNotFound is returned by LeadStore implementations when no
// record exists for the given id.
var ErrLeadNotFound = errors.New("lead not found")

// ActionOutcome is the successful result of one dispatcher invocation.
type ActionOutcome struct {
	Detail string         `json:"detail,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// ActionError is a failed dispatcher invocation. Transient errors are
// eligible for retry under the node's retry policy; permanent ones are
// not, regardless of remaining attempts.
type ActionError struct {
	Kind      string
	Err       error
	Transient bool
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// NewActionError wraps a dispatcher failure.
func NewActionError(kind string, err error, transient bool) *ActionError {
	return &ActionError{Kind: kind, Err: err, Transient: transient}
}

// ActionDispatcher performs one external side effect (email, SMS,
// webhook, CRM write, task creation). Dispatchers must be idempotent-safe
// under retry; deduplication is the dispatcher's job, not the engine's.
type ActionDispatcher interface {
	Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*ActionOutcome, error)
}

// DispatcherFactory creates dispatcher instances and describes their
// config schema for save-time validation.
type DispatcherFactory interface {
	Create(config map[string]any) (ActionDispatcher, error)
	ID() string
	Description() string
	Schema() map[string]any
}

// NotificationSink receives fire-and-forget status notifications. The
// core only enqueues; delivery never blocks instance advancement.
type NotificationSink interface {
	Notify(ctx context.Context, event Notification)
}

// Notification is one user-facing status update.
type Notification struct {
	Kind       string         `json:"kind"`
	WorkflowID string         `json:"workflow_id"`
	InstanceID string         `json:"instance_id,omitempty"`
	LeadID     string         `json:"lead_id,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}
