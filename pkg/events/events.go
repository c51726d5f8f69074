// Package events defines the event types exchanged between the API,
// the worker, and notification consumers.
package events

import (
	"time"

	"github.com/leadmill/leadmill/pkg/models"
)

type EventType string

// Topics.
const (
	TriggerTopic      = "leadmill.triggers"      // lead/schedule events that may start instances
	InstanceTopic     = "leadmill.instances"     // instance lifecycle events
	NotificationTopic = "leadmill.notifications" // user-facing status notifications
)

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Trigger events.
	LeadCreatedEvent  EventType = "lead.created"
	LeadUpdatedEvent  EventType = "lead.updated"
	ScheduleTickEvent EventType = "schedule.tick"

	// Instance lifecycle events.
	InstanceStartedEvent   EventType = "instance.started"
	InstanceWaitingEvent   EventType = "instance.waiting"
	InstanceCompletedEvent EventType = "instance.completed"
	InstanceFailedEvent    EventType = "instance.failed"
	InstanceCancelledEvent EventType = "instance.cancelled"
	StepFailedEvent        EventType = "instance.step.failed"

	// Notifications.
	NotificationEvent EventType = "notification"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadTrigger carries a lead_created / lead_updated / schedule event.
type LeadTrigger struct {
	BaseEvent

	TriggerType models.TriggerType `json:"trigger_type"`
	LeadID      string             `json:"lead_id"`
	Field       string             `json:"field,omitempty"`
	Data        map[string]any     `json:"data,omitempty"`
}

func (e LeadTrigger) GetType() EventType {
	switch e.TriggerType {
	case models.TriggerLeadUpdated:
		return LeadUpdatedEvent
	case models.TriggerSchedule:
		return ScheduleTickEvent
	default:
		return LeadCreatedEvent
	}
}

// InstanceLifecycle reports an instance status change.
type InstanceLifecycle struct {
	BaseEvent

	InstanceID string                `json:"instance_id"`
	WorkflowID string                `json:"workflow_id"`
	LeadID     string                `json:"lead_id"`
	Status     models.InstanceStatus `json:"status"`
	NodeID     string                `json:"node_id,omitempty"`
	Error      string                `json:"error,omitempty"`
}

func (e InstanceLifecycle) GetType() EventType {
	switch e.Status {
	case models.InstanceStatusWaiting:
		return InstanceWaitingEvent
	case models.InstanceStatusCompleted:
		return InstanceCompletedEvent
	case models.InstanceStatusFailed:
		return InstanceFailedEvent
	case models.InstanceStatusCancelled:
		return InstanceCancelledEvent
	default:
		return InstanceStartedEvent
	}
}

// StepFailed reports one failed node visit, emitted in addition to the
// lifecycle event when the instance keeps running under a continue policy.
type StepFailed struct {
	BaseEvent

	InstanceID string `json:"instance_id"`
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error"`
}

func (e StepFailed) GetType() EventType {
	return StepFailedEvent
}

// UserNotification is a fire-and-forget status update for the UI.
type UserNotification struct {
	BaseEvent

	Kind       string         `json:"kind"`
	WorkflowID string         `json:"workflow_id"`
	InstanceID string         `json:"instance_id,omitempty"`
	LeadID     string         `json:"lead_id,omitempty"`
	Detail     string         `json:"detail,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

func (e UserNotification) GetType() EventType {
	return NotificationEvent
}
