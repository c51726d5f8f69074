package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/leadmill/leadmill/pkg/events"
	"github.com/leadmill/leadmill/pkg/protocol"
)

// Notifier implements protocol.NotificationSink on the event bus.
// Delivery is fire-and-forget: publishing happens on a separate
// goroutine and failures are logged, never surfaced to the engine.
type Notifier struct {
	bus    EventBus
	logger *slog.Logger
}

func NewNotifier(bus EventBus, logger *slog.Logger) *Notifier {
	return &Notifier{bus: bus, logger: logger}
}

func (n *Notifier) Notify(ctx context.Context, notification protocol.Notification) {
	event := events.UserNotification{
		BaseEvent: events.BaseEvent{
			ID:        n.bus.GenerateID(),
			Type:      events.NotificationEvent,
			Timestamp: time.Now().UTC(),
		},
		Kind:       notification.Kind,
		WorkflowID: notification.WorkflowID,
		InstanceID: notification.InstanceID,
		LeadID:     notification.LeadID,
		Detail:     notification.Detail,
		Data:       notification.Data,
	}

	go func() {
		// Deliberately detached from the caller's context: the engine must
		// never block or fail on notification delivery.
		if err := n.bus.Publish(context.WithoutCancel(ctx), events.NotificationTopic, notification.InstanceID, event); err != nil {
			n.logger.Warn("failed to publish notification",
				"kind", notification.Kind,
				"instance_id", notification.InstanceID,
				"error", err)
		}
	}()
}
