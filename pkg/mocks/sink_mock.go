package mocks

import (
	"context"
	"sync"

	"github.com/leadmill/leadmill/pkg/protocol"
)

// CollectingSink records notifications for assertions.
type CollectingSink struct {
	mu            sync.Mutex
	notifications []protocol.Notification
}

func NewCollectingSink() *CollectingSink {
	return &CollectingSink{}
}

func (s *CollectingSink) Notify(_ context.Context, notification protocol.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, notification)
}

// Notifications returns a copy of everything recorded so far.
func (s *CollectingSink) Notifications() []protocol.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.Notification, len(s.notifications))
	copy(out, s.notifications)

	return out
}

// Kinds returns the recorded notification kinds in order.
func (s *CollectingSink) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	kinds := make([]string, 0, len(s.notifications))
	for _, n := range s.notifications {
		kinds = append(kinds, n.Kind)
	}

	return kinds
}
