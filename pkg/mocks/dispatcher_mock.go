// Package mocks provides testify mocks and stubs for the protocol
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of protocol.ActionDispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*protocol.ActionOutcome, error) {
	args := m.Called(ctx, config, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*protocol.ActionOutcome), args.Error(1)
}

// StubFactory registers a fixed dispatcher under the given kind. The
// schema accepts any object.
type StubFactory struct {
	Kind       string
	Dispatcher protocol.ActionDispatcher
	CreateErr  error
}

func (f *StubFactory) Create(_ map[string]any) (protocol.ActionDispatcher, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	return f.Dispatcher, nil
}

func (f *StubFactory) ID() string { return f.Kind }

func (f *StubFactory) Description() string { return "stub " + f.Kind }

func (f *StubFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}
