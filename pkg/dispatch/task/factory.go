package task

import "github.com/leadmill/leadmill/pkg/protocol"

type Factory struct {
	creator Creator
}

func NewFactory(creator Creator) protocol.DispatcherFactory {
	return &Factory{creator: creator}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionDispatcher, error) {
	return NewDispatcher(f.creator, config)
}

func (f *Factory) ID() string {
	return "task"
}

func (f *Factory) Description() string {
	return "Creates a follow-up task for the lead's owner."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string", "minLength": 1},
			"notes":       map[string]any{"type": "string"},
			"assignee":    map[string]any{"type": "string"},
			"due_in_days": map[string]any{"type": "number", "minimum": 0},
		},
		"required": []any{"title"},
	}
}
