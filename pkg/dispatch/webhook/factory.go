package webhook

import "github.com/leadmill/leadmill/pkg/protocol"

type Factory struct{}

func NewFactory() protocol.DispatcherFactory {
	return &Factory{}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionDispatcher, error) {
	return NewDispatcher(config)
}

func (f *Factory) ID() string {
	return "webhook"
}

func (f *Factory) Description() string {
	return "Posts the lead record, or a templated JSON payload, to an external URL."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Destination URL for the POST request.",
			},
			"payload": map[string]any{
				"type":        "string",
				"description": "Optional JSON payload template. Defaults to the full lead record.",
			},
			"headers": map[string]any{
				"type":        "object",
				"description": "Extra request headers.",
			},
			"timeout_seconds": map[string]any{
				"type":    "number",
				"minimum": 1,
			},
		},
		"required": []any{"url"},
	}
}
