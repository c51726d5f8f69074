package sms

import "github.com/leadmill/leadmill/pkg/protocol"

type Factory struct {
	gateway Gateway
}

func NewFactory(gateway Gateway) protocol.DispatcherFactory {
	return &Factory{gateway: gateway}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionDispatcher, error) {
	return NewDispatcher(f.gateway, config)
}

func (f *Factory) ID() string {
	return "sms"
}

func (f *Factory) Description() string {
	return "Sends a templated text message to the lead's phone number."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"to": map[string]any{
				"type":        "string",
				"description": "Recipient template. Defaults to the lead's phone field.",
			},
			"body": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"body"},
	}
}
