package crmupdate

import "github.com/leadmill/leadmill/pkg/protocol"

type Factory struct {
	store protocol.LeadStore
}

func NewFactory(store protocol.LeadStore) protocol.DispatcherFactory {
	return &Factory{store: store}
}

func (f *Factory) Create(config map[string]any) (protocol.ActionDispatcher, error) {
	return NewDispatcher(f.store, config)
}

func (f *Factory) ID() string {
	return "crm_update"
}

func (f *Factory) Description() string {
	return "Applies a field patch to the lead record through the lead store."
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"fields": map[string]any{
				"type":          "object",
				"description":   "Field name to new value. String values support lead templates.",
				"minProperties": 1,
			},
		},
		"required": []any{"fields"},
	}
}
