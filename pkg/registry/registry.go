// Package registry keeps the catalog of action dispatcher factories and
// validates action configs against their declared schemas.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.DispatcherFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.DispatcherFactory),
	}
}

func (r *Registry) Register(factory protocol.DispatcherFactory) {
	r.factories[factory.ID()] = factory
}

// Create builds a dispatcher for the given action kind.
func (r *Registry) Create(kind string, config map[string]any) (protocol.ActionDispatcher, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("action kind %q not registered", kind)
	}

	return factory.Create(config)
}

// Kinds returns the registered action kinds, for discovery endpoints.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}

	return kinds
}

// ActionKind describes a registered dispatcher for discovery endpoints.
type ActionKind struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}

// Describe returns every registered kind with its description and
// config schema.
func (r *Registry) Describe() []ActionKind {
	kinds := make([]ActionKind, 0, len(r.factories))
	for _, factory := range r.factories {
		kinds = append(kinds, ActionKind{
			ID:          factory.ID(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return kinds
}

// ValidateConfig checks an action config against the factory's JSON
// schema. Called at workflow save time so activation never admits a
// config the dispatcher cannot consume.
func (r *Registry) ValidateConfig(kind string, config map[string]any) error {
	factory, ok := r.factories[kind]
	if !ok {
		return fmt.Errorf("action kind %q not registered", kind)
	}

	schemaJSON, err := json.Marshal(factory.Schema())
	if err != nil {
		return fmt.Errorf("marshal schema for %q: %w", kind, err)
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("validate config for %q: %w", kind, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("invalid config for action %q: %s", kind, strings.Join(details, "; "))
	}

	return nil
}
