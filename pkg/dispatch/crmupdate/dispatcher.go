// Package crmupdate dispatches CRM field updates through the LeadStore.
// This is the only action that mutates lead data, and it still goes
// through the collaborator interface rather than storage directly.
package crmupdate

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/template"
)

type Dispatcher struct {
	store  protocol.LeadStore
	fields map[string]any
}

func NewDispatcher(store protocol.LeadStore, config map[string]any) (*Dispatcher, error) {
	if store == nil {
		return nil, errors.New("crm_update dispatcher requires a lead store")
	}

	fields, _ := config["fields"].(map[string]any)
	if len(fields) == 0 {
		return nil, errors.New("crm_update action requires at least one field")
	}

	return &Dispatcher{store: store, fields: fields}, nil
}

func (d *Dispatcher) Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*protocol.ActionOutcome, error) {
	leadID, _ := config["lead_id"].(string)
	if leadID == "" {
		return nil, protocol.NewActionError("crm_update", errors.New("missing lead id"), false)
	}

	triggerData, _ := config["trigger_data"].(map[string]any)

	patch := make(models.LeadPatch, len(d.fields))

	for field, value := range d.fields {
		if s, ok := value.(string); ok {
			rendered, err := template.Render(s, lead, triggerData)
			if err != nil {
				return nil, protocol.NewActionError("crm_update",
					fmt.Errorf("render field %q: %w", field, err), false)
			}

			patch[field] = rendered

			continue
		}

		patch[field] = value
	}

	if err := d.store.Update(ctx, leadID, patch); err != nil {
		if errors.Is(err, protocol.ErrLeadNotFound) {
			return nil, protocol.NewActionError("crm_update", err, false)
		}

		return nil, protocol.NewActionError("crm_update", err, true)
	}

	return &protocol.ActionOutcome{
		Detail: fmt.Sprintf("updated %d field(s)", len(patch)),
		Data:   map[string]any{"fields": patch},
	}, nil
}
