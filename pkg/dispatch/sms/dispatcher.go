// Package sms dispatches workflow SMS actions through an outbound
// messaging gateway.
package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/template"
)

// Message is one outbound text message.
type Message struct {
	To        string `json:"to"`
	Body      string `json:"body"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// Gateway delivers SMS and owns retry deduplication.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

type Dispatcher struct {
	gateway Gateway
	to      string
	body    string
}

func NewDispatcher(gateway Gateway, config map[string]any) (*Dispatcher, error) {
	if gateway == nil {
		return nil, errors.New("sms dispatcher requires a gateway")
	}

	body, _ := config["body"].(string)
	if body == "" {
		return nil, errors.New("sms action requires a body")
	}

	to, _ := config["to"].(string)
	if to == "" {
		to = "{{.lead.phone}}"
	}

	return &Dispatcher{gateway: gateway, to: to, body: body}, nil
}

func (d *Dispatcher) Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*protocol.ActionOutcome, error) {
	triggerData, _ := config["trigger_data"].(map[string]any)
	dedupeKey, _ := config["dedupe_key"].(string)

	to, err := template.Render(d.to, lead, triggerData)
	if err != nil {
		return nil, protocol.NewActionError("sms", fmt.Errorf("render to: %w", err), false)
	}

	if to == "" {
		return nil, protocol.NewActionError("sms", errors.New("lead has no phone number"), false)
	}

	body, err := template.Render(d.body, lead, triggerData)
	if err != nil {
		return nil, protocol.NewActionError("sms", fmt.Errorf("render body: %w", err), false)
	}

	if err := d.gateway.Send(ctx, Message{To: to, Body: body, DedupeKey: dedupeKey}); err != nil {
		var actionErr *protocol.ActionError
		if errors.As(err, &actionErr) {
			return nil, actionErr
		}

		return nil, protocol.NewActionError("sms", err, true)
	}

	return &protocol.ActionOutcome{
		Detail: fmt.Sprintf("sms sent to %s", to),
		Data:   map[string]any{"to": to},
	}, nil
}
