// Package email dispatches workflow email actions through an outbound
// mail gateway.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/template"
)

// Message is one outbound email.
type Message struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// DedupeKey lets the gateway suppress duplicate sends under retry.
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// Gateway delivers email. The gateway, not the engine, is responsible
// for deduplicating repeated sends of the same DedupeKey.
type Gateway interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher renders the configured templates against the lead record
// and hands the message to the gateway.
type Dispatcher struct {
	gateway Gateway
	to      string
	from    string
	subject string
	body    string
}

func NewDispatcher(gateway Gateway, config map[string]any) (*Dispatcher, error) {
	if gateway == nil {
		return nil, errors.New("email dispatcher requires a gateway")
	}

	to, _ := config["to"].(string)
	if to == "" {
		to = "{{.lead.email}}"
	}

	subject, _ := config["subject"].(string)
	if subject == "" {
		return nil, errors.New("email action requires a subject")
	}

	body, _ := config["body"].(string)
	from, _ := config["from"].(string)

	return &Dispatcher{
		gateway: gateway,
		to:      to,
		from:    from,
		subject: subject,
		body:    body,
	}, nil
}

func (d *Dispatcher) Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*protocol.ActionOutcome, error) {
	triggerData, _ := config["trigger_data"].(map[string]any)
	dedupeKey, _ := config["dedupe_key"].(string)

	msg := Message{From: d.from, DedupeKey: dedupeKey}

	var err error
	if msg.To, err = template.Render(d.to, lead, triggerData); err != nil {
		return nil, protocol.NewActionError("email", fmt.Errorf("render to: %w", err), false)
	}

	if msg.To == "" {
		return nil, protocol.NewActionError("email", errors.New("lead has no email address"), false)
	}

	if msg.Subject, err = template.Render(d.subject, lead, triggerData); err != nil {
		return nil, protocol.NewActionError("email", fmt.Errorf("render subject: %w", err), false)
	}

	if msg.Body, err = template.Render(d.body, lead, triggerData); err != nil {
		return nil, protocol.NewActionError("email", fmt.Errorf("render body: %w", err), false)
	}

	if err := d.gateway.Send(ctx, msg); err != nil {
		var actionErr *protocol.ActionError
		if errors.As(err, &actionErr) {
			return nil, actionErr
		}

		// Gateway failures default to transient; mail providers flap.
		return nil, protocol.NewActionError("email", err, true)
	}

	return &protocol.ActionOutcome{
		Detail: fmt.Sprintf("email sent to %s", msg.To),
		Data:   map[string]any{"to": msg.To, "subject": msg.Subject},
	}, nil
}
