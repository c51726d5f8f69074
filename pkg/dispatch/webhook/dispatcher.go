// Package webhook dispatches workflow webhook actions as HTTP POSTs.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/template"
)

const defaultTimeout = 30 * time.Second

// Dispatcher posts the lead record plus a templated payload to a URL.
type Dispatcher struct {
	url     string
	headers map[string]string
	payload string
	client  *http.Client
}

func NewDispatcher(config map[string]any) (*Dispatcher, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, errors.New("webhook action requires a url")
	}

	headers := make(map[string]string)
	if raw, ok := config["headers"].(map[string]any); ok {
		for k, v := range raw {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	payload, _ := config["payload"].(string)

	timeout := defaultTimeout
	if secs, ok := config["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	return &Dispatcher{
		url:     url,
		headers: headers,
		payload: payload,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (d *Dispatcher) Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*protocol.ActionOutcome, error) {
	triggerData, _ := config["trigger_data"].(map[string]any)

	body, err := d.buildBody(lead, triggerData)
	if err != nil {
		return nil, protocol.NewActionError("webhook", err, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, protocol.NewActionError("webhook", err, false)
	}

	req.Header.Set("Content-Type", "application/json")

	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// Network failures are worth retrying.
		return nil, protocol.NewActionError("webhook", err, true)
	}
	defer func() { _ = resp.Body.Close() }()

	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &protocol.ActionOutcome{
			Detail: fmt.Sprintf("POST %s -> %d", d.url, resp.StatusCode),
			Data:   map[string]any{"status_code": resp.StatusCode},
		}, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, protocol.NewActionError("webhook",
			fmt.Errorf("endpoint returned %d", resp.StatusCode), true)
	default:
		return nil, protocol.NewActionError("webhook",
			fmt.Errorf("endpoint returned %d", resp.StatusCode), false)
	}
}

func (d *Dispatcher) buildBody(lead models.LeadRecord, triggerData map[string]any) ([]byte, error) {
	if d.payload != "" {
		rendered, err := template.Render(d.payload, lead, triggerData)
		if err != nil {
			return nil, fmt.Errorf("render payload: %w", err)
		}

		return []byte(rendered), nil
	}

	return json.Marshal(map[string]any{"lead": lead, "trigger": triggerData})
}
