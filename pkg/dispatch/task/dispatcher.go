// Package task dispatches follow-up task creation for sales reps.
package task

import (
	"context"
	"errors"
	"fmt"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/leadmill/leadmill/pkg/template"
)

// Task is one follow-up item handed to the task service.
type Task struct {
	LeadID    string `json:"lead_id"`
	Title     string `json:"title"`
	Notes     string `json:"notes,omitempty"`
	Assignee  string `json:"assignee,omitempty"`
	DueInDays int    `json:"due_in_days,omitempty"`
	DedupeKey string `json:"dedupe_key,omitempty"`
}

// Creator records tasks. Implemented by the surrounding application.
type Creator interface {
	CreateTask(ctx context.Context, task Task) error
}

type Dispatcher struct {
	creator   Creator
	title     string
	notes     string
	assignee  string
	dueInDays int
}

func NewDispatcher(creator Creator, config map[string]any) (*Dispatcher, error) {
	if creator == nil {
		return nil, errors.New("task dispatcher requires a task creator")
	}

	title, _ := config["title"].(string)
	if title == "" {
		return nil, errors.New("task action requires a title")
	}

	notes, _ := config["notes"].(string)
	assignee, _ := config["assignee"].(string)

	dueInDays := 0
	if v, ok := config["due_in_days"].(float64); ok {
		dueInDays = int(v)
	}

	return &Dispatcher{
		creator:   creator,
		title:     title,
		notes:     notes,
		assignee:  assignee,
		dueInDays: dueInDays,
	}, nil
}

func (d *Dispatcher) Invoke(ctx context.Context, config map[string]any, lead models.LeadRecord) (*protocol.ActionOutcome, error) {
	leadID, _ := config["lead_id"].(string)
	triggerData, _ := config["trigger_data"].(map[string]any)
	dedupeKey, _ := config["dedupe_key"].(string)

	title, err := template.Render(d.title, lead, triggerData)
	if err != nil {
		return nil, protocol.NewActionError("task", fmt.Errorf("render title: %w", err), false)
	}

	notes, err := template.Render(d.notes, lead, triggerData)
	if err != nil {
		return nil, protocol.NewActionError("task", fmt.Errorf("render notes: %w", err), false)
	}

	taskItem := Task{
		LeadID:    leadID,
		Title:     title,
		Notes:     notes,
		Assignee:  d.assignee,
		DueInDays: d.dueInDays,
		DedupeKey: dedupeKey,
	}

	if err := d.creator.CreateTask(ctx, taskItem); err != nil {
		return nil, protocol.NewActionError("task", err, true)
	}

	return &protocol.ActionOutcome{
		Detail: fmt.Sprintf("task %q created", title),
		Data:   map[string]any{"title": title, "assignee": d.assignee},
	}, nil
}
