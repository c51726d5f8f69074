package crmupdate

import (
	"context"
	"errors"
	"testing"

	"github.com/leadmill/leadmill/pkg/leads"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDispatcherValidation(t *testing.T) {
	store := leads.NewMemoryStore()

	_, err := NewDispatcher(nil, map[string]any{"fields": map[string]any{"x": 1}})
	require.Error(t, err)

	_, err = NewDispatcher(store, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one field")
}

func TestInvokeUpdatesLead(t *testing.T) {
	store := leads.NewMemoryStore()
	store.Seed("lead-1", models.LeadRecord{"name": "Ada", "stage": "new"})

	d, err := NewDispatcher(store, map[string]any{
		"fields": map[string]any{"stage": "contacted", "score": 85},
	})
	require.NoError(t, err)

	outcome, err := d.Invoke(context.Background(),
		map[string]any{"lead_id": "lead-1"},
		models.LeadRecord{"name": "Ada"})
	require.NoError(t, err)
	assert.Contains(t, outcome.Detail, "2 field(s)")

	record, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "contacted", record["stage"])
	assert.Equal(t, 85, record["score"])
	assert.Equal(t, "Ada", record["name"])
}

func TestInvokeRendersTemplatedValues(t *testing.T) {
	store := leads.NewMemoryStore()
	store.Seed("lead-1", models.LeadRecord{"name": "Ada"})

	d, err := NewDispatcher(store, map[string]any{
		"fields": map[string]any{"note": "Contacted {{.lead.name}} via {{.trigger.channel}}"},
	})
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(),
		map[string]any{
			"lead_id":      "lead-1",
			"trigger_data": map[string]any{"channel": "email"},
		},
		models.LeadRecord{"name": "Ada"})
	require.NoError(t, err)

	record, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Contacted Ada via email", record["note"])
}

func TestInvokeMissingLeadIsPermanent(t *testing.T) {
	store := leads.NewMemoryStore()

	d, err := NewDispatcher(store, map[string]any{
		"fields": map[string]any{"stage": "contacted"},
	})
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(),
		map[string]any{"lead_id": "lead-404"},
		models.LeadRecord{})
	require.Error(t, err)

	var actionErr *protocol.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.False(t, actionErr.Transient)
}

func TestInvokeWithoutLeadID(t *testing.T) {
	store := leads.NewMemoryStore()

	d, err := NewDispatcher(store, map[string]any{
		"fields": map[string]any{"stage": "contacted"},
	})
	require.NoError(t, err)

	_, err = d.Invoke(context.Background(), map[string]any{}, models.LeadRecord{})
	require.Error(t, err)
}
