package leads

import (
	"context"
	"testing"

	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGet(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("lead-1", models.LeadRecord{"source": "Website", "budget": 250000})

	record, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Website", record["source"])

	_, err = store.Get(context.Background(), "lead-404")
	require.ErrorIs(t, err, protocol.ErrLeadNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("lead-1", models.LeadRecord{"source": "Website"})

	record, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)

	// Mutating the returned record must not leak into the store.
	record["source"] = "tampered"

	fresh, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "Website", fresh["source"])
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	store.Seed("lead-1", models.LeadRecord{"source": "Website", "stage": "new"})

	err := store.Update(context.Background(), "lead-1", models.LeadPatch{
		"stage":   "contacted",
		"replied": true,
	})
	require.NoError(t, err)

	record, err := store.Get(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "contacted", record["stage"])
	assert.Equal(t, true, record["replied"])
	assert.Equal(t, "Website", record["source"])

	err = store.Update(context.Background(), "lead-404", models.LeadPatch{"x": 1})
	require.ErrorIs(t, err, protocol.ErrLeadNotFound)
}
