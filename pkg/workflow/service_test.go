package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/graph"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/persistence/file"
	"github.com/leadmill/leadmill/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, persistence.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC))

	return NewService(store, &graph.Validator{}, clock), store
}

func draftWorkflow() *models.Workflow {
	return &models.Workflow{
		Name: "Welcome Sequence",
		Nodes: []*models.WorkflowNode{
			testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
			testutil.ActionNode("a1", "email", nil, ""),
		},
	}
}

func TestCreateAssignsIdentityAndDraftStatus(t *testing.T) {
	service, _ := newService(t)

	created, err := service.Create(context.Background(), draftWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.GroupID)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
}

func TestUpdateDraftInPlace(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	edited := draftWorkflow()
	edited.Name = "Welcome Sequence v2"

	updated, err := service.Update(ctx, created.ID, edited)
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.GroupID, updated.GroupID)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "Welcome Sequence v2", updated.Name)
}

func TestUpdateActiveCreatesNewDraftVersion(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	active, err := service.Activate(ctx, created.ID)
	require.NoError(t, err)

	edited := draftWorkflow()
	edited.Name = "Welcome Sequence v2"

	draft, err := service.Update(ctx, active.ID, edited)
	require.NoError(t, err)

	// The active version is untouched; the edit lands in a fresh draft.
	assert.NotEqual(t, active.ID, draft.ID)
	assert.Equal(t, active.GroupID, draft.GroupID)
	assert.Equal(t, 2, draft.Version)
	assert.Equal(t, models.WorkflowStatusDraft, draft.Status)

	reloaded, err := service.Get(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, reloaded.Status)
	assert.Equal(t, created.Name, reloaded.Name)
}

func TestUpdateArchivedRejected(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	_, err = service.Archive(ctx, created.ID)
	require.NoError(t, err)

	_, err = service.Update(ctx, created.ID, draftWorkflow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archived")
}

func TestActivateRunsValidation(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	broken := &models.Workflow{
		Name: "No Trigger",
		Nodes: []*models.WorkflowNode{
			testutil.ActionNode("a1", "email", nil, ""),
		},
	}

	created, err := service.Create(ctx, broken)
	require.NoError(t, err)

	_, err = service.Activate(ctx, created.ID)
	require.Error(t, err)

	var result *graph.ValidationResult
	require.True(t, errors.As(err, &result))
	assert.NotEmpty(t, result.Issues)

	// A failed activation leaves the draft untouched.
	reloaded, err := service.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, reloaded.Status)
}

func TestActivateArchivesPreviousActiveVersion(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	v1, err := service.Activate(ctx, created.ID)
	require.NoError(t, err)

	v2draft, err := service.Update(ctx, v1.ID, draftWorkflow())
	require.NoError(t, err)

	v2, err := service.Activate(ctx, v2draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, v2.Status)

	old, err := service.Get(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusArchived, old.Status)

	actives, err := service.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, actives, 1)
	assert.Equal(t, v2.ID, actives[0].ID)
}

func TestPauseAndResume(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	active, err := service.Activate(ctx, created.ID)
	require.NoError(t, err)

	paused, err := service.Pause(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, paused.Status)

	resumed, err := service.Resume(ctx, paused.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusActive, resumed.Status)
}

func TestPauseDraftRejected(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	_, err = service.Pause(ctx, created.ID)
	require.ErrorIs(t, err, models.ErrIllegalTransition)
}

func TestDeleteActiveBlocked(t *testing.T) {
	service, _ := newService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, draftWorkflow())
	require.NoError(t, err)

	active, err := service.Activate(ctx, created.ID)
	require.NoError(t, err)

	err = service.Delete(ctx, active.ID)
	require.ErrorIs(t, err, ErrWorkflowActive)

	_, err = service.Archive(ctx, active.ID)
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, active.ID))

	_, err = service.Get(ctx, active.ID)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}
