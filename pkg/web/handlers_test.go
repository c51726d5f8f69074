package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/jonboulle/clockwork"
	"github.com/leadmill/leadmill/pkg/channels/gochannel"
	"github.com/leadmill/leadmill/pkg/eventbus"
	"github.com/leadmill/leadmill/pkg/graph"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/persistence/file"
	"github.com/leadmill/leadmill/pkg/registry"
	"github.com/leadmill/leadmill/pkg/testutil"
	"github.com/leadmill/leadmill/pkg/web"
	"github.com/leadmill/leadmill/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *workflow.Service, persistence.Persistence) {
	t.Helper()

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC))
	graphValidator := &graph.Validator{}
	workflowService := workflow.NewService(store, graphValidator, clock)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)
	bus := eventbus.NewWatermillEventBus(pub, sub)

	handlers := web.NewAPIHandlers(
		workflowService,
		store,
		validator.New(validator.WithRequiredStructEnabled()),
		graphValidator,
		registry.NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil))),
		bus,
		clock,
	)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/validate", handlers.ValidateWorkflow)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/pause", handlers.PauseWorkflow)
	w.Post("/:id/resume", handlers.ResumeWorkflow)
	w.Post("/:id/archive", handlers.ArchiveWorkflow)
	w.Get("/:id/instances", handlers.GetWorkflowInstances)

	i := app.Group("/instances")
	i.Get("/:id", handlers.GetInstance)
	i.Post("/:id/cancel", handlers.CancelInstance)

	app.Post("/events/leads", handlers.PublishLeadEvent)
	app.Get("/actions", handlers.GetActionKinds)

	return app, workflowService, store
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeWorkflow(t *testing.T, resp *http.Response) models.Workflow {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var w models.Workflow
	require.NoError(t, json.Unmarshal(body, &w))

	return w
}

func validNodes() []*models.WorkflowNode {
	return []*models.WorkflowNode{
		testutil.TriggerNode("t1", models.TriggerLeadCreated, "a1"),
		testutil.ActionNode("a1", "email", nil, ""),
	}
}

func TestCreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    web.CreateWorkflowRequest
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Name:  "Welcome Sequence",
				Owner: "sales-ops",
				Nodes: validNodes(),
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			requestBody:    web.CreateWorkflowRequest{Owner: "sales-ops"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "name too short",
			requestBody:    web.CreateWorkflowRequest{Name: "Hi"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _, _ := setupTestApp(t)

			resp := postJSON(t, app, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				created := decodeWorkflow(t, resp)
				assert.NotEmpty(t, created.ID)
				assert.Equal(t, models.WorkflowStatusDraft, created.Status)
				assert.Equal(t, 1, created.Version)
			}
		})
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/workflows/missing", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestActivateInvalidWorkflowReturnsIssues(t *testing.T) {
	t.Parallel()

	app, service, _ := setupTestApp(t)

	created, err := service.Create(context.Background(), &models.Workflow{
		Name: "No Trigger",
		Nodes: []*models.WorkflowNode{
			testutil.ActionNode("a1", "email", nil, ""),
		},
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/workflows/"+created.ID+"/activate", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var validation web.ValidationResponse
	require.NoError(t, json.Unmarshal(body, &validation))
	assert.False(t, validation.Valid)
	assert.NotEmpty(t, validation.Issues)
}

func TestWorkflowLifecycleEndpoints(t *testing.T) {
	t.Parallel()

	app, service, _ := setupTestApp(t)

	created, err := service.Create(context.Background(), &models.Workflow{
		Name:  "Welcome Sequence",
		Nodes: validNodes(),
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/workflows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.WorkflowStatusActive, decodeWorkflow(t, resp).Status)

	resp = postJSON(t, app, "/workflows/"+created.ID+"/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.WorkflowStatusPaused, decodeWorkflow(t, resp).Status)

	resp = postJSON(t, app, "/workflows/"+created.ID+"/resume", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.WorkflowStatusActive, decodeWorkflow(t, resp).Status)

	// Deleting while active conflicts; archive first.
	req := httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = postJSON(t, app, "/workflows/"+created.ID+"/archive", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodDelete, "/workflows/"+created.ID, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestPauseDraftConflicts(t *testing.T) {
	t.Parallel()

	app, service, _ := setupTestApp(t)

	created, err := service.Create(context.Background(), &models.Workflow{
		Name:  "Welcome Sequence",
		Nodes: validNodes(),
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/workflows/"+created.ID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestValidateWorkflowDryRun(t *testing.T) {
	t.Parallel()

	app, service, _ := setupTestApp(t)

	created, err := service.Create(context.Background(), &models.Workflow{
		Name:  "Welcome Sequence",
		Nodes: validNodes(),
	})
	require.NoError(t, err)

	resp := postJSON(t, app, "/workflows/"+created.ID+"/validate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var validation web.ValidationResponse
	require.NoError(t, json.Unmarshal(body, &validation))
	assert.True(t, validation.Valid)

	// The dry run does not change the status.
	reloaded, err := service.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusDraft, reloaded.Status)
}

func TestCancelInstance(t *testing.T) {
	t.Parallel()

	app, _, store := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, store.Instances().Save(ctx, &models.WorkflowInstance{
		ID:         "inst-1",
		WorkflowID: "wf-1",
		LeadID:     "lead-1",
		Status:     models.InstanceStatusRunning,
		StartedAt:  time.Now().UTC(),
	}))

	resp := postJSON(t, app, "/instances/inst-1/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	saved, err := store.Instances().GetByID(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstanceStatusCancelled, saved.Status)
	require.NotNil(t, saved.FinishedAt)

	// Cancelling a finished instance conflicts.
	resp = postJSON(t, app, "/instances/inst-1/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPublishLeadEvent(t *testing.T) {
	t.Parallel()

	app, _, _ := setupTestApp(t)

	resp := postJSON(t, app, "/events/leads", web.LeadEventRequest{
		Type:   "lead_created",
		LeadID: "lead-1",
		Data:   map[string]any{"source": "Website"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.NotEmpty(t, out["event_id"])

	resp = postJSON(t, app, "/events/leads", web.LeadEventRequest{
		Type:   "lead_deleted",
		LeadID: "lead-1",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListWorkflowsByStatus(t *testing.T) {
	t.Parallel()

	app, service, _ := setupTestApp(t)
	ctx := context.Background()

	created, err := service.Create(ctx, &models.Workflow{Name: "Welcome Sequence", Nodes: validNodes()})
	require.NoError(t, err)

	_, err = service.Activate(ctx, created.ID)
	require.NoError(t, err)

	_, err = service.Create(ctx, &models.Workflow{Name: "Draft Only", Nodes: validNodes()})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/workflows/?status=active", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out struct {
		Workflows []*models.Workflow `json:"workflows"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Workflows, 1)
	assert.Equal(t, created.ID, out.Workflows[0].ID)
}
