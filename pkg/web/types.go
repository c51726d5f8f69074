// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/leadmill/leadmill/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	Owner       string                  `json:"owner"`
	Nodes       []*models.WorkflowNode  `json:"nodes"`
	Settings    models.WorkflowSettings `json:"settings"`
}

// UpdateWorkflowRequest represents the request body for updating a workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string                  `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description *string                  `json:"description,omitempty"`
	Owner       *string                  `json:"owner,omitempty"`
	Nodes       []*models.WorkflowNode   `json:"nodes,omitempty"`
	Settings    *models.WorkflowSettings `json:"settings,omitempty"`
}

// LeadEventRequest represents an incoming lead event to publish for
// trigger matching.
type LeadEventRequest struct {
	Type   string         `json:"type"    validate:"required,oneof=lead_created lead_updated"`
	LeadID string         `json:"lead_id" validate:"required"`
	Field  string         `json:"field,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// ValidationResponse carries the issues found by a dry-run validation.
type ValidationResponse struct {
	Valid  bool `json:"valid"`
	Issues any  `json:"issues"`
}
