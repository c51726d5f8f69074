package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/leadmill/leadmill/pkg/graph"
	"github.com/leadmill/leadmill/pkg/models"
	"github.com/leadmill/leadmill/pkg/persistence"
	"github.com/leadmill/leadmill/pkg/workflow"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service layer errors onto problem responses.
// Graph validation failures carry every issue, so the editor can mark
// all offending nodes in one round trip.
func handleServiceError(c fiber.Ctx, err error) error {
	var result *graph.ValidationResult
	if errors.As(err, &result) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ValidationResponse{
			Valid:  false,
			Issues: result.Issues,
		})
	}

	switch {
	case errors.Is(err, persistence.ErrWorkflowNotFound):
		return notFound(c, "workflow not found")
	case errors.Is(err, persistence.ErrInstanceNotFound):
		return notFound(c, "instance not found")
	case errors.Is(err, models.ErrIllegalTransition):
		return conflict(c, err.Error())
	case errors.Is(err, workflow.ErrWorkflowActive):
		return conflict(c, err.Error())
	default:
		return internalError(c, err)
	}
}
