// Package web provides HTTP handlers and REST API endpoints for journey
// management.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/campaignkit/journey/pkg/dispatch"
	"github.com/campaignkit/journey/pkg/eventbus"
	"github.com/campaignkit/journey/pkg/journey"
	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

type APIHandlers struct {
	logger            *slog.Logger
	journeyService    *journey.Service
	publishingService *journey.PublishingService
	persistence       persistence.Persistence
	validator         *validator.Validate
	registry          *dispatch.Registry
	publisher         eventbus.EventPublisher
}

func NewAPIHandlers(
	logger *slog.Logger,
	journeyService *journey.Service,
	publishingService *journey.PublishingService,
	persistence persistence.Persistence,
	validator *validator.Validate,
	registry *dispatch.Registry,
	publisher eventbus.EventPublisher,
) *APIHandlers {
	return &APIHandlers{
		logger:            logger.With("module", "web"),
		journeyService:    journeyService,
		publishingService: publishingService,
		persistence:       persistence,
		validator:         validator,
		registry:          registry,
		publisher:         publisher,
	}
}

func (h *APIHandlers) GetJourneys(c fiber.Ctx) error {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		return badRequest(c, "organization_id query parameter is required")
	}

	journeys, err := h.journeyService.List(c.Context(), organizationID)
	if err != nil {
		return handleServiceError(c, err)
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.JourneyStatus(statusStr)
		filtered := make([]*models.Journey, 0, len(journeys))

		for _, j := range journeys {
			if j.Status == status {
				filtered = append(filtered, j)
			}
		}

		journeys = filtered
	}

	return c.JSON(fiber.Map{
		"journeys":    journeys,
		"total_count": len(journeys),
	})
}

func (h *APIHandlers) GetJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	j, err := h.journeyService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(j)
}

func (h *APIHandlers) CreateJourney(c fiber.Ctx) error {
	var req CreateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	j := &models.Journey{
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		Owner:          req.Owner,
		Settings:       req.Settings,
		Steps:          req.Steps,
		EntryStepID:    req.EntryStepID,
		Triggers:       req.Triggers,
	}

	created, err := h.journeyService.Create(c.Context(), j)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	var req UpdateJourneyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.journeyService.Get(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}

	if req.Description != nil {
		existing.Description = *req.Description
	}

	if req.Owner != nil {
		existing.Owner = *req.Owner
	}

	if req.Settings != nil {
		existing.Settings = *req.Settings
	}

	if req.Steps != nil {
		existing.Steps = req.Steps
	}

	if req.EntryStepID != nil {
		existing.EntryStepID = *req.EntryStepID
	}

	if req.Triggers != nil {
		existing.Triggers = req.Triggers
	}

	updated, err := h.journeyService.Update(c.Context(), id, existing)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	if err := h.journeyService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ArchiveJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	archived, err := h.journeyService.Archive(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(archived)
}

func (h *APIHandlers) PublishJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	version, lifecycleEvents, err := h.publishingService.Publish(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.publishEvents(c, id, lifecycleEvents)

	return c.JSON(PublishJourneyResponse{
		VersionID:     version.ID,
		VersionNumber: version.Number,
		JourneyID:     version.JourneyID,
	})
}

func (h *APIHandlers) PauseJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	lifecycleEvents, err := h.journeyService.Pause(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.publishEvents(c, id, lifecycleEvents)

	return c.JSON(fiber.Map{"id": id, "status": models.JourneyStatusPaused})
}

func (h *APIHandlers) ResumeJourney(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	lifecycleEvents, err := h.journeyService.Resume(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	h.publishEvents(c, id, lifecycleEvents)

	return c.JSON(fiber.Map{"id": id, "status": models.JourneyStatusPublished})
}

func (h *APIHandlers) GetJourneyVersions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	versions, err := h.persistence.VersionRepository().ListByJourney(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"versions":    versions,
		"total_count": len(versions),
	})
}

func (h *APIHandlers) GetJourneyExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Journey ID is required")
	}

	executions, err := h.journeyService.ListExecutions(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Journey API is healthy"
	httpStatus := http.StatusOK

	repositoryErr := h.persistence.HealthCheck(c.Context())
	if repositoryErr != nil {
		status = "unhealthy"
		message = "Journey API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	repositoryCheck := "ok"
	if repositoryErr != nil {
		repositoryCheck = repositoryErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
			"actions":    h.registry.ActionTypes(),
		},
		"timestamp": time.Now().UTC(),
	})
}

// publishEvents puts lifecycle events on the bus. A publish failure does not
// fail the request, the state change is already durable; workers converge on
// the stored status on their next read.
func (h *APIHandlers) publishEvents(c fiber.Ctx, journeyID string, lifecycleEvents []eventbus.Event) {
	for _, event := range lifecycleEvents {
		if err := h.publisher.Publish(c.Context(), journeyID, event); err != nil {
			h.logger.ErrorContext(c.Context(), "Failed to publish lifecycle event",
				"error", err,
				"journey_id", journeyID,
			)
		}
	}
}
