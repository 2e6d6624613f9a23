package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/campaignkit/journey/pkg/events"
)

// IngestEventRequest is an external platform event: a contact did something
// that may enroll them into journeys with a matching event trigger.
type IngestEventRequest struct {
	OrganizationID string         `json:"organization_id" validate:"required"`
	EventType      string         `json:"event_type"      validate:"required"`
	ContactID      string         `json:"contact_id"      validate:"required"`
	Data           map[string]any `json:"data,omitempty"`
}

// IngestEvent resolves the enabled event triggers matching the payload and
// puts one enrollment command per matching journey on the bus. Admission is
// the entry guard's call, made by the worker, not here.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	triggers, err := h.persistence.TriggerRepository().FindByEventType(c.Context(), req.OrganizationID, req.EventType)
	if err != nil {
		return handleServiceError(c, err)
	}

	matched := 0

	for _, trigger := range triggers {
		journeyItem, err := h.journeyService.Get(c.Context(), trigger.JourneyID)
		if err != nil {
			return handleServiceError(c, err)
		}

		if !journeyItem.IsEnrollable() {
			continue
		}

		command := events.ContactTriggered{
			BaseEvent: events.NewBaseEvent(events.ContactTriggeredEvent, req.OrganizationID, trigger.JourneyID),
			TriggerID: trigger.ID,
			ContactID: req.ContactID,
			TriggerData: map[string]any{
				"trigger_type": "event",
				"event_type":   req.EventType,
				"data":         req.Data,
			},
		}

		if err := h.publisher.Publish(c.Context(), trigger.JourneyID, command); err != nil {
			h.logger.ErrorContext(c.Context(), "Failed to publish enrollment command",
				"error", err,
				"journey_id", trigger.JourneyID,
				"contact_id", req.ContactID,
			)

			return internalError(c, err)
		}

		matched++
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"matched_journeys": matched,
	})
}
