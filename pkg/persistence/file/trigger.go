package file

import (
	"context"

	"github.com/campaignkit/journey/pkg/models"
)

// TriggerRepository answers trigger lookups by scanning journey documents.
// Triggers live on the journey, not on versions.
type TriggerRepository struct {
	journeys *JourneyRepository
}

func (tr *TriggerRepository) FindByEventType(ctx context.Context, organizationID, eventType string) ([]*models.JourneyTrigger, error) {
	journeys, err := tr.journeys.ListByOrganization(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.JourneyTrigger, 0)

	for _, journey := range journeys {
		for _, trigger := range journey.Triggers {
			if trigger.Enabled && trigger.Type == models.TriggerTypeEvent && trigger.EventType == eventType {
				trigger.JourneyID = journey.ID
				triggers = append(triggers, trigger)
			}
		}
	}

	return triggers, nil
}

func (tr *TriggerRepository) FindSchedules(ctx context.Context) ([]*models.JourneyTrigger, error) {
	journeys, err := tr.journeys.ListByOrganization(ctx, "")
	if err != nil {
		return nil, err
	}

	triggers := make([]*models.JourneyTrigger, 0)

	for _, journey := range journeys {
		for _, trigger := range journey.Triggers {
			if trigger.Enabled && trigger.Type == models.TriggerTypeSchedule {
				trigger.JourneyID = journey.ID
				triggers = append(triggers, trigger)
			}
		}
	}

	return triggers, nil
}
