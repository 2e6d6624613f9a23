package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/campaignkit/journey/pkg/models"
)

// TriggerRepository unpacks the triggers JSONB column of matching journeys.
type TriggerRepository struct {
	db *sql.DB
}

func (tr *TriggerRepository) collect(ctx context.Context, query string, args ...any) ([]*models.JourneyTrigger, error) {
	rows, err := tr.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query triggers: %w", err)
	}
	defer rows.Close()

	triggers := make([]*models.JourneyTrigger, 0)

	for rows.Next() {
		var (
			journeyID  string
			triggerRaw []byte
		)

		if err := rows.Scan(&journeyID, &triggerRaw); err != nil {
			return nil, err
		}

		var trigger models.JourneyTrigger
		if err := json.Unmarshal(triggerRaw, &trigger); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger for journey %s: %w", journeyID, err)
		}

		trigger.JourneyID = journeyID
		triggers = append(triggers, &trigger)
	}

	return triggers, rows.Err()
}

func (tr *TriggerRepository) FindByEventType(ctx context.Context, organizationID, eventType string) ([]*models.JourneyTrigger, error) {
	return tr.collect(ctx, `
		SELECT j.id, t.value
		FROM journeys j, jsonb_array_elements(j.triggers) t
		WHERE j.organization_id = $1
		  AND t.value->>'type' = 'event'
		  AND t.value->>'event_type' = $2
		  AND (t.value->>'enabled')::boolean`, organizationID, eventType)
}

func (tr *TriggerRepository) FindSchedules(ctx context.Context) ([]*models.JourneyTrigger, error) {
	return tr.collect(ctx, `
		SELECT j.id, t.value
		FROM journeys j, jsonb_array_elements(j.triggers) t
		WHERE t.value->>'type' = 'schedule'
		  AND (t.value->>'enabled')::boolean`)
}
