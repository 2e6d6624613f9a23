package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// JourneyRepository stores journey definitions. The draft graph, settings and
// triggers are JSONB columns; only fields the engine filters on are relational.
type JourneyRepository struct {
	db *sql.DB
}

const journeyColumns = `id, organization_id, name, description, status, settings, steps, entry_step_id, triggers, current_version_id, owner, created_at, updated_at, published_at`

func scanJourney(row interface{ Scan(...any) error }) (*models.Journey, error) {
	var (
		journey          models.Journey
		settingsRaw      []byte
		stepsRaw         []byte
		triggersRaw      []byte
		currentVersionID sql.NullString
		publishedAt      sql.NullTime
	)

	err := row.Scan(
		&journey.ID, &journey.OrganizationID, &journey.Name, &journey.Description,
		&journey.Status, &settingsRaw, &stepsRaw, &journey.EntryStepID, &triggersRaw,
		&currentVersionID, &journey.Owner, &journey.CreatedAt, &journey.UpdatedAt, &publishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(settingsRaw, &journey.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey settings: %w", err)
	}

	if err := json.Unmarshal(stepsRaw, &journey.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey steps: %w", err)
	}

	if err := json.Unmarshal(triggersRaw, &journey.Triggers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey triggers: %w", err)
	}

	if currentVersionID.Valid {
		journey.CurrentVersionID = currentVersionID.String
	}

	if publishedAt.Valid {
		journey.PublishedAt = &publishedAt.Time
	}

	return &journey, nil
}

func (jr *JourneyRepository) GetByID(ctx context.Context, id string) (*models.Journey, error) {
	row := jr.db.QueryRowContext(ctx, `SELECT `+journeyColumns+` FROM journeys WHERE id = $1`, id)

	journey, err := scanJourney(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewJourneyError("GetByID", id, persistence.ErrJourneyNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get journey %s: %w", id, err)
	}

	return journey, nil
}

func (jr *JourneyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Journey, error) {
	rows, err := jr.db.QueryContext(ctx,
		`SELECT `+journeyColumns+` FROM journeys WHERE organization_id = $1 ORDER BY created_at`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}
	defer rows.Close()

	journeys := make([]*models.Journey, 0)

	for rows.Next() {
		journey, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}

		journeys = append(journeys, journey)
	}

	return journeys, rows.Err()
}

func (jr *JourneyRepository) Save(ctx context.Context, journey *models.Journey) error {
	now := time.Now().UTC()
	if journey.CreatedAt.IsZero() {
		journey.CreatedAt = now
	}

	journey.UpdatedAt = now

	settingsRaw, err := json.Marshal(journey.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal journey settings: %w", err)
	}

	stepsRaw, err := json.Marshal(journey.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal journey steps: %w", err)
	}

	triggersRaw, err := json.Marshal(journey.Triggers)
	if err != nil {
		return fmt.Errorf("failed to marshal journey triggers: %w", err)
	}

	var currentVersionID any
	if journey.CurrentVersionID != "" {
		currentVersionID = journey.CurrentVersionID
	}

	_, err = jr.db.ExecContext(ctx, `
		INSERT INTO journeys (`+journeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			settings = EXCLUDED.settings,
			steps = EXCLUDED.steps,
			entry_step_id = EXCLUDED.entry_step_id,
			triggers = EXCLUDED.triggers,
			current_version_id = EXCLUDED.current_version_id,
			owner = EXCLUDED.owner,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at`,
		journey.ID, journey.OrganizationID, journey.Name, journey.Description,
		journey.Status, settingsRaw, stepsRaw, journey.EntryStepID, triggersRaw,
		currentVersionID, journey.Owner, journey.CreatedAt, journey.UpdatedAt, journey.PublishedAt,
	)
	if err != nil {
		return persistence.NewJourneyError("Save", journey.ID, err)
	}

	return nil
}

func (jr *JourneyRepository) Delete(ctx context.Context, id string) error {
	_, err := jr.db.ExecContext(ctx, `DELETE FROM journeys WHERE id = $1`, id)
	if err != nil {
		return persistence.NewJourneyError("Delete", id, err)
	}

	return nil
}
