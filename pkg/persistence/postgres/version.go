package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// VersionRepository stores published snapshots. Rows are insert-only; the
// unique (journey_id, number) constraint backs the monotonic numbering.
type VersionRepository struct {
	db *sql.DB
}

const versionColumns = `id, journey_id, organization_id, number, entry_step_id, steps, settings, created_at`

func scanVersion(row interface{ Scan(...any) error }) (*models.JourneyVersion, error) {
	var (
		version     models.JourneyVersion
		stepsRaw    []byte
		settingsRaw []byte
	)

	err := row.Scan(
		&version.ID, &version.JourneyID, &version.OrganizationID, &version.Number,
		&version.EntryStepID, &stepsRaw, &settingsRaw, &version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stepsRaw, &version.Steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version steps: %w", err)
	}

	if err := json.Unmarshal(settingsRaw, &version.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal version settings: %w", err)
	}

	return &version, nil
}

func (vr *VersionRepository) Save(ctx context.Context, version *models.JourneyVersion) error {
	stepsRaw, err := json.Marshal(version.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal version steps: %w", err)
	}

	settingsRaw, err := json.Marshal(version.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal version settings: %w", err)
	}

	_, err = vr.db.ExecContext(ctx, `
		INSERT INTO journey_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		version.ID, version.JourneyID, version.OrganizationID, version.Number,
		version.EntryStepID, stepsRaw, settingsRaw, version.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save version %s: %w", version.ID, err)
	}

	return nil
}

func (vr *VersionRepository) GetByID(ctx context.Context, id string) (*models.JourneyVersion, error) {
	row := vr.db.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM journey_versions WHERE id = $1`, id)

	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrVersionNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get version %s: %w", id, err)
	}

	return version, nil
}

func (vr *VersionRepository) LatestByJourney(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	row := vr.db.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM journey_versions WHERE journey_id = $1 ORDER BY number DESC LIMIT 1`, journeyID)

	version, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNoPublishedVersion
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get latest version for journey %s: %w", journeyID, err)
	}

	return version, nil
}

func (vr *VersionRepository) ListByJourney(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	rows, err := vr.db.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM journey_versions WHERE journey_id = $1 ORDER BY number`, journeyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions for journey %s: %w", journeyID, err)
	}
	defer rows.Close()

	versions := make([]*models.JourneyVersion, 0)

	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}

		versions = append(versions, version)
	}

	return versions, rows.Err()
}
