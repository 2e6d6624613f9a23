package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"context"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// JourneyRepository stores one JSON document per journey under
// <root>/journeys.
type JourneyRepository struct {
	root string
	mu   *sync.Mutex
}

func (jr *JourneyRepository) dir() string {
	return path.Join(jr.root, "journeys")
}

func (jr *JourneyRepository) GetByID(_ context.Context, id string) (*models.Journey, error) {
	body, err := os.ReadFile(filepath.Clean(path.Join(jr.dir(), id+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewJourneyError("GetByID", id, persistence.ErrJourneyNotFound)
		}

		return nil, fmt.Errorf("failed to read journey %s: %w", id, err)
	}

	var journey models.Journey

	err = json.Unmarshal(body, &journey)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey %s: %w", id, err)
	}

	return &journey, nil
}

func (jr *JourneyRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Journey, error) {
	entries, err := os.ReadDir(jr.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.Journey{}, nil
		}

		return nil, fmt.Errorf("failed to list journeys: %w", err)
	}

	journeys := make([]*models.Journey, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		journey, err := jr.GetByID(ctx, entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			return nil, err
		}

		if organizationID == "" || journey.OrganizationID == organizationID {
			journeys = append(journeys, journey)
		}
	}

	return journeys, nil
}

func (jr *JourneyRepository) Save(_ context.Context, journey *models.Journey) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	return writeJSON(jr.dir(), journey.ID, journey)
}

func (jr *JourneyRepository) Delete(_ context.Context, id string) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	err := os.Remove(path.Join(jr.dir(), id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete journey %s: %w", id, err)
	}

	return nil
}

func writeJSON(dir, id string, entity any) error {
	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	return os.WriteFile(path.Join(dir, id+".json"), data, 0600)
}
