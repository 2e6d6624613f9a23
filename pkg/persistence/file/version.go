package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/campaignkit/journey/pkg/models"
	"github.com/campaignkit/journey/pkg/persistence"
)

// VersionRepository stores one JSON document per published version under
// <root>/versions. Versions are write-once.
type VersionRepository struct {
	root string
	mu   *sync.Mutex
}

func (vr *VersionRepository) dir() string {
	return path.Join(vr.root, "versions")
}

func (vr *VersionRepository) Save(_ context.Context, version *models.JourneyVersion) error {
	vr.mu.Lock()
	defer vr.mu.Unlock()

	return writeJSON(vr.dir(), version.ID, version)
}

func (vr *VersionRepository) GetByID(_ context.Context, id string) (*models.JourneyVersion, error) {
	body, err := os.ReadFile(filepath.Clean(path.Join(vr.dir(), id+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrVersionNotFound
		}

		return nil, fmt.Errorf("failed to read version %s: %w", id, err)
	}

	var version models.JourneyVersion

	err = json.Unmarshal(body, &version)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal version %s: %w", id, err)
	}

	return &version, nil
}

func (vr *VersionRepository) LatestByJourney(ctx context.Context, journeyID string) (*models.JourneyVersion, error) {
	versions, err := vr.ListByJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}

	if len(versions) == 0 {
		return nil, persistence.ErrNoPublishedVersion
	}

	return versions[len(versions)-1], nil
}

// ListByJourney returns the journey's versions ordered by number ascending.
func (vr *VersionRepository) ListByJourney(ctx context.Context, journeyID string) ([]*models.JourneyVersion, error) {
	entries, err := os.ReadDir(vr.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.JourneyVersion{}, nil
		}

		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	versions := make([]*models.JourneyVersion, 0)

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		version, err := vr.GetByID(ctx, entry.Name()[:len(entry.Name())-len(".json")])
		if err != nil {
			return nil, err
		}

		if version.JourneyID == journeyID {
			versions = append(versions, version)
		}
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Number < versions[j].Number
	})

	return versions, nil
}
