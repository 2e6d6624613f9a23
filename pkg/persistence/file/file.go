// Package file provides file-based persistence for local development and
// tests. One JSON document per entity, laid out under a root directory.
package file

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/campaignkit/journey/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
// A process-wide mutex stands in for the conditional updates a database
// provides; this backend is single-process by construction.
type Persistence struct {
	root string
	mu   sync.Mutex

	journeyRepo       *JourneyRepository
	versionRepo       *VersionRepository
	executionRepo     *ExecutionRepository
	stepExecutionRepo *StepExecutionRepository
	triggerRepo       *TriggerRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.journeyRepo = &JourneyRepository{root: cleanRoot, mu: &p.mu}
	p.versionRepo = &VersionRepository{root: cleanRoot, mu: &p.mu}
	p.executionRepo = &ExecutionRepository{root: cleanRoot, mu: &p.mu}
	p.stepExecutionRepo = &StepExecutionRepository{root: cleanRoot, mu: &p.mu}
	p.triggerRepo = &TriggerRepository{journeys: p.journeyRepo}

	return p
}

func (p *Persistence) JourneyRepository() persistence.JourneyRepository {
	return p.journeyRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) StepExecutionRepository() persistence.StepExecutionRepository {
	return p.stepExecutionRepo
}

func (p *Persistence) TriggerRepository() persistence.TriggerRepository {
	return p.triggerRepo
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
