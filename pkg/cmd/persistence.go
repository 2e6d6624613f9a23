package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/campaignkit/journey/pkg/persistence"
	"github.com/campaignkit/journey/pkg/persistence/file"
	"github.com/campaignkit/journey/pkg/persistence/memory"
	"github.com/campaignkit/journey/pkg/persistence/postgres"
)

// NewPersistence builds the persistence layer from a database URL. A
// postgres:// URL selects the PostgreSQL implementation, "memory" keeps
// everything in process; anything else is treated as a directory for file
// persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgres.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return p
	case databaseURL == "memory" || databaseURL == "memory://":
		return memory.NewPersistence()
	default:
		return file.NewPersistence(databaseURL)
	}
}
