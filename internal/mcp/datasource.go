package mcp

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/heromissions/internal/catalog"
	"github.com/meltforce/heromissions/internal/models"
	"github.com/meltforce/heromissions/internal/storage"
)

// DataSource abstracts mission history for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryMissions(ctx context.Context, start, end time.Time, userID int, exercise string) ([]models.MissionResult, error)
	GetMission(ctx context.Context, id uuid.UUID, userID int) (*models.MissionResult, error)
	GetMissionStats(ctx context.Context, userID int) (*storage.MissionStats, error)
}

// ExerciseSource lists the exercises a server offers.
type ExerciseSource interface {
	Exercises(ctx context.Context) ([]*catalog.Exercise, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)

// CatalogSource serves exercises from an in-process catalog.
type CatalogSource struct {
	Catalog *catalog.Catalog
}

func (c CatalogSource) Exercises(context.Context) ([]*catalog.Exercise, error) {
	return c.Catalog.List(), nil
}
