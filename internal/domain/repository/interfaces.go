package repository

import (
	"context"
	"errors"
	"time"

	"NiftyEdge/internal/domain/models"
)

// ErrNoArtifacts is returned when no batch run has been stored yet.
var ErrNoArtifacts = errors.New("no artifacts available")

// BarSource loads the ordered daily history.
type BarSource interface {
	Load(ctx context.Context) ([]models.Bar, error)
	Describe() string
}

// ArtifactStore persists and restores the output of a batch run.
type ArtifactStore interface {
	Save(ctx context.Context, a *models.Artifacts) error
	Load(ctx context.Context) (*models.Artifacts, error)
}

// BarStore keeps bars and level interactions for later querying.
type BarStore interface {
	BarSource
	SaveBars(ctx context.Context, bars []models.Bar) error
	SaveLevels(ctx context.Context, runID string, levels []models.LevelInteraction) error
}

// ArtifactPublisher announces a stored run to other processes.
type ArtifactPublisher interface {
	PublishArtifacts(ctx context.Context, ev models.ArtifactsPublished) error
	Close() error
}

type Metrics interface {
	RecordRun(status string)
	RecordRows(stage string, n int)
	RecordLabel(table, label string, n int)
	RecordLiveClassification(status string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// Locker guards a batch run against concurrent re-runs.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// JobQueue accepts background work.
type JobQueue interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}
