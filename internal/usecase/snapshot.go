package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	xlogger "NiftyEdge/pkg/logger"
)

// Snapshot is an immutable view of one run's artifacts and the bars it was built from.
type Snapshot struct {
	Artifacts *models.Artifacts
	Bars      []models.Bar
	LoadedAt  time.Time
}

// SnapshotLoader holds the snapshot served to live requests and swaps it on reload.
type SnapshotLoader struct {
	store  drepo.ArtifactStore
	bars   drepo.BarSource
	logger *xlogger.Logger
	cur    atomic.Pointer[Snapshot]
}

// NewSnapshotLoader creates a loader. bars may be nil, which disables historical checks.
func NewSnapshotLoader(store drepo.ArtifactStore, bars drepo.BarSource, logger *xlogger.Logger) *SnapshotLoader {
	return &SnapshotLoader{store: store, bars: bars, logger: logger}
}

// Load returns the current snapshot or nil when nothing has been loaded.
func (l *SnapshotLoader) Load() *Snapshot {
	return l.cur.Load()
}

func (l *SnapshotLoader) Store(s *Snapshot) {
	l.cur.Store(s)
}

// Reload reads the latest artifacts and bars and swaps them in. The previous snapshot
// stays in place when the artifacts can not be read.
func (l *SnapshotLoader) Reload(ctx context.Context) (*Snapshot, error) {
	art, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	snap := &Snapshot{Artifacts: art, LoadedAt: time.Now()}
	if l.bars != nil {
		bars, err := l.bars.Load(ctx)
		if err != nil {
			l.logger.Warn("history unavailable for snapshot",
				xlogger.String("source", l.bars.Describe()),
				xlogger.Error(err))
		} else {
			snap.Bars = bars
		}
	}

	l.cur.Store(snap)
	l.logger.Info("snapshot loaded",
		xlogger.String("run_id", art.RunID),
		xlogger.Int("rows", art.Rows),
		xlogger.Int("bars", len(snap.Bars)))
	return snap, nil
}
