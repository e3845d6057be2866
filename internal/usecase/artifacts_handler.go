package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	xlogger "NiftyEdge/pkg/logger"
)

// ArtifactsHandler reloads the served snapshot when another process publishes a run.
type ArtifactsHandler struct {
	topic     string
	snapshots *SnapshotLoader
	metrics   drepo.Metrics
	logger    *xlogger.Logger
}

func NewArtifactsHandler(topic string, snapshots *SnapshotLoader, metrics drepo.Metrics, logger *xlogger.Logger) *ArtifactsHandler {
	return &ArtifactsHandler{topic: topic, snapshots: snapshots, metrics: metrics, logger: logger}
}

func (h *ArtifactsHandler) Topic() string { return h.topic }

// incoming message schema: {run_id, generated_at, rows, source}
func (h *ArtifactsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ArtifactsPublished
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode artifacts event: %w", err)
	}

	if cur := h.snapshots.Load(); cur != nil && cur.Artifacts != nil && cur.Artifacts.RunID == ev.RunID {
		h.logger.Debug("snapshot already current", xlogger.String("run_id", ev.RunID))
		return nil
	}

	snap, err := h.snapshots.Reload(ctx)
	if err != nil {
		h.metrics.RecordError("snapshot_reload")
		return err
	}
	if snap.Artifacts.RunID != ev.RunID {
		h.logger.Warn("reloaded snapshot differs from event",
			xlogger.String("event_run_id", ev.RunID),
			xlogger.String("loaded_run_id", snap.Artifacts.RunID))
	}
	return nil
}
