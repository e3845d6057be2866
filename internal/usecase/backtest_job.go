package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/domain/service"
	"NiftyEdge/internal/services/thresholds"
	xlogger "NiftyEdge/pkg/logger"
	"NiftyEdge/pkg/queue"
)

const (
	BacktestJobType = "backtest.run"
	backtestLockKey = "lock:backtest"
	backtestLockTTL = 30 * time.Minute
)

var (
	ErrRunInProgress = errors.New("a backtest run is already in progress")
	ErrQueueDisabled = errors.New("job queue is not configured")
	ErrInputPath     = errors.New("input must name a file inside the input directory")
)

// SourceFactory opens a bar source for an input path.
type SourceFactory func(path string, headerRow int) drepo.BarSource

// BacktestDefaults fill a run request that leaves fields empty. A requested input is
// resolved relative to the directory of Input and may not leave it.
type BacktestDefaults struct {
	Input      string
	HeaderRow  int
	Thresholds thresholds.Options
}

type backtestPayload struct {
	JobID string `json:"job_id"`
	models.BacktestRunRequest
}

// BacktestJob runs queued backtests one at a time and reloads the served snapshot.
type BacktestJob struct {
	backtester *Backtester
	sources    SourceFactory
	defaults   BacktestDefaults
	locker     drepo.Locker
	queue      drepo.JobQueue
	snapshots  *SnapshotLoader
	logger     *xlogger.Logger
}

// NewBacktestJob wires the job. locker and q may be nil.
func NewBacktestJob(
	backtester *Backtester,
	sources SourceFactory,
	defaults BacktestDefaults,
	locker drepo.Locker,
	q drepo.JobQueue,
	snapshots *SnapshotLoader,
	logger *xlogger.Logger,
) *BacktestJob {
	return &BacktestJob{
		backtester: backtester,
		sources:    sources,
		defaults:   defaults,
		locker:     locker,
		queue:      q,
		snapshots:  snapshots,
		logger:     logger,
	}
}

func (j *BacktestJob) Name() string { return "backtest_runner" }

func (j *BacktestJob) Type() string { return BacktestJobType }

// Schedule enqueues a run and returns its job id.
func (j *BacktestJob) Schedule(ctx context.Context, req models.BacktestRunRequest) (*models.BacktestRunAccepted, error) {
	if j.queue == nil {
		return nil, ErrQueueDisabled
	}
	if req.Input != "" {
		path, err := j.resolveInput(req.Input)
		if err != nil {
			return nil, err
		}
		req.Input = path
	}
	p := backtestPayload{JobID: uuid.NewString(), BacktestRunRequest: j.withDefaults(req)}
	if err := j.queue.Enqueue(ctx, BacktestJobType, p); err != nil {
		return nil, fmt.Errorf("enqueue backtest: %w", err)
	}
	return &models.BacktestRunAccepted{JobID: p.JobID, Input: p.Input, Mode: p.Mode}, nil
}

// Handle executes a queued run.
func (j *BacktestJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[backtestPayload](payload)
	if err != nil {
		return err
	}
	_, err = j.Run(ctx, p.JobID, p.BacktestRunRequest)
	return err
}

// Run executes one request under the run lock and swaps the served snapshot.
func (j *BacktestJob) Run(ctx context.Context, jobID string, req models.BacktestRunRequest) (*models.Artifacts, error) {
	req = j.withDefaults(req)
	log := j.logger.With(xlogger.String("job_id", jobID), xlogger.String("input", req.Input))

	if j.locker != nil {
		ok, err := j.locker.TryLock(ctx, backtestLockKey, backtestLockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			log.Warn("backtest skipped, lock held")
			return nil, ErrRunInProgress
		}
		defer func() {
			if err := j.locker.Unlock(context.Background(), backtestLockKey); err != nil {
				log.Warn("release run lock failed", xlogger.Error(err))
			}
		}()
	}

	opts := j.defaults.Thresholds
	opts.Mode = service.ThresholdMode(req.Mode)

	art, err := j.backtester.Run(ctx, RunRequest{
		Source:     j.sources(req.Input, req.HeaderRow),
		Thresholds: opts,
	})
	if err != nil {
		log.Error("backtest job failed", xlogger.Error(err))
		return nil, err
	}

	if j.snapshots != nil {
		if _, err := j.snapshots.Reload(ctx); err != nil {
			log.Warn("snapshot reload after run failed", xlogger.Error(err))
		}
	}
	return art, nil
}

// resolveInput maps a requested file name onto the input directory.
func (j *BacktestJob) resolveInput(name string) (string, error) {
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: %q", ErrInputPath, name)
	}
	return filepath.Join(filepath.Dir(j.defaults.Input), name), nil
}

func (j *BacktestJob) withDefaults(req models.BacktestRunRequest) models.BacktestRunRequest {
	if req.Input == "" {
		req.Input = j.defaults.Input
		if req.HeaderRow == 0 {
			req.HeaderRow = j.defaults.HeaderRow
		}
	}
	if req.Mode == "" {
		req.Mode = string(j.defaults.Thresholds.Mode)
	}
	if req.Mode == "" {
		req.Mode = string(service.ThresholdRolling)
	}
	return req
}

var _ queue.Job = (*BacktestJob)(nil)
