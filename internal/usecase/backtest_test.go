package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"NiftyEdge/internal/domain/models"
	drepo "NiftyEdge/internal/domain/repository"
	xlogger "NiftyEdge/pkg/logger"
)

func TestBacktesterRun(t *testing.T) {
	store := &memStore{}
	pub := &recordingPublisher{}
	bt := NewBacktester(store, nil, pub, nopMetrics{}, xlogger.Nop())

	art, err := bt.Run(context.Background(), RunRequest{Source: sliceSource{bars: synthBars(50)}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if art.RunID == "" || art.Source != "memory" || art.Rows != 50 {
		t.Fatalf("unexpected run header %+v", art)
	}
	if store.saves != 1 || store.art != art {
		t.Fatalf("artifacts not stored")
	}
	if len(pub.events) != 1 || pub.events[0].RunID != art.RunID {
		t.Fatalf("expected one published event, got %+v", pub.events)
	}
	if !art.Thresholds.Defined() {
		t.Fatalf("global thresholds should be defined for 50 bars")
	}
	if len(art.Levels) != 49*4 {
		t.Fatalf("expected %d level rows, got %d", 49*4, len(art.Levels))
	}
}

func TestBacktesterRunErrors(t *testing.T) {
	store := &memStore{}
	bt := NewBacktester(store, nil, nil, nopMetrics{}, xlogger.Nop())

	if _, err := bt.Run(context.Background(), RunRequest{Source: sliceSource{}}); !errors.Is(err, ErrNoBars) {
		t.Fatalf("expected ErrNoBars, got %v", err)
	}
	loadErr := errors.New("boom")
	if _, err := bt.Run(context.Background(), RunRequest{Source: sliceSource{err: loadErr}}); !errors.Is(err, loadErr) {
		t.Fatalf("expected wrapped load error, got %v", err)
	}
	bad := RunRequest{Source: sliceSource{bars: synthBars(5)}}
	bad.Thresholds.Mode = "weekly"
	if _, err := bt.Run(context.Background(), bad); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	if store.saves != 0 {
		t.Fatalf("failed runs must not store artifacts")
	}
}

func newTestJob(locker drepo.Locker, q drepo.JobQueue) (*BacktestJob, *memStore, *SnapshotLoader) {
	store := &memStore{}
	loader := NewSnapshotLoader(store, nil, xlogger.Nop())
	bt := NewBacktester(store, nil, nil, nopMetrics{}, xlogger.Nop())
	sources := func(path string, headerRow int) drepo.BarSource {
		return sliceSource{bars: synthBars(40)}
	}
	job := NewBacktestJob(bt, sources, BacktestDefaults{Input: "data/nifty.csv", HeaderRow: 1}, locker, q, loader, xlogger.Nop())
	return job, store, loader
}

func TestBacktestJobHandleReloadsSnapshot(t *testing.T) {
	locker := &fakeLocker{}
	job, store, loader := newTestJob(locker, nil)

	payload := map[string]interface{}{"job_id": "j-1", "mode": "frozen"}
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected one stored run")
	}
	if cur := loader.Load(); cur == nil || cur.Artifacts.RunID != store.art.RunID {
		t.Fatalf("snapshot not swapped after run")
	}
	if locker.held || locker.unlocked != 1 {
		t.Fatalf("run lock not released")
	}
}

func TestBacktestJobSkipsWhenLocked(t *testing.T) {
	job, store, _ := newTestJob(&fakeLocker{held: true}, nil)
	if _, err := job.Run(context.Background(), "j-2", models.BacktestRunRequest{}); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("locked run must not store artifacts")
	}
}

func TestBacktestJobSchedule(t *testing.T) {
	job, _, _ := newTestJob(nil, nil)
	if _, err := job.Schedule(context.Background(), models.BacktestRunRequest{}); !errors.Is(err, ErrQueueDisabled) {
		t.Fatalf("expected ErrQueueDisabled, got %v", err)
	}

	q := &fakeQueue{}
	job, _, _ = newTestJob(nil, q)
	acc, err := job.Schedule(context.Background(), models.BacktestRunRequest{})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if acc.JobID == "" || acc.Input != "data/nifty.csv" || acc.Mode != "rolling" {
		t.Fatalf("unexpected acceptance %+v", acc)
	}
	if len(q.types) != 1 || q.types[0] != BacktestJobType {
		t.Fatalf("unexpected queue contents %+v", q.types)
	}
	p, ok := q.payloads[0].(backtestPayload)
	if !ok || p.JobID != acc.JobID || p.HeaderRow != 1 {
		t.Fatalf("unexpected payload %+v", q.payloads[0])
	}
}

func TestBacktestJobScheduleKeepsInputInsideDir(t *testing.T) {
	q := &fakeQueue{}
	job, _, _ := newTestJob(nil, q)

	acc, err := job.Schedule(context.Background(), models.BacktestRunRequest{Input: "archive/2023.csv"})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if acc.Input != filepath.Join("data", "archive", "2023.csv") {
		t.Fatalf("input not resolved under the data dir: %q", acc.Input)
	}

	for _, name := range []string{"/etc/passwd", "../secrets.csv", "archive/../../x.csv"} {
		if _, err := job.Schedule(context.Background(), models.BacktestRunRequest{Input: name}); !errors.Is(err, ErrInputPath) {
			t.Fatalf("%q: expected ErrInputPath, got %v", name, err)
		}
	}
	if len(q.types) != 1 {
		t.Fatalf("rejected inputs must not be queued, got %d jobs", len(q.types))
	}
}
