package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/usecase"
	"NiftyEdge/pkg/config"
	xhttp "NiftyEdge/pkg/http"
	pkgkafka "NiftyEdge/pkg/kafka"
	applogger "NiftyEdge/pkg/logger"
	"NiftyEdge/pkg/queue"
)

// App owns the API process: HTTP server, artifact reload consumer and job queue.
// consumer, handler and jobQueue are optional.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	snapshots  *usecase.SnapshotLoader
	consumer   *pkgkafka.Consumer
	handler    pkgkafka.MessageHandler
	jobQueue   *queue.RedisQueue
	jobs       []queue.Job
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	snapshots *usecase.SnapshotLoader,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
	jobQueue *queue.RedisQueue,
	jobs ...queue.Job,
) *App {
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		snapshots:  snapshots,
		consumer:   consumer,
		handler:    handler,
		jobQueue:   jobQueue,
		jobs:       jobs,
	}
}

// Run loads the snapshot, starts every component and blocks until a signal or a fatal
// server error. Cleanup of infrastructure clients is left to the caller.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	if _, err := a.snapshots.Reload(loadCtx); err != nil {
		if errors.Is(err, drepo.ErrNoArtifacts) {
			a.l.Warn("no artifacts yet, live endpoints answer 503 until a run completes")
		} else {
			a.l.Error("initial snapshot load failed", applogger.Error(err))
		}
	}
	loadCancel()

	if a.jobQueue != nil {
		for _, j := range a.jobs {
			a.jobQueue.RegisterJob(j)
		}
		if err := a.jobQueue.Start(); err != nil {
			return err
		}
	}

	if a.consumer != nil && a.handler != nil {
		a.consumer.RegisterHandler(a.handler)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.l.Info("kafka consumer started", applogger.String("topic", a.handler.Topic()))
		}
	}

	errCh := a.httpServer.Start()

	var runErr error
	select {
	case <-ctx.Done():
		a.l.Info("shutdown signal received")
	case err, ok := <-errCh:
		if ok && err != nil {
			a.l.Error("http server error", applogger.Error(err))
			runErr = err
		}
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops intake first, then the background workers.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(ctx); err != nil {
			a.l.Warn("job queue stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
