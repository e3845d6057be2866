package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"NiftyEdge/internal/domain/models"
	domrepo "NiftyEdge/internal/domain/repository"
	"NiftyEdge/internal/service/metrics"
	"NiftyEdge/internal/service/ratelimit"
	"NiftyEdge/internal/usecase"
	xhttp "NiftyEdge/pkg/http"
	xlogger "NiftyEdge/pkg/logger"
)

// EdgeEchoHandler serves the live classifier, the probability tables and run control.
type EdgeEchoHandler struct {
	logger  *xlogger.Logger
	edge    *usecase.EdgeService
	jobs    *usecase.BacktestJob
	limiter *ratelimit.Limiter
}

// NewEdgeEchoHandler creates the handler. jobs and limiter may be nil.
func NewEdgeEchoHandler(logger *xlogger.Logger, edge *usecase.EdgeService, jobs *usecase.BacktestJob, limiter *ratelimit.Limiter) *EdgeEchoHandler {
	metrics.Register()
	return &EdgeEchoHandler{logger: logger, edge: edge, jobs: jobs, limiter: limiter}
}

func (h *EdgeEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")

	edge := g.Group("/edge")
	if h.limiter != nil {
		edge.Use(ratelimit.Middleware(h.limiter))
	}
	edge.POST("/classify", h.Classify)
	edge.POST("/report", h.Report)
	edge.GET("/history", h.History)

	g.GET("/stats/candle", h.CandleStats)
	g.GET("/stats/open", h.OpenStats)
	g.GET("/stats/gap", h.GapStats)
	g.GET("/stats/levels", h.LevelStats)
	g.GET("/thresholds", h.Thresholds)
	g.POST("/backtest/runs", h.RunBacktest)
}

func (h *EdgeEchoHandler) Classify(c echo.Context) error {
	start := time.Now()
	req := &models.ClassifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("classify", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.edge.Classify(c.Request().Context(), req.LiveInput())
	if err != nil {
		return h.fail(c, "classify", start, err)
	}
	metrics.Observe("classify", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *EdgeEchoHandler) Report(c echo.Context) error {
	start := time.Now()
	req := &models.ClassifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("report", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	rep, err := h.edge.Report(c.Request().Context(), req.LiveInput())
	if err != nil {
		return h.fail(c, "report", start, err)
	}
	metrics.Observe("report", start, "")
	return xhttp.SuccessResponse(c, rep)
}

func (h *EdgeEchoHandler) History(c echo.Context) error {
	start := time.Now()
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("history", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.edge.HistoricalCheck(c.Request().Context(), req.Date)
	if err != nil {
		return h.fail(c, "history", start, err)
	}
	metrics.Observe("history", start, "")
	return xhttp.SuccessResponse(c, res)
}

func (h *EdgeEchoHandler) CandleStats(c echo.Context) error {
	return h.stats(c, func(a *models.Artifacts, limit int) (interface{}, int) {
		return head(a.CandleStats, limit), len(a.CandleStats)
	})
}

func (h *EdgeEchoHandler) OpenStats(c echo.Context) error {
	return h.stats(c, func(a *models.Artifacts, limit int) (interface{}, int) {
		return head(a.OpenStats, limit), len(a.OpenStats)
	})
}

func (h *EdgeEchoHandler) GapStats(c echo.Context) error {
	return h.stats(c, func(a *models.Artifacts, limit int) (interface{}, int) {
		return head(a.GapStats, limit), len(a.GapStats)
	})
}

func (h *EdgeEchoHandler) LevelStats(c echo.Context) error {
	return h.stats(c, func(a *models.Artifacts, limit int) (interface{}, int) {
		return head(a.LevelSummary, limit), len(a.LevelSummary)
	})
}

// stats answers one table of the current snapshot, truncated to the requested limit.
func (h *EdgeEchoHandler) stats(c echo.Context, table func(a *models.Artifacts, limit int) (interface{}, int)) error {
	req := &models.StatsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.edge.Snapshot()
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}

	rows, total := table(snap.Artifacts, req.Limit)
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.ListResponse(c, rows, int64(total))
}

func head[T any](rows []T, n int) []T {
	if len(rows) > n {
		return rows[:n]
	}
	return rows
}

type thresholdsResponse struct {
	RunID       string            `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Thresholds  models.Thresholds `json:"thresholds"`
}

func (h *EdgeEchoHandler) Thresholds(c echo.Context) error {
	snap, err := h.edge.Snapshot()
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(usecase.ErrNoThresholds))
	}
	return xhttp.SuccessResponse(c, thresholdsResponse{
		RunID:       snap.Artifacts.RunID,
		GeneratedAt: snap.Artifacts.GeneratedAt,
		Thresholds:  snap.Artifacts.Thresholds,
	})
}

func (h *EdgeEchoHandler) RunBacktest(c echo.Context) error {
	req := &models.BacktestRunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, toAppError(usecase.ErrQueueDisabled))
	}

	accepted, err := h.jobs.Schedule(c.Request().Context(), *req)
	if err != nil {
		h.logger.Error("schedule backtest failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("backtest queued",
		xlogger.String("job_id", accepted.JobID),
		xlogger.String("input", accepted.Input),
		xlogger.String("mode", accepted.Mode))
	return xhttp.AcceptedResponse(c, accepted)
}

type healthResponse struct {
	Status   string     `json:"status"`
	RunID    string     `json:"run_id,omitempty"`
	Rows     int        `json:"rows,omitempty"`
	LoadedAt *time.Time `json:"loaded_at,omitempty"`
}

// Health reports liveness. A missing snapshot is not a failure.
func (h *EdgeEchoHandler) Health(c echo.Context) error {
	res := healthResponse{Status: "ok"}
	if snap, err := h.edge.Snapshot(); err == nil {
		res.RunID = snap.Artifacts.RunID
		res.Rows = snap.Artifacts.Rows
		res.LoadedAt = &snap.LoadedAt
	} else {
		res.Status = "no_snapshot"
	}
	return c.JSON(http.StatusOK, res)
}

func (h *EdgeEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := toAppError(err)
	metrics.Observe(endpoint, start, appErr.Code)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" failed", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, usecase.ErrInputPath):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrNoThresholds), errors.Is(err, domrepo.ErrNoArtifacts):
		return xhttp.UnavailableError("no threshold snapshot loaded; run the backtest first").WithError(err)
	case errors.Is(err, usecase.ErrDateNotFound), errors.Is(err, usecase.ErrNoNextBar):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrQueueDisabled):
		return xhttp.UnavailableError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrRunInProgress):
		return xhttp.ConflictError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
