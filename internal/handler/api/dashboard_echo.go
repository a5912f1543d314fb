package api

import (
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"PairWatch/internal/domain/models"
	domrepo "PairWatch/internal/domain/repository"
	"PairWatch/internal/service/metrics"
	"PairWatch/internal/service/ratelimit"
	"PairWatch/internal/services/classify"
	"PairWatch/internal/usecase"
	xhttp "PairWatch/pkg/http"
	xlogger "PairWatch/pkg/logger"
)

// PairDetail is a loaded record with its display classes.
type PairDetail struct {
	Record  models.ResultRecord `json:"record"`
	Classes classify.Classes    `json:"classes"`
	Action  string              `json:"action"`
}

type windowSizeResponse struct {
	WindowSize int  `json:"windowSize"`
	Pending    bool `json:"pending"`
}

// DashboardEchoHandler exposes the pair monitor and the chart sync over REST.
type DashboardEchoHandler struct {
	logger  *xlogger.Logger
	monitor *usecase.PairMonitor
	charts  *usecase.ChartSync
	limiter *ratelimit.Limiter
}

func NewDashboardEchoHandler(logger *xlogger.Logger, monitor *usecase.PairMonitor, charts *usecase.ChartSync, limiter *ratelimit.Limiter) *DashboardEchoHandler {
	metrics.Register()
	return &DashboardEchoHandler{logger: logger, monitor: monitor, charts: charts, limiter: limiter}
}

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api", h.observe)
	g.GET("/statistics", h.Statistics)
	g.GET("/snapshot", h.Snapshot)
	g.GET("/snapshots/:id", h.StoredSnapshot)
	g.GET("/rows", h.Rows)
	g.GET("/recommendations", h.Recommendations)

	g.GET("/pairs", h.Pairs)
	g.POST("/pairs", h.TrackPair)
	g.GET("/pairs/:id", h.Pair)
	g.DELETE("/pairs/:id", h.UntrackPair)
	g.POST("/refresh", h.Refresh)

	g.GET("/charts", h.Charts)
	g.GET("/charts/:kind", h.Chart)
	g.POST("/charts/refresh", h.RefreshCharts)
	g.GET("/window-size", h.WindowSize)
	g.PUT("/window-size", h.SetWindowSize)
}

func (h *DashboardEchoHandler) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		metrics.APILatency.WithLabelValues(c.Path()).Observe(time.Since(start).Seconds())
		if err != nil || c.Response().Status >= 400 {
			metrics.APIErrors.WithLabelValues(c.Path()).Inc()
		}
		return err
	}
}

func (h *DashboardEchoHandler) Statistics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.monitor.Statistics())
}

func (h *DashboardEchoHandler) Snapshot(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.monitor.Snapshot())
}

// StoredSnapshot serves a persisted snapshot; :id may be "latest".
func (h *DashboardEchoHandler) StoredSnapshot(c echo.Context) error {
	id := c.Param("id")
	snap, err := h.monitor.StoredSnapshot(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, domrepo.ErrSnapshotNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("snapshot %s not found", id))
		}
		h.logger.Error("read stored snapshot", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("snapshot store unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *DashboardEchoHandler) Rows(c echo.Context) error {
	req := &models.RowsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	rows := h.monitor.Rows(usecase.RowQuery{Filter: req.Filter, Sort: req.Sort, Search: req.Query})
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DashboardEchoHandler) Recommendations(c echo.Context) error {
	req := &models.RecommendationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, h.monitor.Recommendations(req.N))
}

func (h *DashboardEchoHandler) Pairs(c echo.Context) error {
	pairs := h.monitor.Pairs()
	return xhttp.ListResponse(c, pairs, int64(len(pairs)))
}

func (h *DashboardEchoHandler) Pair(c echo.Context) error {
	p, err := h.pairParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	rec, ok := h.monitor.Get(p)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no result for %s", p.ID()))
	}
	return xhttp.SuccessResponse(c, PairDetail{
		Record:  rec,
		Classes: classify.Record(rec),
		Action:  classify.SignalText(rec.SignalType, rec.Pair.AssetA, rec.Pair.AssetB),
	})
}

func (h *DashboardEchoHandler) TrackPair(c echo.Context) error {
	req := &models.TrackPairRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	p := models.NewPairKey(req.Asset1, req.Asset2)
	if p.AssetA == p.AssetB {
		return xhttp.AppErrorResponse(c, xhttp.FieldError("ERR_NEFIELD", "asset2", "asset2 must differ from asset1"))
	}
	if !h.monitor.Track(p) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(p.ID()+" is already tracked"))
	}
	return xhttp.CreatedResponse(c, p)
}

func (h *DashboardEchoHandler) UntrackPair(c echo.Context) error {
	p, err := h.pairParam(c)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if err := h.monitor.Untrack(p); err != nil {
		if errors.Is(err, usecase.ErrPairNotTracked) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
		}
		h.logger.Error("untrack pair", xlogger.String("pair", p.ID()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *DashboardEchoHandler) Refresh(c echo.Context) error {
	if !h.allow(c, "refresh") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("refresh rate limit exceeded").WithParam("scope", "refresh"))
	}
	snap, err := h.monitor.Refresh(c.Request().Context())
	if err != nil {
		if errors.Is(err, usecase.ErrRefreshInProgress) {
			return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
		}
		h.logger.Error("refresh usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("refresh failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *DashboardEchoHandler) Charts(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.charts.Views())
}

func (h *DashboardEchoHandler) Chart(c echo.Context) error {
	req := &models.ChartRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	kind, err := models.ParseSeriesKind(req.Kind)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	view, err := h.charts.View(kind)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *DashboardEchoHandler) RefreshCharts(c echo.Context) error {
	if !h.allow(c, "charts") {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("chart refresh rate limit exceeded").WithParam("scope", "charts"))
	}
	if err := h.charts.Refresh(c.Request().Context()); err != nil {
		h.logger.Warn("chart refresh", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("chart refresh failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, h.charts.Views())
}

func (h *DashboardEchoHandler) WindowSize(c echo.Context) error {
	return xhttp.SuccessResponse(c, windowSizeResponse{WindowSize: h.charts.WindowSize(), Pending: h.charts.Pending()})
}

func (h *DashboardEchoHandler) SetWindowSize(c echo.Context) error {
	req := &models.WindowSizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	if err := h.charts.SetWindowSize(c.Request().Context(), req.WindowSize); err != nil {
		if errors.Is(err, domrepo.ErrWindowSizeOutOfRange) {
			return xhttp.AppErrorResponse(c, xhttp.FieldError("ERR_RANGE", "windowSize", err.Error()))
		}
		return xhttp.AppErrorResponse(c, xhttp.UpstreamError("window size update failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, windowSizeResponse{WindowSize: h.charts.WindowSize(), Pending: h.charts.Pending()})
}

func (h *DashboardEchoHandler) pairParam(c echo.Context) (models.PairKey, error) {
	req := &models.PairIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return models.PairKey{}, xhttp.BadRequestError("pair id is required")
	}
	p, ok := models.ParsePairKey(strings.ReplaceAll(req.ID, "-", ","))
	if !ok {
		return models.PairKey{}, xhttp.BadRequestError("pair id must look like BTC,ETH")
	}
	return p, nil
}

func (h *DashboardEchoHandler) allow(c echo.Context, scope string) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(scope + ":" + c.RealIP())
}
