package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	models "FlowSentry/internal/domain/models"
	icache "FlowSentry/internal/service/cache"
	"FlowSentry/internal/service/metrics"
	"FlowSentry/internal/service/ratelimit"
	"FlowSentry/internal/services/alerts"
	"FlowSentry/internal/services/analytics"
	"FlowSentry/internal/usecase"
	xhttp "FlowSentry/pkg/http"
	xlogger "FlowSentry/pkg/logger"
)

// PipelineEchoHandler exposes the read-only pipeline API: alerts, signals,
// risk, window statistics, observations and on-demand anomaly scans.
type PipelineEchoHandler struct {
	logger *xlogger.Logger
	eval   *usecase.EvaluationUseCase
	engine *alerts.Engine
	stream *analytics.StreamProcessor
	cache  icache.BytesCache
	rl     *ratelimit.Limiter
}

func NewPipelineEchoHandler(
	logger *xlogger.Logger,
	eval *usecase.EvaluationUseCase,
	engine *alerts.Engine,
	stream *analytics.StreamProcessor,
) *PipelineEchoHandler {
	metrics.Register()
	return &PipelineEchoHandler{
		logger: logger,
		eval:   eval,
		engine: engine,
		stream: stream,
		rl:     ratelimit.New(),
	}
}

// SetCache injects the response byte cache.
func (h *PipelineEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/alerts/recent", h.RecentAlerts)
	g.DELETE("/alerts/history", h.ClearAlertHistory)
	g.GET("/signals/active", h.ActiveSignals)
	g.GET("/risk", h.Risk)
	g.GET("/statistics", h.Statistics)
	g.GET("/observations", h.Observations)
	g.GET("/anomalies/scan", h.AnomalyScan)
	g.POST("/evaluate", h.Evaluate)
}

// RecentAlerts serves the engine's in-memory history, newest last.
func (h *PipelineEchoHandler) RecentAlerts(c echo.Context) error {
	start := time.Now()
	defer h.observe("alerts_recent", start)

	req := &models.RecentAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.engine.GetRecentAlerts(req.Limit))
}

// ClearAlertHistory drops the engine's recorded alerts. Stored alerts in
// ClickHouse are unaffected.
func (h *PipelineEchoHandler) ClearAlertHistory(c echo.Context) error {
	start := time.Now()
	defer h.observe("alerts_clear", start)

	h.engine.ClearHistory()
	return xhttp.SuccessResponse(c, map[string]string{"status": "cleared"})
}

func (h *PipelineEchoHandler) ActiveSignals(c echo.Context) error {
	start := time.Now()
	defer h.observe("signals_active", start)

	req := &models.ActiveSignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	signals, err := h.eval.ActiveSignals(c.Request().Context(), req.Severity, req.Limit)
	if err != nil {
		metrics.AnalyticsErrors.WithLabelValues("signals_active").Inc()
		h.logger.Error("active signals", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, signals)
}

// Risk serves the latest composite risk score, cached briefly.
func (h *PipelineEchoHandler) Risk(c echo.Context) error {
	start := time.Now()
	defer h.observe("risk", start)

	const cacheKey = "api:risk"
	if b, ok := h.cached(cacheKey); ok {
		var risk models.RiskScore
		if err := json.Unmarshal(b, &risk); err == nil {
			return xhttp.SuccessResponse(c, risk)
		}
	}

	risk, err := h.eval.RiskNow(c.Request().Context())
	if err != nil {
		metrics.AnalyticsErrors.WithLabelValues("risk").Inc()
		h.logger.Error("risk score", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(cacheKey, risk, 30*time.Second)
	return xhttp.SuccessResponse(c, risk)
}

// Statistics serves the live rolling-window stats for one symbol.
func (h *PipelineEchoHandler) Statistics(c echo.Context) error {
	start := time.Now()
	defer h.observe("statistics", start)

	req := &models.StatisticsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	stats := h.stream.GetStatistics(strings.ToUpper(req.Symbol))
	if stats == nil {
		return xhttp.NotFoundResponse(c, map[string]string{"symbol": req.Symbol})
	}
	return xhttp.SuccessResponse(c, stats)
}

func (h *PipelineEchoHandler) Observations(c echo.Context) error {
	start := time.Now()
	defer h.observe("observations", start)

	req := &models.ObservationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// from/to accept RFC3339 or unix seconds and override the hours window
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now())
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), to.Add(-time.Duration(req.Hours)*time.Hour))
	if c.QueryParam("from") != "" || c.QueryParam("to") != "" {
		from, to = xhttp.AlignFromTo(from, to, "1m")
	}
	obs, err := h.eval.ObservationsRange(c.Request().Context(), strings.ToUpper(req.Symbol), from, to, req.Limit)
	if err != nil {
		metrics.AnalyticsErrors.WithLabelValues("observations").Inc()
		h.logger.Error("observations", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, obs)
}

// AnomalyScan runs the batch detector over stored data. Rate limited: the
// scan is the most expensive endpoint.
func (h *PipelineEchoHandler) AnomalyScan(c echo.Context) error {
	start := time.Now()
	defer h.observe("anomaly_scan", start)

	req := &models.AnomalyScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":scan", 5, 2) {
		h.logger.Warn("anomaly scan rate limited", xlogger.String("remote", c.RealIP()))
		return c.JSON(429, map[string]string{"error": "rate limited"})
	}

	symbols := splitSymbols(req.Symbols)
	anomalies, err := h.eval.ScanAnomalies(c.Request().Context(), symbols, time.Duration(req.Hours)*time.Hour, req.Limit)
	if err != nil {
		metrics.AnalyticsErrors.WithLabelValues("anomaly_scan").Inc()
		h.logger.Error("anomaly scan", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, anomalies)
}

// Evaluate triggers one full evaluation cycle on demand.
func (h *PipelineEchoHandler) Evaluate(c echo.Context) error {
	start := time.Now()
	defer h.observe("evaluate", start)

	if !h.rl.Allow(c.RealIP()+":evaluate", 2, 0.2) {
		h.logger.Warn("evaluate rate limited", xlogger.String("remote", c.RealIP()))
		return c.JSON(429, map[string]string{"error": "rate limited"})
	}

	res, err := h.eval.Evaluate(c.Request().Context())
	if err != nil {
		metrics.AnalyticsErrors.WithLabelValues("evaluate").Inc()
		h.logger.Error("evaluation cycle", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) observe(endpoint string, start time.Time) {
	metrics.AnalyticsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *PipelineEchoHandler) cached(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		h.logger.Warn("cache get", xlogger.String("key", key), xlogger.Error(err))
		return nil, false
	}
	return b, ok
}

func (h *PipelineEchoHandler) store(key string, v interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil {
		h.logger.Warn("cache set", xlogger.String("key", key), xlogger.Error(err))
	}
}

func splitSymbols(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
