package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pmcompanion/pmcompanion/internal/runtime"
	"github.com/pmcompanion/pmcompanion/internal/store"
)

var telemetryEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pmc_telemetry_events_recorded_total",
	Help: "Telemetry events persisted, by AI mode and outcome.",
}, []string{"ai_mode", "status"})

// TelemetryHandler records per-LLM-call observations and serves the
// aggregate reporting queries.
type TelemetryHandler struct {
	Store *store.Store
}

func (h *TelemetryHandler) Register(chats, telemetry *echo.Group, secret []byte) {
	chats.Use(runtime.EchoAuthMiddleware(secret))
	chats.POST("/:id/telemetry", h.record)
	chats.GET("/:id/telemetry", h.listByChat)

	telemetry.Use(runtime.EchoAuthMiddleware(secret))
	telemetry.GET("/report", h.report)
	telemetry.GET("/activity", h.activity)
}

func (h *TelemetryHandler) record(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req RecordEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.Store.RecordEvent(c.Request().Context(), userID, store.TelemetryEventRecord{
		ChatID:           c.Param("id"),
		Category:         req.Category,
		AIMode:           req.AIMode,
		LatencyMS:        req.LatencyMS,
		TokensUsed:       req.TokensUsed,
		EstimatedCostUSD: req.EstimatedCostUSD,
		ModelName:        req.ModelName,
		Status:           req.Status,
		ErrorMessage:     req.ErrorMessage,
	})
	if err != nil {
		return storeError(err)
	}
	telemetryEventsRecorded.WithLabelValues(rec.AIMode, rec.Status).Inc()
	return c.JSON(http.StatusCreated, rec)
}

func (h *TelemetryHandler) listByChat(c echo.Context) error {
	userID := c.Get("user_id").(string)
	chatID, ok := chatParam(c)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "chat not found")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	events, err := h.Store.ListEvents(c.Request().Context(), userID, chatID, limit)
	if err != nil {
		return storeError(err)
	}
	if events == nil {
		events = []store.TelemetryEventRecord{}
	}
	return c.JSON(http.StatusOK, events)
}

func (h *TelemetryHandler) report(c echo.Context) error {
	userID := c.Get("user_id").(string)
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "from must be RFC3339")
		}
		from = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "to must be RFC3339")
		}
		to = t
	}
	rep, err := h.Store.Report(c.Request().Context(), userID, from, to)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *TelemetryHandler) activity(c echo.Context) error {
	userID := c.Get("user_id").(string)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.Store.RecentActivity(c.Request().Context(), userID, limit)
	if err != nil {
		return storeError(err)
	}
	if entries == nil {
		entries = []store.ActivityEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}
