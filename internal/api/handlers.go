package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vectorquant/internal/domain"
	"vectorquant/internal/metrics"
	"vectorquant/internal/storage"
	"vectorquant/internal/warehouse"
)

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": BannerMessage, "status": BannerStatus})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": domain.UnixSeconds(s.clock())})
}

// metrics advances the simulation by one tick.
func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, domain.NewMetricsView(s.engine.Tick()))
}

func (s *Server) updateControls(c *gin.Context) {
	var req controlsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	snap, err := s.engine.ApplyControls(req.controls())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidMode) {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		s.logger.Error("apply controls", zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	c.JSON(http.StatusOK, controlsResponse{
		Message: "Controls updated successfully",
		State:   domain.NewMetricsView(snap),
	})
}

func (s *Server) alerts(c *gin.Context) {
	snap, alerts := s.engine.Alerts()
	c.JSON(http.StatusOK, alertsResponse{
		Alerts:    domain.NewAlertViews(alerts),
		Timestamp: snap.Seconds(),
	})
}

func (s *Server) performance(c *gin.Context) {
	c.JSON(http.StatusOK, domain.NewPerformanceView(s.engine.Snapshot()))
}

func (s *Server) system(c *gin.Context) {
	c.JSON(http.StatusOK, domain.NewSystemView(s.engine.Snapshot()))
}

func (s *Server) cryptoPrices(c *gin.Context) {
	c.JSON(http.StatusOK, domain.NewPricesView(s.engine.Snapshot()))
}

// priceHistory serves ?window=1h&limit=N across symbols, or one symbol's
// series oldest first when ?symbol= is set. A bare ticker such as BTC means
// the USDT pair.
func (s *Server) priceHistory(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	if raw := c.Query("symbol"); raw != "" {
		symbol, known := domain.ParseSymbol(raw)
		if !known {
			c.JSON(http.StatusNotFound, errorResponse{Error: "unknown symbol " + raw})
			return
		}
		rows, source := s.history.SymbolPrices(c.Request.Context(), symbol, window)
		c.JSON(http.StatusOK, priceHistoryResponse{Prices: newPriceRows(rows), Source: source})
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	rows, source := s.history.Prices(c.Request.Context(), window, limit)
	c.JSON(http.StatusOK, priceHistoryResponse{Prices: newPriceRows(rows), Source: source})
}

func (s *Server) metricsSummary(c *gin.Context) {
	window, ok := parseWindow(c)
	if !ok {
		return
	}

	summaries, err := s.history.Summaries(c.Request.Context(), c.Query("name"), window)
	if err != nil {
		if errors.Is(err, metrics.ErrNoPoints) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "no points in window"})
			return
		}
		s.writeStoreError(c, err)
		return
	}

	rows := make([]summaryRow, 0, len(summaries))
	for _, sm := range summaries {
		rows = append(rows, newSummaryRow(sm))
	}
	c.JSON(http.StatusOK, summaryResponse{Window: window.String(), Summaries: rows})
}

// parseWindow reads ?window=<duration>, defaulting to the history window.
func parseWindow(c *gin.Context) (time.Duration, bool) {
	raw := c.Query("window")
	if raw == "" {
		return warehouse.DefaultHistoryWindow, true
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "window must be a positive duration such as 1h"})
		return 0, false
	}
	return d, true
}

func (s *Server) alertHistory(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	records, err := s.history.Alerts(c.Request.Context(), limit)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}

	rows := make([]alertRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, newAlertRow(r))
	}
	c.JSON(http.StatusOK, alertHistoryResponse{Alerts: rows})
}

func (s *Server) resolveAlert(c *gin.Context) {
	record, err := s.history.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAlertRow(record))
}

// parseLimit reads ?limit=N, clamped to storage.MaxRows. Writes 400 and
// returns false on a malformed value.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return storage.MaxRows, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
		return 0, false
	}
	return storage.ClampLimit(n, storage.MaxRows), true
}

func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, warehouse.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "warehouse unavailable"})
	default:
		s.logger.Warn("warehouse read failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "warehouse unavailable"})
	}
}
