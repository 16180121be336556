package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

// StopReasonPareto returns stop reasons ranked by event count,
// descending.
func (h *Handlers) StopReasonPareto(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 20)
	if !ok {
		return
	}

	items, err := h.views.StopReasonPareto(c.Request.Context(), limit)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	out := make([]gin.H, 0, len(items))
	for _, item := range items {
		out = append(out, gin.H{"stopReason": item.Category, "count": int(item.Value)})
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

// DailyCounts returns one count per calendar day over the requested
// range, gaps zero-filled. Without an explicit range the last 90 days
// are covered.
func (h *Handlers) DailyCounts(c *gin.Context) {
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	if to == nil {
		now := time.Now().UTC()
		to = &now
	}
	if from == nil {
		start := to.AddDate(0, 0, -90)
		from = &start
	}
	if !from.Before(*to) {
		utils.SendError(c, http.StatusBadRequest, "from must precede to")
		return
	}

	items, err := h.views.CalendarCounts(c.Request.Context(), "timerlogs", "createdAt", *from, *to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Histogram bins a numeric field of timerlogs into auto-sized buckets.
func (h *Handlers) Histogram(c *gin.Context) {
	field := c.DefaultQuery("field", "cycle")
	buckets, ok := intQuery(c, "buckets", 20)
	if !ok {
		return
	}

	items, err := h.views.Histogram(c.Request.Context(), "timerlogs", field, buckets)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DowntimeReasons returns accumulated downtime per stop reason,
// descending.
func (h *Handlers) DowntimeReasons(c *gin.Context) {
	from, ok := timeQuery(c, "from_ts")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to_ts")
	if !ok {
		return
	}

	items, err := h.views.DowntimeReasons(c.Request.Context(), c.Query("location_id"), from, to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ProductionSummary returns per-timer production totals, heaviest
// first.
func (h *Handlers) ProductionSummary(c *gin.Context) {
	from, ok := timeQuery(c, "from_ts")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to_ts")
	if !ok {
		return
	}

	items, err := h.views.ProductionSummary(c.Request.Context(), c.Query("location_id"), from, to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// UtilizationDaily returns each day's run/stop time split for the
// requested window.
func (h *Handlers) UtilizationDaily(c *gin.Context) {
	from, ok := timeQuery(c, "from_ts")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to_ts")
	if !ok {
		return
	}

	items, err := h.views.UtilizationDaily(c.Request.Context(), c.Query("location_id"), from, to)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		utils.SendError(c, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return n, true
}

func timeQuery(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	ts, err := analytics.ParseTime(raw)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, name+" is not a recognized datetime")
		return nil, false
	}
	return &ts, true
}
