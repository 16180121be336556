package handlers

import (
	"net/http"

	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/internal/core/pivot"
	"github.com/apms-ops/apms-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
)

// Query runs a generic analytics query and returns the tabular result
// {columns, rows, raw}.
func (h *Handlers) Query(c *gin.Context) {
	var spec analytics.QuerySpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		utils.SendError(c, http.StatusBadRequest, "malformed query spec: "+err.Error())
		return
	}

	table, err := h.analytics.Query(c.Request.Context(), spec)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, table)
}

// PivotRequest asks for a query's result reshaped into chart series.
// MetricColumn is optional; when empty the engine's default selection
// applies.
type PivotRequest struct {
	Spec         analytics.QuerySpec `json:"spec"`
	MetricColumn string              `json:"metricColumn"`
}

// PivotResponse carries the aligned series for one chart.
type PivotResponse struct {
	MetricColumn string         `json:"metricColumn"`
	Series       []pivot.Series `json:"series"`
}

// Pivot runs a query and pivots the result into axis-aligned series,
// one per distinct split value.
func (h *Handlers) Pivot(c *gin.Context) {
	var req PivotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, http.StatusBadRequest, "malformed pivot request: "+err.Error())
		return
	}

	table, err := h.analytics.Query(c.Request.Context(), req.Spec)
	if err != nil {
		h.respondQueryError(c, err)
		return
	}

	column := req.MetricColumn
	if column == "" {
		column = pivot.DefaultMetricColumn(table)
	}

	series, err := pivot.Pivot(table, column)
	if err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, PivotResponse{MetricColumn: column, Series: series})
}
