package views

import (
	"context"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
)

// DowntimeItem is one stop reason with its accumulated downtime.
type DowntimeItem struct {
	StopReason       string  `json:"stopReason"`
	TotalDurationSec float64 `json:"totalDurationSec"`
}

// DowntimeReasons totals downtime seconds per stop reason over
// timerlogs, descending, optionally scoped to a location and time
// window. Duration comes from the computed durationSec field.
func (s *Service) DowntimeReasons(ctx context.Context, locationID string, from, to *time.Time) ([]DowntimeItem, error) {
	filters := analytics.Filters{
		TimeField: "createdAt",
		From:      from,
		To:        to,
		NotNull:   []string{"stopReason"},
	}
	if locationID != "" {
		filters.Equals = map[string]interface{}{"locationId": locationID}
	}

	spec := analytics.QuerySpec{
		Collection: "timerlogs",
		Filters:    filters,
		Group:      analytics.Grouping{By: []string{"stopReason"}},
		Metrics: []analytics.Metric{
			{Op: analytics.OpSum, Field: "durationSec", As: "totalDurationSec"},
		},
		Sort: &analytics.Sort{By: "totalDurationSec", Order: -1},
	}

	table, err := s.analytics.Query(ctx, spec)
	if err != nil {
		return nil, err
	}

	items := make([]DowntimeItem, 0, len(table.Raw))
	for _, rec := range table.Raw {
		total, _ := rec.Values["totalDurationSec"].(float64)
		reason := "Unknown"
		if v := rec.Key.Parts[0].Value; v != nil {
			reason = toString(v)
		}
		items = append(items, DowntimeItem{StopReason: reason, TotalDurationSec: total})
	}
	return items, nil
}

// ProductionItem is one timer's production totals.
type ProductionItem struct {
	TimerID       string   `json:"timerId"`
	TotalTons     float64  `json:"totalTons"`
	AvgRunRate    *float64 `json:"avgRunRate"`
	AvgTargetRate *float64 `json:"avgTargetRate"`
	Counts        int      `json:"counts"`
}

// ProductionSummary totals tonnage and rates per timer over the counts
// collection, heaviest producers first.
func (s *Service) ProductionSummary(ctx context.Context, locationID string, from, to *time.Time) ([]ProductionItem, error) {
	filters := analytics.Filters{
		TimeField: "startAt",
		From:      from,
		To:        to,
	}
	if locationID != "" {
		filters.Equals = map[string]interface{}{"locationId": locationID}
	}

	spec := analytics.QuerySpec{
		Collection: "counts",
		Filters:    filters,
		Group:      analytics.Grouping{By: []string{"timerId"}},
		Metrics: []analytics.Metric{
			{Op: analytics.OpSum, Field: "tons", As: "totalTons"},
			{Op: analytics.OpAvg, Field: "runRate", As: "avgRunRate"},
			{Op: analytics.OpAvg, Field: "targetRate", As: "avgTargetRate"},
			{Op: analytics.OpCount, Field: "_id", As: "counts"},
		},
		Sort: &analytics.Sort{By: "totalTons", Order: -1},
	}

	table, err := s.analytics.Query(ctx, spec)
	if err != nil {
		return nil, err
	}

	items := make([]ProductionItem, 0, len(table.Raw))
	for _, rec := range table.Raw {
		item := ProductionItem{}
		if v := rec.Key.Parts[0].Value; v != nil {
			item.TimerID = toString(v)
		}
		if tons, ok := rec.Values["totalTons"].(float64); ok {
			item.TotalTons = tons
		}
		if rate, ok := rec.Values["avgRunRate"].(float64); ok {
			r := rate
			item.AvgRunRate = &r
		}
		if rate, ok := rec.Values["avgTargetRate"].(float64); ok {
			r := rate
			item.AvgTargetRate = &r
		}
		if n, ok := rec.Values["counts"].(float64); ok {
			item.Counts = int(n)
		}
		items = append(items, item)
	}
	return items, nil
}
