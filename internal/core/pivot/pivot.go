// Package pivot reshapes grouped tabular results into the aligned
// per-series arrays a chart needs: one series per distinct split value,
// every series sharing the same ordered category axis, missing cells
// zero-filled.
package pivot

import (
	"fmt"

	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
)

// Point is one (category, value) pair on a series.
type Point struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// Series is one plottable line/bar group. Within one pivot call every
// series has the same length and the same category sequence.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// UnknownColumnError reports a metric column the table does not carry.
// The pivot engine never fails on missing data, only on a missing
// column.
type UnknownColumnError struct {
	Column string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("metric column %q is not present in the result", e.Column)
}

// Pivot turns a tabular result into chart series for metricColumn.
//
// The category axis is the distinct sequence of category values across
// all raw records, in first-occurrence order. When the grouping carried
// a split dimension, each distinct split value becomes one series;
// otherwise a single series named after the metric is produced. Cells
// with no matching group are zero-filled so all series stay
// axis-aligned.
func Pivot(table analytics.Table, metricColumn string) ([]Series, error) {
	if err := checkMetricColumn(table, metricColumn); err != nil {
		return nil, err
	}
	return ForTable(table).Pivot(table, metricColumn)
}

// Strategy is one named reshaping rule. All strategies obey the same
// contract: axis-aligned, zero-filled, deterministic.
type Strategy interface {
	Pivot(table analytics.Table, metricColumn string) ([]Series, error)
}

// ForTable selects the strategy matching the table's grouping shape.
func ForTable(table analytics.Table) Strategy {
	for _, rec := range table.Raw {
		if _, ok := rec.Key.Split(); ok {
			return BySplit{}
		}
		break
	}
	return Single{}
}

// BySplit produces one series per distinct split value.
type BySplit struct{}

func (BySplit) Pivot(table analytics.Table, metricColumn string) ([]Series, error) {
	if err := checkMetricColumn(table, metricColumn); err != nil {
		return nil, err
	}

	axis := categoryAxis(table)

	// Index cells by (category, split) once; per-cell lookups are then
	// O(1) instead of a scan over the rows.
	cells := make(map[string]map[string]float64)
	var splits []string
	for _, rec := range table.Raw {
		split, ok := rec.Key.Split()
		if !ok {
			continue
		}
		bySplit, seen := cells[split]
		if !seen {
			bySplit = make(map[string]float64)
			cells[split] = bySplit
			splits = append(splits, split)
		}
		bySplit[rec.Key.Category()] = metricValue(rec, metricColumn)
	}

	series := make([]Series, 0, len(splits))
	for _, split := range splits {
		points := make([]Point, 0, len(axis))
		for _, category := range axis {
			points = append(points, Point{
				Category: category,
				Value:    cells[split][category],
			})
		}
		series = append(series, Series{Name: split, Points: points})
	}
	return series, nil
}

// Single produces one series over the category axis, named after the
// metric column.
type Single struct{}

func (Single) Pivot(table analytics.Table, metricColumn string) ([]Series, error) {
	if err := checkMetricColumn(table, metricColumn); err != nil {
		return nil, err
	}

	axis := categoryAxis(table)
	byCategory := make(map[string]float64, len(table.Raw))
	for _, rec := range table.Raw {
		byCategory[rec.Key.Category()] = metricValue(rec, metricColumn)
	}

	points := make([]Point, 0, len(axis))
	for _, category := range axis {
		points = append(points, Point{Category: category, Value: byCategory[category]})
	}
	return []Series{{Name: metricColumn, Points: points}}, nil
}

// DefaultMetricColumn picks the plotted metric when the caller does not
// name one: the first metric column on the priority list, falling back
// to the last declared metric column.
func DefaultMetricColumn(table analytics.Table) string {
	metrics := table.MetricColumns()
	if len(metrics) == 0 {
		return ""
	}
	priority := []string{"duration", "totalDurationSec", "value", "total"}
	for _, want := range priority {
		for _, col := range metrics {
			if col == want {
				return col
			}
		}
	}
	return metrics[len(metrics)-1]
}

// categoryAxis returns the distinct category values across all records,
// deduplicated by first occurrence. The axis is the union over every
// row, so a series missing some category still aligns.
func categoryAxis(table analytics.Table) []string {
	var axis []string
	seen := make(map[string]bool)
	for _, rec := range table.Raw {
		category := rec.Key.Category()
		if !seen[category] {
			seen[category] = true
			axis = append(axis, category)
		}
	}
	return axis
}

func metricValue(rec analytics.GroupedRecord, column string) float64 {
	v := rec.Values[column]
	if f, ok := v.(float64); ok {
		return f
	}
	return 0
}

func checkMetricColumn(table analytics.Table, metricColumn string) error {
	for _, col := range table.MetricColumns() {
		if col == metricColumn {
			return nil
		}
	}
	return &UnknownColumnError{Column: metricColumn}
}
