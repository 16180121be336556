// Package views holds the precomputed query shapes behind the
// path-scoped chart endpoints. They reuse the analytics compiler's
// grouping and metric vocabulary but pin their own ordering and binning
// policies.
package views

import (
	"context"
	"fmt"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/internal/database"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service executes the specialized views.
type Service struct {
	analytics *analytics.Service
	store     database.Store
	timeout   time.Duration
	logger    *logrus.Logger
}

// NewService wires the views over the query layer. The store is used
// directly only by the views whose pipelines fall outside the grouping
// vocabulary (histogram auto-bucketing, utilization's conditional
// accumulation); those runs are bounded by the same configured timeout
// the query layer applies.
func NewService(analyticsSvc *analytics.Service, store database.Store, cfg config.QueryConfig, logger *logrus.Logger) *Service {
	return &Service{
		analytics: analyticsSvc,
		store:     store,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// aggregate runs a view-owned pipeline under the configured execution
// bound. Store failures and timeouts surface as ExecutionError, same
// as the generic query layer.
func (s *Service) aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	docs, err := s.store.Aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, &analytics.ExecutionError{Collection: collection, Err: err}
	}
	return docs, nil
}

// ParetoItem is one ranked category with its total.
type ParetoItem struct {
	Category interface{}
	Value    float64
}

// Pareto ranks the totals of one metric per distinct value of a
// categorical field, descending, capped at limit. Ordering is a
// post-group, pre-limit step, unlike the unordered generic query.
func (s *Service) Pareto(ctx context.Context, collection, category string, metric analytics.Metric, limit int) ([]ParetoItem, error) {
	spec := analytics.QuerySpec{
		Collection: collection,
		Filters:    analytics.Filters{NotNull: []string{category}},
		Group:      analytics.Grouping{By: []string{category}},
		Metrics:    []analytics.Metric{metric},
		Sort:       &analytics.Sort{By: metric.OutputName(), Order: -1},
		Limit:      limit,
	}

	table, err := s.analytics.Query(ctx, spec)
	if err != nil {
		return nil, err
	}

	items := make([]ParetoItem, 0, len(table.Raw))
	for _, rec := range table.Raw {
		value, _ := rec.Values[metric.OutputName()].(float64)
		items = append(items, ParetoItem{
			Category: rec.Key.Parts[0].Value,
			Value:    value,
		})
	}
	return items, nil
}

// StopReasonPareto ranks stop reasons by event count over timerlogs.
func (s *Service) StopReasonPareto(ctx context.Context, limit int) ([]ParetoItem, error) {
	return s.Pareto(ctx, "timerlogs", "stopReason",
		analytics.Metric{Op: analytics.OpCount, Field: "_id", As: "count"}, limit)
}

// DayCount is one calendar day's event count.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// CalendarCounts bins events per calendar day over [from, to) and
// returns exactly one item per day in the range. Days with no records
// appear with count zero, never as gaps.
func (s *Service) CalendarCounts(ctx context.Context, collection, timeField string, from, to time.Time) ([]DayCount, error) {
	from = from.UTC()
	to = to.UTC()

	days := daysIn(from, to)
	spec := analytics.QuerySpec{
		Collection: collection,
		Filters:    analytics.Filters{TimeField: timeField, From: &from, To: &to},
		Group:      analytics.Grouping{TimeBucket: analytics.BucketDay, TimeField: timeField},
		Metrics:    []analytics.Metric{{Op: analytics.OpCount, Field: "_id", As: "count"}},
		Limit:      len(days),
	}

	table, err := s.analytics.Query(ctx, spec)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(table.Raw))
	for _, rec := range table.Raw {
		if n, ok := rec.Values["count"].(float64); ok {
			counts[rec.Key.Time] = int(n)
		}
	}

	items := make([]DayCount, 0, len(days))
	for _, day := range days {
		items = append(items, DayCount{Day: day, Count: counts[day]})
	}
	return items, nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// daysIn lists the calendar-day labels covering [from, to) in UTC.
func daysIn(from, to time.Time) []string {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	var days []string
	for d := start; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format("2006-01-02"))
	}
	return days
}
