package analytics

import (
	"context"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/database"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
)

// Executor runs compiled plans against the document store. Every run is
// bounded by the configured timeout and row ceiling; results are
// all-or-nothing.
type Executor struct {
	store   database.Store
	timeout time.Duration
	maxRows int
	logger  *logrus.Logger
}

// NewExecutor creates an executor over store with the configured bounds.
func NewExecutor(store database.Store, cfg config.QueryConfig, logger *logrus.Logger) *Executor {
	return &Executor{
		store:   store,
		timeout: cfg.Timeout,
		maxRows: cfg.MaxRows,
		logger:  logger,
	}
}

// Execute runs the plan and decodes the grouped output. Store failures
// and timeouts surface as ExecutionError; callers decide whether to
// retry.
func (e *Executor) Execute(ctx context.Context, plan *Plan) ([]GroupedRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	started := time.Now()
	docs, err := e.store.Aggregate(ctx, plan.Collection, plan.Pipeline)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"collection": plan.Collection,
			"elapsed":    time.Since(started),
		}).WithError(err).Error("aggregation failed")
		return nil, &ExecutionError{Collection: plan.Collection, Err: err}
	}

	// The pipeline carries a $limit, but the cap is enforced here too
	// so a misbehaving store cannot blow out memory.
	limit := plan.Limit
	if limit > e.maxRows {
		limit = e.maxRows
	}
	if len(docs) > limit {
		docs = docs[:limit]
	}

	records := decodeRecords(plan, docs)
	e.logger.WithFields(logrus.Fields{
		"collection": plan.Collection,
		"groups":     len(records),
		"elapsed":    time.Since(started),
	}).Debug("aggregation complete")
	return records, nil
}

// decodeRecords decomposes each store document into a typed GroupedRecord.
// Key parts are read in the plan's declared field order.
func decodeRecords(plan *Plan, docs []bson.M) []GroupedRecord {
	records := make([]GroupedRecord, 0, len(docs))
	for _, doc := range docs {
		key := GroupKey{HasTime: plan.HasTime}

		id := asDocument(doc["_id"])
		if plan.HasTime {
			key.Time = stringify(id["t"])
		}
		for _, field := range plan.ByFields {
			key.Parts = append(key.Parts, KeyPart{Field: field, Value: id[field]})
		}

		values := make(map[string]interface{}, len(plan.MetricColumns))
		for _, col := range plan.MetricColumns {
			v := doc[col]
			if f, ok := toFloat(v); ok {
				values[col] = f
			} else {
				values[col] = v
			}
		}
		records = append(records, GroupedRecord{Key: key, Values: values})
	}
	return records
}

// asDocument tolerates both document representations the driver can
// hand back for an embedded _id.
func asDocument(v interface{}) bson.M {
	switch d := v.(type) {
	case bson.M:
		return d
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m
	}
	return bson.M{}
}
