package analytics

import (
	"github.com/apms-ops/apms-backend-go/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Plan is a compiled query: the ordered pipeline stages plus the
// bookkeeping the executor and normalizer need to decompose group keys.
type Plan struct {
	Collection string
	Pipeline   mongo.Pipeline

	// Result shape, in output order: t (when HasTime), ByFields,
	// MetricColumns.
	HasTime       bool
	ByFields      []string
	MetricColumns []string

	// Limit is the effective group cap after applying the configured
	// default and ceiling. Always positive.
	Limit int
}

// Columns returns the result column names in contract order.
func (p *Plan) Columns() []string {
	cols := make([]string, 0, 1+len(p.ByFields)+len(p.MetricColumns))
	if p.HasTime {
		cols = append(cols, "t")
	}
	cols = append(cols, p.ByFields...)
	cols = append(cols, p.MetricColumns...)
	return cols
}

// KeyColumns returns how many leading columns belong to the group key.
func (p *Plan) KeyColumns() int {
	n := len(p.ByFields)
	if p.HasTime {
		n++
	}
	return n
}

// Compiler turns query specifications into execution plans.
type Compiler struct {
	defaultLimit int
	maxRows      int
}

// NewCompiler creates a compiler bounded by the query configuration.
func NewCompiler(cfg config.QueryConfig) *Compiler {
	return &Compiler{
		defaultLimit: cfg.DefaultLimit,
		maxRows:      cfg.MaxRows,
	}
}

// Compile validates the spec and builds the pipeline. Stage order:
// duration precompute, match, group, sort, limit. Unknown collections,
// ops or buckets fail here, never at the store.
func (c *Compiler) Compile(spec QuerySpec) (*Plan, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	timeField := spec.TimeField()
	pipeline := mongo.Pipeline{}

	if stage, ok := durationStage(spec.Collection, timeField); ok {
		pipeline = append(pipeline, stage)
	}
	if stage, ok := matchStage(spec.Filters, timeField); ok {
		pipeline = append(pipeline, stage)
	}
	pipeline = append(pipeline, groupStage(spec, timeField))
	if stage, ok := sortStage(spec); ok {
		pipeline = append(pipeline, stage)
	}

	limit := spec.Limit
	if limit == 0 {
		limit = c.defaultLimit
	}
	if limit > c.maxRows {
		limit = c.maxRows
	}
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})

	metricCols := make([]string, len(spec.Metrics))
	for i, m := range spec.Metrics {
		metricCols[i] = m.OutputName()
	}

	return &Plan{
		Collection:    spec.Collection,
		Pipeline:      pipeline,
		HasTime:       spec.Group.TimeBucket != BucketNone,
		ByFields:      append([]string(nil), spec.Group.By...),
		MetricColumns: metricCols,
		Limit:         limit,
	}, nil
}

// durationStage precomputes __durationSec = (endedAt - timeField)/1000
// for collections that carry start/end timestamp pairs, so duration
// metrics aggregate over it.
func durationStage(collection, timeField string) (bson.D, bool) {
	if !timerCollections[collection] {
		return nil, false
	}
	return bson.D{{Key: "$addFields", Value: bson.M{
		"__durationSec": bson.M{
			"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$ne": bson.A{"$endedAt", nil}},
					bson.M{"$ne": bson.A{"$" + timeField, nil}},
				}},
				bson.M{"$divide": bson.A{
					bson.M{"$subtract": bson.A{"$endedAt", "$" + timeField}},
					1000,
				}},
				nil,
			},
		},
	}}}, true
}

func matchStage(filters Filters, timeField string) (bson.D, bool) {
	match := bson.M{}
	for field, value := range filters.Equals {
		match[field] = value
	}
	for _, field := range filters.NotNull {
		match[field] = bson.M{"$ne": nil}
	}

	// Half-open range: from inclusive, to exclusive.
	if filters.From != nil || filters.To != nil {
		bounds := bson.M{}
		if filters.From != nil {
			bounds["$gte"] = *filters.From
		}
		if filters.To != nil {
			bounds["$lt"] = *filters.To
		}
		match[timeField] = bounds
	}

	if len(match) == 0 {
		return nil, false
	}
	return bson.D{{Key: "$match", Value: match}}, true
}

// groupStage builds the composite key: t first, then the by fields in
// declared order. Key order is a contract the normalizer and pivot
// engine rely on.
func groupStage(spec QuerySpec, timeField string) bson.D {
	id := bson.D{}
	if bucket := spec.Group.TimeBucket; bucket != BucketNone {
		id = append(id, bson.E{Key: "t", Value: bson.M{
			"$dateToString": bson.M{
				"format": bucket.Format(),
				"date":   "$" + timeField,
			},
		}})
	}
	for _, field := range spec.Group.By {
		id = append(id, bson.E{Key: field, Value: "$" + field})
	}

	group := bson.D{}
	if len(id) > 0 {
		group = append(group, bson.E{Key: "_id", Value: id})
	} else {
		group = append(group, bson.E{Key: "_id", Value: nil})
	}
	for _, m := range spec.Metrics {
		group = append(group, bson.E{Key: m.OutputName(), Value: accumulator(m)})
	}
	return bson.D{{Key: "$group", Value: group}}
}

func accumulator(m Metric) bson.M {
	src := "$" + m.Field
	if m.Field == "durationSec" {
		src = "$__durationSec"
	}
	switch m.Op {
	case OpCount:
		return bson.M{"$sum": 1}
	case OpSum:
		return bson.M{"$sum": bson.M{"$ifNull": bson.A{src, 0}}}
	case OpAvg:
		return bson.M{"$avg": src}
	case OpMin:
		return bson.M{"$min": src}
	default:
		return bson.M{"$max": src}
	}
}

// sortStage orders groups explicitly when the spec asks for it,
// otherwise ascending by bucket so the category axis is deterministic.
// Without either, store order stands.
func sortStage(spec QuerySpec) (bson.D, bool) {
	if spec.Sort != nil {
		return bson.D{{Key: "$sort", Value: bson.D{{Key: sortKey(spec, spec.Sort.By), Value: spec.Sort.Order}}}}, true
	}
	if spec.Group.TimeBucket != BucketNone {
		return bson.D{{Key: "$sort", Value: bson.D{{Key: "_id.t", Value: 1}}}}, true
	}
	return nil, false
}

// sortKey rewrites key columns to where they live after $group: the
// bucket and the by fields sit under _id, metric columns at the top
// level.
func sortKey(spec QuerySpec, column string) string {
	if column == "t" {
		return "_id.t"
	}
	for _, field := range spec.Group.By {
		if field == column {
			return "_id." + field
		}
	}
	return column
}
