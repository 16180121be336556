package views

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// HistogramBucket is one auto-sized value bin.
type HistogramBucket struct {
	Min   interface{} `json:"min"`
	Max   interface{} `json:"max"`
	Count int         `json:"count"`
}

// Histogram bins the non-null values of a numeric field into at most
// buckets auto-sized ranges. Auto-bucketing is a store capability
// outside the grouping vocabulary, so this view talks to the store
// directly rather than through the compiler.
func (s *Service) Histogram(ctx context.Context, collection, field string, buckets int) ([]HistogramBucket, error) {
	if buckets <= 0 {
		buckets = 20
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{field: bson.M{"$ne": nil}}}},
		{{Key: "$bucketAuto", Value: bson.M{
			"groupBy": "$" + field,
			"buckets": buckets,
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":   0,
			"min":   "$_id.min",
			"max":   "$_id.max",
			"count": "$count",
		}}},
	}

	docs, err := s.aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, err
	}

	items := make([]HistogramBucket, 0, len(docs))
	for _, doc := range docs {
		count := 0
		if n, ok := doc["count"].(int32); ok {
			count = int(n)
		} else if n, ok := doc["count"].(int64); ok {
			count = int(n)
		} else if n, ok := doc["count"].(float64); ok {
			count = int(n)
		} else if n, ok := doc["count"].(int); ok {
			count = n
		}
		items = append(items, HistogramBucket{
			Min:   doc["min"],
			Max:   doc["max"],
			Count: count,
		})
	}
	return items, nil
}
