package views

import (
	"context"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UtilizationDay splits one calendar day's logged time into run and
// stop shares.
type UtilizationDay struct {
	Day     string  `json:"day"`
	RunSec  float64 `json:"runSec"`
	StopSec float64 `json:"stopSec"`
	RunPct  float64 `json:"runPct"`
	StopPct float64 `json:"stopPct"`
}

// UtilizationDaily accumulates run and stop time per calendar day over
// timerlogs. A log counts as stopped when it carries a stop reason
// other than "Unit Created". The conditional accumulation ($cond inside
// $sum) is not part of the grouping vocabulary, so this view talks to
// the store directly.
func (s *Service) UtilizationDaily(ctx context.Context, locationID string, from, to *time.Time) ([]UtilizationDay, error) {
	match := bson.M{}
	if locationID != "" {
		match["locationId"] = locationID
	}
	window := bson.M{}
	if from != nil {
		window["$gte"] = from.UTC()
	}
	if to != nil {
		window["$lt"] = to.UTC()
	}
	if len(window) > 0 {
		match["createdAt"] = window
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		// Duration needs both endpoints as real dates; anything else
		// is an open or malformed log and is skipped.
		{{Key: "$match", Value: bson.M{
			"createdAt": bson.M{"$type": "date"},
			"endedAt":   bson.M{"$type": "date"},
		}}},
		{{Key: "$addFields", Value: bson.M{
			"durationSec": bson.M{"$divide": bson.A{
				bson.M{"$subtract": bson.A{"$endedAt", "$createdAt"}},
				1000,
			}},
			"day": bson.M{"$dateToString": bson.M{"format": "%Y-%m-%d", "date": "$createdAt"}},
			"isDown": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$ne": bson.A{"$stopReason", nil}},
					bson.M{"$ne": bson.A{"$stopReason", "Unit Created"}},
				}},
				true,
				false,
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$day",
			"runSec":  bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$isDown", false}}, "$durationSec", 0}}},
			"stopSec": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$isDown", true}}, "$durationSec", 0}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}

	docs, err := s.aggregate(ctx, "timerlogs", pipeline)
	if err != nil {
		return nil, err
	}

	items := make([]UtilizationDay, 0, len(docs))
	for _, doc := range docs {
		run := floatValue(doc["runSec"])
		stop := floatValue(doc["stopSec"])
		total := run + stop
		if total <= 0 {
			total = 1
		}
		items = append(items, UtilizationDay{
			Day:     toString(doc["_id"]),
			RunSec:  run,
			StopSec: stop,
			RunPct:  round2(run / total * 100),
			StopPct: round2(stop / total * 100),
		})
	}
	return items, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func floatValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
