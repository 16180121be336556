// Package refs serves the enumerable dimension values (locations,
// machine classes) that populate chart filter controls. Pure
// passthrough over the store, no aggregation.
package refs

import (
	"context"
	"fmt"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/apms-ops/apms-backend-go/internal/database"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Ref is one selectable dimension value.
type Ref struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Basic carries the reference sets the filter controls need.
type Basic struct {
	Locations      []Ref `json:"locations"`
	MachineClasses []Ref `json:"machineclasses"`
}

// Service loads reference data. Lookups run under the same configured
// execution bound as the query layer.
type Service struct {
	store   database.Store
	timeout time.Duration
	logger  *logrus.Logger
}

// NewService creates a refs service over store.
func NewService(store database.Store, cfg config.QueryConfig, logger *logrus.Logger) *Service {
	return &Service{store: store, timeout: cfg.Timeout, logger: logger}
}

// Load returns locations and machine classes sorted by name.
func (s *Service) Load(ctx context.Context) (*Basic, error) {
	locations, err := s.list(ctx, "locations")
	if err != nil {
		return nil, err
	}
	classes, err := s.list(ctx, "machineclasses")
	if err != nil {
		return nil, err
	}
	return &Basic{Locations: locations, MachineClasses: classes}, nil
}

func (s *Service) list(ctx context.Context, collection string) ([]Ref, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().
		SetProjection(bson.M{"name": 1}).
		SetSort(bson.D{{Key: "name", Value: 1}})

	docs, err := s.store.Find(ctx, collection, bson.M{}, opts)
	if err != nil {
		return nil, &analytics.ExecutionError{Collection: collection, Err: err}
	}

	refs := make([]Ref, 0, len(docs))
	for _, doc := range docs {
		refs = append(refs, Ref{
			ID:   idString(doc["_id"]),
			Name: stringValue(doc["name"]),
		})
	}
	return refs, nil
}

func idString(v interface{}) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return stringValue(v)
}

func stringValue(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
