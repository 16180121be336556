package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the document-store capability the analytics layer depends
// on: filter, group, aggregate. Handlers and services take this
// interface so tests can run against a fake instead of a live cluster.
type Store interface {
	// Aggregate runs an aggregation pipeline against a collection and
	// returns all result documents.
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error)

	// Find returns documents matching filter, honoring projection, sort
	// and limit options.
	Find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]bson.M, error)
}

type mongoStore struct {
	database *mongo.Database
}

func (s *mongoStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	cursor, err := s.database.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *mongoStore) Find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]bson.M, error) {
	cursor, err := s.database.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []bson.M
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
