package refs

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/apms-ops/apms-backend-go/internal/core/analytics"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeStore struct {
	byCollection map[string][]bson.M
	block        bool
}

func (f *fakeStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	return nil, nil
}

func (f *fakeStore) Find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]bson.M, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.byCollection[collection], nil
}

func newTestService(store *fakeStore, timeout time.Duration) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(store, config.QueryConfig{Timeout: timeout}, log)
}

func TestLoadBasicRefs(t *testing.T) {
	oid := primitive.NewObjectID()
	store := &fakeStore{byCollection: map[string][]bson.M{
		"locations":      {{"_id": oid, "name": "Plant A"}},
		"machineclasses": {{"_id": "mc-1", "name": "Crusher"}},
	}}

	svc := newTestService(store, time.Second)

	basic, err := svc.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, basic.Locations, 1)
	assert.Equal(t, oid.Hex(), basic.Locations[0].ID)
	assert.Equal(t, "Plant A", basic.Locations[0].Name)

	require.Len(t, basic.MachineClasses, 1)
	assert.Equal(t, "mc-1", basic.MachineClasses[0].ID)
	assert.Equal(t, "Crusher", basic.MachineClasses[0].Name)
}

func TestLoadTimesOut(t *testing.T) {
	store := &fakeStore{block: true}
	svc := newTestService(store, 10*time.Millisecond)

	_, err := svc.Load(context.Background())
	require.Error(t, err)
	assert.True(t, analytics.IsExecutionError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
