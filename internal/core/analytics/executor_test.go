package analytics

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeStore struct {
	docs     []bson.M
	err      error
	block    bool
	pipeline mongo.Pipeline
}

func (f *fakeStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	f.pipeline = pipeline
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func (f *fakeStore) Find(ctx context.Context, collection string, filter bson.M, opts *options.FindOptions) ([]bson.M, error) {
	return f.docs, f.err
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestExecuteDecodesGroupedRecords(t *testing.T) {
	store := &fakeStore{docs: []bson.M{
		{"_id": bson.M{"t": "2024-01-01", "timerId": "A"}, "events": int32(2)},
		{"_id": bson.M{"t": "2024-01-02", "timerId": "B"}, "events": int64(1)},
	}}
	executor := NewExecutor(store, testQueryConfig(), testLogger())

	spec := validSpec()
	spec.Group.By = []string{"timerId"}
	plan, err := NewCompiler(testQueryConfig()).Compile(spec)
	require.NoError(t, err)

	records, err := executor.Execute(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "2024-01-01", records[0].Key.Time)
	assert.True(t, records[0].Key.HasTime)
	require.Len(t, records[0].Key.Parts, 1)
	assert.Equal(t, "timerId", records[0].Key.Parts[0].Field)
	assert.Equal(t, "A", records[0].Key.Parts[0].Value)
	assert.Equal(t, float64(2), records[0].Values["events"])
	assert.Equal(t, float64(1), records[1].Values["events"])
}

func TestExecuteDecodesDocumentStyleKeys(t *testing.T) {
	// The driver hands embedded _id documents back as bson.D when
	// decoding into an interface; both forms must decompose the same.
	store := &fakeStore{docs: []bson.M{
		{"_id": bson.D{{Key: "t", Value: "2024-01-01"}}, "events": 3},
	}}
	executor := NewExecutor(store, testQueryConfig(), testLogger())

	plan, err := NewCompiler(testQueryConfig()).Compile(validSpec())
	require.NoError(t, err)

	records, err := executor.Execute(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-01", records[0].Key.Time)
	assert.Equal(t, float64(3), records[0].Values["events"])
}

func TestExecuteEnforcesLimitDefensively(t *testing.T) {
	docs := make([]bson.M, 0, 30)
	for i := 0; i < 30; i++ {
		docs = append(docs, bson.M{"_id": bson.M{"t": "2024-01-01"}, "events": 1})
	}
	store := &fakeStore{docs: docs}
	executor := NewExecutor(store, testQueryConfig(), testLogger())

	spec := validSpec()
	spec.Limit = 10
	plan, err := NewCompiler(testQueryConfig()).Compile(spec)
	require.NoError(t, err)

	records, err := executor.Execute(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, records, 10)
}

func TestExecuteWrapsStoreFailure(t *testing.T) {
	cause := errors.New("connection refused")
	store := &fakeStore{err: cause}
	executor := NewExecutor(store, testQueryConfig(), testLogger())

	plan, err := NewCompiler(testQueryConfig()).Compile(validSpec())
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.True(t, errors.Is(err, cause))
}

func TestExecuteTimesOut(t *testing.T) {
	store := &fakeStore{block: true}
	cfg := testQueryConfig()
	cfg.Timeout = 10 * time.Millisecond
	executor := NewExecutor(store, cfg, testLogger())

	plan, err := NewCompiler(cfg).Compile(validSpec())
	require.NoError(t, err)

	_, err = executor.Execute(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, IsExecutionError(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
