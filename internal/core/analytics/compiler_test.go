package analytics

import (
	"testing"
	"time"

	"github.com/apms-ops/apms-backend-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func testQueryConfig() config.QueryConfig {
	return config.QueryConfig{
		Timeout:      time.Second,
		DefaultLimit: 200,
		MaxRows:      5000,
	}
}

func stageNames(plan *Plan) []string {
	names := make([]string, 0, len(plan.Pipeline))
	for _, stage := range plan.Pipeline {
		names = append(names, stage[0].Key)
	}
	return names
}

func findStage(t *testing.T, plan *Plan, name string) interface{} {
	t.Helper()
	for _, stage := range plan.Pipeline {
		if stage[0].Key == name {
			return stage[0].Value
		}
	}
	t.Fatalf("pipeline has no %s stage", name)
	return nil
}

func TestCompileStageOrder(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	plan, err := compiler.Compile(validSpec())
	require.NoError(t, err)

	// Timer collections get the duration precompute before everything
	// else; grouping on a time bucket adds the deterministic sort.
	assert.Equal(t, []string{"$addFields", "$group", "$sort", "$limit"}, stageNames(plan))
	assert.Equal(t, "timerlogs", plan.Collection)
	assert.Equal(t, []string{"t", "events"}, plan.Columns())
	assert.Equal(t, 1, plan.KeyColumns())
}

func TestCompileNoDurationForPlainCollections(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := validSpec()
	spec.Collection = "counts"
	spec.Group.TimeField = "startAt"

	plan, err := compiler.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"$group", "$sort", "$limit"}, stageNames(plan))
}

func TestCompileHalfOpenTimeRange(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := validSpec()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	spec.Filters.From = &from
	spec.Filters.To = &to

	plan, err := compiler.Compile(spec)
	require.NoError(t, err)

	match := findStage(t, plan, "$match").(bson.M)
	bounds := match["createdAt"].(bson.M)
	assert.Equal(t, from, bounds["$gte"])
	assert.Equal(t, to, bounds["$lt"])
	_, hasLTE := bounds["$lte"]
	assert.False(t, hasLTE)
}

func TestCompileGroupKeyOrder(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := validSpec()
	spec.Group.By = []string{"timerId", "stopReason"}

	plan, err := compiler.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"t", "timerId", "stopReason", "events"}, plan.Columns())
	assert.Equal(t, 3, plan.KeyColumns())

	group := findStage(t, plan, "$group").(bson.D)
	require.Equal(t, "_id", group[0].Key)
	id := group[0].Value.(bson.D)
	require.Len(t, id, 3)
	assert.Equal(t, "t", id[0].Key)
	assert.Equal(t, "timerId", id[1].Key)
	assert.Equal(t, "stopReason", id[2].Key)
}

func TestCompileBucketFormats(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	for bucket, format := range map[TimeBucket]string{
		BucketDay:   "%Y-%m-%d",
		BucketMonth: "%Y-%m",
		BucketHour:  "%Y-%m-%d %H:00",
	} {
		spec := validSpec()
		spec.Group.TimeBucket = bucket

		plan, err := compiler.Compile(spec)
		require.NoError(t, err)

		group := findStage(t, plan, "$group").(bson.D)
		id := group[0].Value.(bson.D)
		key := id[0].Value.(bson.M)["$dateToString"].(bson.M)
		assert.Equal(t, format, key["format"])
		assert.Equal(t, "$createdAt", key["date"])
	}
}

func TestCompileLimitBounds(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	plan, err := compiler.Compile(validSpec())
	require.NoError(t, err)
	assert.Equal(t, 200, plan.Limit)

	spec := validSpec()
	spec.Limit = 10000
	plan, err = compiler.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, 5000, plan.Limit)

	spec.Limit = 10
	plan, err = compiler.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, 10, plan.Limit)
	assert.Equal(t, 10, findStage(t, plan, "$limit"))
}

func TestCompileExplicitSortBeforeLimit(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := QuerySpec{
		Collection: "timerlogs",
		Filters:    Filters{NotNull: []string{"stopReason"}},
		Group:      Grouping{By: []string{"stopReason"}},
		Metrics:    []Metric{{Op: OpCount, Field: "_id", As: "n"}},
		Sort:       &Sort{By: "n", Order: -1},
		Limit:      20,
	}

	plan, err := compiler.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"$addFields", "$match", "$group", "$sort", "$limit"}, stageNames(plan))

	sort := findStage(t, plan, "$sort").(bson.D)
	assert.Equal(t, "n", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)

	match := findStage(t, plan, "$match").(bson.M)
	assert.Equal(t, bson.M{"$ne": nil}, match["stopReason"])
}

func TestCompileNoSortWithoutBucketOrRequest(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := QuerySpec{
		Collection: "counts",
		Group:      Grouping{By: []string{"timerId"}, TimeField: "startAt"},
		Metrics:    []Metric{{Op: OpSum, Field: "tons", As: "totalTons"}},
	}

	plan, err := compiler.Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"$group", "$limit"}, stageNames(plan))
}

func TestCompileDurationMetricSource(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := validSpec()
	spec.Metrics = []Metric{{Op: OpSum, Field: "durationSec", As: "duration"}}

	plan, err := compiler.Compile(spec)
	require.NoError(t, err)

	group := findStage(t, plan, "$group").(bson.D)
	acc := group[1].Value.(bson.M)
	assert.Equal(t, bson.M{"$ifNull": bson.A{"$__durationSec", 0}}, acc["$sum"])
}

func TestCompileRejectsInvalidSpec(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	spec := validSpec()
	spec.Metrics = []Metric{{Op: "stddev", Field: "cycle"}}

	_, err := compiler.Compile(spec)
	require.Error(t, err)
	assert.True(t, IsInvalidSpec(err))
}

func TestCompileSortOnKeyColumns(t *testing.T) {
	compiler := NewCompiler(testQueryConfig())

	// The bucket column lives under _id after $group.
	spec := validSpec()
	spec.Sort = &Sort{By: "t", Order: -1}
	plan, err := compiler.Compile(spec)
	require.NoError(t, err)
	sort := findStage(t, plan, "$sort").(bson.D)
	assert.Equal(t, "_id.t", sort[0].Key)
	assert.Equal(t, -1, sort[0].Value)

	// So do the by fields.
	spec = validSpec()
	spec.Group.By = []string{"timerId"}
	spec.Sort = &Sort{By: "timerId", Order: 1}
	plan, err = compiler.Compile(spec)
	require.NoError(t, err)
	sort = findStage(t, plan, "$sort").(bson.D)
	assert.Equal(t, "_id.timerId", sort[0].Key)
	assert.Equal(t, 1, sort[0].Value)
}
