package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() QuerySpec {
	return QuerySpec{
		Collection: "timerlogs",
		Group: Grouping{
			TimeBucket: BucketDay,
			TimeField:  "createdAt",
		},
		Metrics: []Metric{{Op: OpCount, Field: "_id", As: "events"}},
	}
}

func TestQuerySpecValidate(t *testing.T) {
	assert.NoError(t, validSpec().Validate())

	spec := validSpec()
	spec.Collection = "secrets"
	err := spec.Validate()
	require.Error(t, err)
	assert.True(t, IsInvalidSpec(err))

	spec = validSpec()
	spec.Metrics = []Metric{{Op: "median", Field: "cycle"}}
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Group.TimeBucket = "week"
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Metrics = nil
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Metrics = []Metric{{Op: OpCount, Field: "_id", As: "t"}}
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Group.By = []string{"timerId", "timerId"}
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Sort = &Sort{By: "events", Order: 2}
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Sort = &Sort{By: "nope", Order: 1}
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	spec.Group.TimeBucket = BucketNone
	spec.Group.By = []string{"timerId"}
	spec.Sort = &Sort{By: "t", Order: 1}
	assert.True(t, IsInvalidSpec(spec.Validate()))

	spec = validSpec()
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	spec.Filters.From = &from
	spec.Filters.To = &to
	assert.True(t, IsInvalidSpec(spec.Validate()))
}

func TestMetricOutputName(t *testing.T) {
	assert.Equal(t, "duration", Metric{Op: OpSum, Field: "durationSec", As: "duration"}.OutputName())
	assert.Equal(t, "sum_durationSec", Metric{Op: OpSum, Field: "durationSec"}.OutputName())
}

func TestFiltersUnmarshalFlatShape(t *testing.T) {
	payload := `{
		"timeField": "createdAt",
		"from": "2024-01-01",
		"to": "2024-02-01T12:30:00",
		"locationId": "loc-1",
		"machineClass": "",
		"timerId": null
	}`

	var f Filters
	require.NoError(t, json.Unmarshal([]byte(payload), &f))

	assert.Equal(t, "createdAt", f.TimeField)
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *f.From)
	assert.Equal(t, time.Date(2024, 2, 1, 12, 30, 0, 0, time.UTC), *f.To)

	// Blank and null values never become equality filters.
	assert.Equal(t, map[string]interface{}{"locationId": "loc-1"}, f.Equals)
}

func TestFiltersUnmarshalRejectsBadDatetime(t *testing.T) {
	var f Filters
	err := json.Unmarshal([]byte(`{"from": "yesterday"}`), &f)
	require.Error(t, err)
	assert.True(t, IsInvalidSpec(err))
}

func TestParseTime(t *testing.T) {
	ts, err := ParseTime("2024-03-05T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), ts)

	ts, err = ParseTime("2024-03-05")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), ts)

	_, err = ParseTime("not-a-time")
	assert.Error(t, err)
}

func TestTimeFieldResolution(t *testing.T) {
	spec := validSpec()
	assert.Equal(t, "createdAt", spec.TimeField())

	spec.Group.TimeField = "endedAt"
	assert.Equal(t, "endedAt", spec.TimeField())

	spec.Group.TimeField = ""
	spec.Filters.TimeField = "startAt"
	assert.Equal(t, "startAt", spec.TimeField())
}
