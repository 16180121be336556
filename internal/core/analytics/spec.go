package analytics

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeBucket is the truncation granularity applied to the grouping
// time field. Buckets are calendar-aligned in UTC.
type TimeBucket string

const (
	BucketNone  TimeBucket = ""
	BucketHour  TimeBucket = "hour"
	BucketDay   TimeBucket = "day"
	BucketMonth TimeBucket = "month"
)

// Format returns the $dateToString format that produces a bucket's
// label. These formats define the bucket boundaries; any client that
// assumes boundaries must use the same ones.
func (b TimeBucket) Format() string {
	switch b {
	case BucketHour:
		return "%Y-%m-%d %H:00"
	case BucketDay:
		return "%Y-%m-%d"
	case BucketMonth:
		return "%Y-%m"
	}
	return ""
}

func (b TimeBucket) valid() bool {
	switch b {
	case BucketNone, BucketHour, BucketDay, BucketMonth:
		return true
	}
	return false
}

// MetricOp is an aggregate operator computed per group.
type MetricOp string

const (
	OpCount MetricOp = "count"
	OpSum   MetricOp = "sum"
	OpAvg   MetricOp = "avg"
	OpMin   MetricOp = "min"
	OpMax   MetricOp = "max"
)

func (op MetricOp) valid() bool {
	switch op {
	case OpCount, OpSum, OpAvg, OpMin, OpMax:
		return true
	}
	return false
}

// Metric describes one aggregate computed per group.
type Metric struct {
	Op    MetricOp `json:"op"`
	Field string   `json:"field"`
	As    string   `json:"as"`
}

// OutputName returns the result column the metric fills: As when set,
// otherwise "<op>_<field>".
func (m Metric) OutputName() string {
	if m.As != "" {
		return m.As
	}
	return fmt.Sprintf("%s_%s", m.Op, m.Field)
}

// Filters restricts the records a query sees: a half-open time range
// [From, To) on TimeField, equality filters on other fields, and
// not-null requirements used by the ranked views.
type Filters struct {
	TimeField string
	From      *time.Time
	To        *time.Time
	Equals    map[string]interface{}
	NotNull   []string
}

// UnmarshalJSON accepts the flat wire shape
// {"timeField": ..., "from": ..., "to": ..., "<field>": <value>, ...}
// where every unreserved key is an equality filter. Empty and null
// values are dropped, matching how filter controls submit blanks.
func (f *Filters) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Filters{}
	for key, val := range raw {
		switch key {
		case "timeField":
			if err := json.Unmarshal(val, &f.TimeField); err != nil {
				return invalidSpecf("filters.timeField must be a string")
			}
		case "from", "to":
			var s *string
			if err := json.Unmarshal(val, &s); err != nil {
				return invalidSpecf("filters.%s must be a datetime string", key)
			}
			if s == nil || *s == "" {
				continue
			}
			ts, err := ParseTime(*s)
			if err != nil {
				return invalidSpecf("filters.%s: unrecognized datetime %q", key, *s)
			}
			if key == "from" {
				f.From = &ts
			} else {
				f.To = &ts
			}
		default:
			var v interface{}
			if err := json.Unmarshal(val, &v); err != nil {
				return err
			}
			if v == nil || v == "" {
				continue
			}
			if f.Equals == nil {
				f.Equals = make(map[string]interface{})
			}
			f.Equals[key] = v
		}
	}
	return nil
}

// ParseTime parses the datetime formats filter controls send: RFC 3339,
// ISO without zone, and bare dates. Zone-less values are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

// Grouping declares the composite group key: the time-bucket truncation
// of TimeField followed by the By fields, in declared order.
type Grouping struct {
	TimeBucket TimeBucket `json:"timeBucket"`
	TimeField  string     `json:"timeField"`
	By         []string   `json:"by"`
}

// Sort orders groups by one output column after grouping and before the
// limit. Order is 1 ascending, -1 descending.
type Sort struct {
	By    string `json:"by"`
	Order int    `json:"order"`
}

// QuerySpec is the immutable, declarative description of one analytics
// query. Specs are built per request and never persisted.
type QuerySpec struct {
	Collection string   `json:"collection"`
	Filters    Filters  `json:"filters"`
	Group      Grouping `json:"group"`
	Metrics    []Metric `json:"metrics"`
	Limit      int      `json:"limit"`
	Sort       *Sort    `json:"sort,omitempty"`
}

// Collections the query layer may touch. Everything else is rejected at
// compile time.
var knownCollections = map[string]bool{
	"timerlogs":         true,
	"timerloghistories": true,
	"controllertimers":  true,
	"cycletimers":       true,
	"counts":            true,
	"machines":          true,
	"locations":         true,
	"machineclasses":    true,
}

// Collections that carry createdAt/endedAt pairs and therefore support
// the computed durationSec field.
var timerCollections = map[string]bool{
	"timerlogs":         true,
	"timerloghistories": true,
	"controllertimers":  true,
}

// TimeField resolves the effective time field: group declaration first,
// then the filter declaration, then createdAt.
func (s QuerySpec) TimeField() string {
	if s.Group.TimeField != "" {
		return s.Group.TimeField
	}
	if s.Filters.TimeField != "" {
		return s.Filters.TimeField
	}
	return "createdAt"
}

// Validate checks everything about the spec that can be checked
// statically, so malformed requests never reach the store.
func (s QuerySpec) Validate() error {
	if !knownCollections[s.Collection] {
		return invalidSpecf("unrecognized collection %q", s.Collection)
	}
	if !s.Group.TimeBucket.valid() {
		return invalidSpecf("unrecognized time bucket %q", s.Group.TimeBucket)
	}
	if len(s.Metrics) == 0 {
		return invalidSpecf("at least one metric is required")
	}
	if s.Limit < 0 {
		return invalidSpecf("limit must not be negative")
	}

	seen := map[string]bool{}
	if s.Group.TimeBucket != BucketNone {
		seen["t"] = true
	}
	for _, field := range s.Group.By {
		if field == "" {
			return invalidSpecf("group.by contains an empty field name")
		}
		if field == "t" {
			return invalidSpecf("group.by may not use the reserved column t")
		}
		if seen[field] {
			return invalidSpecf("duplicate group field %q", field)
		}
		seen[field] = true
	}

	for _, m := range s.Metrics {
		if !m.Op.valid() {
			return invalidSpecf("unrecognized metric op %q", m.Op)
		}
		if m.Field == "" {
			return invalidSpecf("metric %q has no field", m.Op)
		}
		name := m.OutputName()
		if seen[name] {
			return invalidSpecf("duplicate output column %q", name)
		}
		seen[name] = true
	}

	if s.Sort != nil {
		if s.Sort.By == "t" {
			if s.Group.TimeBucket == BucketNone {
				return invalidSpecf("sort.by t requires a time bucket")
			}
		} else if !seen[s.Sort.By] {
			return invalidSpecf("sort.by %q is not an output column", s.Sort.By)
		}
		if s.Sort.Order != 1 && s.Sort.Order != -1 {
			return invalidSpecf("sort.order must be 1 or -1")
		}
	}

	if s.From() != nil && s.To() != nil && !s.From().Before(*s.To()) {
		return invalidSpecf("filters.from must precede filters.to")
	}
	return nil
}

// From returns the inclusive lower time bound, nil when unbounded.
func (s QuerySpec) From() *time.Time { return s.Filters.From }

// To returns the exclusive upper time bound, nil when unbounded.
func (s QuerySpec) To() *time.Time { return s.Filters.To }
