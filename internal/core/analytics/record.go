package analytics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// KeyPart is one by-field value inside a composite group key.
type KeyPart struct {
	Field string
	Value interface{}
}

// GroupKey is the composite group identifier: the time-bucket label
// (when the query grouped on time) followed by the by-field values in
// the order the spec declared them. The declared order is the contract;
// the store's document key order is never consulted.
type GroupKey struct {
	Time    string
	HasTime bool
	Parts   []KeyPart
}

// Category returns the category-axis value for this key: the time
// bucket when present, otherwise the first by-field value.
func (k GroupKey) Category() string {
	if k.HasTime {
		return k.Time
	}
	if len(k.Parts) > 0 {
		return stringify(k.Parts[0].Value)
	}
	return ""
}

// Split returns the series-split value for this key: the first by-field
// value not already serving as the category axis. ok is false when the
// key has no split dimension.
func (k GroupKey) Split() (string, bool) {
	idx := 0
	if !k.HasTime {
		// First part is the category axis, split comes after it.
		idx = 1
	}
	if len(k.Parts) <= idx {
		return "", false
	}
	return stringify(k.Parts[idx].Value), true
}

// String renders a canonical form usable as a map key; two keys are the
// same group iff their canonical forms are equal.
func (k GroupKey) String() string {
	var b strings.Builder
	if k.HasTime {
		b.WriteString("t=")
		b.WriteString(k.Time)
	}
	for _, p := range k.Parts {
		b.WriteByte('\x1f')
		b.WriteString(p.Field)
		b.WriteByte('=')
		b.WriteString(stringify(p.Value))
	}
	return b.String()
}

// MarshalJSON flattens the key to the wire shape {"t": ..., field: ...}.
func (k GroupKey) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 1+len(k.Parts))
	if k.HasTime {
		out["t"] = k.Time
	}
	for _, p := range k.Parts {
		out[p.Field] = p.Value
	}
	return json.Marshal(out)
}

// GroupedRecord is one aggregation output row: the composite key plus
// the computed metric values keyed by output column.
type GroupedRecord struct {
	Key    GroupKey
	Values map[string]interface{}
}

// MarshalJSON mirrors the store's raw output shape: the key under _id,
// metrics at the top level.
func (r GroupedRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, 1+len(r.Values))
	out["_id"] = r.Key
	for name, value := range r.Values {
		out[name] = value
	}
	return json.Marshal(out)
}

func stringify(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// toFloat coerces the numeric types the store hands back. ok is false
// for nulls and non-numeric values.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
