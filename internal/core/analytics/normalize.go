package analytics

// Table is the flat tabular form of an aggregation result. Rows and Raw
// stay index-aligned 1:1: rows[i] was derived from raw[i], and the
// pivot engine depends on that alignment. Zero rows with columns
// present is a valid result, not an error.
type Table struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
	Raw     []GroupedRecord `json:"raw"`

	// KeyColumns is how many leading columns decompose the group key
	// (t plus the by fields). Not part of the wire contract.
	KeyColumns int `json:"-"`
}

// ColumnIndex returns the position of name in Columns, -1 when absent.
func (t Table) ColumnIndex(name string) int {
	for i, col := range t.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// MetricColumns returns the non-key columns in declared order.
func (t Table) MetricColumns() []string {
	if t.KeyColumns >= len(t.Columns) {
		return nil
	}
	return t.Columns[t.KeyColumns:]
}

// Normalize flattens grouped records into the tabular contract. Column
// order is t (when time was grouped), the by fields in declared order,
// then the metric output columns in declared order. Records are never
// reordered or dropped.
func Normalize(plan *Plan, records []GroupedRecord) Table {
	columns := plan.Columns()
	rows := make([][]interface{}, 0, len(records))
	for _, rec := range records {
		row := make([]interface{}, 0, len(columns))
		if plan.HasTime {
			row = append(row, rec.Key.Time)
		}
		for _, part := range rec.Key.Parts {
			row = append(row, part.Value)
		}
		for _, col := range plan.MetricColumns {
			row = append(row, rec.Values[col])
		}
		rows = append(rows, row)
	}
	return Table{
		Columns:    columns,
		Rows:       rows,
		Raw:        records,
		KeyColumns: plan.KeyColumns(),
	}
}
