package profile

import (
	"fmt"
	"strconv"

	"datapulse/internal/table"
)

// Coerce converts a raw table into typed column vectors under the given
// schema.
//
// Rules, per cell:
//   - missing cells (null, absent, empty string) stay missing in every kind
//   - numeric columns: values that do not parse as a finite number degrade
//     to missing, never to an error
//   - boolean columns: only the fixed literal set maps to true/false
//   - categorical columns: the value's string form; numbers keep their
//     original textual form, booleans stringify as "true"/"false"
//
// Coercion cannot fail: per-cell problems become missing markers so the
// pipeline always reaches the statistics stage. A schema/table column-count
// mismatch is a programming error and panics.
func Coerce(raw *table.RawTable, schemas []table.ColumnSchema) *table.TypedTable {
	if len(schemas) != len(raw.Columns) {
		panic(fmt.Sprintf("profile: %d schemas for %d columns", len(schemas), len(raw.Columns)))
	}

	rows := raw.RowCount()
	out := &table.TypedTable{
		Columns: make([]table.TypedColumn, len(schemas)),
		Rows:    rows,
	}

	for idx, schema := range schemas {
		col := table.TypedColumn{
			Schema:  schema,
			Missing: make([]bool, rows),
		}

		switch schema.Kind {
		case table.KindNumeric:
			col.Floats = make([]float64, rows)
			for i, row := range raw.Rows {
				c := row[idx]
				if c.IsMissing() {
					col.Missing[i] = true
					continue
				}
				v, ok := cellAsFloat(c)
				if !ok {
					col.Missing[i] = true
					continue
				}
				col.Floats[i] = v
			}

		case table.KindBoolean:
			col.Bools = make([]bool, rows)
			for i, row := range raw.Rows {
				c := row[idx]
				if c.IsMissing() {
					col.Missing[i] = true
					continue
				}
				v, ok := cellAsBool(c)
				if !ok {
					col.Missing[i] = true
					continue
				}
				col.Bools[i] = v
			}

		default: // categorical (and the reserved unparsed kind)
			col.Strings = make([]string, rows)
			for i, row := range raw.Rows {
				c := row[idx]
				if c.IsMissing() {
					col.Missing[i] = true
					continue
				}
				col.Strings[i] = cellString(c)
			}
		}

		out.Columns[idx] = col
	}

	return out
}

// cellString renders a non-missing cell as its categorical string form.
func cellString(c table.Cell) string {
	switch c.Kind {
	case table.CellText:
		return c.Text
	case table.CellNumber:
		if c.Text != "" {
			return c.Text
		}
		return strconv.FormatFloat(c.Number, 'g', -1, 64)
	case table.CellBool:
		return strconv.FormatBool(c.Bool)
	default:
		return ""
	}
}
