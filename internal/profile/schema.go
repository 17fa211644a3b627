package profile

import (
	"math"
	"strconv"
	"strings"

	"datapulse/internal/table"
)

// booleanLiterals is the fixed set of strings recognized as boolean values.
// Checked case-insensitively after trimming.
var booleanLiterals = map[string]bool{
	"true": true, "false": false,
	"1": true, "0": false,
	"yes": true, "no": false,
}

// InferSchema classifies every column of a raw table.
//
// Classification walks all non-missing values of the column (no subsampling,
// so the result is deterministic):
//   - boolean when every value is a boolean literal; checked before numeric
//     so all-1/0 columns classify as boolean
//   - numeric when every value parses as a finite decimal number
//   - categorical otherwise
//
// A column with zero non-missing values defaults to numeric with confidence
// 0. There is no error path: ambiguous columns fall back to categorical so
// every column gets profiled.
func InferSchema(raw *table.RawTable) []table.ColumnSchema {
	out := make([]table.ColumnSchema, len(raw.Columns))

	for idx, name := range raw.Columns {
		var seen, boolHits, numHits int

		for _, row := range raw.Rows {
			c := row[idx]
			if c.IsMissing() {
				continue
			}
			seen++
			if _, ok := cellAsBool(c); ok {
				boolHits++
			}
			if _, ok := cellAsFloat(c); ok {
				numHits++
			}
		}

		schema := table.ColumnSchema{Name: name}
		switch {
		case seen == 0:
			schema.Kind = table.KindNumeric
			schema.Confidence = 0
		case boolHits == seen:
			schema.Kind = table.KindBoolean
			schema.Confidence = 1
		case numHits == seen:
			schema.Kind = table.KindNumeric
			schema.Confidence = 1
		default:
			schema.Kind = table.KindCategorical
			schema.Confidence = 1
		}
		out[idx] = schema
	}

	return out
}

// cellAsBool interprets a cell as a boolean literal.
func cellAsBool(c table.Cell) (bool, bool) {
	switch c.Kind {
	case table.CellBool:
		return c.Bool, true
	case table.CellText, table.CellNumber:
		v, ok := booleanLiterals[strings.ToLower(strings.TrimSpace(c.Text))]
		return v, ok
	default:
		return false, false
	}
}

// cellAsFloat interprets a cell as a finite number. Textual values are
// trimmed first; "inf"/"nan" spellings accepted by strconv are rejected so
// non-finite values never enter the statistics.
func cellAsFloat(c table.Cell) (float64, bool) {
	switch c.Kind {
	case table.CellNumber:
		if math.IsInf(c.Number, 0) || math.IsNaN(c.Number) {
			return 0, false
		}
		return c.Number, true
	case table.CellText:
		f, err := strconv.ParseFloat(strings.TrimSpace(c.Text), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
