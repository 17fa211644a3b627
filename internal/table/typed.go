package table

import (
	"encoding/json"
	"fmt"
)

// ColumnKind is the inferred kind of a column.
type ColumnKind uint8

const (
	KindNumeric ColumnKind = iota
	KindCategorical
	KindBoolean
	// KindUnparsed is reserved for columns whose values defeated every
	// classifier. Inference currently folds such columns into categorical,
	// so the kind only appears in serialized schemas from older profiles.
	KindUnparsed
)

func (k ColumnKind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindBoolean:
		return "boolean"
	case KindUnparsed:
		return "unparsed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalJSON serializes the kind as its lowercase name.
func (k ColumnKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the lowercase kind name.
func (k *ColumnKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "numeric":
		*k = KindNumeric
	case "categorical":
		*k = KindCategorical
	case "boolean":
		*k = KindBoolean
	case "unparsed":
		*k = KindUnparsed
	default:
		return fmt.Errorf("table: unknown column kind %q", s)
	}
	return nil
}

// ColumnSchema is the inference result for one column.
//
// Confidence is the fraction of non-null values that parsed as Kind. An
// all-null column reports 0; the categorical fallback reports 1 because every
// value has a string form.
type ColumnSchema struct {
	Name       string     `json:"name"`
	Kind       ColumnKind `json:"kind"`
	Confidence float64    `json:"confidence"`
}

// TypedColumn is one coerced column vector. Exactly one of the value slices is
// populated, selected by Schema.Kind; Missing always has row-count length and
// masks entries whose value slot is meaningless.
type TypedColumn struct {
	Schema  ColumnSchema
	Floats  []float64 // KindNumeric
	Bools   []bool    // KindBoolean
	Strings []string  // KindCategorical
	Missing []bool
}

// TypedTable is the coerced form of a RawTable: same columns, same row count,
// typed vectors plus missing masks. It is immutable after coercion; the
// analysis stages read it concurrently without locking.
type TypedTable struct {
	Columns []TypedColumn
	Rows    int
}

// Validate checks the vector-length invariant. A violation is a coercion bug
// (never a data problem), so callers should treat a non-nil error as fatal.
func (t *TypedTable) Validate() error {
	for _, c := range t.Columns {
		if len(c.Missing) != t.Rows {
			return fmt.Errorf("table: column %q missing mask has %d entries, want %d", c.Schema.Name, len(c.Missing), t.Rows)
		}
		var n int
		switch c.Schema.Kind {
		case KindNumeric:
			n = len(c.Floats)
		case KindBoolean:
			n = len(c.Bools)
		default:
			n = len(c.Strings)
		}
		if n != t.Rows {
			return fmt.Errorf("table: column %q value vector has %d entries, want %d", c.Schema.Name, n, t.Rows)
		}
	}
	return nil
}

// NonMissingCount returns how many rows of column idx carry a value.
func (t *TypedTable) NonMissingCount(idx int) int {
	n := 0
	for _, m := range t.Columns[idx].Missing {
		if !m {
			n++
		}
	}
	return n
}
