// Package json parses uploaded JSON bytes into a table.RawTable.
//
// Accepted shapes:
//   - A root array of objects: each object is one row.
//   - A root object containing at least one array-of-objects field (envelope
//     pattern): the first such field provides the rows.
//   - A root object with no array-of-objects field: one row.
//   - Additional top-level objects after the root value (JSONL tail).
//
// Nested objects are flattened into dotted keys ("address.city"). Numbers are
// decoded as json.Number so the original textual form survives into
// categorical coercion.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"datapulse/internal/table"
)

// record is one flattened JSON object keyed by dotted column path.
type record map[string]any

// Parse reads JSON bytes and returns the raw table.
//
// Column order is the sorted union of keys across all records; a key missing
// from a record yields a null cell. Decode errors after at least one record
// has been read stop parsing and keep what was read (best-effort, matching
// the CSV parser). A root that is neither object nor array is an error.
func Parse(data []byte) (*table.RawTable, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return table.NewRawTable(nil, nil), nil
	}

	recs, err := decodeRecords(data)
	if err != nil {
		return nil, err
	}

	flat := make([]record, 0, len(recs))
	for _, r := range recs {
		m := make(record, len(r))
		flattenInto("", r, m)
		flat = append(flat, m)
	}

	columns := unionColumns(flat)
	rows := make([][]table.Cell, 0, len(flat))
	for _, r := range flat {
		row := make([]table.Cell, len(columns))
		for i, col := range columns {
			v, ok := r[col]
			if !ok {
				row[i] = table.NullCell()
				continue
			}
			row[i] = cellFromValue(v)
		}
		rows = append(rows, row)
	}

	return table.NewRawTable(columns, rows), nil
}

// decodeRecords decodes the root value plus any trailing JSONL objects.
func decodeRecords(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("json: decode root value: %w", err)
	}

	var out []map[string]any
	switch v := root.(type) {
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}

	case map[string]any:
		if slice := findObjectSlice(v); slice != nil {
			out = append(out, slice...)
		} else {
			out = append(out, v)
		}

	default:
		return nil, fmt.Errorf("json: unsupported root value %T (want object or array)", root)
	}

	// JSONL tail: extra top-level objects after the root value.
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if err == io.EOF {
				break
			}
			// Keep what we have; trailing garbage must not fail the upload.
			break
		}
		out = append(out, obj)
	}

	return out, nil
}

// findObjectSlice returns the first root field that is a non-empty array of
// objects, in sorted key order so envelope detection is deterministic.
func findObjectSlice(root map[string]any) []map[string]any {
	keys := make([]string, 0, len(root))
	for k := range root {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		arr, ok := root[k].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		objs := make([]map[string]any, 0, len(arr))
		valid := true
		for _, elem := range arr {
			if elem == nil {
				continue
			}
			m, ok := elem.(map[string]any)
			if !ok {
				valid = false
				break
			}
			objs = append(objs, m)
		}
		if valid && len(objs) > 0 {
			return objs
		}
	}
	return nil
}

func flattenInto(prefix string, in map[string]any, out record) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok {
			flattenInto(key, m, out)
			continue
		}
		out[key] = v
	}
}

func unionColumns(recs []record) []string {
	set := make(map[string]struct{})
	for _, r := range recs {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return table.DedupeColumnNames(out)
}

// cellFromValue maps a decoded JSON scalar onto a tagged cell.
//
// Arrays of strings are joined with ", " into a single text cell; any other
// array (or value of unexpected type) is stringified. Nulls and empty strings
// become null cells.
func cellFromValue(v any) table.Cell {
	switch t := v.(type) {
	case nil:
		return table.NullCell()

	case string:
		if strings.TrimSpace(t) == "" {
			return table.NullCell()
		}
		return table.TextCell(t)

	case json.Number:
		f, err := t.Float64()
		if err != nil {
			// Out-of-range literal; keep the text so the column can still
			// profile as categorical.
			return table.TextCell(t.String())
		}
		return table.NumberCell(f, t.String())

	case bool:
		return table.BoolCell(t)

	case []any:
		if len(t) == 0 {
			return table.NullCell()
		}
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return table.TextCell(fmt.Sprint(t))
			}
			ss = append(ss, s)
		}
		if len(ss) == 0 {
			return table.NullCell()
		}
		return table.TextCell(strings.Join(ss, ", "))

	default:
		return table.TextCell(fmt.Sprint(t))
	}
}
