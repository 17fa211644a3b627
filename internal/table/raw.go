package table

import "fmt"

// RawTable holds an upload exactly as parsed: an ordered column list and a
// rectangular cell grid. Row i, column j is Rows[i][j], aligned with
// Columns[j].
//
// Invariants:
//   - Every row has exactly len(Columns) cells. Parsers drop records that
//     cannot be aligned; they never emit ragged rows.
//   - Column names are unique (see DedupeColumnNames).
type RawTable struct {
	Columns []string
	Rows    [][]Cell
}

func (t *RawTable) RowCount() int    { return len(t.Rows) }
func (t *RawTable) ColumnCount() int { return len(t.Columns) }

// Column returns the cells of column idx in row order.
func (t *RawTable) Column(idx int) []Cell {
	out := make([]Cell, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// mustAligned panics when a row does not match the column count. Ragged rows
// indicate a parser bug, not bad input, so this fails loudly.
func (t *RawTable) mustAligned() {
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			panic(fmt.Sprintf("table: row %d has %d cells, want %d", i, len(r), len(t.Columns)))
		}
	}
}

// NewRawTable builds a RawTable and verifies row alignment.
func NewRawTable(columns []string, rows [][]Cell) *RawTable {
	t := &RawTable{Columns: columns, Rows: rows}
	t.mustAligned()
	return t
}

// DedupeColumnNames disambiguates repeated column names deterministically by
// suffixing "_2", "_3", ... onto second and later occurrences. A suffixed name
// that still collides keeps incrementing until free.
//
// Header rows in the wild repeat names surprisingly often; every raw column
// must map to exactly one schema entry, so the mapping has to be injective.
func DedupeColumnNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))

	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = 1
			out[i] = n
			continue
		}

		seen[n]++
		candidate := fmt.Sprintf("%s_%d", n, seen[n])
		for {
			if _, taken := seen[candidate]; !taken {
				break
			}
			seen[n]++
			candidate = fmt.Sprintf("%s_%d", n, seen[n])
		}
		seen[candidate] = 1
		out[i] = candidate
	}
	return out
}
