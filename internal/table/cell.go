// Package table defines the in-memory dataset model shared by the parsers and
// the profiling pipeline.
//
// The model is split in two layers:
//   - RawTable: cells exactly as parsed from the upload, untyped. Source data
//     is schema-less, so every cell is a tagged value (null | text | number |
//     boolean) rather than an implicitly coerced Go scalar.
//   - TypedTable: per-column typed vectors plus an explicit missing mask,
//     produced by the coercion stage after schema inference.
//
// Both tables are treated as immutable once built.
package table

import "strings"

// CellKind tags the parsed representation of a single cell.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellText
	CellNumber
	CellBool
)

// Cell is one untyped value from an upload.
//
// For CellNumber, Text carries the original textual form of the number
// (e.g. "1.50" rather than "1.5"). Categorical coercion uses that form so a
// value round-trips exactly as the user wrote it.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Bool   bool
}

// NullCell returns the explicit null/absent cell.
func NullCell() Cell { return Cell{Kind: CellNull} }

// TextCell wraps a raw string value.
func TextCell(s string) Cell { return Cell{Kind: CellText, Text: s} }

// NumberCell wraps a parsed number while preserving its original textual form.
func NumberCell(v float64, raw string) Cell {
	return Cell{Kind: CellNumber, Number: v, Text: raw}
}

// BoolCell wraps a native boolean (only JSON input produces these).
func BoolCell(v bool) Cell { return Cell{Kind: CellBool, Bool: v} }

// IsMissing reports whether the cell counts as missing for profiling purposes.
//
// Null/absent cells and empty or whitespace-only text cells are missing,
// regardless of the column's inferred kind.
func (c Cell) IsMissing() bool {
	switch c.Kind {
	case CellNull:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}
