// Package csv parses uploaded CSV bytes into a table.RawTable.
//
// Parsing is intentionally best-effort: profiling must reach the statistics
// stage whenever any usable rows exist, so malformed records are skipped
// rather than failing the upload. Only a broken header is a hard error.
package csv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"datapulse/internal/table"
)

// Parse reads CSV bytes and returns the raw table.
//
// Behavior:
//   - The first record is the header. Header names are trimmed, a UTF-8 BOM
//     on the first name is stripped, and duplicates are disambiguated.
//   - Data records with a field count different from the header are skipped.
//   - Cell values are trimmed; empty values become null cells.
//   - Empty input returns an empty table (zero columns, zero rows), not an
//     error. The ingest layer decides whether that fails the dataset.
//
// Errors:
//   - Returns an error only when the header record cannot be read.
//   - Per-record CSV errors after the header are skipped (best-effort).
func Parse(data []byte) (*table.RawTable, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return table.NewRawTable(nil, nil), nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // alignment is validated manually
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
		if i == 0 {
			header[i] = strings.TrimPrefix(header[i], "\uFEFF")
		}
	}
	columns := table.DedupeColumnNames(header)

	rows := make([][]table.Cell, 0, 1024)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Skip unreadable records; profiling tolerates dirty input.
			continue
		}
		if len(rec) != len(columns) {
			continue
		}

		row := make([]table.Cell, len(columns))
		for i, v := range rec {
			v = strings.TrimSpace(v)
			if v == "" {
				row[i] = table.NullCell()
				continue
			}
			row[i] = table.TextCell(v)
		}
		rows = append(rows, row)
	}

	return table.NewRawTable(columns, rows), nil
}
