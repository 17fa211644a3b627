// Package ingest is the upload boundary of the profiling pipeline.
//
// It turns raw uploaded bytes plus a declared format into a table.RawTable,
// normalizing text encoding on the way in. Everything that can fail here is
// an ingestion error: the dataset is marked failed and no profile is built.
// Past this boundary, failures degrade to markers inside the profile instead.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"datapulse/internal/parser/csv"
	"datapulse/internal/parser/json"
	"datapulse/internal/table"
)

// MaxUploadBytes caps accepted uploads at 50MB.
const MaxUploadBytes = 50 << 20

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var (
	ErrEmptyUpload       = errors.New("ingest: upload is empty")
	ErrUploadTooLarge    = errors.New("ingest: upload exceeds 50MB limit")
	ErrUnsupportedFormat = errors.New("ingest: only csv and json uploads are supported")
	ErrNoColumns         = errors.New("ingest: upload contains no columns")
	ErrNoRows            = errors.New("ingest: upload contains no data rows")
)

// Upload carries one uploaded file through decoding.
type Upload struct {
	Filename string
	// Format is the declared format ("csv" or "json"). When empty, the
	// filename extension and then content sniffing decide.
	Format string
	Data   []byte
}

// Decode validates and parses an upload.
//
// Returns the raw table and the resolved format. All returned errors are
// ingestion errors in the sense of the pipeline's error taxonomy: the caller
// should mark the dataset failed and stop.
func Decode(up Upload) (*table.RawTable, string, error) {
	if len(up.Data) == 0 {
		return nil, "", ErrEmptyUpload
	}
	if len(up.Data) > MaxUploadBytes {
		return nil, "", ErrUploadTooLarge
	}

	data, err := normalizeEncoding(up.Data)
	if err != nil {
		return nil, "", fmt.Errorf("ingest: normalize encoding: %w", err)
	}

	format, err := resolveFormat(up, data)
	if err != nil {
		return nil, "", err
	}

	var tbl *table.RawTable
	switch format {
	case FormatCSV:
		tbl, err = csv.Parse(data)
	case FormatJSON:
		tbl, err = json.Parse(data)
	}
	if err != nil {
		return nil, "", fmt.Errorf("ingest: parse %s: %w", format, err)
	}

	if tbl.ColumnCount() == 0 {
		return nil, "", ErrNoColumns
	}
	if tbl.RowCount() == 0 {
		return nil, "", ErrNoRows
	}
	return tbl, format, nil
}

// resolveFormat picks the parse format: declared format first, then filename
// extension, then a content sniff (JSON roots start with '{' or '[').
func resolveFormat(up Upload, data []byte) (string, error) {
	switch strings.ToLower(strings.TrimSpace(up.Format)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case "":
	default:
		return "", ErrUnsupportedFormat
	}

	name := strings.ToLower(up.Filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(name, ".json"):
		return FormatJSON, nil
	}

	trim := bytes.TrimSpace(data)
	if len(trim) > 0 && (trim[0] == '{' || trim[0] == '[') {
		return FormatJSON, nil
	}
	return FormatCSV, nil
}

// normalizeEncoding converts upload bytes to plain UTF-8.
//
// Handled inputs:
//   - UTF-16 LE/BE with BOM (decoded via x/text)
//   - UTF-8 with BOM (BOM stripped)
//   - valid UTF-8 (passed through)
//   - anything else is treated as Latin-1, which cannot fail; genuinely
//     binary uploads then fail later as zero-column parses
func normalizeEncoding(data []byte) ([]byte, error) {
	if len(data) >= 2 {
		le := data[0] == 0xFF && data[1] == 0xFE
		be := data[0] == 0xFE && data[1] == 0xFF
		if le || be {
			dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
			out, err := dec.Bytes(data)
			if err != nil {
				return nil, fmt.Errorf("decode utf-16: %w", err)
			}
			return out, nil
		}
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data, nil
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1: %w", err)
	}
	return out, nil
}
