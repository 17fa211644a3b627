package ingest

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

//
// Decode
//

// TestDecodeValidation verifies the hard ingestion errors: empty uploads,
// oversized uploads, unknown declared formats, and parses that yield no
// columns or no rows.
func TestDecodeValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"empty", Upload{Filename: "x.csv"}, ErrEmptyUpload},
		{"too large", Upload{Filename: "x.csv", Data: make([]byte, MaxUploadBytes+1)}, ErrUploadTooLarge},
		{"bad format", Upload{Format: "xlsx", Data: []byte("a,b\n1,2\n")}, ErrUnsupportedFormat},
		{"no columns", Upload{Format: "csv", Data: []byte("   \n")}, ErrNoColumns},
		{"no rows", Upload{Format: "csv", Data: []byte("a,b\n")}, ErrNoRows},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Decode(tt.up)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestDecodeFormatResolution verifies the declared format wins, then the
// filename extension, then content sniffing, with CSV as the last resort.
func TestDecodeFormatResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		up         Upload
		wantFormat string
	}{
		{"declared csv", Upload{Format: "csv", Data: []byte("a,b\n1,2\n")}, FormatCSV},
		{"declared json", Upload{Format: "json", Data: []byte(`[{"a": 1}]`)}, FormatJSON},
		{"declared case-insensitive", Upload{Format: " JSON ", Data: []byte(`[{"a": 1}]`)}, FormatJSON},
		{"json extension", Upload{Filename: "data.JSON", Data: []byte(`[{"a": 1}]`)}, FormatJSON},
		{"csv extension", Upload{Filename: "data.csv", Data: []byte("a,b\n1,2\n")}, FormatCSV},
		{"sniff json array", Upload{Filename: "data.txt", Data: []byte(` [{"a": 1}]`)}, FormatJSON},
		{"sniff json object", Upload{Data: []byte(`{"a": 1}`)}, FormatJSON},
		{"fallback csv", Upload{Data: []byte("a,b\n1,2\n")}, FormatCSV},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, format, err := Decode(tt.up)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if format != tt.wantFormat {
				t.Fatalf("Decode() format = %q, want %q", format, tt.wantFormat)
			}
		})
	}
}

// TestDecodeUTF16 verifies a UTF-16 LE upload with BOM decodes to the same
// table as its UTF-8 equivalent.
func TestDecodeUTF16(t *testing.T) {
	t.Parallel()

	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("a,b\n1,hello\n"))
	if err != nil {
		t.Fatalf("encode utf-16: %v", err)
	}

	tbl, format, err := Decode(Upload{Filename: "x.csv", Data: data})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if format != FormatCSV {
		t.Fatalf("format = %q, want csv", format)
	}
	if got := tbl.Rows[0][1].Text; got != "hello" {
		t.Fatalf("col b = %q, want %q", got, "hello")
	}
}

// TestDecodeUTF8BOM verifies a UTF-8 BOM is stripped before parsing.
func TestDecodeUTF8BOM(t *testing.T) {
	t.Parallel()

	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)
	tbl, _, err := Decode(Upload{Filename: "x.csv", Data: data})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if tbl.Columns[0] != "a" {
		t.Fatalf("Columns[0] = %q, want %q", tbl.Columns[0], "a")
	}
}

// TestDecodeLatin1Fallback verifies bytes that are not valid UTF-8 decode as
// Latin-1 instead of failing.
func TestDecodeLatin1Fallback(t *testing.T) {
	t.Parallel()

	// 0xE9 is é in Latin-1 and invalid as a standalone UTF-8 byte.
	data := []byte("name\ncaf\xe9\n")
	if bytes.ContainsRune(data, 'é') {
		t.Fatalf("test input must not already be UTF-8")
	}

	tbl, _, err := Decode(Upload{Filename: "x.csv", Data: data})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got := tbl.Rows[0][0].Text; got != "café" {
		t.Fatalf("cell = %q, want %q", got, "café")
	}
}
