package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"datapulse/internal/storage"
)

func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "datasets.db")
	r, err := New(ctx, storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)

	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return r
}

//
// Repository round trip
//

// TestSQLiteRoundTrip verifies a dataset survives the full lifecycle with
// timestamps intact: SQLite stores them as RFC3339Nano TEXT and they must
// come back equal.
func TestSQLiteRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := openTestRepo(t)

	uploaded := time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC)
	d := storage.Dataset{
		ID:         "d1",
		Filename:   "sales.csv",
		FileSize:   2048,
		Format:     "csv",
		Status:     storage.StatusPending,
		UploadTime: uploaded,
	}
	if err := r.CreateDataset(ctx, d); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	got, err := r.GetDataset(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if !got.UploadTime.Equal(uploaded) {
		t.Fatalf("UploadTime = %v, want %v", got.UploadTime, uploaded)
	}
	if got.Filename != "sales.csv" || got.Status != storage.StatusPending {
		t.Fatalf("dataset = %+v, want created record", got)
	}

	if err := r.TransitionStatus(ctx, "d1", storage.StatusPending, storage.StatusProcessing); err != nil {
		t.Fatalf("claim: %v", err)
	}
	res := storage.RunResult{Profile: []byte(`{"columns":[]}`), Format: "csv", RowCount: 5, ColumnCount: 2, ProcessingSeconds: 0.25}
	if err := r.SaveProfile(ctx, "d1", res); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	doc, err := r.GetProfile(ctx, "d1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if string(doc) != `{"columns":[]}` {
		t.Fatalf("profile = %s, want stored document", doc)
	}

	got, err = r.GetDataset(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got.Status != storage.StatusCompleted || got.RowCount != 5 || got.ProcessingSeconds != 0.25 {
		t.Fatalf("dataset after save = %+v, want completed with counts", got)
	}
	if got.Format != "csv" {
		t.Fatalf("Format = %q, want resolved format persisted", got.Format)
	}
}

// TestSQLiteConditionalUpdates verifies zero-row conditional updates map to
// the right sentinel: ErrStatusConflict for live rows in another status,
// ErrNotFound for missing ids.
func TestSQLiteConditionalUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r := openTestRepo(t)

	d := storage.Dataset{ID: "d1", Filename: "x.csv", Format: "csv", Status: storage.StatusPending, UploadTime: time.Now().UTC()}
	if err := r.CreateDataset(ctx, d); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	err := r.TransitionStatus(ctx, "d1", storage.StatusProcessing, storage.StatusCompleted)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("TransitionStatus wrong status = %v, want ErrStatusConflict", err)
	}
	err = r.TransitionStatus(ctx, "ghost", storage.StatusPending, storage.StatusProcessing)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("TransitionStatus unknown id = %v, want ErrNotFound", err)
	}
	err = r.SaveProfile(ctx, "d1", storage.RunResult{Profile: []byte("{}")})
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("SaveProfile on pending = %v, want ErrStatusConflict", err)
	}
	if _, err := r.GetProfile(ctx, "d1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetProfile without profile = %v, want ErrNotFound", err)
	}
	if err := r.DeleteDataset(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteDataset unknown id = %v, want ErrNotFound", err)
	}
}

//
// Time handling
//

// TestParseTimeFormats verifies the accepted timestamp spellings and that
// unknown formats fail loudly instead of returning a zero time.
func TestParseTimeFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{
			name: "rfc3339nano",
			in:   "2025-06-01T12:30:45.123456789Z",
			want: time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC),
		},
		{
			name: "rfc3339",
			in:   "2025-06-01T12:30:45Z",
			want: time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
		},
		{
			name: "space separated treated as utc",
			in:   "2025-06-01 12:30:45",
			want: time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
		},
		{name: "empty", in: "   ", wantErr: true},
		{name: "garbage", in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseTime(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseTime(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTime(%q): %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
