package mssql

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"datapulse/internal/storage"
)

// openTestRepo connects to the server named by TEST_MSSQL_DSN, skipping the
// test when the variable is unset.
func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_MSSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MSSQL_DSN not set; skipping mssql integration test")
	}

	ctx := context.Background()
	r, err := New(ctx, storage.Config{Kind: "mssql", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(r.Close)

	if err := r.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return r
}

// TestMSSQLLifecycle verifies the lifecycle against a live server, including
// the conditional-update sentinels.
func TestMSSQLLifecycle(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t)

	id := "it-" + time.Now().UTC().Format("20060102150405.000000000")
	d := storage.Dataset{
		ID:         id,
		Filename:   "it.json",
		FileSize:   256,
		Format:     "json",
		Status:     storage.StatusPending,
		UploadTime: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := r.CreateDataset(ctx, d); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	defer func() { _ = r.DeleteDataset(ctx, id) }()

	if err := r.TransitionStatus(ctx, id, storage.StatusPending, storage.StatusProcessing); err != nil {
		t.Fatalf("claim: %v", err)
	}

	res := storage.RunResult{Profile: []byte(`{"columns": []}`), Format: "json", RowCount: 3, ColumnCount: 1, ProcessingSeconds: 0.1}
	if err := r.SaveProfile(ctx, id, res); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	err := r.SaveProfile(ctx, id, res)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("second SaveProfile = %v, want ErrStatusConflict", err)
	}

	got, err := r.GetDataset(ctx, id)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got.Status != storage.StatusCompleted || got.RowCount != 3 {
		t.Fatalf("dataset = %+v, want completed with counts", got)
	}

	if err := r.DeleteDataset(ctx, id); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := r.GetProfile(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetProfile after delete = %v, want ErrNotFound", err)
	}
}
