package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"datapulse/internal/storage"
)

func pendingDataset(id string, uploaded time.Time) storage.Dataset {
	return storage.Dataset{
		ID:         id,
		Filename:   id + ".csv",
		FileSize:   64,
		Format:     "csv",
		Status:     storage.StatusPending,
		UploadTime: uploaded,
	}
}

//
// Repository lifecycle
//

// TestLifecycle exercises the full dataset flow: create, claim, save, fetch,
// delete. Every repository backend implements these same semantics; the
// in-memory one is the reference.
func TestLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := r.CreateDataset(ctx, pendingDataset("d1", now)); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	if err := r.TransitionStatus(ctx, "d1", storage.StatusPending, storage.StatusProcessing); err != nil {
		t.Fatalf("claim: %v", err)
	}

	res := storage.RunResult{Profile: []byte(`{"ok":true}`), Format: "json", RowCount: 10, ColumnCount: 3, ProcessingSeconds: 1.5}
	if err := r.SaveProfile(ctx, "d1", res); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}

	d, err := r.GetDataset(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if d.Status != storage.StatusCompleted || d.RowCount != 10 || d.ColumnCount != 3 {
		t.Fatalf("dataset after save = %+v, want completed with counts", d)
	}
	if d.Format != "json" {
		t.Fatalf("Format = %q, want resolved format persisted", d.Format)
	}

	doc, err := r.GetProfile(ctx, "d1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if string(doc) != `{"ok":true}` {
		t.Fatalf("profile = %s, want stored document", doc)
	}

	if err := r.DeleteDataset(ctx, "d1"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	if _, err := r.GetDataset(ctx, "d1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetDataset after delete = %v, want ErrNotFound", err)
	}
}

// TestConditionalSemantics verifies the conditional operations: transitions
// from the wrong status are rejected, saving outside processing is rejected,
// and missing ids surface as ErrNotFound everywhere.
func TestConditionalSemantics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := New()
	now := time.Now().UTC()
	if err := r.CreateDataset(ctx, pendingDataset("d1", now)); err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	// Wrong from-status.
	err := r.TransitionStatus(ctx, "d1", storage.StatusProcessing, storage.StatusFailed)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("TransitionStatus wrong status = %v, want ErrStatusConflict", err)
	}

	// SaveProfile requires processing.
	err = r.SaveProfile(ctx, "d1", storage.RunResult{Profile: []byte("{}")})
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("SaveProfile on pending = %v, want ErrStatusConflict", err)
	}

	// Unknown ids.
	if err := r.TransitionStatus(ctx, "nope", storage.StatusPending, storage.StatusProcessing); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("TransitionStatus unknown id = %v, want ErrNotFound", err)
	}
	if err := r.DeleteDataset(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("DeleteDataset unknown id = %v, want ErrNotFound", err)
	}
	if _, err := r.GetProfile(ctx, "d1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetProfile without profile = %v, want ErrNotFound", err)
	}
}

// TestListOrdering verifies newest-first ordering with id tiebreaks, matching
// the SQL backends.
func TestListOrdering(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, d := range []storage.Dataset{
		pendingDataset("b", base),
		pendingDataset("a", base),
		pendingDataset("c", base.Add(time.Hour)),
	} {
		if err := r.CreateDataset(ctx, d); err != nil {
			t.Fatalf("CreateDataset(%s): %v", d.ID, err)
		}
	}

	got, err := r.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	var ids []string
	for _, d := range got {
		ids = append(ids, d.ID)
	}
	want := []string{"c", "a", "b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ListDatasets order = %v, want %v", ids, want)
		}
	}
}
