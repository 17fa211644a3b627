// Package memory is an in-process storage.Repository. It backs tests and the
// CLI default so profiling a file needs no database.
package memory

import (
	"context"
	"sort"
	"sync"

	"datapulse/internal/storage"
)

// Repo keeps datasets in a map guarded by a mutex. Safe for concurrent use.
type Repo struct {
	mu       sync.Mutex
	datasets map[string]*record
}

type record struct {
	dataset storage.Dataset
	profile []byte
}

func init() {
	storage.Register("memory", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return New(), nil
	})
}

// New returns an empty in-memory repository. The DSN is ignored.
func New() *Repo {
	return &Repo{datasets: map[string]*record{}}
}

func (r *Repo) Close() {}

func (r *Repo) EnsureSchema(ctx context.Context) error { return nil }

func (r *Repo) CreateDataset(ctx context.Context, d storage.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[d.ID] = &record{dataset: d}
	return nil
}

func (r *Repo) GetDataset(ctx context.Context, id string) (storage.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.datasets[id]
	if !ok {
		return storage.Dataset{}, storage.ErrNotFound
	}
	return rec.dataset, nil
}

func (r *Repo) ListDatasets(ctx context.Context) ([]storage.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]storage.Dataset, 0, len(r.datasets))
	for _, rec := range r.datasets {
		out = append(out, rec.dataset)
	}
	// Newest first, id as tiebreaker, matching the SQL backends.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadTime.Equal(out[j].UploadTime) {
			return out[i].UploadTime.After(out[j].UploadTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *Repo) DeleteDataset(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.datasets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.datasets, id)
	return nil
}

func (r *Repo) TransitionStatus(ctx context.Context, id string, from, to storage.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.datasets[id]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.dataset.Status != from {
		return storage.ErrStatusConflict
	}
	rec.dataset.Status = to
	return nil
}

func (r *Repo) SaveProfile(ctx context.Context, id string, result storage.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.datasets[id]
	if !ok {
		return storage.ErrNotFound
	}
	if rec.dataset.Status != storage.StatusProcessing {
		return storage.ErrStatusConflict
	}
	rec.dataset.Status = storage.StatusCompleted
	rec.dataset.Format = result.Format
	rec.dataset.RowCount = result.RowCount
	rec.dataset.ColumnCount = result.ColumnCount
	rec.dataset.ProcessingSeconds = result.ProcessingSeconds
	rec.profile = append([]byte(nil), result.Profile...)
	return nil
}

func (r *Repo) GetProfile(ctx context.Context, id string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.datasets[id]
	if !ok || rec.profile == nil {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), rec.profile...), nil
}
