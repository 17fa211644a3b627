// Package storage defines the dataset repository interface and the backend
// registry. Concrete backends live in subpackages and self-register via
// init, so importing a backend package is what makes its kind available.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Status is the dataset lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var (
	// ErrNotFound is returned when the referenced dataset does not exist.
	ErrNotFound = errors.New("storage: dataset not found")

	// ErrStatusConflict is returned by conditional operations when the
	// dataset exists but is not in the expected status. The pipeline relies
	// on this to reject a second concurrent run of the same dataset.
	ErrStatusConflict = errors.New("storage: dataset not in expected status")
)

// Dataset is one uploaded dataset's metadata record. The computed profile is
// stored alongside it but fetched separately via GetProfile because it can be
// large.
type Dataset struct {
	ID       string
	Filename string
	FileSize int64
	Format   string
	Status   Status
	// UploadTime is stored in UTC.
	UploadTime time.Time
	// RowCount, ColumnCount, and ProcessingSeconds are zero until the first
	// profiling run completes.
	RowCount          int
	ColumnCount       int
	ProcessingSeconds float64
}

// RunResult is everything a completed profiling run persists in one step.
type RunResult struct {
	// Profile is the serialized profile document, replaced wholesale.
	Profile []byte
	// Format is the format the run actually parsed. It replaces the declared
	// format, which may have been empty until detection resolved it.
	Format            string
	RowCount          int
	ColumnCount       int
	ProcessingSeconds float64
}

// Repository is the backend-agnostic dataset store.
//
// Status-changing operations are conditional on the current status so that
// exactly one writer can move a dataset through its lifecycle:
//
//   - TransitionStatus(id, from, to) applies only when status == from,
//     otherwise ErrStatusConflict.
//   - SaveProfile applies only while the dataset is processing; a dataset
//     deleted mid-run surfaces as ErrNotFound and the result is discarded.
type Repository interface {
	// Close releases backend resources. Treat as "call once" at shutdown.
	Close()

	// EnsureSchema creates tables as needed. Idempotent; called at startup.
	EnsureSchema(ctx context.Context) error

	CreateDataset(ctx context.Context, d Dataset) error
	GetDataset(ctx context.Context, id string) (Dataset, error)

	// ListDatasets returns all datasets ordered by upload time, newest first.
	ListDatasets(ctx context.Context) ([]Dataset, error)

	// DeleteDataset removes the dataset and its profile.
	// Returns ErrNotFound when the id does not exist.
	DeleteDataset(ctx context.Context, id string) error

	// TransitionStatus moves the dataset from one status to another.
	// Returns ErrNotFound when the id does not exist and ErrStatusConflict
	// when the dataset is not currently in the from status.
	TransitionStatus(ctx context.Context, id string, from, to Status) error

	// SaveProfile stores the run result and marks the dataset completed,
	// provided it is still processing. Returns ErrNotFound when the dataset
	// was deleted mid-run and ErrStatusConflict when another writer already
	// moved it out of processing.
	SaveProfile(ctx context.Context, id string, res RunResult) error

	// GetProfile returns the stored profile document. Returns ErrNotFound
	// when the dataset does not exist or has no profile yet.
	GetProfile(ctx context.Context, id string) ([]byte, error)
}

// Config selects and configures a backend.
//
// Kind must match a registered backend kind. DSN is passed through to the
// backend factory; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call Register from an init() function in a backend package. Registering
// the same kind twice panics; this fails fast on ambiguous backend selection.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.Kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
