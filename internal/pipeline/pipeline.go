// Package pipeline orchestrates a profiling run: upload registration, the
// pending->processing->completed|failed status machine, the concurrent
// analysis stages, the narrative stage, and persistence of the result.
//
// The Runner is the single writer of a dataset's status and profile. A
// dataset is claimed with a conditional status transition before any work
// starts, so two concurrent runs of the same dataset cannot interleave: the
// loser gets ErrRunInFlight.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"datapulse/internal/ingest"
	"datapulse/internal/insight"
	"datapulse/internal/metrics"
	"datapulse/internal/profile"
	"datapulse/internal/storage"
	"datapulse/internal/table"
)

// ErrRunInFlight is returned when a run is requested for a dataset that is
// already processing.
var ErrRunInFlight = errors.New("pipeline: a profiling run is already in flight for this dataset")

// Metric names emitted by the Runner.
const (
	metricStageTotal      = "profile_stage_total"
	metricStageDuration   = "profile_stage_duration_seconds"
	metricDatasetsTotal   = "profile_datasets_total"
	metricRunDuration     = "profile_run_duration_seconds"
	metricSummarizerTotal = "summarizer_requests_total"
	metricSummarizerDur   = "summarizer_request_duration_seconds"
)

// Runner executes profiling runs against a repository.
type Runner struct {
	Store storage.Repository

	// Summarizer produces the narrative. May be nil; the profile then
	// carries an explicit unavailable marker instead of failing.
	Summarizer insight.Summarizer

	// Now is a clock seam for tests. Nil means time.Now.
	Now func() time.Time

	// NewID mints dataset identifiers. Nil means uuid.NewString.
	NewID func() string
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) newID() string {
	if r.NewID != nil {
		return r.NewID()
	}
	return uuid.NewString()
}

// Submit registers an upload as a new pending dataset and returns its record.
// No parsing happens here beyond cheap validation; Run does the work.
func (r *Runner) Submit(ctx context.Context, up ingest.Upload) (storage.Dataset, error) {
	if len(up.Data) == 0 {
		return storage.Dataset{}, ingest.ErrEmptyUpload
	}
	if len(up.Data) > ingest.MaxUploadBytes {
		return storage.Dataset{}, ingest.ErrUploadTooLarge
	}

	d := storage.Dataset{
		ID:         r.newID(),
		Filename:   up.Filename,
		FileSize:   int64(len(up.Data)),
		Format:     up.Format,
		Status:     storage.StatusPending,
		UploadTime: r.now().UTC(),
	}
	if err := r.Store.CreateDataset(ctx, d); err != nil {
		return storage.Dataset{}, fmt.Errorf("pipeline: create dataset: %w", err)
	}
	return d, nil
}

// Run claims the dataset and profiles the upload.
//
// Behavior:
//   - Claims via a conditional status transition; a dataset already
//     processing yields ErrRunInFlight. Completed and failed datasets can be
//     claimed again, which is how re-profiling works: the stored profile is
//     replaced wholesale on success.
//   - Ingestion errors mark the dataset failed and are returned.
//   - Analysis never fails a run: per-column and per-analysis problems
//     degrade to markers inside the profile.
//   - If the dataset is deleted mid-run the finished result is discarded and
//     Run returns nil.
func (r *Runner) Run(ctx context.Context, id string, up ingest.Upload) error {
	if err := r.claim(ctx, id); err != nil {
		return err
	}

	start := r.now()
	status := "completed"
	err := r.profileInto(ctx, id, up, start)
	if err != nil {
		status = "failed"
	}
	metrics.ObserveHistogram(metricRunDuration, r.now().Sub(start).Seconds(), metrics.Labels{"status": status})
	metrics.IncCounter(metricDatasetsTotal, 1, metrics.Labels{"status": status})
	return err
}

// ProfileUpload is Submit followed by Run, for one-shot callers like the CLI.
func (r *Runner) ProfileUpload(ctx context.Context, up ingest.Upload) (storage.Dataset, error) {
	d, err := r.Submit(ctx, up)
	if err != nil {
		return storage.Dataset{}, err
	}
	if err := r.Run(ctx, d.ID, up); err != nil {
		return d, err
	}
	// Re-read for the post-run counts and status.
	got, err := r.Store.GetDataset(ctx, d.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return d, fmt.Errorf("pipeline: reload dataset: %w", err)
	}
	return got, nil
}

func (r *Runner) claim(ctx context.Context, id string) error {
	d, err := r.Store.GetDataset(ctx, id)
	if err != nil {
		return err
	}
	if d.Status == storage.StatusProcessing {
		return ErrRunInFlight
	}
	err = r.Store.TransitionStatus(ctx, id, d.Status, storage.StatusProcessing)
	if errors.Is(err, storage.ErrStatusConflict) {
		// Lost the race to another claimant.
		return ErrRunInFlight
	}
	return err
}

func (r *Runner) profileInto(ctx context.Context, id string, up ingest.Upload, start time.Time) error {
	raw, format, err := r.timedDecode(up)
	if err != nil {
		if ferr := r.Store.TransitionStatus(ctx, id, storage.StatusProcessing, storage.StatusFailed); ferr != nil && !errors.Is(ferr, storage.ErrNotFound) {
			return errors.Join(err, fmt.Errorf("pipeline: mark failed: %w", ferr))
		}
		return err
	}

	p := r.analyze(raw)
	p.Narrative = r.narrative(ctx, raw, p)

	doc, err := json.Marshal(p)
	if err != nil {
		// Profiles are always marshalable; reaching this is a bug.
		panic(fmt.Sprintf("pipeline: marshal profile: %v", err))
	}

	res := storage.RunResult{
		Profile: doc,
		// The resolved format, so a dataset submitted without a declared
		// format ends up with the one detection picked.
		Format:            format,
		RowCount:          raw.RowCount(),
		ColumnCount:       raw.ColumnCount(),
		ProcessingSeconds: r.now().Sub(start).Seconds(),
	}
	err = r.Store.SaveProfile(ctx, id, res)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted mid-run; the result is discarded.
		return nil
	}
	if err != nil {
		return fmt.Errorf("pipeline: save profile: %w", err)
	}
	return nil
}

func (r *Runner) timedDecode(up ingest.Upload) (raw *table.RawTable, format string, err error) {
	stop := r.stageTimer("ingest")
	tbl, format, err := ingest.Decode(up)
	stop(err == nil)
	return tbl, format, err
}

// analyze runs schema inference, coercion, and then the four analyses
// concurrently over the immutable typed table. Each stage writes only its own
// result variable, so no synchronization beyond the WaitGroup is needed.
func (r *Runner) analyze(raw *table.RawTable) *profile.Profile {
	stop := r.stageTimer("schema")
	schemas := profile.InferSchema(raw)
	typed := profile.Coerce(raw, schemas)
	stop(true)

	p := &profile.Profile{Columns: schemas}

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		stop := r.stageTimer("stats")
		p.SummaryStats = profile.Describe(typed)
		stop(true)
	}()
	go func() {
		defer wg.Done()
		stop := r.stageTimer("missing")
		p.MissingData = profile.AnalyzeMissing(typed)
		stop(true)
	}()
	go func() {
		defer wg.Done()
		stop := r.stageTimer("outliers")
		p.Outliers = profile.DetectOutliers(typed)
		stop(p.Outliers.Available())
	}()
	go func() {
		defer wg.Done()
		stop := r.stageTimer("correlation")
		p.Correlations = profile.Correlate(typed)
		stop(true)
	}()
	wg.Wait()

	return p
}

func (r *Runner) narrative(ctx context.Context, raw *table.RawTable, p *profile.Profile) string {
	stop := r.stageTimer("insight")
	sumStart := r.now()
	text := insight.Narrative(ctx, r.Summarizer, insight.Facts{
		RowCount:    raw.RowCount(),
		ColumnCount: raw.ColumnCount(),
		Profile:     p,
	})
	ok := !insight.Unavailable(text)
	stop(ok)

	if r.Summarizer != nil {
		status := "ok"
		if !ok {
			status = "error"
		}
		metrics.IncCounter(metricSummarizerTotal, 1, metrics.Labels{"status": status})
		metrics.ObserveHistogram(metricSummarizerDur, r.now().Sub(sumStart).Seconds(), metrics.Labels{"status": status})
	}
	return text
}

// stageTimer starts timing a stage and returns the stop function, which
// records the duration histogram and outcome counter.
func (r *Runner) stageTimer(stage string) func(ok bool) {
	start := r.now()
	return func(ok bool) {
		status := "ok"
		if !ok {
			status = "error"
		}
		labels := metrics.Labels{"stage": stage, "status": status}
		metrics.ObserveHistogram(metricStageDuration, r.now().Sub(start).Seconds(), labels)
		metrics.IncCounter(metricStageTotal, 1, labels)
	}
}
