package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"datapulse/internal/storage"
)

/*
Repo implements storage.Repository for Postgres.

The profile document is stored as JSONB, so completed profiles can also be
inspected and queried with SQL. Upload times are TIMESTAMPTZ; pgx handles the
time.Time round trip natively, unlike the SQLite backend which stores text.
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new Postgres-backed Repo.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS datasets (
  id TEXT PRIMARY KEY,
  filename TEXT NOT NULL,
  file_size BIGINT NOT NULL,
  format TEXT NOT NULL,
  status TEXT NOT NULL,
  upload_time TIMESTAMPTZ NOT NULL,
  row_count INTEGER NOT NULL DEFAULT 0,
  column_count INTEGER NOT NULL DEFAULT 0,
  processing_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
  profile JSONB
);`

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create table datasets: %w", err)
	}
	return nil
}

func (r *Repo) CreateDataset(ctx context.Context, d storage.Dataset) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO datasets (id, filename, file_size, format, status, upload_time, row_count, column_count, processing_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Filename, d.FileSize, d.Format, string(d.Status),
		d.UploadTime.UTC(), d.RowCount, d.ColumnCount, d.ProcessingSeconds,
	)
	return err
}

const selectColumns = `id, filename, file_size, format, status, upload_time, row_count, column_count, processing_seconds`

func (r *Repo) GetDataset(ctx context.Context, id string) (storage.Dataset, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM datasets WHERE id = $1`, id)
	d, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Dataset{}, storage.ErrNotFound
	}
	return d, err
}

func (r *Repo) ListDatasets(ctx context.Context) ([]storage.Dataset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM datasets ORDER BY upload_time DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) DeleteDataset(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) TransitionStatus(ctx context.Context, id string, from, to storage.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE datasets SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), id, string(from),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *Repo) SaveProfile(ctx context.Context, id string, result storage.RunResult) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE datasets
		 SET status = $1, profile = $2, format = $3, row_count = $4, column_count = $5, processing_seconds = $6
		 WHERE id = $7 AND status = $8`,
		string(storage.StatusCompleted), result.Profile, result.Format,
		result.RowCount, result.ColumnCount, result.ProcessingSeconds,
		id, string(storage.StatusProcessing),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *Repo) GetProfile(ctx context.Context, id string) ([]byte, error) {
	var profile []byte
	err := r.pool.QueryRow(ctx,
		`SELECT profile FROM datasets WHERE id = $1`, id).Scan(&profile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, storage.ErrNotFound
	}
	return profile, nil
}

// missOrConflict distinguishes "no such dataset" from "dataset in another
// status" after a conditional update touched zero rows.
func (r *Repo) missOrConflict(ctx context.Context, id string) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM datasets WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.ErrStatusConflict
}

func scanDataset(row pgx.Row) (storage.Dataset, error) {
	var d storage.Dataset
	var status string
	if err := row.Scan(
		&d.ID, &d.Filename, &d.FileSize, &d.Format, &status, &d.UploadTime,
		&d.RowCount, &d.ColumnCount, &d.ProcessingSeconds,
	); err != nil {
		return storage.Dataset{}, err
	}
	d.Status = storage.Status(status)
	d.UploadTime = d.UploadTime.UTC()
	return d, nil
}
