package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"datapulse/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - SQLite has no native TIMESTAMPTZ type; modernc.org/sqlite stores
//     timestamps with TEXT affinity. This repo stores upload times as
//     RFC3339Nano strings for reliable round-trip behavior and easy
//     debugging.
//   - The profile document is stored as a TEXT column holding JSON.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

const createTableSQL = `CREATE TABLE IF NOT EXISTS datasets (
  id TEXT PRIMARY KEY,
  filename TEXT NOT NULL,
  file_size INTEGER NOT NULL,
  format TEXT NOT NULL,
  status TEXT NOT NULL,
  upload_time TEXT NOT NULL,
  row_count INTEGER NOT NULL DEFAULT 0,
  column_count INTEGER NOT NULL DEFAULT 0,
  processing_seconds REAL NOT NULL DEFAULT 0,
  profile TEXT
);`

func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create table datasets: %w", err)
	}
	return nil
}

func (r *Repo) CreateDataset(ctx context.Context, d storage.Dataset) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO datasets (id, filename, file_size, format, status, upload_time, row_count, column_count, processing_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Filename, d.FileSize, d.Format, string(d.Status),
		formatTime(d.UploadTime), d.RowCount, d.ColumnCount, d.ProcessingSeconds,
	)
	return err
}

const selectColumns = `id, filename, file_size, format, status, upload_time, row_count, column_count, processing_seconds`

func (r *Repo) GetDataset(ctx context.Context, id string) (storage.Dataset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM datasets WHERE id = ?`, id)
	d, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Dataset{}, storage.ErrNotFound
	}
	return d, err
}

func (r *Repo) ListDatasets(ctx context.Context) ([]storage.Dataset, error) {
	rows, err := r.db.QueryContext(ctx,
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repo) TransitionStatus(ctx context.Context, id string, from, to storage.Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *Repo) SaveProfile(ctx context.Context, id string, result storage.RunResult) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE datasets
		 SET status = ?, profile = ?, format = ?, row_count = ?, column_count = ?, processing_seconds = ?
		 WHERE id = ? AND status = ?`,
		string(storage.StatusCompleted), string(result.Profile), result.Format,
		result.RowCount, result.ColumnCount, result.ProcessingSeconds,
		id, string(storage.StatusProcessing),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *Repo) GetProfile(ctx context.Context, id string) ([]byte, error) {
	var profile sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT profile FROM datasets WHERE id = ?`, id).Scan(&profile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !profile.Valid {
		return nil, storage.ErrNotFound
	}
	return []byte(profile.String), nil
}

// missOrConflict distinguishes "no such dataset" from "dataset in another
// status" after a conditional update touched zero rows.
func (r *Repo) missOrConflict(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return err
	}
	return storage.ErrStatusConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (storage.Dataset, error) {
	var d storage.Dataset
	var status, uploadRaw string
	if err := row.Scan(
		&d.ID, &d.Filename, &d.FileSize, &d.Format, &status, &uploadRaw,
		&d.RowCount, &d.ColumnCount, &d.ProcessingSeconds,
	); err != nil {
		return storage.Dataset{}, err
	}
	d.Status = storage.Status(status)

	ts, err := parseTime(uploadRaw)
	if err != nil {
		return storage.Dataset{}, fmt.Errorf("sqlite: parse datasets.upload_time=%q: %w", uploadRaw, err)
	}
	d.UploadTime = ts
	return d, nil
}

// formatTime formats a time as RFC3339Nano in UTC.
// We store timestamps as TEXT for reliable scanning/parsing with modernc.org/sqlite.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses timestamps returned by SQLite into time.Time.
//
// Supported formats:
//   - RFC3339Nano (what we write)
//   - RFC3339
//   - "2006-01-02 15:04:05" (interpreted as UTC, for rows written by other tools)
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
