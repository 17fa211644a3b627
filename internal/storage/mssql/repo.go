package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"datapulse/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server.
//
// Differences from the other SQL backends:
//   - Placeholders are @p1..@pN (sqlserver driver form).
//   - The profile document is stored as NVARCHAR(MAX); SQL Server has no
//     dedicated JSON column type.
//   - Upload times are DATETIMEOFFSET, which round-trips time.Time with its
//     offset intact.
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver.
// Validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// Conservative defaults for bursty profiling loads.
	raw.SetMaxOpenConns(64)
	raw.SetMaxIdleConns(64)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: raw}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

const createTableSQL = `IF OBJECT_ID(N'datasets', N'U') IS NULL
CREATE TABLE datasets (
  id NVARCHAR(64) PRIMARY KEY,
  filename NVARCHAR(1024) NOT NULL,
  file_size BIGINT NOT NULL,
  format NVARCHAR(16) NOT NULL,
  status NVARCHAR(16) NOT NULL,
  upload_time DATETIMEOFFSET NOT NULL,
  row_count INT NOT NULL DEFAULT 0,
  column_count INT NOT NULL DEFAULT 0,
  processing_seconds FLOAT NOT NULL DEFAULT 0,
  profile NVARCHAR(MAX)
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
		 VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7, @p8, @p9)`,
		d.ID, d.Filename, d.FileSize, d.Format, string(d.Status),
		d.UploadTime.UTC(), d.RowCount, d.ColumnCount, d.ProcessingSeconds,
	)
	return err
}

const selectColumns = `id, filename, file_size, format, status, upload_time, row_count, column_count, processing_seconds`

func (r *Repo) GetDataset(ctx context.Context, id string) (storage.Dataset, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM datasets WHERE id = @p1`, id)
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE id = @p1`, id)
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
		`UPDATE datasets SET status = @p1 WHERE id = @p2 AND status = @p3`,
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
		 SET status = @p1, profile = @p2, format = @p3, row_count = @p4, column_count = @p5, processing_seconds = @p6
		 WHERE id = @p7 AND status = @p8`,
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
		`SELECT profile FROM datasets WHERE id = @p1`, id).Scan(&profile)
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
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE id = @p1`, id).Scan(&one)
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
