// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/ralisv/Popcorn-Plots/internal/dataset"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// ParquetOptions tunes the columnar artifacts. Given identical input and
// options the output layout is deterministic.
type ParquetOptions struct {
	// Compression is the Parquet codec: zstd, snappy, gzip or uncompressed.
	Compression string

	// CompressionLevel applies to zstd only.
	CompressionLevel int

	// RowGroupSize is the writer's row-group sizing hint.
	RowGroupSize int
}

// ParquetSink stages the filtered tables in an in-memory DuckDB instance
// and uses its Parquet writer for the final artifacts.
type ParquetSink struct {
	conn *sql.DB
	opts ParquetOptions
}

// NewParquetSink opens the staging database.
func NewParquetSink(opts ParquetOptions) (*ParquetSink, error) {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open staging database: %w", err)
	}
	return &ParquetSink{conn: conn, opts: opts}, nil
}

// Close releases the staging database.
func (s *ParquetSink) Close() error {
	return s.conn.Close()
}

// WriteRatings stages the weekly aggregates and writes them as a Parquet
// artifact at path: one row per (movie, week) with the mean rating in
// tenths. Publication is atomic.
func (s *ParquetSink) WriteRatings(ctx context.Context, buckets []dataset.AggregateBucket, path string) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE OR REPLACE TABLE ratings (
			id     UINTEGER NOT NULL,
			date   DATE     NOT NULL,
			rating UTINYINT NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create ratings staging table: %w", err)
	}

	err := s.insertBatched(ctx, "ratings", 3, len(buckets), func(i int) []any {
		b := buckets[i]
		return []any{b.IMDbID, b.Week.Format(time.DateOnly), b.MeanTenths}
	})
	if err != nil {
		return fmt.Errorf("failed to stage ratings: %w", err)
	}

	return s.copyParquet(ctx, "ratings", path)
}

// WriteTitles stages the filtered titles and writes them as a Parquet
// artifact at path. Genres land as a list column; optional columns are
// NULL when absent. Publication is atomic.
func (s *ParquetSink) WriteTitles(ctx context.Context, movies []dataset.Movie, path string) error {
	if _, err := s.conn.ExecContext(ctx, `
		CREATE OR REPLACE TABLE titles (
			id              UINTEGER NOT NULL,
			title           VARCHAR,
			year            USMALLINT,
			runtime_minutes UINTEGER,
			genres          VARCHAR[]
		)`); err != nil {
		return fmt.Errorf("failed to create titles staging table: %w", err)
	}

	err := s.insertTitles(ctx, movies)
	if err != nil {
		return fmt.Errorf("failed to stage titles: %w", err)
	}

	return s.copyParquet(ctx, "titles", path)
}

// insertBatched inserts rows through a prepared statement inside one
// transaction. values returns the bind args for row i.
func (s *ParquetSink) insertBatched(ctx context.Context, table string, cols, rows int, values func(i int) []any) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	placeholders := strings.TrimSuffix(strings.Repeat("?,", cols), ",")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, placeholders))
	if err != nil {
		return fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement scoped to tx

	for i := 0; i < rows; i++ {
		if _, err := stmt.ExecContext(ctx, values(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// insertTitles stages movies, splitting the genre list inside DuckDB to
// produce the VARCHAR[] column. Genre tags never contain commas, so the
// join-then-split round trip is lossless.
func (s *ParquetSink) insertTitles(ctx context.Context, movies []dataset.Movie) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO titles VALUES (?, ?, ?, ?, string_split(?, ','))")
	if err != nil {
		return fmt.Errorf("failed to prepare staging insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // statement scoped to tx

	for i, m := range movies {
		var title any
		if m.Title != "" {
			title = m.Title
		}
		var year, runtime any
		if m.Year != nil {
			year = *m.Year
		}
		if m.RuntimeMinutes != nil {
			runtime = *m.RuntimeMinutes
		}
		// NULL through string_split stays NULL, so an absent genre list
		// never becomes [''].
		var genres any
		if len(m.Genres) > 0 {
			genres = strings.Join(m.Genres, ",")
		}
		if _, err := stmt.ExecContext(ctx, m.IMDbID, title, year, runtime, genres); err != nil {
			return fmt.Errorf("failed to insert title %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// copyParquet writes a staged table to path via DuckDB's Parquet writer,
// staging at a temporary name and renaming into place on success.
func (s *ParquetSink) copyParquet(ctx context.Context, table, path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	tmpPath := filepath.Join(dir, ".tmp-"+uuid.New().String()+".parquet")
	copyQuery := fmt.Sprintf("COPY %s TO ? (%s)", table, s.copyOptions())
	if _, err := s.conn.ExecContext(ctx, copyQuery, tmpPath); err != nil {
		return fmt.Errorf("failed to write parquet for %s: %w", table, err)
	}
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup, no-op after rename

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to publish %s: %w", path, err)
	}

	size := int64(-1)
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	logging.Info().
		Str("table", table).
		Str("path", path).
		Int64("bytes", size).
		Msg("Parquet export written")
	return nil
}

// copyOptions renders the COPY option list from the sink's settings.
func (s *ParquetSink) copyOptions() string {
	opts := []string{
		"FORMAT PARQUET",
		fmt.Sprintf("COMPRESSION '%s'", strings.ToUpper(s.opts.Compression)),
	}
	if strings.EqualFold(s.opts.Compression, "zstd") && s.opts.CompressionLevel > 0 {
		opts = append(opts, fmt.Sprintf("COMPRESSION_LEVEL %d", s.opts.CompressionLevel))
	}
	if s.opts.RowGroupSize > 0 {
		opts = append(opts, fmt.Sprintf("ROW_GROUP_SIZE %d", s.opts.RowGroupSize))
	}
	return strings.Join(opts, ", ")
}
