// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package pipeline

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"github.com/ralisv/Popcorn-Plots/internal/config"
	"github.com/ralisv/Popcorn-Plots/internal/dataset"
	"github.com/ralisv/Popcorn-Plots/internal/export"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Filter: config.FilterConfig{
			AllowedTitleTypes: []string{"movie", "tvMovie"},
			ExcludedGenres:    []string{"Short", "News"},
		},
		Aggregate: config.AggregateConfig{
			Percentile:        0.5,
			ReviewSampleLimit: 200,
		},
		Export: config.ExportConfig{
			OutputDir:        t.TempDir(),
			Compression:      "zstd",
			CompressionLevel: 3,
			RowGroupSize:     1_000_000,
		},
	}
}

func testTables() Tables {
	ts := func(s string) time.Time {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			panic(err)
		}
		return t
	}
	return Tables{
		Ratings: []dataset.RatingEvent{
			{MovieID: 1, UserID: 10, Rating: 3.0, Timestamp: ts("2020-01-06")},
			{MovieID: 1, UserID: 11, Rating: 4.0, Timestamp: ts("2020-01-07")},
			{MovieID: 1, UserID: 12, Rating: 5.0, Timestamp: ts("2020-01-13")},
			{MovieID: 1, UserID: 13, Rating: 4.5, Timestamp: ts("2020-01-20")},
			{MovieID: 2, UserID: 10, Rating: 2.0, Timestamp: ts("2020-02-03")},
			{MovieID: 3, UserID: 10, Rating: 5.0, Timestamp: ts("2020-02-03")},
			{MovieID: 4, UserID: 10, Rating: 1.0, Timestamp: ts("2020-02-03")},
		},
		Links: []dataset.LinkRecord{
			{MovieID: 1, IMDbID: 111161},
			{MovieID: 2, IMDbID: 68646},
			{MovieID: 3, IMDbID: 303461},
			{MovieID: 4, IMDbID: 999999},
		},
		Titles: []dataset.TitleRecord{
			{ID: "tt0111161", TitleType: "movie", Title: "The Shawshank Redemption",
				Year: intPtr(1994), RuntimeMinutes: intPtr(142), Genres: strPtr("Drama")},
			{ID: "tt0068646", TitleType: "movie", Title: "The Godfather",
				Year: intPtr(1972), RuntimeMinutes: intPtr(175), Genres: strPtr("Crime,Drama")},
			{ID: "tt0303461", TitleType: "tvSeries", Title: "Firefly",
				Year: intPtr(2002), EndYear: intPtr(2003), Genres: strPtr("Adventure,Drama")},
		},
	}
}

func TestDocuments(t *testing.T) {
	cfg := testConfig(t)
	outPath := filepath.Join(t.TempDir(), "movies.json")

	if err := Documents(cfg, testTables(), 10, outPath); err != nil {
		t.Fatalf("Documents failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	var docs []export.MovieDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}

	// Movie 3 fails the title-type filter and movie 4 has no metadata row;
	// neither survives with keep_unmatched_events off.
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "tt0111161" || docs[1].ID != "tt0068646" {
		t.Errorf("Unexpected document order: %q, %q", docs[0].ID, docs[1].ID)
	}
	if docs[0].Title != "The Shawshank Redemption" {
		t.Errorf("Expected title to carry over, got %q", docs[0].Title)
	}
	if len(docs[0].Reviews) != 4 {
		t.Errorf("Expected 4 reviews for first movie, got %d", len(docs[0].Reviews))
	}
	want := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC).Unix()
	if docs[0].Reviews[0].Timestamp != want {
		t.Errorf("Reviews not in file order: first timestamp %d, want %d",
			docs[0].Reviews[0].Timestamp, want)
	}
	if len(docs[1].Genres) != 2 {
		t.Errorf("Expected 2 genres on second movie, got %v", docs[1].Genres)
	}
}

func TestDocuments_Limit(t *testing.T) {
	cfg := testConfig(t)
	outPath := filepath.Join(t.TempDir(), "movies.json")

	if err := Documents(cfg, testTables(), 1, outPath); err != nil {
		t.Fatalf("Documents failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	var docs []export.MovieDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "tt0111161" {
		t.Fatalf("Expected only the first surviving movie, got %+v", docs)
	}
}

func TestDocuments_KeepUnmatched(t *testing.T) {
	cfg := testConfig(t)
	cfg.Join.KeepUnmatchedEvents = true
	outPath := filepath.Join(t.TempDir(), "movies.json")

	if err := Documents(cfg, testTables(), 10, outPath); err != nil {
		t.Fatalf("Documents failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	var docs []export.MovieDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("Expected 3 documents with unmatched kept, got %d", len(docs))
	}
	last := docs[2]
	if last.ID != "tt0999999" {
		t.Errorf("Expected sparse document id tt0999999, got %q", last.ID)
	}
	if last.Title != "" || last.Year != nil || len(last.Genres) != 0 {
		t.Errorf("Sparse document should carry no metadata: %+v", last)
	}
	if len(last.Reviews) != 1 {
		t.Errorf("Sparse document should still carry its reviews, got %d", len(last.Reviews))
	}
}

func TestDocuments_NegativeLimit(t *testing.T) {
	cfg := testConfig(t)
	err := Documents(cfg, testTables(), -1, filepath.Join(t.TempDir(), "movies.json"))
	if err == nil {
		t.Fatal("Expected error for negative limit")
	}
}

func TestColumnar(t *testing.T) {
	cfg := testConfig(t)
	if err := Columnar(context.Background(), cfg, testTables()); err != nil {
		t.Fatalf("Columnar failed: %v", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("Failed to open duckdb: %v", err)
	}
	defer db.Close()

	count := func(path string) int {
		t.Helper()
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM read_parquet(?)", path).Scan(&n); err != nil {
			t.Fatalf("Failed to count %s: %v", path, err)
		}
		return n
	}

	// Movie 1 spans three distinct weeks; movie 2 has a single bucket and
	// falls below the 0.5 quantile of the bucket-count distribution. Movies
	// 3 and 4 never reach aggregation: one fails the title-type filter, the
	// other has no metadata row.
	ratingsPath := filepath.Join(cfg.Export.OutputDir, "ratings.parquet")
	if got := count(ratingsPath); got != 3 {
		t.Errorf("Expected 3 rating buckets, got %d", got)
	}
	titlesPath := filepath.Join(cfg.Export.OutputDir, "titles.parquet")
	if got := count(titlesPath); got != 1 {
		t.Errorf("Expected 1 surviving title, got %d", got)
	}

	var id, mean int
	row := db.QueryRow(
		"SELECT id, rating FROM read_parquet(?) WHERE date = DATE '2020-01-06'", ratingsPath)
	if err := row.Scan(&id, &mean); err != nil {
		t.Fatalf("Failed to read first bucket: %v", err)
	}
	if id != 111161 {
		t.Errorf("Expected canonical id 111161, got %d", id)
	}
	if mean != 35 {
		t.Errorf("Expected scaled mean 35 for [3.0, 4.0], got %d", mean)
	}
}

func TestColumnar_EmptyDistribution(t *testing.T) {
	cfg := testConfig(t)
	tables := testTables()
	tables.Ratings = nil

	if err := Columnar(context.Background(), cfg, tables); err == nil {
		t.Fatal("Expected error when no buckets survive")
	}
}
