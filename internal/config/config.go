// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package config holds the pipeline configuration and its layered loader.
//
// Configuration is loaded via Koanf v2 with clear precedence
// (highest wins): environment variables > YAML config file > built-in
// defaults. The fixed classification sets (excluded genres, allowed title
// types) live here rather than as embedded constants so the transform
// stages stay pure and testable.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for both pipelines.
type Config struct {
	Datasets  DatasetsConfig  `koanf:"datasets"`
	Filter    FilterConfig    `koanf:"filter"`
	Join      JoinConfig      `koanf:"join"`
	Aggregate AggregateConfig `koanf:"aggregate"`
	Export    ExportConfig    `koanf:"export"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatasetsConfig describes where the two source datasets come from and
// how downloads are cached.
type DatasetsConfig struct {
	// MovieLensURL is the ml-32m archive location.
	MovieLensURL string `koanf:"movielens_url"`

	// MovieLensMD5 is the published MD5 of the archive; empty disables
	// checksum verification.
	MovieLensMD5 string `koanf:"movielens_md5"`

	// IMDbURL is the title.basics.tsv.gz location. IMDb regenerates the
	// file daily, so no checksum is pinned for it.
	IMDbURL string `koanf:"imdb_url"`

	// CacheDir is where downloaded and unpacked files are kept.
	CacheDir string `koanf:"cache_dir"`

	HTTPTimeout   time.Duration `koanf:"http_timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// FilterConfig holds the fixed classification sets for title selection.
// Comparison is exact-string and case-sensitive.
type FilterConfig struct {
	AllowedTitleTypes []string `koanf:"allowed_title_types"`
	ExcludedGenres    []string `koanf:"excluded_genres"`
}

// JoinConfig controls join edge-case behavior.
type JoinConfig struct {
	// KeepUnmatchedEvents retains link rows (and their rating events) that
	// never matched an IMDb title. The source material handles this
	// inconsistently across pipeline variants; the default drops them.
	KeepUnmatchedEvents bool `koanf:"keep_unmatched_events"`
}

// AggregateConfig tunes the statistical pruning.
type AggregateConfig struct {
	// Percentile is the popularity-threshold quantile over per-movie
	// rating counts, in [0, 1].
	Percentile float64 `koanf:"percentile"`

	// ReviewSampleLimit bounds the per-movie review sample in the
	// document export.
	ReviewSampleLimit int `koanf:"review_sample_limit"`
}

// ExportConfig describes the output artifacts.
type ExportConfig struct {
	// OutputDir receives the Parquet artifacts.
	OutputDir string `koanf:"output_dir"`

	// JSONPath is the default document-export path; the CLI -o flag
	// overrides it.
	JSONPath string `koanf:"json_path"`

	// Compression is the Parquet codec: zstd, snappy, gzip or uncompressed.
	Compression string `koanf:"compression"`

	// CompressionLevel applies to codecs that take one (zstd).
	CompressionLevel int `koanf:"compression_level"`

	// RowGroupSize is the Parquet row-group sizing hint.
	RowGroupSize int `koanf:"row_group_size"`
}

// LoggingConfig mirrors the logging package's Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// validCompressions lists the Parquet codecs DuckDB's writer accepts here.
var validCompressions = map[string]struct{}{
	"zstd":         {},
	"snappy":       {},
	"gzip":         {},
	"uncompressed": {},
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Datasets.MovieLensURL == "" {
		return fmt.Errorf("datasets.movielens_url must not be empty")
	}
	if c.Datasets.IMDbURL == "" {
		return fmt.Errorf("datasets.imdb_url must not be empty")
	}
	if c.Datasets.CacheDir == "" {
		return fmt.Errorf("datasets.cache_dir must not be empty")
	}
	if c.Datasets.RetryAttempts < 0 {
		return fmt.Errorf("datasets.retry_attempts must not be negative, got %d", c.Datasets.RetryAttempts)
	}
	if c.Aggregate.Percentile < 0 || c.Aggregate.Percentile > 1 {
		return fmt.Errorf("aggregate.percentile must be in [0, 1], got %v", c.Aggregate.Percentile)
	}
	if c.Aggregate.ReviewSampleLimit <= 0 {
		return fmt.Errorf("aggregate.review_sample_limit must be positive, got %d", c.Aggregate.ReviewSampleLimit)
	}
	if c.Export.RowGroupSize <= 0 {
		return fmt.Errorf("export.row_group_size must be positive, got %d", c.Export.RowGroupSize)
	}
	if _, ok := validCompressions[c.Export.Compression]; !ok {
		return fmt.Errorf("export.compression %q is not one of zstd, snappy, gzip, uncompressed", c.Export.Compression)
	}
	return nil
}
