// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}

	if cfg.Aggregate.Percentile != 0.75 {
		t.Errorf("percentile = %v, want 0.75", cfg.Aggregate.Percentile)
	}
	if cfg.Aggregate.ReviewSampleLimit != 200 {
		t.Errorf("review sample limit = %d, want 200", cfg.Aggregate.ReviewSampleLimit)
	}
	if cfg.Export.Compression != "zstd" {
		t.Errorf("compression = %q, want zstd", cfg.Export.Compression)
	}
	if cfg.Export.RowGroupSize != 1_000_000 {
		t.Errorf("row group size = %d, want 1000000", cfg.Export.RowGroupSize)
	}
	wantTypes := []string{"movie", "tvMovie"}
	if !reflect.DeepEqual(cfg.Filter.AllowedTitleTypes, wantTypes) {
		t.Errorf("allowed title types = %v, want %v", cfg.Filter.AllowedTitleTypes, wantTypes)
	}
	if len(cfg.Filter.ExcludedGenres) != 8 {
		t.Errorf("excluded genres = %v, want 8 entries", cfg.Filter.ExcludedGenres)
	}
	if cfg.Join.KeepUnmatchedEvents {
		t.Error("unmatched events must be dropped by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("AGGREGATE_PERCENTILE", "0.9")
	t.Setenv("FILTER_EXCLUDED_GENRES", "Adult, Short")
	t.Setenv("EXPORT_OUTPUT_DIR", "/tmp/plots-out")
	t.Setenv("JOIN_KEEP_UNMATCHED_EVENTS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with env overrides failed: %v", err)
	}

	if cfg.Aggregate.Percentile != 0.9 {
		t.Errorf("percentile = %v, want env override 0.9", cfg.Aggregate.Percentile)
	}
	want := []string{"Adult", "Short"}
	if !reflect.DeepEqual(cfg.Filter.ExcludedGenres, want) {
		t.Errorf("excluded genres = %v, want %v", cfg.Filter.ExcludedGenres, want)
	}
	if cfg.Export.OutputDir != "/tmp/plots-out" {
		t.Errorf("output dir = %q, want /tmp/plots-out", cfg.Export.OutputDir)
	}
	if !cfg.Join.KeepUnmatchedEvents {
		t.Error("expected join.keep_unmatched_events override to apply")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
aggregate:
  percentile: 0.5
export:
  compression: snappy
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with config file failed: %v", err)
	}
	if cfg.Aggregate.Percentile != 0.5 {
		t.Errorf("percentile = %v, want file override 0.5", cfg.Aggregate.Percentile)
	}
	if cfg.Export.Compression != "snappy" {
		t.Errorf("compression = %q, want snappy", cfg.Export.Compression)
	}
	// Untouched settings keep their defaults.
	if cfg.Export.RowGroupSize != 1_000_000 {
		t.Errorf("row group size = %d, want default", cfg.Export.RowGroupSize)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("aggregate:\n  percentile: 0.5\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("AGGREGATE_PERCENTILE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Aggregate.Percentile != 0.25 {
		t.Errorf("percentile = %v, env must beat file", cfg.Aggregate.Percentile)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"percentile above one", func(c *Config) { c.Aggregate.Percentile = 1.5 }, true},
		{"negative percentile", func(c *Config) { c.Aggregate.Percentile = -0.1 }, true},
		{"zero sample limit", func(c *Config) { c.Aggregate.ReviewSampleLimit = 0 }, true},
		{"zero row group", func(c *Config) { c.Export.RowGroupSize = 0 }, true},
		{"unknown compression", func(c *Config) { c.Export.Compression = "lz4" }, true},
		{"empty movielens url", func(c *Config) { c.Datasets.MovieLensURL = "" }, true},
		{"empty cache dir", func(c *Config) { c.Datasets.CacheDir = "" }, true},
		{"negative retries", func(c *Config) { c.Datasets.RetryAttempts = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AGGREGATE_PERCENTILE", "aggregate.percentile"},
		{"AGGREGATE_REVIEW_SAMPLE_LIMIT", "aggregate.review_sample_limit"},
		{"DATASETS_CACHE_DIR", "datasets.cache_dir"},
		{"LOGGING_LEVEL", "logging.level"},
		{"HOME", ""},
		{"PATH", ""},
		{"EXPORT_", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
