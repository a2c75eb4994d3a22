// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package main is the entry point for the columnar exporter.
//
// The exporter reconciles the MovieLens 32M dataset with the IMDb title
// basics table and writes two zstd-compressed Parquet artifacts under the
// configured output directory:
//
//   - ratings.parquet: one row per (movie, week) with the mean rating of
//     that week scaled to tenths, plus the contributing event count
//   - titles.parquet: one row per surviving movie with its metadata and
//     cleaned genre list
//
// # Pipeline Stages
//
// The run proceeds in the following order:
//
//  1. Configuration: Load settings from config file and environment (Koanf v2)
//  2. Acquisition: Download and cache both datasets, verify the MovieLens MD5
//  3. Bridge: Re-key rating events from MovieLens ids to canonical IMDb ids
//  4. Aggregate: Collapse events into weekly mean buckets
//  5. Filter: Keep allowed title types, strip excluded genres
//  6. Closure: Shrink both tables to their mutual key intersection
//  7. Prune: Drop movies below the configured popularity percentile
//  8. Export: Stage both tables in DuckDB and COPY them to Parquet
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (e.g. AGGREGATE_PERCENTILE, EXPORT_OUTPUT_DIR)
//   - Config file (config.yaml, or the path in CONFIG_PATH)
//   - Built-in defaults
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/ralisv/Popcorn-Plots/internal/config"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
	"github.com/ralisv/Popcorn-Plots/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("output_dir", cfg.Export.OutputDir).
		Str("cache_dir", cfg.Datasets.CacheDir).
		Float64("percentile", cfg.Aggregate.Percentile).
		Msg("Starting columnar export")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tables, err := pipeline.LoadTables(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load source tables")
	}
	if err := pipeline.Columnar(ctx, cfg, tables); err != nil {
		logging.Fatal().Err(err).Msg("Export failed")
	}
	logging.Info().Str("output_dir", cfg.Export.OutputDir).Msg("Columnar export complete")
}
