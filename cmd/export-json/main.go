// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package main is the entry point for the JSON document exporter.
//
// The exporter reconciles the MovieLens 32M dataset with the IMDb title
// basics table and writes one JSON array of movie documents, each carrying
// the canonical IMDb id, the title metadata that survived the type and
// genre filters, and a bounded sample of that movie's rating events.
//
// # Pipeline Stages
//
// The run proceeds in the following order:
//
//  1. Configuration: Load settings from config file and environment (Koanf v2)
//  2. Acquisition: Download and cache both datasets, verify the MovieLens MD5
//  3. Join: Left-join IMDb metadata onto the MovieLens link table
//  4. Filter: Keep allowed title types, strip excluded genres
//  5. Sample: Attach the first N rating events per movie in file order
//  6. Export: Atomically write the JSON array
//
// # Usage
//
//	export-json <movie-limit> [-o output.json]
//
// The positional movie-limit bounds how many movies the export contains.
// The -o flag overrides the configured output path.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (e.g. DATASETS_CACHE_DIR, EXPORT_JSON_PATH)
//   - Config file (config.yaml, or the path in CONFIG_PATH)
//   - Built-in defaults
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/ralisv/Popcorn-Plots/internal/config"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
	"github.com/ralisv/Popcorn-Plots/internal/pipeline"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s <movie-limit> [-o output.json]\n", os.Args[0])
		flag.PrintDefaults()
	}
	output := flag.String("o", "", "output path (default: configured export.json_path)")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	limit, err := strconv.Atoi(flag.Arg(0))
	if err != nil || limit < 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"movie-limit must be a non-negative integer, got %q\n", flag.Arg(0))
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	outPath := cfg.Export.JSONPath
	if *output != "" {
		outPath = *output
	}
	logging.Info().
		Int("movie_limit", limit).
		Str("output", outPath).
		Str("cache_dir", cfg.Datasets.CacheDir).
		Msg("Starting JSON document export")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tables, err := pipeline.LoadTables(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load source tables")
	}
	if err := pipeline.Documents(cfg, tables, limit, outPath); err != nil {
		logging.Fatal().Err(err).Msg("Export failed")
	}
	logging.Info().Str("output", outPath).Msg("JSON document export complete")
}
