// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ralisv/Popcorn-Plots/internal/config"
	"github.com/ralisv/Popcorn-Plots/internal/fetch"
	"github.com/ralisv/Popcorn-Plots/internal/load"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// LoadTables downloads both datasets (or reuses the verified cache),
// unpacks them, and loads the three source tables into memory. The
// MovieLens archive carries more files than the pipeline reads; only
// ratings.csv and links.csv are loaded from it.
func LoadTables(ctx context.Context, cfg *config.Config) (Tables, error) {
	fetcher := fetch.New(fetch.Config{
		CacheDir:      cfg.Datasets.CacheDir,
		HTTPTimeout:   cfg.Datasets.HTTPTimeout,
		RetryAttempts: cfg.Datasets.RetryAttempts,
		RetryDelay:    cfg.Datasets.RetryDelay,
	})

	archive, err := fetcher.Fetch(ctx, cfg.Datasets.MovieLensURL, cfg.Datasets.MovieLensMD5)
	if err != nil {
		return Tables{}, fmt.Errorf("fetching MovieLens archive: %w", err)
	}
	members, err := fetch.Unzip(archive)
	if err != nil {
		return Tables{}, fmt.Errorf("unpacking MovieLens archive: %w", err)
	}
	ratingsPath, err := findMember(members, "ratings.csv")
	if err != nil {
		return Tables{}, err
	}
	linksPath, err := findMember(members, "links.csv")
	if err != nil {
		return Tables{}, err
	}

	basicsGz, err := fetcher.Fetch(ctx, cfg.Datasets.IMDbURL, "")
	if err != nil {
		return Tables{}, fmt.Errorf("fetching IMDb title basics: %w", err)
	}
	basicsPath, err := fetch.Gunzip(basicsGz)
	if err != nil {
		return Tables{}, fmt.Errorf("unpacking IMDb title basics: %w", err)
	}
	logging.Info().
		Str("ratings", ratingsPath).
		Str("links", linksPath).
		Str("basics", basicsPath).
		Msg("Source files ready")

	var tables Tables
	if tables.Ratings, err = load.Ratings(ratingsPath); err != nil {
		return Tables{}, fmt.Errorf("loading ratings: %w", err)
	}
	if tables.Links, err = load.Links(linksPath); err != nil {
		return Tables{}, fmt.Errorf("loading links: %w", err)
	}
	if tables.Titles, err = load.TitleBasics(basicsPath); err != nil {
		return Tables{}, fmt.Errorf("loading title basics: %w", err)
	}
	return tables, nil
}

func findMember(members []string, name string) (string, error) {
	for _, m := range members {
		if filepath.Base(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("archive member %s not found", name)
}
