// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/popcorn-plots/config.yaml",
	"/etc/popcorn-plots/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These mirror
// the published MovieLens-32M / IMDb dataset locations and the filter and
// aggregation settings the exports were designed around.
func defaultConfig() *Config {
	return &Config{
		Datasets: DatasetsConfig{
			MovieLensURL:  "https://files.grouplens.org/datasets/movielens/ml-32m.zip",
			MovieLensMD5:  "d472be332d4daa821edc399621853b57",
			IMDbURL:       "https://datasets.imdbws.com/title.basics.tsv.gz",
			CacheDir:      "data/cache",
			HTTPTimeout:   60 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    5 * time.Second,
		},
		Filter: FilterConfig{
			AllowedTitleTypes: []string{"movie", "tvMovie"},
			ExcludedGenres: []string{
				"Adult", "Film-Noir", "Game-Show", "Music",
				"News", "Reality-TV", "Short", "Talk-Show",
			},
		},
		Join: JoinConfig{
			KeepUnmatchedEvents: false,
		},
		Aggregate: AggregateConfig{
			Percentile:        0.75,
			ReviewSampleLimit: 200,
		},
		Export: ExportConfig{
			OutputDir:        "out",
			JSONPath:         "movies_export.json",
			Compression:      "zstd",
			CompressionLevel: 3,
			RowGroupSize:     1_000_000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or the default search list)
//  3. Environment variables (highest priority), e.g.
//     FILTER_EXCLUDED_GENRES=Adult,Short
//     AGGREGATE_PERCENTILE=0.9
//     EXPORT_ROW_GROUP_SIZE=500000
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// DATASETS_CACHE_DIR -> datasets.cache_dir, LOGGING_LEVEL -> logging.level
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first readable config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// configSections are the recognized top-level sections; environment
// variables outside these prefixes are ignored so unrelated process
// environment does not leak into the configuration.
var configSections = []string{"datasets", "filter", "join", "aggregate", "export", "logging"}

// envTransformFunc maps environment variable names to koanf paths:
// the first underscore separates the section from the key, e.g.
// AGGREGATE_REVIEW_SAMPLE_LIMIT -> aggregate.review_sample_limit.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	for _, section := range configSections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok && rest != "" {
			return section + "." + rest
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"filter.allowed_title_types",
	"filter.excluded_genres",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. YAML-sourced values are already slices and are left
// alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
