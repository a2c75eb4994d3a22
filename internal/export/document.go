// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package export serializes the filtered dataset into its two artifact
// forms: a nested JSON document per movie, or a pair of compressed Parquet
// tables. Both sinks write to a temporary file and publish with a rename,
// so a crash mid-write never leaves a truncated artifact at the target
// path.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// Review is one rating attached to a movie document.
type Review struct {
	Rating    float64 `json:"rating"`
	Timestamp int64   `json:"timestamp"`
}

// MovieDocument is the exported per-movie object. Optional fields are
// pointers with omitempty: an absent value omits the key entirely rather
// than encoding null.
type MovieDocument struct {
	ID             string   `json:"id"`
	Title          string   `json:"title,omitempty"`
	Year           *int     `json:"year,omitempty"`
	EndYear        *int     `json:"endYear,omitempty"`
	RuntimeMinutes *int     `json:"runtimeMinutes,omitempty"`
	TitleType      string   `json:"titleType,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	Reviews        []Review `json:"reviews,omitempty"`
}

// WriteDocuments writes the movie documents as one indented JSON array at
// path, creating parent directories as needed. The write is atomic: the
// array is staged at a temporary name in the target directory and renamed
// into place only on success.
func WriteDocuments(path string, docs []MovieDocument) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}

	if docs == nil {
		docs = []MovieDocument{}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal movie documents: %w", err)
	}

	tmpPath := filepath.Join(dir, ".tmp-"+uuid.New().String())
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("failed to stage document export: %w", err)
	}
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup, no-op after rename

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to publish document export: %w", err)
	}

	logging.Info().
		Str("path", path).
		Int("movies", len(docs)).
		Int("bytes", len(data)).
		Msg("Document export written")
	return nil
}
