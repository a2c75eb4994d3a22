// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package load parses the materialized source files into typed tables.
//
// MovieLens ships comma-separated files with a header row and standard
// quoting; IMDb ships tab-separated files with a header row, no quoting,
// and \N as the missing-value sentinel. Row order in the returned slices
// matches file order, which downstream sampling relies on.
//
// Rows whose mandatory columns fail to parse are skipped with a warning
// rather than aborting the load; a corrupt fraction of a 30M-row file
// should not kill the pipeline.
package load

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ralisv/Popcorn-Plots/internal/dataset"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// missingSentinel marks absent values in IMDb's TSV files.
const missingSentinel = `\N`

// openCSV opens path and returns a csv.Reader plus a close func.
func openCSV(path string, comma rune, lazyQuotes bool) (*csv.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r := csv.NewReader(bufio.NewReaderSize(f, 1<<20))
	r.Comma = comma
	r.LazyQuotes = lazyQuotes
	r.ReuseRecord = true
	// Malformed rows are skipped by the callers' own column checks instead
	// of aborting the whole load.
	r.FieldsPerRecord = -1
	return r, f.Close, nil
}

// Ratings reads a MovieLens ratings.csv
// (userId,movieId,rating,timestamp) into rating events.
func Ratings(path string) ([]dataset.RatingEvent, error) {
	r, closeFile, err := openCSV(path, ',', false)
	if err != nil {
		return nil, err
	}
	defer closeFile() //nolint:errcheck // read-only file

	events := make([]dataset.RatingEvent, 0, 1024)
	skipped := 0
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if first {
			first = false
			continue // header
		}
		if len(rec) < 4 {
			skipped++
			continue
		}

		userID, err1 := strconv.ParseInt(rec[0], 10, 64)
		movieID, err2 := strconv.ParseInt(rec[1], 10, 64)
		rating, err3 := strconv.ParseFloat(rec[2], 64)
		ts, err4 := strconv.ParseInt(rec[3], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			skipped++
			continue
		}

		events = append(events, dataset.RatingEvent{
			MovieID:   movieID,
			UserID:    userID,
			Rating:    rating,
			Timestamp: time.Unix(ts, 0).UTC(),
		})
	}

	logLoaded(path, len(events), skipped)
	return events, nil
}

// Links reads a MovieLens links.csv (movieId,imdbId,tmdbId) into link
// records. tmdbId is frequently empty and kept only when present.
func Links(path string) ([]dataset.LinkRecord, error) {
	r, closeFile, err := openCSV(path, ',', false)
	if err != nil {
		return nil, err
	}
	defer closeFile() //nolint:errcheck // read-only file

	links := make([]dataset.LinkRecord, 0, 1024)
	skipped := 0
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 2 {
			skipped++
			continue
		}

		movieID, err1 := strconv.ParseInt(rec[0], 10, 64)
		imdbID, err2 := strconv.ParseUint(rec[1], 10, 64)
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}

		link := dataset.LinkRecord{MovieID: movieID, IMDbID: imdbID}
		if len(rec) > 2 && rec[2] != "" {
			if tmdb, err := strconv.ParseInt(rec[2], 10, 64); err == nil {
				link.TMDBID = &tmdb
			}
		}
		links = append(links, link)
	}

	logLoaded(path, len(links), skipped)
	return links, nil
}

// TitleBasics reads an IMDb title.basics.tsv
// (tconst,titleType,primaryTitle,originalTitle,isAdult,startYear,endYear,
// runtimeMinutes,genres) into title records. \N columns come back nil.
func TitleBasics(path string) ([]dataset.TitleRecord, error) {
	// IMDb TSVs are unquoted; LazyQuotes keeps stray quotes in titles from
	// breaking the parse.
	r, closeFile, err := openCSV(path, '\t', true)
	if err != nil {
		return nil, err
	}
	defer closeFile() //nolint:errcheck // read-only file

	titles := make([]dataset.TitleRecord, 0, 1024)
	skipped := 0
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if first {
			first = false
			continue
		}
		if len(rec) < 9 || rec[0] == "" {
			skipped++
			continue
		}

		// ReuseRecord invalidates record strings on the next Read; clone
		// everything retained.
		title := dataset.TitleRecord{
			ID:             strings.Clone(rec[0]),
			TitleType:      optionalString(rec[1]),
			Title:          optionalString(rec[2]),
			Year:           optionalInt(rec[5]),
			EndYear:        optionalInt(rec[6]),
			RuntimeMinutes: optionalInt(rec[7]),
		}
		if rec[8] != missingSentinel && rec[8] != "" {
			genres := strings.Clone(rec[8])
			title.Genres = &genres
		}
		titles = append(titles, title)
	}

	logLoaded(path, len(titles), skipped)
	return titles, nil
}

// optionalString maps the \N sentinel to the empty string and clones the
// rest out of the reused record buffer.
func optionalString(s string) string {
	if s == missingSentinel {
		return ""
	}
	return strings.Clone(s)
}

// optionalInt parses a decimal column, mapping \N and parse failures to nil.
func optionalInt(s string) *int {
	if s == missingSentinel || s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func logLoaded(path string, rows, skipped int) {
	ev := logging.Info().Str("path", path).Int("rows", rows)
	if skipped > 0 {
		ev = logging.Warn().Str("path", path).Int("rows", rows).Int("skipped", skipped)
	}
	ev.Msg("Table loaded")
}
