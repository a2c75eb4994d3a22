// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package pipeline wires the transform stages into the two export flows.
//
// Both flows are single-threaded batch runs: every stage fully
// materializes its output table before the next begins, and nothing is
// persisted until the exporter's atomic final write.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ralisv/Popcorn-Plots/internal/aggregate"
	"github.com/ralisv/Popcorn-Plots/internal/config"
	"github.com/ralisv/Popcorn-Plots/internal/dataset"
	"github.com/ralisv/Popcorn-Plots/internal/export"
	"github.com/ralisv/Popcorn-Plots/internal/imdbid"
	"github.com/ralisv/Popcorn-Plots/internal/join"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
	"github.com/ralisv/Popcorn-Plots/internal/textfilter"
)

// Tables holds the loaded source tables in file order.
type Tables struct {
	Ratings []dataset.RatingEvent
	Links   []dataset.LinkRecord
	Titles  []dataset.TitleRecord
}

// Documents runs the document flow: left-join titles onto the link table,
// apply the type and genre filters, take the first limit surviving movies,
// attach each movie's bounded review sample, and write one JSON array to
// outPath.
func Documents(cfg *config.Config, tables Tables, limit int, outPath string) error {
	if limit < 0 {
		return fmt.Errorf("movie limit must not be negative, got %d", limit)
	}

	f := textfilter.New(textfilter.Config{
		AllowedTitleTypes: cfg.Filter.AllowedTitleTypes,
		ExcludedGenres:    cfg.Filter.ExcludedGenres,
	})

	linked := join.LinkTitles(tables.Links, tables.Titles)

	type selectedMovie struct {
		link   join.LinkedTitle
		genres []string
	}
	selected := make([]selectedMovie, 0, limit)
	for _, l := range linked {
		if len(selected) == limit {
			break
		}
		if l.Meta == nil {
			if cfg.Join.KeepUnmatchedEvents {
				selected = append(selected, selectedMovie{link: l})
			}
			continue
		}
		raw := ""
		if l.Meta.Genres != nil {
			raw = *l.Meta.Genres
		}
		genres, keep := f.Keep(l.Meta.TitleType, raw)
		if !keep {
			continue
		}
		selected = append(selected, selectedMovie{link: l, genres: genres})
	}
	logging.Info().
		Int("links", len(linked)).
		Int("selected", len(selected)).
		Msg("Titles filtered for document export")

	// Restrict events to the selected movies before sampling; the sample
	// is the first N events per movie in file order.
	wanted := make(map[int64]struct{}, len(selected))
	for _, s := range selected {
		wanted[s.link.MovieID] = struct{}{}
	}
	relevant := make([]dataset.RatingEvent, 0)
	for _, e := range tables.Ratings {
		if _, ok := wanted[e.MovieID]; ok {
			relevant = append(relevant, e)
		}
	}
	samples := aggregate.FirstNByMovie(relevant, cfg.Aggregate.ReviewSampleLimit)

	docs := make([]export.MovieDocument, 0, len(selected))
	for _, s := range selected {
		doc := export.MovieDocument{ID: imdbid.Format(s.link.IMDbID)}
		if meta := s.link.Meta; meta != nil {
			doc.Title = meta.Title
			doc.Year = meta.Year
			doc.EndYear = meta.EndYear
			doc.RuntimeMinutes = meta.RuntimeMinutes
			doc.TitleType = meta.TitleType
			doc.Genres = s.genres
		}
		for _, e := range samples[s.link.MovieID] {
			doc.Reviews = append(doc.Reviews, export.Review{
				Rating:    e.Rating,
				Timestamp: e.Timestamp.Unix(),
			})
		}
		docs = append(docs, doc)
	}

	return export.WriteDocuments(outPath, docs)
}

// Columnar runs the columnar flow: bridge-join rating events to canonical
// ids, aggregate them into weekly means, filter titles, close both tables
// over each other, prune low-signal movies at the configured percentile,
// close again, and write the two Parquet artifacts under the configured
// output directory.
func Columnar(ctx context.Context, cfg *config.Config, tables Tables) error {
	keyed := join.Bridge(tables.Ratings, tables.Links)
	buckets := aggregate.WeeklyMeans(keyed)
	logging.Info().
		Int("events", len(keyed)).
		Int("buckets", len(buckets)).
		Msg("Rating events aggregated into weekly buckets")

	f := textfilter.New(textfilter.Config{
		AllowedTitleTypes: cfg.Filter.AllowedTitleTypes,
		ExcludedGenres:    cfg.Filter.ExcludedGenres,
	})
	movies := filterTitles(tables.Titles, f)
	logging.Info().
		Int("titles", len(tables.Titles)).
		Int("kept", len(movies)).
		Msg("Titles filtered")

	buckets, movies = join.Closure(buckets, movies)
	logging.Info().
		Int("buckets", len(buckets)).
		Int("movies", len(movies)).
		Msg("Mutual referential closure applied")

	keep, threshold, err := aggregate.PopularityKeys(buckets, cfg.Aggregate.Percentile)
	if err != nil {
		return fmt.Errorf("popularity pruning failed: %w", err)
	}
	buckets = join.SemiJoin(buckets, keep)
	movies = join.SemiJoin(movies, keep)
	buckets, movies = join.Closure(buckets, movies)
	logging.Info().
		Float64("percentile", cfg.Aggregate.Percentile).
		Float64("threshold", threshold).
		Int("buckets", len(buckets)).
		Int("movies", len(movies)).
		Msg("Low-signal movies pruned")

	sink, err := export.NewParquetSink(export.ParquetOptions{
		Compression:      cfg.Export.Compression,
		CompressionLevel: cfg.Export.CompressionLevel,
		RowGroupSize:     cfg.Export.RowGroupSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing parquet sink")
		}
	}()

	ratingsPath := filepath.Join(cfg.Export.OutputDir, "ratings.parquet")
	if err := sink.WriteRatings(ctx, buckets, ratingsPath); err != nil {
		return err
	}
	titlesPath := filepath.Join(cfg.Export.OutputDir, "titles.parquet")
	return sink.WriteTitles(ctx, movies, titlesPath)
}

// filterTitles applies the canonical-id parse and both text predicates,
// producing the keyed movie table in title-table order.
func filterTitles(titles []dataset.TitleRecord, f *textfilter.Filter) []dataset.Movie {
	movies := make([]dataset.Movie, 0, len(titles))
	unparsable := 0
	for _, t := range titles {
		id, err := imdbid.Parse(t.ID)
		if err != nil {
			unparsable++
			continue
		}
		raw := ""
		if t.Genres != nil {
			raw = *t.Genres
		}
		genres, keep := f.Keep(t.TitleType, raw)
		if !keep {
			continue
		}
		movies = append(movies, dataset.Movie{
			IMDbID:         id,
			Title:          t.Title,
			TitleType:      t.TitleType,
			Year:           t.Year,
			EndYear:        t.EndYear,
			RuntimeMinutes: t.RuntimeMinutes,
			Genres:         genres,
		})
	}
	if unparsable > 0 {
		logging.Warn().
			Int("unparsable", unparsable).
			Msg("Title rows with unparsable tconst excluded from joins")
	}
	return movies
}
