// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package dataset defines the row types flowing through the pipeline.
//
// All tables are plain slices in source order. Every pipeline stage
// produces a new slice rather than mutating its input; rows are never
// modified after creation.
package dataset

import "time"

// RatingEvent is one user's rating of one movie at a point in time,
// as read from the MovieLens ratings table.
//
// MovieID is the MovieLens-local identifier. It only serves as the bridge
// to the link table; after the bridge join the event is keyed by the IMDb
// numeric id instead. UserID is carried through loading but discarded by
// the joins.
type RatingEvent struct {
	MovieID   int64
	UserID    int64
	Rating    float64
	Timestamp time.Time
}

// LinkRecord maps a MovieLens movie id to external identifiers.
// MovieID is unique within the table. TMDBID is parsed when present but
// unused downstream.
type LinkRecord struct {
	MovieID int64
	IMDbID  uint64
	TMDBID  *int64
}

// TitleRecord is one IMDb title's metadata from title.basics.
//
// ID is the raw tconst string ("tt" + zero-padded numeric id). Optional
// columns carry the \N sentinel in the source and are nil here when absent.
// Genres holds the raw comma-separated genre field; cleaning happens in
// the textfilter package.
type TitleRecord struct {
	ID             string
	TitleType      string
	Title          string
	Year           *int
	EndYear        *int
	RuntimeMinutes *int
	Genres         *string
}

// KeyedEvent is a rating event after the bridge join: the MovieLens id has
// been resolved to the IMDb numeric id shared with the title table.
type KeyedEvent struct {
	IMDbID    uint64
	Rating    float64
	Timestamp time.Time
}

// Movie is a filtered title keyed by IMDb numeric id, with cleaned genres.
// Optional metadata stays nil for titles that never matched an IMDb row
// (possible only when unmatched events are configured to be kept).
type Movie struct {
	IMDbID         uint64
	Title          string
	TitleType      string
	Year           *int
	EndYear        *int
	RuntimeMinutes *int
	Genres         []string
}

// AggregateBucket is the weekly rating aggregate for one movie:
// the count of ratings in the week starting at Week (Monday 00:00 UTC)
// and their mean rating scaled by ten (0-50 covering 0.0-5.0).
type AggregateBucket struct {
	IMDbID     uint64
	Week       time.Time
	MeanTenths uint8
	Count      int
}

// Keyed is satisfied by every row type carrying the canonical IMDb
// numeric id. The join engine's semi-joins operate on this key.
type Keyed interface {
	Key() uint64
}

// Key returns the canonical id of the event's movie.
func (e KeyedEvent) Key() uint64 { return e.IMDbID }

// Key returns the canonical id of the movie.
func (m Movie) Key() uint64 { return m.IMDbID }

// Key returns the canonical id of the bucket's movie.
func (b AggregateBucket) Key() uint64 { return b.IMDbID }
