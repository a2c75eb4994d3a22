// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package join computes the joins reconciling the two source datasets on
// the canonical IMDb id.
//
// Three operations cover the pipeline's needs:
//
//   - Bridge attaches the canonical id to rating events via the link table
//   - LinkTitles left-joins link records to IMDb title metadata
//   - Closure restricts two keyed tables to each other's key set until
//     both reference exactly the same ids
//
// Joins are set-based on keys but never reorder rows: output slices keep
// the arrival order of their source table, which downstream sampling
// depends on.
package join

import (
	"github.com/ralisv/Popcorn-Plots/internal/dataset"
	"github.com/ralisv/Popcorn-Plots/internal/imdbid"
	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// Bridge inner-joins rating events to the link table on the MovieLens
// movie id, producing events keyed by the canonical IMDb id. Events whose
// movie id has no link row are dropped; no canonical key is derivable for
// them. The drop count is logged, not fatal.
func Bridge(events []dataset.RatingEvent, links []dataset.LinkRecord) []dataset.KeyedEvent {
	bridge := make(map[int64]uint64, len(links))
	for _, l := range links {
		// Link movie ids are unique per the source contract; first one wins
		// if the contract is ever violated.
		if _, seen := bridge[l.MovieID]; !seen {
			bridge[l.MovieID] = l.IMDbID
		}
	}

	keyed := make([]dataset.KeyedEvent, 0, len(events))
	dropped := 0
	for _, e := range events {
		id, ok := bridge[e.MovieID]
		if !ok {
			dropped++
			continue
		}
		keyed = append(keyed, dataset.KeyedEvent{
			IMDbID:    id,
			Rating:    e.Rating,
			Timestamp: e.Timestamp,
		})
	}

	if dropped > 0 {
		logging.Warn().
			Int("dropped", dropped).
			Int("kept", len(keyed)).
			Msg("Rating events without a link row dropped from bridge join")
	}
	return keyed
}

// LinkedTitle is a link record left-joined to IMDb title metadata.
// Meta is nil when no IMDb row matched the link's canonical id.
type LinkedTitle struct {
	MovieID int64
	IMDbID  uint64
	Meta    *dataset.TitleRecord
}

// LinkTitles left-joins link records to title metadata by canonical id.
// Title rows whose tconst fails to parse are excluded from the join and
// logged. Output preserves link-table order.
func LinkTitles(links []dataset.LinkRecord, titles []dataset.TitleRecord) []LinkedTitle {
	byID := make(map[uint64]*dataset.TitleRecord, len(titles))
	unparsable := 0
	for i := range titles {
		id, err := imdbid.Parse(titles[i].ID)
		if err != nil {
			unparsable++
			continue
		}
		byID[id] = &titles[i]
	}
	if unparsable > 0 {
		logging.Warn().
			Int("unparsable", unparsable).
			Msg("Title rows with unparsable tconst excluded from joins")
	}

	out := make([]LinkedTitle, 0, len(links))
	for _, l := range links {
		out = append(out, LinkedTitle{
			MovieID: l.MovieID,
			IMDbID:  l.IMDbID,
			Meta:    byID[l.IMDbID],
		})
	}
	return out
}

// KeySet collects the distinct canonical ids present in a table.
func KeySet[T dataset.Keyed](rows []T) map[uint64]struct{} {
	keys := make(map[uint64]struct{}, len(rows))
	for _, r := range rows {
		keys[r.Key()] = struct{}{}
	}
	return keys
}

// SemiJoin keeps the rows whose canonical id appears in keys, preserving
// order. No columns are added.
func SemiJoin[T dataset.Keyed](rows []T, keys map[uint64]struct{}) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if _, ok := keys[r.Key()]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Closure restricts both tables to each other's key set, iterating until
// the two key sets are equal. Filtering one side can orphan rows on the
// other, so a single pass is not sufficient; because filtering only ever
// shrinks the sets, the iteration terminates. Two passes suffice for the
// current acyclic dependencies, but the loop guards against future filters
// introducing longer chains.
func Closure[A, B dataset.Keyed](left []A, right []B) ([]A, []B) {
	for {
		left = SemiJoin(left, KeySet(right))
		right = SemiJoin(right, KeySet(left))
		if setsEqual(KeySet(left), KeySet(right)) {
			return left, right
		}
	}
}

func setsEqual(a, b map[uint64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
