// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package aggregate computes the pipeline's rating statistics: weekly
// per-movie mean ratings, the percentile-based popularity threshold that
// prunes low-signal movies, and the bounded per-movie review sample used
// by the document export.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ralisv/Popcorn-Plots/internal/dataset"
)

// ErrEmptyDistribution is returned when a quantile is requested over no data.
var ErrEmptyDistribution = errors.New("empty distribution")

// WeekStart truncates a timestamp to 00:00:00 UTC of the Monday of its
// calendar week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// Monday anchor: weekday Monday=0 ... Sunday=6.
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

type bucketKey struct {
	id   uint64
	week time.Time
}

// WeeklyMeans groups rating events by (movie, week) and computes the mean
// rating per bucket, scaled by ten and rounded to a uint8. Buckets are
// emitted in first-appearance order of their (movie, week) pair; only
// buckets with at least one event exist.
func WeeklyMeans(events []dataset.KeyedEvent) []dataset.AggregateBucket {
	type acc struct {
		sum   float64
		count int
	}
	sums := make(map[bucketKey]*acc)
	order := make([]bucketKey, 0)

	for _, e := range events {
		k := bucketKey{id: e.IMDbID, week: WeekStart(e.Timestamp)}
		a, ok := sums[k]
		if !ok {
			a = &acc{}
			sums[k] = a
			order = append(order, k)
		}
		a.sum += e.Rating
		a.count++
	}

	buckets := make([]dataset.AggregateBucket, 0, len(order))
	for _, k := range order {
		a := sums[k]
		buckets = append(buckets, dataset.AggregateBucket{
			IMDbID:     k.id,
			Week:       k.week,
			MeanTenths: scaleTenths(a.sum / float64(a.count)),
			Count:      a.count,
		})
	}
	return buckets
}

// scaleTenths converts a mean rating on the 0.0-5.0 scale to tenths,
// rounded half away from zero and clamped to the uint8 range.
func scaleTenths(mean float64) uint8 {
	scaled := math.Round(mean * 10)
	if scaled < 0 {
		return 0
	}
	if scaled > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(scaled)
}

// Quantile computes the p-th quantile of counts using linear interpolation
// between order statistics. A single-element distribution returns that
// element for any p. p must lie in [0, 1].
func Quantile(counts []int, p float64) (float64, error) {
	if len(counts) == 0 {
		return 0, ErrEmptyDistribution
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("quantile probability %v outside [0, 1]", p)
	}

	sorted := make([]int, len(counts))
	copy(sorted, counts)
	sort.Ints(sorted)

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return float64(sorted[lo]), nil
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*(float64(sorted[hi])-float64(sorted[lo])), nil
}

// PopularityKeys counts rows per movie over the (already filtered) table,
// computes the p-th quantile of that count distribution, and returns the
// set of movies whose count meets or exceeds the threshold, together with
// the threshold itself. The caller re-applies the semi-join closure so both
// output tables shrink together.
func PopularityKeys[T dataset.Keyed](rows []T, p float64) (map[uint64]struct{}, float64, error) {
	counts := make(map[uint64]int)
	for _, r := range rows {
		counts[r.Key()]++
	}

	dist := make([]int, 0, len(counts))
	for _, c := range counts {
		dist = append(dist, c)
	}

	threshold, err := Quantile(dist, p)
	if err != nil {
		return nil, 0, fmt.Errorf("popularity threshold: %w", err)
	}

	keep := make(map[uint64]struct{}, len(counts))
	for id, c := range counts {
		if float64(c) >= threshold {
			keep[id] = struct{}{}
		}
	}
	return keep, threshold, nil
}

// FirstNByMovie returns, per MovieLens movie id, the first limit events in
// table order. The loader yields file order, which is the documented
// deterministic ordering for the bounded review sample; no re-sorting
// happens here.
func FirstNByMovie(events []dataset.RatingEvent, limit int) map[int64][]dataset.RatingEvent {
	samples := make(map[int64][]dataset.RatingEvent)
	for _, e := range events {
		s := samples[e.MovieID]
		if len(s) >= limit {
			continue
		}
		samples[e.MovieID] = append(s, e)
	}
	return samples
}
