// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package imdbid derives the canonical cross-source movie identifier.
//
// MovieLens links carry a bare numeric IMDb id; IMDb's own tables key rows
// by tconst strings like "tt0111161". Both sides of every join in this
// pipeline go through this package, so the derivation must be byte-identical
// in both directions: Format(Parse(id)) == id for any id this pipeline emits,
// and Parse(Format(n)) == n for every n.
package imdbid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Prefix is the fixed tconst prefix IMDb uses for titles.
const Prefix = "tt"

// padWidth is the minimum digit count of the numeric part. Ids wider than
// this are emitted unpadded and untruncated; real IMDb ids exceed seven
// digits since 2017.
const padWidth = 7

// ErrMalformed is returned by Parse for ids that are not a "tt"-prefixed
// decimal number.
var ErrMalformed = errors.New("malformed imdb id")

// Format renders a numeric IMDb id as a tconst string: "tt" followed by
// the decimal id left-padded with zeros to at least seven digits.
func Format(n uint64) string {
	return fmt.Sprintf("%s%0*d", Prefix, padWidth, n)
}

// Parse extracts the numeric id from a tconst string. It accepts any
// digit width, so Format and Parse stay symmetric for ids beyond seven
// digits. A missing prefix or a non-numeric suffix yields ErrMalformed.
func Parse(id string) (uint64, error) {
	suffix, ok := strings.CutPrefix(id, Prefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q missing %q prefix", ErrMalformed, id, Prefix)
	}
	if suffix == "" {
		return 0, fmt.Errorf("%w: %q has empty numeric part", ErrMalformed, id)
	}
	n, err := strconv.ParseUint(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q has non-numeric suffix", ErrMalformed, id)
	}
	return n, nil
}
