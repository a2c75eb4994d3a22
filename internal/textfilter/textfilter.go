// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package textfilter classifies and cleans IMDb categorical text fields.
//
// Two independent predicates drive title selection:
//
//   - a title-type gate against an allow set ("movie", "tvMovie"); titles
//     with a missing type pass, since a MovieLens entry may simply not have
//     matched an IMDb row yet
//   - genre cleaning against an exclusion set; a title whose genre list is
//     empty after removing excluded tags is dropped entirely, because
//     nothing classifiable remains
//
// The asymmetry is deliberate: missing data is permissive for the type gate
// and exclusionary for the genre filter.
package textfilter

import "strings"

// Sentinel encodings for "no value" in the source tables. IMDb uses \N for
// missing fields; MovieLens uses a literal marker for titles that have no
// genres assigned.
const (
	missingSentinel  = `\N`
	noGenresSentinel = "(no genres listed)"
)

// Config holds the fixed classification sets. Both are exact-string and
// case-sensitive, matching the source vocabularies.
type Config struct {
	AllowedTitleTypes []string
	ExcludedGenres    []string
}

// Filter applies the title-type gate and genre cleaning.
type Filter struct {
	allowedTypes   map[string]struct{}
	excludedGenres map[string]struct{}
}

// New builds a Filter from the configured sets.
func New(cfg Config) *Filter {
	f := &Filter{
		allowedTypes:   make(map[string]struct{}, len(cfg.AllowedTitleTypes)),
		excludedGenres: make(map[string]struct{}, len(cfg.ExcludedGenres)),
	}
	for _, t := range cfg.AllowedTitleTypes {
		f.allowedTypes[t] = struct{}{}
	}
	for _, g := range cfg.ExcludedGenres {
		f.excludedGenres[g] = struct{}{}
	}
	return f
}

// AllowType reports whether a title type passes the allow set. Missing
// values (empty string or the \N sentinel) pass.
func (f *Filter) AllowType(titleType string) bool {
	if titleType == "" || titleType == missingSentinel {
		return true
	}
	_, ok := f.allowedTypes[titleType]
	return ok
}

// CleanGenres parses a raw comma-separated genre field and removes every
// excluded tag. The sentinel strings for "explicitly no genres" and
// "missing value" both yield nil rather than an error. Surviving tags keep
// their original relative order. Cleaning is idempotent.
func (f *Filter) CleanGenres(raw string) []string {
	if raw == "" || raw == missingSentinel || raw == noGenresSentinel {
		return nil
	}

	parts := strings.Split(raw, ",")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		g := strings.TrimSpace(p)
		if g == "" {
			continue
		}
		if _, excluded := f.excludedGenres[g]; excluded {
			continue
		}
		kept = append(kept, g)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// Keep reports whether a title with the given type and raw genre field
// survives both predicates, returning the cleaned genre list when it does.
func (f *Filter) Keep(titleType, rawGenres string) ([]string, bool) {
	if !f.AllowType(titleType) {
		return nil, false
	}
	genres := f.CleanGenres(rawGenres)
	if len(genres) == 0 {
		return nil, false
	}
	return genres, true
}
