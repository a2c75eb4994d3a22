// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package load

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestRatings(t *testing.T) {
	path := writeFile(t, "ratings.csv",
		"userId,movieId,rating,timestamp\n"+
			"1,296,5.0,1147880044\n"+
			"1,306,3.5,1147868817\n"+
			"garbage,row\n"+
			"2,296,4.0,1147880100\n")

	events, err := Ratings(path)
	if err != nil {
		t.Fatalf("Ratings failed: %v", err)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events (1 malformed skipped), got %d", len(events))
	}
	e := events[0]
	if e.UserID != 1 || e.MovieID != 296 || e.Rating != 5.0 {
		t.Errorf("first event = %+v", e)
	}
	want := time.Unix(1147880044, 0).UTC()
	if !e.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", e.Timestamp, want)
	}
	// File order preserved.
	if events[1].MovieID != 306 || events[2].UserID != 2 {
		t.Error("events not in file order")
	}
}

func TestLinks(t *testing.T) {
	path := writeFile(t, "links.csv",
		"movieId,imdbId,tmdbId\n"+
			"1,0114709,862\n"+
			"2,0113497,\n"+
			"3,notanumber,8androw\n")

	links, err := Links(path)
	if err != nil {
		t.Fatalf("Links failed: %v", err)
	}

	if len(links) != 2 {
		t.Fatalf("expected 2 links (1 malformed skipped), got %d", len(links))
	}
	if links[0].MovieID != 1 || links[0].IMDbID != 114709 {
		t.Errorf("first link = %+v", links[0])
	}
	if links[0].TMDBID == nil || *links[0].TMDBID != 862 {
		t.Errorf("first link tmdb = %v, want 862", links[0].TMDBID)
	}
	if links[1].TMDBID != nil {
		t.Errorf("empty tmdb column must stay nil, got %v", *links[1].TMDBID)
	}
}

func TestTitleBasics(t *testing.T) {
	path := writeFile(t, "title.basics.tsv",
		"tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres\n"+
			"tt0000001\tshort\tCarmencita\tCarmencita\t0\t1894\t\\N\t1\tDocumentary,Short\n"+
			"tt0111161\tmovie\tThe Shawshank Redemption\tThe Shawshank Redemption\t0\t1994\t\\N\t142\tDrama\n"+
			"tt9999999\tmovie\t\\N\t\\N\t0\t\\N\t\\N\t\\N\t\\N\n")

	titles, err := TitleBasics(path)
	if err != nil {
		t.Fatalf("TitleBasics failed: %v", err)
	}

	if len(titles) != 3 {
		t.Fatalf("expected 3 titles, got %d", len(titles))
	}

	first := titles[0]
	if first.ID != "tt0000001" || first.TitleType != "short" {
		t.Errorf("first title = %+v", first)
	}
	if first.Year == nil || *first.Year != 1894 {
		t.Errorf("first year = %v, want 1894", first.Year)
	}
	if first.EndYear != nil {
		t.Errorf("\\N end year must be nil, got %v", *first.EndYear)
	}
	if first.Genres == nil || *first.Genres != "Documentary,Short" {
		t.Errorf("first genres = %v", first.Genres)
	}

	second := titles[1]
	if second.RuntimeMinutes == nil || *second.RuntimeMinutes != 142 {
		t.Errorf("second runtime = %v, want 142", second.RuntimeMinutes)
	}

	sparse := titles[2]
	if sparse.Title != "" || sparse.Year != nil || sparse.Genres != nil {
		t.Errorf("all-sentinel title must be empty, got %+v", sparse)
	}
}

func TestRatings_MissingFile(t *testing.T) {
	if _, err := Ratings(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
