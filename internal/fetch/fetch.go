// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

// Package fetch downloads the source dataset archives and caches them on
// disk. Downloads stream to a temporary file, are checksum-verified when a
// known hash is configured, and only then renamed into the cache, so a
// crashed download never poisons the cache. A cache hit skips the network
// entirely (the checksum is re-verified against the cached file).
package fetch

import (
	"context"
	"crypto/md5" //nolint:gosec // dataset integrity check against a published MD5, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// Config controls download behavior and cache placement.
type Config struct {
	// CacheDir receives downloaded and unpacked files.
	CacheDir string

	// HTTPTimeout bounds each individual download attempt.
	HTTPTimeout time.Duration

	// RetryAttempts is the number of attempts per download; RetryDelay is
	// the initial delay between them and doubles each attempt.
	RetryAttempts int
	RetryDelay    time.Duration
}

// Fetcher downloads and caches dataset files.
type Fetcher struct {
	cfg    Config
	client *http.Client
}

// New creates a Fetcher. Zero config fields get conservative defaults.
func New(cfg Config) *Fetcher {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 60 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
	}
}

// Fetch returns the local path of the file at rawURL, downloading it into
// the cache unless a verified copy is already there. wantMD5, when
// non-empty, is checked against both cached and freshly downloaded copies;
// a mismatch on a cached copy triggers a re-download, a mismatch on a
// fresh download is fatal.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, wantMD5 string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid dataset url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("dataset url %q has no file name", rawURL)
	}
	target := filepath.Join(f.cfg.CacheDir, name)

	if _, err := os.Stat(target); err == nil {
		ok, err := verifyMD5(target, wantMD5)
		if err != nil {
			return "", err
		}
		if ok {
			logging.Debug().Str("path", target).Msg("Dataset cache hit")
			return target, nil
		}
		logging.Warn().Str("path", target).Msg("Cached dataset failed checksum, re-downloading")
	}

	if err := os.MkdirAll(f.cfg.CacheDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create cache directory %s: %w", f.cfg.CacheDir, err)
	}

	var lastErr error
	delay := f.cfg.RetryDelay
	for attempt := 1; attempt <= f.cfg.RetryAttempts; attempt++ {
		if attempt > 1 {
			logging.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("url", rawURL).
				Msg("Retrying dataset download")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			delay *= 2
		}

		if lastErr = f.download(ctx, rawURL, target, wantMD5); lastErr == nil {
			return target, nil
		}
	}
	return "", fmt.Errorf("download of %s failed after %d attempts: %w", rawURL, f.cfg.RetryAttempts, lastErr)
}

// download streams rawURL to a temp file, verifies the hash, and renames
// into place.
func (f *Fetcher) download(ctx context.Context, rawURL, target, wantMD5 string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmpPath := filepath.Join(f.cfg.CacheDir, ".tmp-"+uuid.New().String())
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup, no-op after rename

	hasher := md5.New() //nolint:gosec // see package comment
	written, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}

	if wantMD5 != "" {
		got := hex.EncodeToString(hasher.Sum(nil))
		if got != wantMD5 {
			return fmt.Errorf("checksum mismatch for %s: got md5:%s, want md5:%s", rawURL, got, wantMD5)
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("failed to publish download: %w", err)
	}

	logging.Info().
		Str("url", rawURL).
		Str("path", target).
		Int64("bytes", written).
		Msg("Dataset downloaded")
	return nil
}

// verifyMD5 reports whether the file at path matches want. An empty want
// always matches.
func verifyMD5(path, want string) (bool, error) {
	if want == "" {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s for checksum: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	hasher := md5.New() //nolint:gosec // see package comment
	if _, err := io.Copy(hasher, f); err != nil {
		return false, fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)) == want, nil
}
