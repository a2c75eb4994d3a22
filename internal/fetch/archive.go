// Popcorn Plots - MovieLens and IMDb Dataset Reconciliation Pipeline
// Copyright 2026 ralisv
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ralisv/Popcorn-Plots

package fetch

import (
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ralisv/Popcorn-Plots/internal/logging"
)

// Unzip extracts archivePath into a directory next to it named after the
// archive (ml-32m.zip -> ml-32m.extracted/) and returns the extracted file
// paths. An existing extraction is reused without touching the archive.
func Unzip(archivePath string) ([]string, error) {
	destDir := strings.TrimSuffix(archivePath, filepath.Ext(archivePath)) + ".extracted"

	if entries, err := listFiles(destDir); err == nil && len(entries) > 0 {
		logging.Debug().Str("dir", destDir).Msg("Archive already extracted")
		return entries, nil
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close() //nolint:errcheck // read-only archive

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}

	var extracted []string
	for _, member := range r.File {
		if member.FileInfo().IsDir() {
			continue
		}

		// Reject members escaping the destination (zip-slip).
		dest := filepath.Join(destDir, filepath.Clean(member.Name))
		if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return nil, fmt.Errorf("archive member %q escapes extraction directory", member.Name)
		}

		if err := extractMember(member, dest); err != nil {
			return nil, err
		}
		extracted = append(extracted, dest)
	}

	logging.Info().
		Str("archive", archivePath).
		Int("files", len(extracted)).
		Msg("Archive extracted")
	return extracted, nil
}

func extractMember(member *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}

	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive member %s: %w", member.Name, err)
	}
	defer src.Close() //nolint:errcheck // read-only member

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	_, err = io.Copy(out, src) //nolint:gosec // trusted dataset archives, sizes known up front
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to extract %s: %w", member.Name, err)
	}
	return nil
}

// Gunzip decompresses gzPath next to itself, dropping the .gz suffix
// (title.basics.tsv.gz -> title.basics.tsv), and returns the output path.
// An existing output is reused.
func Gunzip(gzPath string) (string, error) {
	dest := strings.TrimSuffix(gzPath, ".gz")
	if dest == gzPath {
		dest = gzPath + ".out"
	}

	if _, err := os.Stat(dest); err == nil {
		logging.Debug().Str("path", dest).Msg("File already decompressed")
		return dest, nil
	}

	f, err := os.Open(gzPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", gzPath, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to read gzip header of %s: %w", gzPath, err)
	}
	defer gz.Close() //nolint:errcheck // read side

	tmpPath := dest + ".tmp"
	out, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}
	defer os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup, no-op after rename

	_, err = io.Copy(out, gz) //nolint:gosec // trusted dataset archives
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("failed to decompress %s: %w", gzPath, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return "", fmt.Errorf("failed to publish %s: %w", dest, err)
	}

	logging.Info().Str("path", dest).Msg("File decompressed")
	return dest, nil
}

// listFiles returns all regular files under dir, walking recursively.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
