// Package store realizes pinned artifacts into a content-addressed local store.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openercot/pinion/internal/fetch"
	"github.com/openercot/pinion/internal/logging"
	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/resolve"
)

// Store is a content-addressed artifact store. Realization is idempotent:
// identical inputs always map to the same store path, and an already-realized
// path is never fetched again.
type Store struct {
	BaseDir string
	Fetcher *fetch.Fetcher
	Logger  *slog.Logger

	index *Index
}

// Open opens the store rooted at baseDir, creating it if needed.
func Open(baseDir string, logger *slog.Logger) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("store base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	logger = logging.Ensure(logger).With("component", "store")

	index, err := OpenIndex(filepath.Join(baseDir, "index.db"))
	if err != nil {
		return nil, err
	}

	return &Store{
		BaseDir: baseDir,
		Fetcher: fetch.NewFetcher(logger),
		Logger:  logger,
		index:   index,
	}, nil
}

// Close releases the store's index database.
func (s *Store) Close() error {
	return s.index.Close()
}

// Index exposes the store's path database.
func (s *Store) Index() *Index {
	return s.index
}

// PathFor returns the store path an artifact will occupy once realized.
func (s *Store) PathFor(pkg resolve.ResolvedPackage) string {
	return filepath.Join(s.BaseDir, pkg.Hash.Short()+"-"+pkg.Name+"-"+pkg.Version)
}

// Realize fetches, verifies, and installs the artifact, returning its store
// path. A hash mismatch aborts without touching the store; no retry is
// attempted for it.
func (s *Store) Realize(ctx context.Context, pkg resolve.ResolvedPackage) (string, error) {
	if err := pkg.Hash.Validate(); err != nil {
		return "", fmt.Errorf("package %s: %w", pkg.Name, err)
	}

	path := s.PathFor(pkg)
	if entry, err := s.index.Get(path); err != nil {
		return "", err
	} else if entry != nil {
		if _, err := os.Stat(path); err == nil {
			s.Logger.Debug("store path already realized", "path", path)
			return path, nil
		}
		// Indexed but missing on disk: fall through and re-realize.
		s.Logger.Warn("indexed store path missing on disk, re-realizing", "path", path)
	}

	tmp, err := os.CreateTemp(s.BaseDir, ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	actual, err := s.Fetcher.Fetch(ctx, pkg.URL, tmpPath)
	if err != nil {
		return "", err
	}
	if !actual.Equal(pkg.Hash) {
		return "", &IntegrityError{Source: pkg.URL, Expected: pkg.Hash, Actual: actual}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("install %s into store: %w", pkg.Name, err)
	}
	if err := s.index.Record(Entry{
		Path:       path,
		Name:       pkg.Name,
		Version:    pkg.Version,
		Hash:       pkg.Hash,
		RealizedAt: time.Now().UTC(),
	}); err != nil {
		return "", err
	}

	s.Logger.Info("realized store path", "name", pkg.Name, "version", pkg.Version, "path", path)
	return path, nil
}

// Violation describes a store path whose content no longer matches its
// recorded hash, or which has gone missing.
type Violation struct {
	Path     string
	Expected manifest.Hash
	Actual   manifest.Hash
	Missing  bool
}

// Verify re-hashes every indexed store path against its recorded digest.
func (s *Store) Verify(ctx context.Context) ([]Violation, error) {
	entries, err := s.index.List()
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		file, err := os.Open(entry.Path)
		if errors.Is(err, os.ErrNotExist) {
			violations = append(violations, Violation{Path: entry.Path, Expected: entry.Hash, Missing: true})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open store path %s: %w", entry.Path, err)
		}

		actual, err := manifest.HashReader(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("hash store path %s: %w", entry.Path, err)
		}
		if !actual.Equal(entry.Hash) {
			violations = append(violations, Violation{Path: entry.Path, Expected: entry.Hash, Actual: actual})
		}
	}
	return violations, nil
}
