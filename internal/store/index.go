package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/openercot/pinion/internal/manifest"
)

// Entry records one realized store path.
type Entry struct {
	Path       string
	Name       string
	Version    string
	Hash       manifest.Hash
	RealizedAt time.Time
}

// Index is the store's database of realized paths.
type Index struct {
	db *sql.DB
}

const indexSchema = `
CREATE TABLE IF NOT EXISTS paths (
	path        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	hash        TEXT NOT NULL,
	realized_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS paths_name ON paths (name);
`

// OpenIndex opens (and if necessary initializes) the index database.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open store index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping store index: %w", err)
	}
	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize store index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (i *Index) Close() error {
	return i.db.Close()
}

// Record upserts the entry for a realized path.
func (i *Index) Record(entry Entry) error {
	_, err := i.db.Exec(
		`INSERT INTO paths (path, name, version, hash, realized_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET name=excluded.name, version=excluded.version,
		 hash=excluded.hash, realized_at=excluded.realized_at`,
		entry.Path, entry.Name, entry.Version, entry.Hash.String(), entry.RealizedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record store path %s: %w", entry.Path, err)
	}
	return nil
}

// Get returns the entry for the given path, or nil when it is not indexed.
func (i *Index) Get(path string) (*Entry, error) {
	row := i.db.QueryRow(`SELECT path, name, version, hash, realized_at FROM paths WHERE path = ?`, path)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query store path %s: %w", path, err)
	}
	return entry, nil
}

// List returns every indexed entry ordered by path.
func (i *Index) List() ([]Entry, error) {
	rows, err := i.db.Query(`SELECT path, name, version, hash, realized_at FROM paths ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list store paths: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan store path: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Delete removes the entry for the given path.
func (i *Index) Delete(path string) error {
	if _, err := i.db.Exec(`DELETE FROM paths WHERE path = ?`, path); err != nil {
		return fmt.Errorf("delete store path %s: %w", path, err)
	}
	return nil
}

func scanEntry(scanner interface{ Scan(...any) error }) (*Entry, error) {
	var entry Entry
	var hash string
	var realizedAt int64
	if err := scanner.Scan(&entry.Path, &entry.Name, &entry.Version, &hash, &realizedAt); err != nil {
		return nil, err
	}
	entry.Hash = manifest.Hash(hash)
	entry.RealizedAt = time.Unix(realizedAt, 0).UTC()
	return &entry, nil
}
