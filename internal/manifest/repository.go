package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrRevisionNotFound is returned when a repository holds no matching revision.
var ErrRevisionNotFound = errors.New("manifest revision not found")

// Repository provides read access to manifest revisions. Each revision is an
// immutable, independent snapshot.
type Repository interface {
	Get(revisionID string) (*Revision, error)
	Latest() (*Revision, error)
	ListAll() ([]*Revision, error)
}

// LocalRepository stores manifest revisions as YAML files under BaseDir,
// one file per revision.
type LocalRepository struct {
	BaseDir string
}

// Save writes the revision as a new snapshot file.
func (r *LocalRepository) Save(rev *Revision) error {
	if err := rev.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.BaseDir, 0o755); err != nil {
		return err
	}

	file, err := os.OpenFile(r.revisionPath(rev.ID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(file, rev); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Get returns the revision with the given id.
func (r *LocalRepository) Get(revisionID string) (*Revision, error) {
	if revisionID == "" {
		return nil, fmt.Errorf("revision id is required")
	}

	file, err := os.Open(r.revisionPath(revisionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("revision %s: %w", revisionID, ErrRevisionNotFound)
		}
		return nil, err
	}
	defer file.Close()

	return Decode(file)
}

// Latest returns the revision with the highest id ordering.
func (r *LocalRepository) Latest() (*Revision, error) {
	revisions, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return nil, ErrRevisionNotFound
	}
	return revisions[len(revisions)-1], nil
}

// ListAll returns every stored revision sorted by id.
func (r *LocalRepository) ListAll() ([]*Revision, error) {
	entries, err := os.ReadDir(r.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var revisions []*Revision
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.BaseDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		rev, err := DecodeBytes(data)
		if err != nil {
			return nil, fmt.Errorf("revision file %s: %w", entry.Name(), err)
		}
		revisions = append(revisions, rev)
	}

	sort.Slice(revisions, func(i, j int) bool { return revisions[i].ID < revisions[j].ID })
	return revisions, nil
}

func (r *LocalRepository) revisionPath(revisionID string) string {
	return filepath.Join(r.BaseDir, revisionID+".yaml")
}
