package manifest

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed embedded/*.yaml
var embeddedRevisions embed.FS

// EmbeddedRepository serves the manifest snapshots compiled into the binary.
// These are the project's own environment pins; a LocalRepository can shadow
// them for out-of-tree experiments.
type EmbeddedRepository struct{}

// NewEmbeddedRepository returns the repository over the compiled-in snapshots.
func NewEmbeddedRepository() *EmbeddedRepository {
	return &EmbeddedRepository{}
}

// Get returns the embedded revision with the given id.
func (r *EmbeddedRepository) Get(revisionID string) (*Revision, error) {
	data, err := embeddedRevisions.ReadFile("embedded/" + revisionID + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("revision %s: %w", revisionID, ErrRevisionNotFound)
	}
	rev, err := DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("embedded revision %s: %w", revisionID, err)
	}
	return rev, nil
}

// Latest returns the embedded revision with the highest id ordering.
func (r *EmbeddedRepository) Latest() (*Revision, error) {
	revisions, err := r.ListAll()
	if err != nil {
		return nil, err
	}
	if len(revisions) == 0 {
		return nil, ErrRevisionNotFound
	}
	return revisions[len(revisions)-1], nil
}

// ListAll returns every embedded revision sorted by id.
func (r *EmbeddedRepository) ListAll() ([]*Revision, error) {
	entries, err := fs.ReadDir(embeddedRevisions, "embedded")
	if err != nil {
		return nil, err
	}

	revisions := make([]*Revision, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := embeddedRevisions.ReadFile("embedded/" + entry.Name())
		if err != nil {
			return nil, err
		}
		rev, err := DecodeBytes(data)
		if err != nil {
			return nil, fmt.Errorf("embedded revision %s: %w", entry.Name(), err)
		}
		revisions = append(revisions, rev)
	}

	sort.Slice(revisions, func(i, j int) bool { return revisions[i].ID < revisions[j].ID })
	return revisions, nil
}
