// Package resolve turns a manifest revision and a target platform into a
// complete, hash-pinned lockfile.
package resolve

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/platform"
)

// LockfileFormatVersion is bumped on incompatible schema changes.
const LockfileFormatVersion = 1

// ResolvedPackage is the per-platform resolution of one package descriptor:
// exactly one artifact locator and hash.
type ResolvedPackage struct {
	Name    string        `yaml:"name"`
	Version string        `yaml:"version"`
	URL     string        `yaml:"url"`
	Hash    manifest.Hash `yaml:"hash"`

	// Depends is the effective direct dependency list: declared dependencies
	// plus everything those dependencies propagate.
	Depends []string `yaml:"depends,omitempty"`
}

// Lockfile is a reproducible snapshot of an entire revision resolved for one
// platform. Identical inputs always produce identical lockfiles.
type Lockfile struct {
	FormatVersion int               `yaml:"format_version"`
	Revision      string            `yaml:"revision"`
	Platform      platform.Platform `yaml:"platform"`

	// Packages is kept sorted by name so serialization is canonical.
	Packages []ResolvedPackage `yaml:"packages"`
}

// Package returns the resolved package with the given name.
func (l *Lockfile) Package(name string) (ResolvedPackage, bool) {
	for _, pkg := range l.Packages {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return ResolvedPackage{}, false
}

// Names returns every resolved package name in order.
func (l *Lockfile) Names() []string {
	names := make([]string, 0, len(l.Packages))
	for _, pkg := range l.Packages {
		names = append(names, pkg.Name)
	}
	return names
}

// Closure returns the named roots plus their full effective dependency
// closure, sorted by name.
func (l *Lockfile) Closure(roots []string) ([]ResolvedPackage, error) {
	index := make(map[string]ResolvedPackage, len(l.Packages))
	for _, pkg := range l.Packages {
		index[pkg.Name] = pkg
	}

	seen := make(map[string]struct{})
	var walk func(name string) error
	walk = func(name string) error {
		if _, done := seen[name]; done {
			return nil
		}
		pkg, ok := index[name]
		if !ok {
			return fmt.Errorf("lockfile %s/%s has no package %q", l.Revision, l.Platform, name)
		}
		seen[name] = struct{}{}
		for _, dep := range pkg.Depends {
			if err := walk(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root); err != nil {
			return nil, err
		}
	}

	closure := make([]ResolvedPackage, 0, len(seen))
	for name := range seen {
		closure = append(closure, index[name])
	}
	sort.Slice(closure, func(i, j int) bool { return closure[i].Name < closure[j].Name })
	return closure, nil
}

// Marshal renders the lockfile as canonical YAML.
func (l *Lockfile) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}

// UnmarshalLockfile parses a lockfile produced by Marshal.
func UnmarshalLockfile(data []byte) (*Lockfile, error) {
	var lock Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("decode lockfile: %w", err)
	}
	if lock.FormatVersion != LockfileFormatVersion {
		return nil, fmt.Errorf("unsupported lockfile format version %d", lock.FormatVersion)
	}
	return &lock, nil
}
