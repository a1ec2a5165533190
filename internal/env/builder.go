// Package env composes resolved package sets into environment profiles.
package env

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openercot/pinion/internal/logging"
	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/resolve"
	"github.com/openercot/pinion/internal/store"
	"github.com/openercot/pinion/platform"
)

// InstalledPackage is one realized member of an environment.
type InstalledPackage struct {
	Name      string        `yaml:"name"`
	Version   string        `yaml:"version"`
	Hash      manifest.Hash `yaml:"hash"`
	StorePath string        `yaml:"store_path"`
}

// Environment is the composed, on-disk result of building a profile.
type Environment struct {
	Profile  string            `yaml:"profile"`
	Revision string            `yaml:"revision"`
	Platform platform.Platform `yaml:"platform"`

	Packages []InstalledPackage `yaml:"packages"`

	Dir string `yaml:"-"`
}

// PackageSet returns the environment's name -> version map, used to check the
// no-drift guarantee between the bundle and the dev shell.
func (e *Environment) PackageSet() map[string]string {
	set := make(map[string]string, len(e.Packages))
	for _, pkg := range e.Packages {
		set[pkg.Name] = pkg.Version
	}
	return set
}

// Environ extends a base environment with the composed store paths.
func (e *Environment) Environ(base []string) []string {
	paths := make([]string, 0, len(e.Packages))
	for _, pkg := range e.Packages {
		paths = append(paths, pkg.StorePath)
	}
	out := append([]string(nil), base...)
	out = append(out,
		"PINION_PROFILE="+e.Profile,
		"PINION_REVISION="+e.Revision,
		"PINION_STORE_PATHS="+strings.Join(paths, string(os.PathListSeparator)),
	)
	return out
}

// Builder realizes profile closures into the store and writes environment
// records under OutDir/<profile>/.
type Builder struct {
	Store  *store.Store
	OutDir string
	Logger *slog.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(s *store.Store, outDir string, logger *slog.Logger) *Builder {
	return &Builder{
		Store:  s,
		OutDir: outDir,
		Logger: logging.Ensure(logger).With("component", "env"),
	}
}

// Compose builds the named profile from the lockfile.
//
// The default bundle and the dev shell must never drift apart: when either is
// requested, their declared package lists are compared and composition fails
// on any difference.
func (b *Builder) Compose(ctx context.Context, rev *manifest.Revision, lock *resolve.Lockfile, profileName string) (*Environment, error) {
	profile, ok := rev.Profile(profileName)
	if !ok {
		return nil, fmt.Errorf("manifest revision %s has no profile %q", rev.ID, profileName)
	}

	if profileName == manifest.ProfileDefault || profileName == manifest.ProfileDev {
		if err := checkDrift(rev); err != nil {
			return nil, err
		}
	}

	closure, err := lock.Closure(profile.Packages)
	if err != nil {
		return nil, err
	}

	environment := &Environment{
		Profile:  profileName,
		Revision: lock.Revision,
		Platform: lock.Platform,
		Packages: make([]InstalledPackage, 0, len(closure)),
		Dir:      filepath.Join(b.OutDir, profileName),
	}

	for _, pkg := range closure {
		path, err := b.Store.Realize(ctx, pkg)
		if err != nil {
			return nil, err
		}
		environment.Packages = append(environment.Packages, InstalledPackage{
			Name:      pkg.Name,
			Version:   pkg.Version,
			Hash:      pkg.Hash,
			StorePath: path,
		})
	}

	if err := b.write(environment); err != nil {
		return nil, err
	}

	b.Logger.Info("composed environment",
		"profile", profileName,
		"revision", lock.Revision,
		"platform", lock.Platform,
		"packages", len(environment.Packages),
	)
	return environment, nil
}

// checkDrift enforces identical package lists for the default bundle and the
// interactive dev shell.
func checkDrift(rev *manifest.Revision) error {
	defaultProfile, ok := rev.Profile(manifest.ProfileDefault)
	if !ok {
		return fmt.Errorf("manifest revision %s has no profile %q", rev.ID, manifest.ProfileDefault)
	}
	devProfile, ok := rev.Profile(manifest.ProfileDev)
	if !ok {
		// A revision without a dev shell has nothing to drift from.
		return nil
	}

	a := append([]string(nil), defaultProfile.Packages...)
	b := append([]string(nil), devProfile.Packages...)
	slices.Sort(a)
	slices.Sort(b)
	if !slices.Equal(a, b) {
		return fmt.Errorf("manifest revision %s: default bundle and dev shell package sets differ (%v vs %v)", rev.ID, a, b)
	}
	return nil
}

// write persists the environment record and its activation script. Content is
// deterministic, so recomposition with unchanged inputs rewrites identical
// bytes.
func (b *Builder) write(environment *Environment) error {
	if err := os.MkdirAll(environment.Dir, 0o755); err != nil {
		return fmt.Errorf("create environment directory: %w", err)
	}

	record, err := yaml.Marshal(environment)
	if err != nil {
		return fmt.Errorf("encode environment record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(environment.Dir, "env.yaml"), record, 0o644); err != nil {
		return fmt.Errorf("write environment record: %w", err)
	}

	var script strings.Builder
	script.WriteString("# generated by pinion; do not edit\n")
	script.WriteString("export PINION_PROFILE=" + environment.Profile + "\n")
	script.WriteString("export PINION_REVISION=" + environment.Revision + "\n")
	for _, pkg := range environment.Packages {
		script.WriteString("export PINION_STORE_PATHS=\"${PINION_STORE_PATHS:+$PINION_STORE_PATHS:}" + pkg.StorePath + "\"\n")
	}
	if err := os.WriteFile(filepath.Join(environment.Dir, "activate"), []byte(script.String()), 0o755); err != nil {
		return fmt.Errorf("write activation script: %w", err)
	}
	return nil
}

// Load reads a previously composed environment record.
func Load(dir string, profileName string) (*Environment, error) {
	data, err := os.ReadFile(filepath.Join(dir, profileName, "env.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read environment record: %w", err)
	}
	var environment Environment
	if err := yaml.Unmarshal(data, &environment); err != nil {
		return nil, fmt.Errorf("decode environment record: %w", err)
	}
	environment.Dir = filepath.Join(dir, profileName)
	return &environment, nil
}
