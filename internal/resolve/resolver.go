package resolve

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/openercot/pinion/internal/logging"
	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/platform"
)

const (
	memoTTL     = 10 * time.Minute
	memoCleanup = 30 * time.Minute
)

// Resolver resolves manifest revisions into per-platform lockfiles.
//
// Resolution is total and fails closed: an unsupported platform, a missing
// variant, or a dependency cycle aborts with an error instead of producing a
// partial lockfile. Results are memoized per (revision, platform) since the
// same snapshot is resolved repeatedly during environment composition.
type Resolver struct {
	Logger *slog.Logger

	memo *gocache.Cache
}

// NewResolver constructs a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		Logger: logging.Ensure(logger).With("component", "resolve"),
		memo:   gocache.New(memoTTL, memoCleanup),
	}
}

// Resolve produces the lockfile for the revision on the given platform.
func (r *Resolver) Resolve(rev *manifest.Revision, target platform.Platform) (*Lockfile, error) {
	if rev == nil {
		return nil, fmt.Errorf("manifest revision is required")
	}
	if !target.IsValid() {
		return nil, &platform.UnsupportedError{Value: target.String()}
	}

	key := rev.ID + "|" + target.String()
	if r.memo != nil {
		if cached, ok := r.memo.Get(key); ok {
			return cached.(*Lockfile), nil
		}
	}

	if err := rev.Validate(); err != nil {
		return nil, err
	}
	if err := checkCycles(rev); err != nil {
		return nil, err
	}

	lock := &Lockfile{
		FormatVersion: LockfileFormatVersion,
		Revision:      rev.ID,
		Platform:      target,
		Packages:      make([]ResolvedPackage, 0, len(rev.Packages)),
	}

	effective := effectiveDepends(rev)
	for _, pkg := range rev.Packages {
		resolved, err := resolvePackage(pkg, target)
		if err != nil {
			return nil, fmt.Errorf("resolve %s@%s for %s: %w", pkg.Name, pkg.Version, target, err)
		}
		resolved.Depends = effective[pkg.Name]
		lock.Packages = append(lock.Packages, resolved)
	}
	sort.Slice(lock.Packages, func(i, j int) bool { return lock.Packages[i].Name < lock.Packages[j].Name })

	if r.memo != nil {
		r.memo.Set(key, lock, gocache.DefaultExpiration)
	}
	r.Logger.Debug("resolved revision", "revision", rev.ID, "platform", target, "packages", len(lock.Packages))
	return lock, nil
}

func resolvePackage(pkg manifest.PackageDescriptor, target platform.Platform) (ResolvedPackage, error) {
	if pkg.PlatformSplit() {
		variant, ok := pkg.Variants[target]
		if !ok {
			// Manifest validation guarantees a full variant map, so this only
			// fires for a hand-edited descriptor. Still fail closed.
			return ResolvedPackage{}, &platform.UnsupportedError{Value: target.String()}
		}
		return ResolvedPackage{
			Name:    pkg.Name,
			Version: pkg.Version,
			URL:     variant.URL,
			Hash:    variant.Hash,
		}, nil
	}

	return ResolvedPackage{
		Name:    pkg.Name,
		Version: pkg.Version,
		URL:     pkg.URL,
		Hash:    pkg.Hash,
	}, nil
}

// effectiveDepends expands declared dependencies with propagated ones: when A
// depends on B and B propagates C, A effectively depends on C as well. The
// expansion runs to a fixpoint so chains of propagation settle.
func effectiveDepends(rev *manifest.Revision) map[string][]string {
	propagated := make(map[string][]string, len(rev.Packages))
	declared := make(map[string][]string, len(rev.Packages))
	for _, pkg := range rev.Packages {
		declared[pkg.Name] = pkg.Depends
		propagated[pkg.Name] = pkg.Propagates
	}

	effective := make(map[string]map[string]struct{}, len(rev.Packages))
	for name, deps := range declared {
		set := make(map[string]struct{})
		for _, dep := range deps {
			set[dep] = struct{}{}
		}
		effective[name] = set
	}

	for changed := true; changed; {
		changed = false
		for _, set := range effective {
			for dep := range set {
				for _, extra := range propagated[dep] {
					if _, ok := set[extra]; !ok {
						set[extra] = struct{}{}
						changed = true
					}
				}
			}
		}
	}

	out := make(map[string][]string, len(effective))
	for name, set := range effective {
		deps := make([]string, 0, len(set))
		for dep := range set {
			deps = append(deps, dep)
		}
		sort.Strings(deps)
		out[name] = deps
	}
	return out
}

// checkCycles rejects revisions whose declared dependency graph is cyclic.
func checkCycles(rev *manifest.Revision) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	deps := make(map[string][]string, len(rev.Packages))
	for _, pkg := range rev.Packages {
		deps[pkg.Name] = pkg.Depends
	}

	state := make(map[string]int, len(deps))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			start := 0
			for i, n := range path {
				if n == name {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), path[start:]...), name)
			return fmt.Errorf("manifest revision %s: dependency cycle: %s", rev.ID, strings.Join(cycle, " -> "))
		case done:
			return nil
		}

		state[name] = visiting
		path = append(path, name)
		for _, dep := range deps[name] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[name] = done
		return nil
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
