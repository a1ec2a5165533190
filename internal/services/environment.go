// Package services wires the manifest, resolver, store, environment, and
// workflow layers into the operations the CLI exposes.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openercot/pinion/internal/env"
	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/resolve"
	"github.com/openercot/pinion/internal/store"
	"github.com/openercot/pinion/platform"
)

// EnvironmentService turns a pinned revision into lockfiles and composed
// environments.
type EnvironmentService struct {
	Logger    *slog.Logger
	Manifests manifest.Repository
	Store     *store.Store
	EnvDir    string
}

func (s *EnvironmentService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// revision loads the named revision, or the latest one when id is empty.
func (s *EnvironmentService) revision(id string) (*manifest.Revision, error) {
	if id == "" {
		return s.Manifests.Latest()
	}
	return s.Manifests.Get(id)
}

// Resolve pins a revision's packages for the target platform.
func (s *EnvironmentService) Resolve(revisionID string, target platform.Platform) (*resolve.Lockfile, error) {
	rev, err := s.revision(revisionID)
	if err != nil {
		return nil, err
	}

	logger := s.logger().With("revision", rev.ID, "platform", target)
	logger.Info("resolving revision")

	resolver := resolve.NewResolver(s.Logger)
	lock, err := resolver.Resolve(rev, target)
	if err != nil {
		return nil, err
	}
	logger.Info("revision resolved", "packages", len(lock.Packages))
	return lock, nil
}

// Build resolves a revision and composes the named profile from the result.
func (s *EnvironmentService) Build(ctx context.Context, revisionID string, target platform.Platform, profileName string) (*env.Environment, error) {
	rev, err := s.revision(revisionID)
	if err != nil {
		return nil, err
	}

	lock, err := s.Resolve(rev.ID, target)
	if err != nil {
		return nil, err
	}

	builder := env.NewBuilder(s.Store, s.EnvDir, s.Logger)
	environment, err := builder.Compose(ctx, rev, lock, profileName)
	if err != nil {
		return nil, err
	}

	s.logger().Info("environment composed",
		"revision", rev.ID,
		"profile", profileName,
		"packages", len(environment.Packages),
		"dir", environment.Dir,
	)
	return environment, nil
}

// Verify re-hashes every indexed store path and reports violations.
func (s *EnvironmentService) Verify(ctx context.Context) ([]store.Violation, error) {
	violations, err := s.Store.Verify(ctx)
	if err != nil {
		return nil, fmt.Errorf("store verification failed: %w", err)
	}
	if len(violations) > 0 {
		s.logger().Warn("store verification found violations", "count", len(violations))
	} else {
		s.logger().Info("store verified")
	}
	return violations, nil
}

// ListRevisions returns all known revisions, oldest first.
func (s *EnvironmentService) ListRevisions() ([]*manifest.Revision, error) {
	return s.Manifests.ListAll()
}
