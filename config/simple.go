// Package simple wires the standard configuration of the tool: embedded
// manifests unless a manifest directory is configured, a local store, and the
// workflow from the repository root.
package simple

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openercot/pinion/internal/env"
	"github.com/openercot/pinion/internal/fmtjob"
	"github.com/openercot/pinion/internal/logging"
	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/resolve"
	"github.com/openercot/pinion/internal/services"
	"github.com/openercot/pinion/internal/setup"
	"github.com/openercot/pinion/internal/store"
	"github.com/openercot/pinion/internal/workflow"
	"github.com/openercot/pinion/platform"
)

// FormatPatterns are the file globs the formatting job covers.
var FormatPatterns = []string{"*.py"}

// FormatCommand reads a file and writes the formatted result to stdout. It
// expects the fmt profile's formatter on PATH.
var FormatCommand = "ruff format --stdin-filename"

func repository(cfg setup.Config) manifest.Repository {
	if cfg.ManifestDir != "" {
		return &manifest.LocalRepository{BaseDir: cfg.ManifestDir}
	}
	return manifest.NewEmbeddedRepository()
}

func environmentService(cfg setup.Config, logger *slog.Logger) (*services.EnvironmentService, func() error, error) {
	s, err := store.Open(cfg.StoreDir, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store at %s: %w", cfg.StoreDir, err)
	}
	svc := &services.EnvironmentService{
		Logger:    logging.Ensure(logger).With("service", "environment"),
		Manifests: repository(cfg),
		Store:     s,
		EnvDir:    cfg.EnvDir,
	}
	return svc, s.Close, nil
}

// Resolve pins the given revision (latest when empty) for the target platform
// and returns the lockfile.
func Resolve(cfg setup.Config, revisionID string, target platform.Platform, logger *slog.Logger) (*resolve.Lockfile, error) {
	svc := &services.EnvironmentService{
		Logger:    logging.Ensure(logger).With("service", "environment"),
		Manifests: repository(cfg),
	}
	return svc.Resolve(revisionID, target)
}

// BuildEnvironment resolves and composes the named profile for the current
// platform.
func BuildEnvironment(ctx context.Context, cfg setup.Config, revisionID, profile string, target platform.Platform, logger *slog.Logger) (*env.Environment, error) {
	svc, closeStore, err := environmentService(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return svc.Build(ctx, revisionID, target, profile)
}

// RunWorkflow executes the requested workflow target inside the default
// environment when one has been composed, with .env secrets loaded from the
// working directory.
func RunWorkflow(ctx context.Context, cfg setup.Config, workDir, target string, logger *slog.Logger) (*workflow.RunResult, error) {
	secrets, err := setup.LoadDotenv(".env")
	if err != nil {
		return nil, err
	}

	svc := &services.WorkflowService{
		Logger:       logging.Ensure(logger).With("service", "workflow"),
		WorkflowFile: cfg.WorkflowFile,
		WorkDir:      workDir,
		Secrets:      secrets,
	}

	// A previously composed default environment contributes its activation
	// variables; running without one is allowed for targets that do not need
	// the bundle.
	if environment, loadErr := env.Load(cfg.EnvDir, manifest.ProfileDefault); loadErr == nil {
		svc.Environment = environment
	}

	if missing := svc.MissingSecrets(setup.EIAAPIKeyVar, setup.CEMSAPIKeyVar); len(missing) > 0 {
		logging.Ensure(logger).Warn("secrets not configured", "missing", missing)
	}

	return svc.Run(ctx, target)
}

// ListRevisions returns all known manifest revisions.
func ListRevisions(cfg setup.Config, logger *slog.Logger) ([]*manifest.Revision, error) {
	svc := &services.EnvironmentService{
		Logger:    logging.Ensure(logger).With("service", "environment"),
		Manifests: repository(cfg),
	}
	return svc.ListRevisions()
}

// VerifyStore re-hashes every indexed store path.
func VerifyStore(ctx context.Context, cfg setup.Config, logger *slog.Logger) ([]store.Violation, error) {
	svc, closeStore, err := environmentService(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return svc.Verify(ctx)
}

// Format runs the formatting job over the working tree. When a composed fmt
// environment exists, the formatter command inherits its activation variables
// so it runs against the fmt profile's packages rather than the full stack.
func Format(ctx context.Context, cfg setup.Config, root string, check bool, logger *slog.Logger) (*fmtjob.Result, error) {
	formatter := &fmtjob.CommandFormatter{Command: FormatCommand}
	if environment, err := env.Load(cfg.EnvDir, manifest.ProfileFmt); err == nil {
		formatter.Env = environment.Environ(os.Environ())
	}

	runner := fmtjob.NewRunner(root, FormatPatterns, formatter, logging.Ensure(logger).With("service", "fmt"))
	runner.Check = check
	return runner.Run(ctx)
}
