package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	simple "github.com/openercot/pinion/config"
	"github.com/openercot/pinion/internal/logging"
	"github.com/openercot/pinion/internal/manifest"
	"github.com/openercot/pinion/internal/scenario"
	"github.com/openercot/pinion/internal/setup"
	"github.com/openercot/pinion/platform"
)

const defaultLogLevel = "info"

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	logger := logging.NewCLI(os.Stderr, &levelVar)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	setup.SetLogger(logger.With("component", "setup"))

	var (
		logLevel = defaultLogLevel
		cfgFile  string
		cfg      setup.Config
	)

	root := &cobra.Command{
		Use:           "pinion",
		Short:         "Reproducible environments and workflows for the openERCOT dispatch model",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to the tool configuration file")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := setup.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
			logLevel = cfg.LogLevel
		}
		level, err := parseLogLevel(logLevel)
		if err != nil {
			return err
		}
		if levelVar != nil {
			levelVar.Set(level)
		}
		return nil
	}

	root.AddCommand(
		newResolveCommand(logger, &cfg),
		newEnvCommand(logger, &cfg),
		newRunCommand(logger, &cfg),
		newFmtCommand(logger, &cfg),
		newStoreCommand(logger, &cfg),
		newManifestCommand(logger, &cfg),
		newScenarioCommand(logger),
	)
	return root
}

func newResolveCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	var (
		platformID string
		revisionID string
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Pin a manifest revision to exact package sources for a platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := targetPlatform(platformID)
			if err != nil {
				return err
			}

			cmdLogger := logger.With("command", "resolve", "platform", target)
			lock, err := simple.Resolve(*cfg, revisionID, target, cmdLogger)
			if err != nil {
				cmdLogger.Error("resolution failed", "error", err)
				return err
			}

			data, err := lock.Marshal()
			if err != nil {
				return err
			}
			if outFile == "" {
				fmt.Fprint(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := os.WriteFile(outFile, data, 0o644); err != nil {
				return fmt.Errorf("failed to write lockfile: %w", err)
			}
			cmdLogger.Info("lockfile written", "file", outFile, "packages", len(lock.Packages))
			return nil
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Target platform (defaults to the current machine)")
	cmd.Flags().StringVar(&revisionID, "revision", "", "Manifest revision (defaults to the latest)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the lockfile to this path instead of stdout")

	return cmd
}

func newEnvCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Compose and inspect package environments",
	}

	cmd.AddCommand(
		newEnvBuildCommand(logger, cfg),
		newEnvShellCommand(logger, cfg),
	)
	return cmd
}

func newEnvBuildCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	var (
		platformID string
		revisionID string
	)

	cmd := &cobra.Command{
		Use:   "build [profile]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Realize a profile's packages into the store and compose the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := manifest.ProfileDefault
			if len(args) == 1 {
				profile = strings.TrimSpace(args[0])
			}

			target, err := targetPlatform(platformID)
			if err != nil {
				return err
			}

			cmdLogger := logger.With("command", "env.build", "profile", profile)
			environment, err := simple.BuildEnvironment(cmd.Context(), *cfg, revisionID, profile, target, cmdLogger)
			if err != nil {
				cmdLogger.Error("environment build failed", "error", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "composed %s environment for revision %s (%d packages) at %s\n",
				environment.Profile, environment.Revision, len(environment.Packages), environment.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Target platform (defaults to the current machine)")
	cmd.Flags().StringVar(&revisionID, "revision", "", "Manifest revision (defaults to the latest)")

	return cmd
}

func newEnvShellCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	var (
		platformID string
		revisionID string
	)

	cmd := &cobra.Command{
		Use:   "shell [profile]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Compose a profile and print its activation script path",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile := manifest.ProfileDev
			if len(args) == 1 {
				profile = strings.TrimSpace(args[0])
			}

			target, err := targetPlatform(platformID)
			if err != nil {
				return err
			}

			cmdLogger := logger.With("command", "env.shell", "profile", profile)
			environment, err := simple.BuildEnvironment(cmd.Context(), *cfg, revisionID, profile, target, cmdLogger)
			if err != nil {
				cmdLogger.Error("shell composition failed", "error", err)
				return err
			}

			// The caller sources this to enter the environment.
			fmt.Fprintf(cmd.OutOrStdout(), "%s/activate\n", environment.Dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&platformID, "platform", "", "Target platform (defaults to the current machine)")
	cmd.Flags().StringVar(&revisionID, "revision", "", "Manifest revision (defaults to the latest)")

	return cmd
}

func newRunCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:   "run <target>",
		Args:  cobra.ExactArgs(1),
		Short: "Run a workflow target and everything it depends on",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(args[0])
			if target == "" {
				return fmt.Errorf("target is required")
			}

			cmdLogger := logger.With("command", "run", "target", target)
			result, err := simple.RunWorkflow(cmd.Context(), *cfg, workDir, target, cmdLogger)
			if err != nil {
				cmdLogger.Error("workflow run failed", "error", err)
				return err
			}

			for _, tr := range result.Results {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", tr.State, tr.Target)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&workDir, "work-dir", ".", "Directory the workflow commands run in")

	return cmd
}

func newFmtCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	var (
		check bool
		root  string
	)

	cmd := &cobra.Command{
		Use:   "fmt",
		Short: "Format model source files, or verify they are formatted with --check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "fmt", "check", check)

			result, err := simple.Format(cmd.Context(), *cfg, root, check, cmdLogger)
			if err != nil {
				if result != nil {
					for _, file := range result.Files {
						if file.Changed {
							fmt.Fprintf(cmd.OutOrStdout(), "--- %s\n%s", file.Path, file.Diff)
						}
					}
				}
				return err
			}

			if result.Changed == 0 {
				cmdLogger.Info("all files formatted", "files", len(result.Files))
			} else {
				cmdLogger.Info("formatting applied", "changed", result.Changed, "files", len(result.Files))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Report unformatted files without rewriting them")
	cmd.Flags().StringVar(&root, "root", ".", "Directory tree to format")

	return cmd
}

func newStoreCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the content-addressed package store",
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every stored package and report corrupted or missing paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "store.verify")

			violations, err := simple.VerifyStore(cmd.Context(), *cfg, cmdLogger)
			if err != nil {
				cmdLogger.Error("verification failed", "error", err)
				return err
			}
			if len(violations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "store verified: no violations")
				return nil
			}

			for _, v := range violations {
				if v.Missing {
					fmt.Fprintf(cmd.OutOrStdout(), "missing   %s\n", v.Path)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "corrupted %s (expected %s, got %s)\n", v.Path, v.Expected, v.Actual)
			}
			return fmt.Errorf("store verification found %d violation(s)", len(violations))
		},
	}

	cmd.AddCommand(verify)
	return cmd
}

func newManifestCommand(logger *slog.Logger, cfg *setup.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect package manifest revisions",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List known manifest revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			revisions, err := simple.ListRevisions(*cfg, logger.With("command", "manifest.list"))
			if err != nil {
				return err
			}
			for _, rev := range revisions {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %2d packages  %s\n", rev.ID, len(rev.Packages), rev.Description)
			}
			return nil
		},
	}

	cmd.AddCommand(list)
	return cmd
}

func newScenarioCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Work with model scenario configurations",
	}

	check := &cobra.Command{
		Use:   "check <file>",
		Args:  cobra.ExactArgs(1),
		Short: "Validate a scenario TOML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdLogger := logger.With("command", "scenario.check", "file", args[0])

			s, err := scenario.Load(args[0])
			if err != nil {
				cmdLogger.Error("scenario validation failed", "error", err)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scenario ok: %s to %s, network %s\n",
				s.SimulationParams.StartDate, s.SimulationParams.EndDate, s.IOParams.NetworkPath)
			return nil
		},
	}

	cmd.AddCommand(check)
	return cmd
}

func targetPlatform(id string) (platform.Platform, error) {
	if strings.TrimSpace(id) == "" {
		return platform.Current()
	}
	return platform.Parse(id)
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}
