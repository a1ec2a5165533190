package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/openercot/pinion/internal/logging"
)

// TargetResult is the outcome of one target within a run.
type TargetResult struct {
	Target   string
	State    TargetState
	Output   string
	Duration time.Duration
	Err      error
}

// RunResult collects the per-target outcomes of a workflow run.
type RunResult struct {
	RunID     string
	Requested string
	Results   []TargetResult
}

// State returns the state recorded for a target in this run.
func (r *RunResult) State(target string) TargetState {
	for _, result := range r.Results {
		if result.Target == target {
			return result.State
		}
	}
	return StateSkipped
}

// Executor runs workflow targets in dependency order.
//
// A target runs only once all its declared inputs exist; an input with
// neither a producing rule nor a file on disk fails the run with a
// NoRuleError before any command is started.
type Executor struct {
	WorkDir string
	Logger  *slog.Logger

	// Extra environment entries (KEY=VALUE) appended to the command env.
	Env []string
}

// NewExecutor constructs an Executor rooted at workDir.
func NewExecutor(workDir string, logger *slog.Logger) *Executor {
	return &Executor{
		WorkDir: workDir,
		Logger:  logging.Ensure(logger).With("component", "workflow"),
	}
}

// Run builds the requested target and everything it depends on.
func (e *Executor) Run(ctx context.Context, g *Graph, requested string) (*RunResult, error) {
	plan, err := g.Plan(requested)
	if err != nil {
		return nil, err
	}

	run := &RunResult{
		RunID:     uuid.NewString(),
		Requested: requested,
	}
	logger := e.Logger.With("run_id", run.RunID, "target", requested)

	// Fail before running anything if an input can never be satisfied.
	if err := e.checkInputs(g, plan); err != nil {
		return nil, err
	}

	logger.Info("starting workflow run", "steps", len(plan))
	for _, name := range plan {
		target, _ := g.Target(name)

		result, err := e.runTarget(ctx, g, target)
		run.Results = append(run.Results, result)
		if err != nil {
			logger.Error("workflow run failed", "step", name, "error", err)
			return run, err
		}
	}
	logger.Info("workflow run completed")
	return run, nil
}

// checkInputs verifies that every input in the plan is either produced by a
// planned target or already present on disk.
func (e *Executor) checkInputs(g *Graph, plan []string) error {
	planned := make(map[string]struct{}, len(plan))
	for _, name := range plan {
		planned[name] = struct{}{}
	}

	for _, name := range plan {
		target, _ := g.Target(name)
		for _, input := range target.Inputs {
			if producer, ok := g.Producer(input); ok {
				if _, scheduled := planned[producer]; scheduled {
					continue
				}
			}
			if _, err := os.Stat(e.resolve(input)); errors.Is(err, os.ErrNotExist) {
				return &NoRuleError{Path: input, Target: name}
			} else if err != nil {
				return fmt.Errorf("stat input %s: %w", input, err)
			}
		}
	}
	return nil
}

func (e *Executor) runTarget(ctx context.Context, g *Graph, target Target) (TargetResult, error) {
	logger := e.Logger.With("step", target.Name)
	outputPath := e.resolve(target.Output)

	if target.Cached {
		if _, err := os.Stat(outputPath); err == nil {
			logger.Info("output up to date, reusing", "output", target.Output)
			return TargetResult{Target: target.Name, State: StateCached, Output: target.Output}, nil
		}
	}

	// Inputs must exist by now; a producer that silently failed to write its
	// output is caught here rather than by the consuming command.
	for _, input := range target.Inputs {
		if _, err := os.Stat(e.resolve(input)); err != nil {
			err := &NoRuleError{Path: input, Target: target.Name}
			return TargetResult{Target: target.Name, State: StateFailed, Err: err}, err
		}
	}

	for _, key := range target.RequiresEnv {
		if !envHas(e.Env, key) && os.Getenv(key) == "" {
			err := fmt.Errorf("target %s requires environment variable %s", target.Name, key)
			return TargetResult{Target: target.Name, State: StateFailed, Err: err}, err
		}
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return TargetResult{Target: target.Name, State: StateFailed, Err: err}, err
		}
	}

	logger.Info("running target", "command", target.Command)
	started := time.Now()

	cmd := exec.CommandContext(ctx, "sh", "-c", target.Command)
	cmd.Dir = e.WorkDir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		cmdErr := &CommandError{Target: target.Name, ExitCode: exitCode, Err: err}
		return TargetResult{Target: target.Name, State: StateFailed, Duration: time.Since(started), Err: cmdErr}, cmdErr
	}

	if _, err := os.Stat(outputPath); err != nil {
		err := fmt.Errorf("target %s did not produce %s", target.Name, target.Output)
		return TargetResult{Target: target.Name, State: StateFailed, Duration: time.Since(started), Err: err}, err
	}

	logger.Info("target completed", "output", target.Output, "duration", time.Since(started))
	return TargetResult{
		Target:   target.Name,
		State:    StateCompleted,
		Output:   target.Output,
		Duration: time.Since(started),
	}, nil
}

func (e *Executor) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.WorkDir, path)
}

func envHas(env []string, key string) bool {
	prefix := key + "="
	for _, kv := range env {
		if len(kv) > len(prefix) && kv[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
