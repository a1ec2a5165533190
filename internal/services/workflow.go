package services

import (
	"context"
	"log/slog"
	"os"
	"sort"

	"github.com/openercot/pinion/internal/env"
	"github.com/openercot/pinion/internal/workflow"
)

// WorkflowService runs workflow targets inside a composed environment.
type WorkflowService struct {
	Logger *slog.Logger
	// WorkflowFile overrides the embedded workflow when non-empty.
	WorkflowFile string
	WorkDir      string
	// Environment, when set, contributes its activation variables to every
	// target command.
	Environment *env.Environment
	// Secrets are KEY=VALUE pairs from the .env file.
	Secrets map[string]string
}

func (s *WorkflowService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Graph loads and validates the workflow definition.
func (s *WorkflowService) Graph() (*workflow.Graph, error) {
	wf, err := workflow.Load(s.WorkflowFile)
	if err != nil {
		return nil, err
	}
	return workflow.NewGraph(wf)
}

// Run builds the requested target and its dependencies.
func (s *WorkflowService) Run(ctx context.Context, target string) (*workflow.RunResult, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}

	executor := workflow.NewExecutor(s.WorkDir, s.Logger)
	executor.Env = s.commandEnv()

	s.logger().Info("running workflow target", "target", target)
	result, err := executor.Run(ctx, g, target)
	if err != nil {
		return result, err
	}

	s.logger().Info("workflow target finished",
		"target", target,
		"run_id", result.RunID,
	)
	return result, nil
}

// commandEnv merges the activation variables of the composed environment with
// the loaded secrets, in that order.
func (s *WorkflowService) commandEnv() []string {
	var extra []string
	if s.Environment != nil {
		extra = s.Environment.Environ(nil)
	}

	keys := make([]string, 0, len(s.Secrets))
	for key := range s.Secrets {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		extra = append(extra, key+"="+s.Secrets[key])
	}
	return extra
}

// MissingSecrets reports which of the given variables are neither in the
// loaded secrets nor in the process environment.
func (s *WorkflowService) MissingSecrets(names ...string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := s.Secrets[name]; ok {
			continue
		}
		if _, ok := os.LookupEnv(name); ok {
			continue
		}
		missing = append(missing, name)
	}
	return missing
}
