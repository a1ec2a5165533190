package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testGraph(t *testing.T, targets ...Target) *Graph {
	t.Helper()
	g, err := NewGraph(Workflow{Targets: targets})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	return g
}

func TestRunProducesOutput(t *testing.T) {
	dir := t.TempDir()
	g := testGraph(t, Target{
		Name:    "download_ercot_data",
		Output:  "downloads/ercot_data.pkl",
		Command: "echo load-data > downloads/ercot_data.pkl",
		Cached:  true,
	})

	run, err := NewExecutor(dir, nil).Run(context.Background(), g, "download_ercot_data")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.State("download_ercot_data") != StateCompleted {
		t.Errorf("state = %s, want completed", run.State("download_ercot_data"))
	}
	if _, err := os.Stat(filepath.Join(dir, "downloads/ercot_data.pkl")); err != nil {
		t.Errorf("output not produced: %v", err)
	}
}

func TestRunRefusesMissingExternalInput(t *testing.T) {
	dir := t.TempDir()
	g := testGraph(t,
		Target{
			Name:    "download_ercot_data",
			Output:  "downloads/ercot_data.pkl",
			Command: "echo load-data > downloads/ercot_data.pkl",
			Cached:  true,
		},
		Target{
			Name:    "build_model",
			Inputs:  []string{"downloads/ercot_data.pkl", "downloads/fuel_mix_data.pkl"},
			Output:  "model_result.nc",
			Command: "echo result > model_result.nc",
		},
	)

	_, err := NewExecutor(dir, nil).Run(context.Background(), g, "build_model")
	if err == nil {
		t.Fatal("run proceeded without fuel mix data")
	}
	var noRule *NoRuleError
	if !errors.As(err, &noRule) {
		t.Fatalf("got %v, want NoRuleError", err)
	}
	if noRule.Path != "downloads/fuel_mix_data.pkl" {
		t.Errorf("error names %s, want downloads/fuel_mix_data.pkl", noRule.Path)
	}

	// The failure must be detected before any command runs.
	if _, statErr := os.Stat(filepath.Join(dir, "downloads/ercot_data.pkl")); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("download step ran despite the missing input downstream")
	}
}

func TestRunBuildsModelWhenInputsPresent(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "downloads"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "downloads/fuel_mix_data.pkl"), []byte("fuel"), 0o644); err != nil {
		t.Fatal(err)
	}

	g := testGraph(t,
		Target{
			Name:    "download_ercot_data",
			Output:  "downloads/ercot_data.pkl",
			Command: "echo load-data > downloads/ercot_data.pkl",
			Cached:  true,
		},
		Target{
			Name:    "build_model",
			Inputs:  []string{"downloads/ercot_data.pkl", "downloads/fuel_mix_data.pkl"},
			Output:  "model_result.nc",
			Command: "cat downloads/ercot_data.pkl downloads/fuel_mix_data.pkl > model_result.nc",
		},
	)

	run, err := NewExecutor(dir, nil).Run(context.Background(), g, "build_model")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.State("download_ercot_data") != StateCompleted {
		t.Errorf("download state = %s", run.State("download_ercot_data"))
	}
	if run.State("build_model") != StateCompleted {
		t.Errorf("build state = %s", run.State("build_model"))
	}
}

func TestRunReusesCachedOutput(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran.count")
	g := testGraph(t, Target{
		Name:    "download_ercot_data",
		Output:  "downloads/ercot_data.pkl",
		Command: "echo x >> ran.count && echo load-data > downloads/ercot_data.pkl",
		Cached:  true,
	})

	executor := NewExecutor(dir, nil)
	if _, err := executor.Run(context.Background(), g, "download_ercot_data"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	run, err := executor.Run(context.Background(), g, "download_ercot_data")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if run.State("download_ercot_data") != StateCached {
		t.Errorf("second run state = %s, want cached", run.State("download_ercot_data"))
	}

	data, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	if got := strings.Count(string(data), "x"); got != 1 {
		t.Errorf("command ran %d times, want 1", got)
	}
}

func TestRunFailsOnMissingRequiredEnv(t *testing.T) {
	dir := t.TempDir()
	g := testGraph(t, Target{
		Name:        "download_ercot_data",
		Output:      "downloads/ercot_data.pkl",
		Command:     "echo load-data > downloads/ercot_data.pkl",
		RequiresEnv: []string{"PINION_TEST_UNSET_KEY"},
	})

	_, err := NewExecutor(dir, nil).Run(context.Background(), g, "download_ercot_data")
	if err == nil {
		t.Fatal("run proceeded without required env var")
	}
	if !strings.Contains(err.Error(), "PINION_TEST_UNSET_KEY") {
		t.Errorf("error does not name the variable: %v", err)
	}
}

func TestRunReportsCommandFailure(t *testing.T) {
	dir := t.TempDir()
	g := testGraph(t, Target{
		Name:    "download_ercot_data",
		Output:  "downloads/ercot_data.pkl",
		Command: "exit 3",
	})

	run, err := NewExecutor(dir, nil).Run(context.Background(), g, "download_ercot_data")
	if err == nil {
		t.Fatal("run succeeded despite failing command")
	}
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("got %v, want CommandError", err)
	}
	if cmdErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", cmdErr.ExitCode)
	}
	if run.State("download_ercot_data") != StateFailed {
		t.Errorf("state = %s, want failed", run.State("download_ercot_data"))
	}
}

func TestRunDetectsMissingOutput(t *testing.T) {
	dir := t.TempDir()
	g := testGraph(t, Target{
		Name:    "download_ercot_data",
		Output:  "downloads/ercot_data.pkl",
		Command: "true",
	})

	_, err := NewExecutor(dir, nil).Run(context.Background(), g, "download_ercot_data")
	if err == nil {
		t.Fatal("run succeeded though no output was produced")
	}
	if !strings.Contains(err.Error(), "did not produce") {
		t.Errorf("unexpected error: %v", err)
	}
}
