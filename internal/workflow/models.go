// Package workflow runs file-target pipelines ordered by their input/output
// dependency graph.
package workflow

// Target declares one workflow step: a command that must deterministically
// produce the output file from its declared inputs.
type Target struct {
	Name    string   `yaml:"name"`
	Output  string   `yaml:"output"`
	Inputs  []string `yaml:"inputs,omitempty"`
	Command string   `yaml:"command"`

	// Cached marks the output as reusable: when it already exists the
	// command is not re-run.
	Cached bool `yaml:"cached,omitempty"`

	// RequiresEnv lists environment variables the command needs; execution
	// fails fast when any are unset.
	RequiresEnv []string `yaml:"requires_env,omitempty"`
}

// Workflow is a declarative set of targets.
type Workflow struct {
	Targets []Target `yaml:"targets"`
}

// TargetState is the lifecycle state of one target within a run.
type TargetState string

const (
	StatePending   TargetState = "pending"
	StateRunning   TargetState = "running"
	StateCompleted TargetState = "completed"
	StateCached    TargetState = "cached"
	StateFailed    TargetState = "failed"
	StateSkipped   TargetState = "skipped"
)
