package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidWorkflow wraps workflow validation failures.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// NoRuleError is raised when a declared input is absent and no target
// produces it. The workflow must fail rather than run with a missing input.
type NoRuleError struct {
	Path   string // the input that cannot be produced
	Target string // the target that declared it
}

func (e *NoRuleError) Error() string {
	return fmt.Sprintf("no rule to produce %s (required by %s)", e.Path, e.Target)
}

// CommandError reports a target command that exited non-zero.
type CommandError struct {
	Target   string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("target %s failed with exit code %d", e.Target, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidWorkflow}, args...)...)
}
