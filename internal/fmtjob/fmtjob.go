// Package fmtjob applies a formatter to source files and reports the changes
// it made, so that a repository can keep its code formatted from CI.
package fmtjob

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrNotFormatted is returned by check-mode runs that found unformatted files.
var ErrNotFormatted = fmt.Errorf("files are not formatted")

// Formatter rewrites a single file's contents.
type Formatter interface {
	Format(ctx context.Context, path string, src []byte) ([]byte, error)
}

// CommandFormatter runs an external formatter that reads the file from stdin
// and writes the formatted result to stdout, the way `ruff format -` does.
type CommandFormatter struct {
	// Command is executed via the shell with the file path appended as $1.
	Command string
	// Env is the environment for the formatter process. Nil inherits the
	// parent environment.
	Env []string
}

func (f *CommandFormatter) Format(ctx context.Context, path string, src []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", f.Command+` "$1"`, "fmt", path)
	cmd.Stdin = bytes.NewReader(src)
	if f.Env != nil {
		cmd.Env = f.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("formatter failed on %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// FileResult records what the formatter did to one file.
type FileResult struct {
	Path    string
	Changed bool
	// Diff is a unified-style rendering of the change, empty when unchanged.
	Diff string
}

// Result summarizes a formatting run.
type Result struct {
	Files   []FileResult
	Changed int
}

// Runner walks a directory tree and formats every file matching one of the
// configured glob patterns.
type Runner struct {
	Root      string
	Patterns  []string
	Formatter Formatter
	// Check reports changes without writing them.
	Check  bool
	Logger *slog.Logger
}

func NewRunner(root string, patterns []string, formatter Formatter, logger *slog.Logger) *Runner {
	return &Runner{
		Root:      root,
		Patterns:  patterns,
		Formatter: formatter,
		Logger:    logger,
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run formats all matching files under Root. In check mode it returns
// ErrNotFormatted when any file would change; otherwise changed files are
// rewritten in place.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.Formatter == nil {
		return nil, fmt.Errorf("no formatter configured")
	}

	paths, err := r.matchFiles()
	if err != nil {
		return nil, err
	}
	r.logger().Debug("formatting files", "count", len(paths), "check", r.Check)

	result := &Result{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fr, err := r.formatFile(ctx, path)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, fr)
		if fr.Changed {
			result.Changed++
		}
	}

	if r.Check && result.Changed > 0 {
		return result, fmt.Errorf("%w: %d file(s) need formatting", ErrNotFormatted, result.Changed)
	}
	return result, nil
}

func (r *Runner) formatFile(ctx context.Context, path string) (FileResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	formatted, err := r.Formatter.Format(ctx, path, src)
	if err != nil {
		return FileResult{}, err
	}

	rel, relErr := filepath.Rel(r.Root, path)
	if relErr != nil {
		rel = path
	}
	fr := FileResult{Path: rel}
	if bytes.Equal(src, formatted) {
		return fr, nil
	}

	fr.Changed = true
	fr.Diff = renderDiff(string(src), string(formatted))

	if r.Check {
		r.logger().Info("file needs formatting", "file", rel)
		return fr, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, formatted, info.Mode().Perm()); err != nil {
		return FileResult{}, fmt.Errorf("failed to rewrite %s: %w", path, err)
	}
	r.logger().Info("formatted file", "file", rel)
	return fr, nil
}

func (r *Runner) matchFiles() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(r.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		for _, pattern := range r.Patterns {
			ok, matchErr := filepath.Match(pattern, d.Name())
			if matchErr != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, matchErr)
			}
			if ok {
				paths = append(paths, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", r.Root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func renderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, true)
	dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			for _, line := range diffLines(d.Text) {
				fmt.Fprintf(&b, "+%s\n", line)
			}
		case diffmatchpatch.DiffDelete:
			for _, line := range diffLines(d.Text) {
				fmt.Fprintf(&b, "-%s\n", line)
			}
		}
	}
	return b.String()
}

func diffLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		lines = append(lines, line)
	}
	return lines
}
